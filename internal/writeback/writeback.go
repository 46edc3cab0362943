// Package writeback mirrors teacher edits into the originating sheet cells.
package writeback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"
	"github.com/sirupsen/logrus"

	"github.com/shrimpsizemoose/allotter/internal/gsheet"
	"github.com/shrimpsizemoose/allotter/internal/models"
)

// DateLayout is the en-US short date written to the link-date cell.
const DateLayout = "1/2/2006"

var ErrWriteBack = errors.New("write-back failed")

type Status string

const (
	StatusWritten Status = "written"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	StatusNoop    Status = "noop"
)

type SheetWriter interface {
	BatchWrite(ctx context.Context, spreadsheetID string, updates []gsheet.CellUpdate) (int64, error)
}

// Change carries the fields the teacher actually sent. Nil means untouched.
type Change struct {
	VideoLink     *string
	QuestionError *string
}

// Outcome reports what the mirror did. It never fails the caller.
type Outcome struct {
	Status       Status   `json:"status"`
	Ranges       []string `json:"ranges,omitempty"`
	UpdatedCells int64    `json:"updatedCells,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Plan computes the cell writes for a change against the row's stored
// coordinates. It returns nil when the row has no write-back target.
func Plan(a *models.Allotment, c Change, today time.Time) []gsheet.CellUpdate {
	if !a.HasWriteBackTarget() {
		return nil
	}
	title := *a.SheetTitle

	var updates []gsheet.CellUpdate
	if c.VideoLink != nil && validCol(a.VideoLinkCol) {
		updates = append(updates, gsheet.CellUpdate{
			Range: gsheet.CellRange(title, *a.VideoLinkCol, a.SheetRowID),
			Value: *c.VideoLink,
		})
		if len(*c.VideoLink) > 5 && validCol(a.LinkDateCol) {
			updates = append(updates, gsheet.CellUpdate{
				Range: gsheet.CellRange(title, *a.LinkDateCol, a.SheetRowID),
				Value: today.Format(DateLayout),
			})
		}
	}
	if c.QuestionError != nil && validCol(a.ErrorCol) {
		updates = append(updates, gsheet.CellUpdate{
			Range: gsheet.CellRange(title, *a.ErrorCol, a.SheetRowID),
			Value: *c.QuestionError,
		})
	}
	return updates
}

func validCol(col *int) bool {
	return col != nil && *col >= 0
}

type Engine struct {
	writer        SheetWriter
	spreadsheetID string
	audit         logrus.FieldLogger
	now           func() time.Time
}

func NewEngine(writer SheetWriter, spreadsheetID string, audit logrus.FieldLogger) *Engine {
	if audit == nil {
		audit = logrus.StandardLogger()
	}
	return &Engine{
		writer:        writer,
		spreadsheetID: spreadsheetID,
		audit:         audit,
		now:           time.Now,
	}
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Mirror sends all writes for one change in a single batch.
func (e *Engine) Mirror(ctx context.Context, a *models.Allotment, c Change) Outcome {
	entry := e.audit.WithFields(logrus.Fields{
		"id":             a.ID,
		"sheet_row_id":   a.SheetRowID,
		"sheet_title":    deref(a.SheetTitle),
		"video_link_col": derefInt(a.VideoLinkCol),
		"error_col":      derefInt(a.ErrorCol),
	})

	if !a.HasWriteBackTarget() {
		entry.Warn("write-back skipped: missing sheet title or row id")
		return Outcome{Status: StatusSkipped}
	}

	updates := Plan(a, c, e.now())
	if len(updates) == 0 {
		entry.Info("write-back noop: no cells to update")
		return Outcome{Status: StatusNoop}
	}

	ranges := make([]string, len(updates))
	for i, u := range updates {
		ranges[i] = u.Range
		entry.WithFields(logrus.Fields{"range": u.Range, "value": u.Value}).Debug("write-back prepared")
	}

	n, err := e.writer.BatchWrite(ctx, e.spreadsheetID, updates)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrWriteBack, err)
		entry.WithError(err).WithField("ranges", ranges).Error("write-back failed")
		logger.Error.Printf("Write-back for sheet row %d failed: %v", a.SheetRowID, err)
		return Outcome{Status: StatusFailed, Ranges: ranges, Error: err.Error()}
	}

	entry.WithFields(logrus.Fields{"ranges": ranges, "updated_cells": n}).Info("write-back written")
	return Outcome{Status: StatusWritten, Ranges: ranges, UpdatedCells: n}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return -1
	}
	return *i
}
