package sheetsync

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

var ErrUpsert = errors.New("upsert failed")

// DefaultEmailColumn is column Q, used when no header maps the teacher email.
const DefaultEmailColumn = 16

// Upserter is the write side of the store the synchronizer needs.
type Upserter interface {
	UpsertFromSheet(ctx context.Context, a *models.Allotment) error
}

type Options struct {
	Locator     LocatorOptions
	Keywords    KeywordTable
	EmailColumn int
}

func DefaultOptions() Options {
	return Options{
		Locator:     DefaultLocatorOptions(),
		Keywords:    DefaultKeywordTable(),
		EmailColumn: DefaultEmailColumn,
	}
}

// Result describes a finished sync run.
type Result struct {
	SheetTitle     string
	HeaderRow      int
	DataStartRow   int
	Headers        []string
	Mapping        ColumnMap
	Matches        []Match
	KeywordVersion int
	Count          int
}

type Synchronizer struct {
	reader  SheetReader
	store   Upserter
	locator *Locator
	opts    Options
	audit   logrus.FieldLogger
	now     func() time.Time
}

func NewSynchronizer(reader SheetReader, store Upserter, opts Options, audit logrus.FieldLogger) *Synchronizer {
	if audit == nil {
		audit = logrus.StandardLogger()
	}
	return &Synchronizer{
		reader:  reader,
		store:   store,
		locator: NewLocator(reader, opts.Locator),
		opts:    opts,
		audit:   audit,
		now:     time.Now,
	}
}

// Run locates the header, maps columns and upserts every data row keyed by
// its absolute sheet row number. Rows upserted before a failure stay applied.
func (s *Synchronizer) Run(ctx context.Context, spreadsheetID string) (*Result, error) {
	loc, err := s.locator.Locate(ctx, spreadsheetID)
	if err != nil {
		s.audit.WithError(err).Error("sync aborted: header not located")
		return nil, err
	}

	mapping, matches := MapColumns(loc.Headers, s.opts.Keywords)
	res := &Result{
		SheetTitle:     loc.SheetTitle,
		HeaderRow:      loc.HeaderRow(),
		DataStartRow:   loc.DataStartRow(),
		Headers:        loc.Headers,
		Mapping:        mapping,
		Matches:        matches,
		KeywordVersion: s.opts.Keywords.Version,
	}

	entry := s.audit.WithFields(logrus.Fields{
		"sheet":      loc.SheetTitle,
		"header_row": res.HeaderRow,
	})
	for _, m := range matches {
		entry.WithFields(logrus.Fields{
			"field":   m.Field,
			"column":  m.Letter,
			"header":  m.Header,
			"keyword": m.Keyword,
		}).Debug("column mapped")
	}

	dataRange := gsheet.OpenRange(loc.SheetTitle, "A", res.DataStartRow, s.opts.Locator.LastColumn)
	rows, err := s.reader.ReadRange(ctx, spreadsheetID, dataRange)
	if err != nil {
		entry.WithError(err).Error("sync aborted: data range unreadable")
		return nil, fmt.Errorf("%w: %s: %v", ErrRangeFetch, dataRange, err)
	}

	entry.WithFields(logrus.Fields{
		"headers":        loc.Headers,
		"video_link_col": mapping.Index(FieldVideoLink),
		"error_col":      mapping.Index(FieldError),
		"email_col":      mapping.Index(FieldEmail),
		"rows":           len(rows),
	}).Info("sync started")

	now := s.now().UTC()
	for i, row := range rows {
		rowID := res.DataStartRow + i
		a := BuildAllotment(row, mapping, rowID, loc.SheetTitle, s.opts.EmailColumn, now)
		if err := s.store.UpsertFromSheet(ctx, &a); err != nil {
			entry.WithError(err).WithField("sheet_row_id", rowID).Error("sync aborted: upsert failed")
			return nil, fmt.Errorf("%w: sheet row %d: %v", ErrUpsert, rowID, err)
		}
		res.Count++
	}

	entry.WithField("count", res.Count).Info("sync finished")
	logger.Info.Printf("Synced %d rows from %q", res.Count, loc.SheetTitle)
	return res, nil
}

// BuildAllotment converts one data row into a record.
func BuildAllotment(row []string, mapping ColumnMap, sheetRowID int, sheetTitle string, emailColumn int, now time.Time) models.Allotment {
	get := func(f Field) string {
		return cell(row, mapping.Index(f))
	}

	emailIdx := mapping.Index(FieldEmail)
	if emailIdx < 0 {
		emailIdx = emailColumn
	}

	videoLink := get(FieldVideoLink)
	title := sheetTitle

	return models.Allotment{
		SheetRowID:            sheetRowID,
		Cohort:                get(FieldCohort),
		Class:                 get(FieldClass),
		Subject:               get(FieldSubject),
		ModuleNo:              get(FieldModule),
		ChapterNumber:         get(FieldChapterNo),
		ChapterName:           get(FieldChapterName),
		ExerciseName:          get(FieldExercise),
		QNo:                   get(FieldQNo),
		QbgIDLinks:            get(FieldQbg),
		TextSolutionAvailable: get(FieldTextSol),
		PptLink:               get(FieldPpt),
		VideoFolderLink:       get(FieldVideoFolder),

		VideoLink:               videoLink,
		QuestionErrorIdentified: get(FieldError),
		Status:                  DeriveStatus(get(FieldStatus), videoLink),

		VsLinkAdditionDate: get(FieldVsLinkDate),
		VsAllotmentDate:    get(FieldVsAllotDate),

		TeacherEmail: models.NormalizeEmail(cell(row, emailIdx)),

		SheetTitle:   &title,
		VideoLinkCol: mapping.Ptr(FieldVideoLink),
		ErrorCol:     mapping.Ptr(FieldError),
		LinkDateCol:  mapping.Ptr(FieldVsLinkDate),

		LastSyncedAt: now,
	}
}

// DeriveStatus keeps a non-empty sheet status; otherwise a video link longer
// than five characters counts as submitted.
func DeriveStatus(sheetStatus, videoLink string) string {
	if sheetStatus != "" {
		return sheetStatus
	}
	if len(videoLink) > 5 {
		return models.StatusSubmitted
	}
	return models.StatusPending
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
