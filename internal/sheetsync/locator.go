package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/allotter/internal/gsheet"
)

var (
	ErrHeaderNotFound = errors.New("header row not found")
	ErrRangeFetch     = errors.New("range fetch failed")
)

// SheetReader is the read side of the spreadsheet client.
type SheetReader interface {
	SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error)
	ReadRange(ctx context.Context, spreadsheetID, rangeSpec string) ([][]string, error)
}

type LocatorOptions struct {
	PreferredSheet   string
	PreviewRows      int
	LastColumn       string
	PrimaryRequired  []string
	FallbackRequired []string
}

func DefaultLocatorOptions() LocatorOptions {
	return LocatorOptions{
		PreferredSheet:   "NEET Modules",
		PreviewRows:      5,
		LastColumn:       "Z",
		PrimaryRequired:  []string{"cohort", "subject"},
		FallbackRequired: []string{"cohort", "subject", "class"},
	}
}

// HeaderLocation is where the header row was found. RowIndex is zero-based
// within the preview window, which starts at row 1.
type HeaderLocation struct {
	SheetTitle string
	RowIndex   int
	Headers    []string
}

// HeaderRow is the 1-based sheet row of the header.
func (h HeaderLocation) HeaderRow() int {
	return h.RowIndex + 1
}

// DataStartRow is the 1-based sheet row of the first data row.
func (h HeaderLocation) DataStartRow() int {
	return h.RowIndex + 2
}

type Locator struct {
	reader SheetReader
	opts   LocatorOptions
}

func NewLocator(reader SheetReader, opts LocatorOptions) *Locator {
	return &Locator{reader: reader, opts: opts}
}

// Locate scans the preferred tab first, then every other tab in listed order,
// and returns the first preview row containing all required keywords.
func (l *Locator) Locate(ctx context.Context, spreadsheetID string) (*HeaderLocation, error) {
	titles, err := l.reader.SheetTitles(ctx, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sheets: %w", err)
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("%w: spreadsheet has no sheets", ErrHeaderNotFound)
	}

	for _, title := range titles {
		if title != l.opts.PreferredSheet {
			continue
		}
		logger.Debug.Printf("Checking preferred sheet %q", title)
		if loc := l.scan(ctx, spreadsheetID, title, l.opts.PrimaryRequired); loc != nil {
			return loc, nil
		}
		break
	}

	for _, title := range titles {
		if title == l.opts.PreferredSheet {
			continue
		}
		logger.Debug.Printf("Checking sheet %q", title)
		if loc := l.scan(ctx, spreadsheetID, title, l.opts.FallbackRequired); loc != nil {
			return loc, nil
		}
	}

	return nil, fmt.Errorf("%w: no sheet has columns %s",
		ErrHeaderNotFound, strings.Join(l.opts.FallbackRequired, ", "))
}

func (l *Locator) scan(ctx context.Context, spreadsheetID, title string, required []string) *HeaderLocation {
	rows, err := l.reader.ReadRange(ctx, spreadsheetID, l.previewRange(title))
	if err != nil {
		logger.Error.Printf("Failed to read preview of sheet %q: %v", title, err)
		return nil
	}

	for i, row := range rows {
		if containsAll(strings.ToLower(strings.Join(row, " ")), required) {
			logger.Info.Printf("Found headers in %q at row %d", title, i+1)
			return &HeaderLocation{SheetTitle: title, RowIndex: i, Headers: row}
		}
	}
	return nil
}

func (l *Locator) previewRange(title string) string {
	return gsheet.BlockRange(title, "A", 1, l.opts.LastColumn, l.opts.PreviewRows)
}

// Preview returns the first row of the first tab, for diagnostics.
func (l *Locator) Preview(ctx context.Context, spreadsheetID string) (string, []string, error) {
	titles, err := l.reader.SheetTitles(ctx, spreadsheetID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to list sheets: %w", err)
	}
	if len(titles) == 0 {
		return "", nil, fmt.Errorf("%w: spreadsheet has no sheets", ErrHeaderNotFound)
	}

	title := titles[0]
	rows, err := l.reader.ReadRange(ctx, spreadsheetID, gsheet.BlockRange(title, "A", 1, l.opts.LastColumn, 1))
	if err != nil {
		return title, nil, fmt.Errorf("%w: %v", ErrRangeFetch, err)
	}
	if len(rows) == 0 {
		return title, []string{}, nil
	}
	return title, rows[0], nil
}

func containsAll(s string, keywords []string) bool {
	for _, kw := range keywords {
		if !strings.Contains(s, kw) {
			return false
		}
	}
	return true
}
