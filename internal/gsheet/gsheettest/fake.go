// Package gsheettest provides an in-memory spreadsheet for tests.
package gsheettest

import (
	"context"
	"fmt"
	"sync"

	"github.com/shrimpsizemoose/allotter/internal/gsheet"
)

type Fake struct {
	mu sync.Mutex

	Titles []string
	// Ranges maps an exact range spec to the rows returned for it.
	Ranges map[string][][]string
	// RangeErrors makes ReadRange fail for the given range spec.
	RangeErrors map[string]error
	TitlesErr   error
	WriteErr    error

	Reads  []string
	Writes [][]gsheet.CellUpdate
}

func New(titles ...string) *Fake {
	return &Fake{
		Titles:      titles,
		Ranges:      map[string][][]string{},
		RangeErrors: map[string]error{},
	}
}

func (f *Fake) SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TitlesErr != nil {
		return nil, f.TitlesErr
	}
	return append([]string(nil), f.Titles...), nil
}

func (f *Fake) ReadRange(ctx context.Context, spreadsheetID, rangeSpec string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads = append(f.Reads, rangeSpec)
	if err, ok := f.RangeErrors[rangeSpec]; ok {
		return nil, err
	}
	rows, ok := f.Ranges[rangeSpec]
	if !ok {
		return nil, nil
	}
	return rows, nil
}

func (f *Fake) BatchWrite(ctx context.Context, spreadsheetID string, updates []gsheet.CellUpdate) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return 0, f.WriteErr
	}
	f.Writes = append(f.Writes, append([]gsheet.CellUpdate(nil), updates...))
	return int64(len(updates)), nil
}

// LastWrite returns the most recent batch, or nil.
func (f *Fake) LastWrite() []gsheet.CellUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Writes) == 0 {
		return nil
	}
	return f.Writes[len(f.Writes)-1]
}

func (f *Fake) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("fake spreadsheet %v (%d reads, %d writes)", f.Titles, len(f.Reads), len(f.Writes))
}
