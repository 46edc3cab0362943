package sheetsync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/allotter/internal/gsheet/gsheettest"
)

func TestLocatePreferredSheet(t *testing.T) {
	fake := gsheettest.New("Archive", "NEET Modules")
	fake.Ranges["'NEET Modules'!A1:Z5"] = [][]string{
		{"NEET allotments 2025"},
		{"Cohort", "Subject", "Chapter Name"},
	}
	fake.Ranges["'Archive'!A1:Z5"] = [][]string{
		{"Cohort", "Class", "Subject"},
	}

	loc, err := NewLocator(fake, DefaultLocatorOptions()).Locate(context.Background(), "sheet-id")
	require.NoError(t, err)
	assert.Equal(t, "NEET Modules", loc.SheetTitle)
	assert.Equal(t, 1, loc.RowIndex)
	assert.Equal(t, 2, loc.HeaderRow())
	assert.Equal(t, 3, loc.DataStartRow())
	assert.Equal(t, []string{"Cohort", "Subject", "Chapter Name"}, loc.Headers)
	assert.Equal(t, []string{"'NEET Modules'!A1:Z5"}, fake.Reads)
}

func TestLocateFallbackNeedsClass(t *testing.T) {
	fake := gsheettest.New("NEET Modules", "Notes", "Physics", "Chemistry")
	fake.Ranges["'NEET Modules'!A1:Z5"] = [][]string{{"nothing here"}}
	fake.Ranges["'Notes'!A1:Z5"] = [][]string{{"cohort", "subject"}}
	fake.Ranges["'Physics'!A1:Z5"] = [][]string{{}, {"x"}, {"Cohort", "Subject", "Class"}}
	fake.Ranges["'Chemistry'!A1:Z5"] = [][]string{{"Cohort", "Subject", "Class"}}

	loc, err := NewLocator(fake, DefaultLocatorOptions()).Locate(context.Background(), "sheet-id")
	require.NoError(t, err)
	assert.Equal(t, "Physics", loc.SheetTitle)
	assert.Equal(t, 2, loc.RowIndex)
	assert.NotContains(t, fake.Reads, "'Chemistry'!A1:Z5", "scanning stops at first match")
}

func TestLocateSkipsUnreadableTabs(t *testing.T) {
	fake := gsheettest.New("Broken", "Good")
	fake.RangeErrors["'Broken'!A1:Z5"] = errors.New("boom")
	fake.Ranges["'Good'!A1:Z5"] = [][]string{{"Cohort Class Subject"}}

	loc, err := NewLocator(fake, DefaultLocatorOptions()).Locate(context.Background(), "sheet-id")
	require.NoError(t, err)
	assert.Equal(t, "Good", loc.SheetTitle)
	assert.Equal(t, 0, loc.RowIndex)
}

func TestLocateNotFound(t *testing.T) {
	t.Run("no tab matches", func(t *testing.T) {
		fake := gsheettest.New("Sheet1")
		fake.Ranges["'Sheet1'!A1:Z5"] = [][]string{{"Cohort", "Subject"}}

		_, err := NewLocator(fake, DefaultLocatorOptions()).Locate(context.Background(), "sheet-id")
		assert.ErrorIs(t, err, ErrHeaderNotFound)
	})

	t.Run("no tabs", func(t *testing.T) {
		_, err := NewLocator(gsheettest.New(), DefaultLocatorOptions()).Locate(context.Background(), "sheet-id")
		assert.ErrorIs(t, err, ErrHeaderNotFound)
	})

	t.Run("metadata failure", func(t *testing.T) {
		fake := gsheettest.New()
		fake.TitlesErr = errors.New("forbidden")
		_, err := NewLocator(fake, DefaultLocatorOptions()).Locate(context.Background(), "sheet-id")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrHeaderNotFound)
	})
}

func TestLocateQuotesTitles(t *testing.T) {
	fake := gsheettest.New("Teacher's tab")
	fake.Ranges["'Teacher''s tab'!A1:Z5"] = [][]string{{"Cohort", "Class", "Subject"}}

	loc, err := NewLocator(fake, DefaultLocatorOptions()).Locate(context.Background(), "sheet-id")
	require.NoError(t, err)
	assert.Equal(t, "Teacher's tab", loc.SheetTitle)
}

func TestPreview(t *testing.T) {
	fake := gsheettest.New("Sheet1", "Other")
	fake.Ranges["'Sheet1'!A1:Z1"] = [][]string{{"Cohort", "Subject"}}

	title, headers, err := NewLocator(fake, DefaultLocatorOptions()).Preview(context.Background(), "sheet-id")
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", title)
	assert.Equal(t, []string{"Cohort", "Subject"}, headers)

	empty := gsheettest.New("Blank")
	_, headers, err = NewLocator(empty, DefaultLocatorOptions()).Preview(context.Background(), "sheet-id")
	require.NoError(t, err)
	assert.Empty(t, headers)
}
