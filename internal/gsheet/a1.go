package gsheet

import (
	"fmt"
	"strings"
)

// ColumnLetter converts a zero-based column index into its A1 column name:
// 0 -> A, 25 -> Z, 26 -> AA, 701 -> ZZ. Negative indexes yield "".
func ColumnLetter(index int) string {
	letter := ""
	for index >= 0 {
		letter = string(rune('A'+index%26)) + letter
		index = index/26 - 1
	}
	return letter
}

// ColumnIndex is the inverse of ColumnLetter.
func ColumnIndex(letter string) (int, error) {
	if letter == "" {
		return -1, fmt.Errorf("empty column letter")
	}
	n := 0
	for _, r := range strings.ToUpper(letter) {
		if r < 'A' || r > 'Z' {
			return -1, fmt.Errorf("invalid column letter %q", letter)
		}
		n = n*26 + int(r-'A'+1)
	}
	return n - 1, nil
}

// QuoteTitle wraps a sheet title in single quotes, doubling embedded quotes.
func QuoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// CellRange addresses a single cell, e.g. 'Tab'!AB10.
func CellRange(title string, col, row int) string {
	return fmt.Sprintf("%s!%s%d", QuoteTitle(title), ColumnLetter(col), row)
}

// BlockRange addresses a closed rectangle, e.g. 'Tab'!A1:Z5.
func BlockRange(title, startCol string, startRow int, endCol string, endRow int) string {
	return fmt.Sprintf("%s!%s%d:%s%d", QuoteTitle(title), startCol, startRow, endCol, endRow)
}

// OpenRange addresses everything from startRow to the end of the sheet, e.g. 'Tab'!A3:Z.
func OpenRange(title, startCol string, startRow int, endCol string) string {
	return fmt.Sprintf("%s!%s%d:%s", QuoteTitle(title), startCol, startRow, endCol)
}
