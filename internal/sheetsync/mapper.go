package sheetsync

import (
	"strings"

	"github.com/shrimpsizemoose/allotter/internal/gsheet"
)

// ColumnMap resolves each field to a zero-based column index, -1 when the
// header row has no matching cell. It always carries every field.
type ColumnMap map[Field]int

func (m ColumnMap) Index(f Field) int {
	if idx, ok := m[f]; ok {
		return idx
	}
	return -1
}

// Ptr returns the index as a pointer, nil when the field is unmapped.
func (m ColumnMap) Ptr(f Field) *int {
	idx := m.Index(f)
	if idx < 0 {
		return nil
	}
	return &idx
}

// Match records why a field landed on a column.
type Match struct {
	Field   Field  `json:"field"`
	Column  int    `json:"column"`
	Letter  string `json:"letter"`
	Header  string `json:"header"`
	Keyword string `json:"keyword"`
}

// MapColumns picks, for each field, the leftmost header containing any of the
// field's keywords.
func MapColumns(headers []string, table KeywordTable) (ColumnMap, []Match) {
	lower := make([]string, len(headers))
	for i, h := range headers {
		lower[i] = strings.ToLower(strings.TrimSpace(h))
	}

	mapping := make(ColumnMap, len(Fields))
	var matches []Match
	for _, f := range Fields {
		mapping[f] = -1
		col, kw := findColumn(lower, table.Keywords[f])
		if col < 0 {
			continue
		}
		mapping[f] = col
		matches = append(matches, Match{
			Field:   f,
			Column:  col,
			Letter:  gsheet.ColumnLetter(col),
			Header:  headers[col],
			Keyword: kw,
		})
	}
	return mapping, matches
}

func findColumn(lowerHeaders, keywords []string) (int, string) {
	for i, h := range lowerHeaders {
		for _, kw := range keywords {
			if strings.Contains(h, kw) {
				return i, kw
			}
		}
	}
	return -1, ""
}
