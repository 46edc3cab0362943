package sheetsync

import (
	"fmt"
	"strings"
)

// Field is a semantic column of the allotment sheet.
type Field string

const (
	FieldSheetRowID  Field = "sheetRowId"
	FieldCohort      Field = "cohort"
	FieldClass       Field = "class"
	FieldSubject     Field = "subject"
	FieldModule      Field = "module"
	FieldChapterNo   Field = "chapterNo"
	FieldChapterName Field = "chapterName"
	FieldExercise    Field = "exercise"
	FieldQNo         Field = "qNo"
	FieldQbg         Field = "qbg"
	FieldTextSol     Field = "textSol"
	FieldPpt         Field = "ppt"
	FieldVideoFolder Field = "videoFolder"
	FieldVideoLink   Field = "videoLink"
	FieldError       Field = "error"
	FieldVsLinkDate  Field = "vsLinkDate"
	FieldVsAllotDate Field = "vsAllotDate"
	FieldStatus      Field = "status"
	FieldEmail       Field = "email"
)

// Fields lists every field in mapping order.
var Fields = []Field{
	FieldSheetRowID, FieldCohort, FieldClass, FieldSubject, FieldModule,
	FieldChapterNo, FieldChapterName, FieldExercise, FieldQNo, FieldQbg,
	FieldTextSol, FieldPpt, FieldVideoFolder, FieldVideoLink, FieldError,
	FieldVsLinkDate, FieldVsAllotDate, FieldStatus, FieldEmail,
}

const DefaultKeywordVersion = 1

// KeywordTable holds the ordered header keywords for each field. Keywords are
// matched lower-case as substrings of the trimmed header text.
type KeywordTable struct {
	Version  int
	Keywords map[Field][]string
}

func DefaultKeywordTable() KeywordTable {
	return KeywordTable{
		Version: DefaultKeywordVersion,
		Keywords: map[Field][]string{
			FieldSheetRowID:  {"#", "sr.", "no."},
			FieldCohort:      {"cohort"},
			FieldClass:       {"class"},
			FieldSubject:     {"subject"},
			FieldModule:      {"module"},
			FieldChapterNo:   {"chapter no", "chap no", "chapter number"},
			FieldChapterName: {"chapter name"},
			FieldExercise:    {"exercise"},
			FieldQNo:         {"q. no", "question no"},
			// "links" rather than "qbg": the sheet has a separate QBG ID column.
			FieldQbg:         {"links", "qbg id links"},
			FieldTextSol:     {"text solution", "text sol"},
			FieldPpt:         {"ppt"},
			FieldVideoFolder: {"video folder"},
			FieldVideoLink:   {"video link"},
			FieldError:       {"error", "identified"},
			FieldVsLinkDate:  {"vs link addition", "addition date", "link date"},
			FieldVsAllotDate: {"vs allotment", "allotment date", "allotment"},
			FieldStatus:      {"status"},
			FieldEmail:       {"allotted to", "vs allotted", "teacher", "email"},
		},
	}
}

// WithOverrides returns a copy of the table where the given fields use the
// supplied keyword lists. Unknown field names and empty lists are rejected.
func (t KeywordTable) WithOverrides(version int, overrides map[string][]string) (KeywordTable, error) {
	out := KeywordTable{
		Version:  t.Version,
		Keywords: make(map[Field][]string, len(t.Keywords)),
	}
	for f, kws := range t.Keywords {
		out.Keywords[f] = append([]string(nil), kws...)
	}
	if version > 0 {
		out.Version = version
	}

	for name, kws := range overrides {
		f := Field(name)
		if !isKnownField(f) {
			return KeywordTable{}, fmt.Errorf("unknown mapping field %q", name)
		}
		cleaned := make([]string, 0, len(kws))
		for _, kw := range kws {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				cleaned = append(cleaned, kw)
			}
		}
		if len(cleaned) == 0 {
			return KeywordTable{}, fmt.Errorf("mapping field %q has no keywords", name)
		}
		out.Keywords[f] = cleaned
	}
	return out, nil
}

func isKnownField(f Field) bool {
	for _, known := range Fields {
		if known == f {
			return true
		}
	}
	return false
}
