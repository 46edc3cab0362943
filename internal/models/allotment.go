package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	StatusPending   = "Pending"
	StatusSubmitted = "Submitted"
	StatusCompleted = "Completed"
)

// Allotment is one data row of the allotment sheet. SheetRowID is the absolute
// 1-based row number at sync time and doubles as the write-back coordinate.
type Allotment struct {
	ID         int64 `db:"id" json:"id"`
	SheetRowID int   `db:"sheet_row_id" json:"sheetRowId"`

	Cohort                string `db:"cohort" json:"cohort"`
	Class                 string `db:"class_name" json:"class"`
	Subject               string `db:"subject" json:"subject"`
	ModuleNo              string `db:"module_no" json:"moduleNo"`
	ChapterNumber         string `db:"chapter_number" json:"chapterNumber"`
	ChapterName           string `db:"chapter_name" json:"chapterName"`
	ExerciseName          string `db:"exercise_name" json:"exerciseName"`
	QNo                   string `db:"q_no" json:"qNo"`
	QbgIDLinks            string `db:"qbg_id_links" json:"qbgIdLinks"`
	TextSolutionAvailable string `db:"text_solution_available" json:"textSolutionAvailable"`
	PptLink               string `db:"ppt_link" json:"pptLink"`
	VideoFolderLink       string `db:"video_folder_link" json:"videoFolderLink"`

	// Editable by the teacher.
	VideoLink               string `db:"video_link" json:"videoLink"`
	QuestionErrorIdentified string `db:"question_error_identified" json:"questionErrorIdentified"`
	Status                  string `db:"status" json:"status"`

	VsLinkAdditionDate string `db:"vs_link_addition_date" json:"vsLinkAdditionDate"`
	VsAllotmentDate    string `db:"vs_allotment_date" json:"vsAllotmentDate"`

	TeacherEmail string `db:"teacher_email" json:"teacherEmail"`

	// Write-back coordinates captured by the last sync.
	SheetTitle   *string `db:"sheet_title" json:"sheetTitle,omitempty"`
	VideoLinkCol *int    `db:"video_link_col" json:"videoLinkCol,omitempty"`
	ErrorCol     *int    `db:"error_col" json:"errorCol,omitempty"`
	LinkDateCol  *int    `db:"link_date_col" json:"linkDateCol,omitempty"`

	LastSyncedAt time.Time `db:"last_synced_at" json:"lastSyncedAt"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// UpdateRequest is a teacher edit. Nil pointers mean "not sent".
type UpdateRequest struct {
	ID                      int64   `json:"id" validate:"required,gt=0"`
	VideoLink               *string `json:"videoLink" validate:"omitempty,max=2048"`
	QuestionErrorIdentified *string `json:"questionErrorIdentified" validate:"omitempty,max=4096"`
	Status                  string  `json:"status" validate:"omitempty,oneof=Pending Submitted Completed"`
}

func (r *UpdateRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// ApplyUpdate mutates the teacher-editable fields. A non-empty status always
// wins; otherwise a fresh video link on a row without status completes it.
func (a *Allotment) ApplyUpdate(req UpdateRequest, now time.Time) {
	if req.VideoLink != nil {
		a.VideoLink = *req.VideoLink
	}
	if req.QuestionErrorIdentified != nil {
		a.QuestionErrorIdentified = *req.QuestionErrorIdentified
	}

	if req.Status != "" {
		a.Status = req.Status
	} else if req.VideoLink != nil && *req.VideoLink != "" && a.Status == "" {
		a.Status = StatusCompleted
	}

	a.LastSyncedAt = now
	a.UpdatedAt = now
}

// HasWriteBackTarget reports whether the row knows where it lives in the sheet.
func (a *Allotment) HasWriteBackTarget() bool {
	return a.SheetTitle != nil && *a.SheetTitle != "" && a.SheetRowID > 0
}

// NormalizeEmail is used on both sides of the ownership check.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
