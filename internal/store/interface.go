package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/allotter/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrNotFound = errors.New("allotment not found")

type AllotmentStore interface {
	Close() error
	Ping(ctx context.Context) error
	ApplyMigrations() error

	UpsertFromSheet(ctx context.Context, a *models.Allotment) error
	ListByTeacher(ctx context.Context, email string) ([]models.Allotment, error)
	GetForTeacher(ctx context.Context, id int64, email string) (*models.Allotment, error)
	SaveEdits(ctx context.Context, a *models.Allotment) error
}

const allotmentColumns = `
	id, sheet_row_id,
	cohort, class_name, subject, module_no, chapter_number, chapter_name,
	exercise_name, q_no, qbg_id_links, text_solution_available, ppt_link, video_folder_link,
	video_link, question_error_identified, status,
	vs_link_addition_date, vs_allotment_date, teacher_email,
	sheet_title, video_link_col, error_col, link_date_col,
	last_synced_at, created_at, updated_at`

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string

	migrateOnce sync.Once
	migrateErr  error
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func (s *BaseStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Migrate applies the embedded SQL migrations once per store, translating
// the dialect if needed. Later calls return the first result.
func (s *BaseStore) Migrate(translateSQL func(string) string) error {
	s.migrateOnce.Do(func() {
		s.migrateErr = s.applyMigrations(translateSQL)
	})
	return s.migrateErr
}

func (s *BaseStore) applyMigrations(translateSQL func(string) string) error {
	files, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		content, err := migrations.ReadFile("migrations/" + file.Name())
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		logger.Debug.Printf("Applying migration: %s", file.Name())
		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
		}
	}

	return nil
}

// UpsertFromSheet inserts the row or, when sheet_row_id already exists,
// replaces the sheet-sourced columns. Teacher-editable columns are only
// written on insert.
func (s *BaseStore) UpsertFromSheet(ctx context.Context, a *models.Allotment) error {
	_, err := s.DB.NamedExecContext(ctx, `
		INSERT INTO allotments (
			sheet_row_id,
			cohort, class_name, subject, module_no, chapter_number, chapter_name,
			exercise_name, q_no, qbg_id_links, text_solution_available, ppt_link, video_folder_link,
			video_link, question_error_identified, status,
			vs_link_addition_date, vs_allotment_date, teacher_email,
			sheet_title, video_link_col, error_col, link_date_col,
			last_synced_at, created_at, updated_at
		) VALUES (
			:sheet_row_id,
			:cohort, :class_name, :subject, :module_no, :chapter_number, :chapter_name,
			:exercise_name, :q_no, :qbg_id_links, :text_solution_available, :ppt_link, :video_folder_link,
			:video_link, :question_error_identified, :status,
			:vs_link_addition_date, :vs_allotment_date, :teacher_email,
			:sheet_title, :video_link_col, :error_col, :link_date_col,
			:last_synced_at, :last_synced_at, :last_synced_at
		)
		ON CONFLICT (sheet_row_id) DO UPDATE SET
			cohort = excluded.cohort,
			class_name = excluded.class_name,
			subject = excluded.subject,
			module_no = excluded.module_no,
			chapter_number = excluded.chapter_number,
			chapter_name = excluded.chapter_name,
			exercise_name = excluded.exercise_name,
			q_no = excluded.q_no,
			qbg_id_links = excluded.qbg_id_links,
			text_solution_available = excluded.text_solution_available,
			ppt_link = excluded.ppt_link,
			video_folder_link = excluded.video_folder_link,
			vs_link_addition_date = excluded.vs_link_addition_date,
			vs_allotment_date = excluded.vs_allotment_date,
			teacher_email = excluded.teacher_email,
			sheet_title = excluded.sheet_title,
			video_link_col = excluded.video_link_col,
			error_col = excluded.error_col,
			link_date_col = excluded.link_date_col,
			last_synced_at = excluded.last_synced_at,
			updated_at = excluded.updated_at
	`, a)
	if err != nil {
		return fmt.Errorf("failed to upsert sheet row %d: %w", a.SheetRowID, err)
	}
	return nil
}

func (s *BaseStore) ListByTeacher(ctx context.Context, email string) ([]models.Allotment, error) {
	allotments := []models.Allotment{}
	query := s.Converter(`
		SELECT ` + allotmentColumns + `
		FROM allotments
		WHERE teacher_email = ?
		ORDER BY sheet_row_id ASC
	`)

	if err := s.DB.SelectContext(ctx, &allotments, query, email); err != nil {
		return nil, fmt.Errorf("failed to list allotments: %w", err)
	}
	return allotments, nil
}

func (s *BaseStore) GetForTeacher(ctx context.Context, id int64, email string) (*models.Allotment, error) {
	var a models.Allotment
	query := s.Converter(`
		SELECT ` + allotmentColumns + `
		FROM allotments
		WHERE id = ?
		AND teacher_email = ?
	`)

	err := s.DB.GetContext(ctx, &a, query, id, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get allotment %d: %w", id, err)
	}
	return &a, nil
}

// SaveEdits persists the teacher-editable columns of an already loaded row.
func (s *BaseStore) SaveEdits(ctx context.Context, a *models.Allotment) error {
	res, err := s.DB.NamedExecContext(ctx, `
		UPDATE allotments SET
			video_link = :video_link,
			question_error_identified = :question_error_identified,
			status = :status,
			last_synced_at = :last_synced_at,
			updated_at = :updated_at
		WHERE id = :id
	`, a)
	if err != nil {
		return fmt.Errorf("failed to save allotment %d: %w", a.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save allotment %d: %w", a.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
