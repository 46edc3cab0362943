package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/allotter/internal/models"
	"github.com/shrimpsizemoose/allotter/internal/store"
)

var _ store.AllotmentStore = (*SQLiteStore)(nil)

// setupTestDB creates an in-memory SQLite database and initializes schema
func setupTestDB(t *testing.T) *SQLiteStore {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err, "Failed to create store")
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func sheetRow(rowID int, email, chapter string, now time.Time) *models.Allotment {
	return &models.Allotment{
		SheetRowID:   rowID,
		Cohort:       "2025",
		Class:        "11",
		Subject:      "Physics",
		ChapterName:  chapter,
		QNo:          "Q1",
		Status:       models.StatusPending,
		TeacherEmail: email,
		SheetTitle:   strPtr("NEET Modules"),
		VideoLinkCol: intPtr(14),
		ErrorCol:     intPtr(15),
		LinkDateCol:  intPtr(17),
		LastSyncedAt: now,
	}
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	s := setupTestDB(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestTranslateToSQLite(t *testing.T) {
	got := translateToSQLite("id BIGSERIAL PRIMARY KEY, at TIMESTAMPTZ NOT NULL DEFAULT now()")
	assert.Equal(t, "id INTEGER PRIMARY KEY AUTOINCREMENT, at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP", got)
}

func TestUpsertFromSheet(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("insert then list", func(t *testing.T) {
		require.NoError(t, s.UpsertFromSheet(ctx, sheetRow(5, "a@x.com", "Kinematics", now)))

		got, err := s.ListByTeacher(ctx, "a@x.com")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 5, got[0].SheetRowID)
		assert.Equal(t, "Kinematics", got[0].ChapterName)
		assert.Equal(t, models.StatusPending, got[0].Status)
		require.NotNil(t, got[0].SheetTitle)
		assert.Equal(t, "NEET Modules", *got[0].SheetTitle)
		require.NotNil(t, got[0].VideoLinkCol)
		assert.Equal(t, 14, *got[0].VideoLinkCol)
	})

	t.Run("repeat upsert keeps one row", func(t *testing.T) {
		require.NoError(t, s.UpsertFromSheet(ctx, sheetRow(5, "a@x.com", "Kinematics", now)))
		require.NoError(t, s.UpsertFromSheet(ctx, sheetRow(5, "a@x.com", "Kinematics", now)))

		got, err := s.ListByTeacher(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("sheet fields are refreshed", func(t *testing.T) {
		later := now.Add(time.Hour)
		row := sheetRow(5, "a@x.com", "Dynamics", later)
		row.ErrorCol = nil
		require.NoError(t, s.UpsertFromSheet(ctx, row))

		got, err := s.ListByTeacher(ctx, "a@x.com")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Dynamics", got[0].ChapterName)
		assert.Nil(t, got[0].ErrorCol)
		assert.True(t, got[0].LastSyncedAt.Equal(later))
	})
}

func TestUpsertPreservesTeacherEdits(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertFromSheet(ctx, sheetRow(7, "a@x.com", "Optics", now)))
	rows, err := s.ListByTeacher(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	a := rows[0]
	a.ApplyUpdate(models.UpdateRequest{ID: a.ID, VideoLink: strPtr("https://v/1")}, now.Add(time.Minute))
	require.NoError(t, s.SaveEdits(ctx, &a))

	resynced := sheetRow(7, "a@x.com", "Optics", now.Add(time.Hour))
	resynced.VideoLink = ""
	resynced.Status = models.StatusPending
	require.NoError(t, s.UpsertFromSheet(ctx, resynced))

	got, err := s.GetForTeacher(ctx, a.ID, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "https://v/1", got.VideoLink)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestListByTeacher(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, row := range []*models.Allotment{
		sheetRow(9, "a@x.com", "c9", now),
		sheetRow(3, "a@x.com", "c3", now),
		sheetRow(4, "b@x.com", "c4", now),
		sheetRow(6, "a@x.com", "c6", now),
	} {
		require.NoError(t, s.UpsertFromSheet(ctx, row))
	}

	got, err := s.ListByTeacher(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{3, 6, 9}, []int{got[0].SheetRowID, got[1].SheetRowID, got[2].SheetRowID})

	none, err := s.ListByTeacher(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestGetForTeacher(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFromSheet(ctx, sheetRow(2, "a@x.com", "c2", time.Now().UTC())))
	rows, err := s.ListByTeacher(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id := rows[0].ID

	t.Run("owner", func(t *testing.T) {
		got, err := s.GetForTeacher(ctx, id, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, "c2", got.ChapterName)
	})

	t.Run("other teacher", func(t *testing.T) {
		_, err := s.GetForTeacher(ctx, id, "b@x.com")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := s.GetForTeacher(ctx, id+100, "a@x.com")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestSaveEdits(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertFromSheet(ctx, sheetRow(2, "a@x.com", "c2", now)))
	rows, err := s.ListByTeacher(ctx, "a@x.com")
	require.NoError(t, err)
	a := rows[0]

	a.QuestionErrorIdentified = "typo in option B"
	a.Status = models.StatusSubmitted
	a.LastSyncedAt = now.Add(time.Hour)
	a.UpdatedAt = now.Add(time.Hour)
	require.NoError(t, s.SaveEdits(ctx, &a))

	got, err := s.GetForTeacher(ctx, a.ID, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "typo in option B", got.QuestionErrorIdentified)
	assert.Equal(t, models.StatusSubmitted, got.Status)

	missing := models.Allotment{ID: a.ID + 100}
	assert.ErrorIs(t, s.SaveEdits(ctx, &missing), store.ErrNotFound)
}
