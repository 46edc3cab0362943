package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/allotter/internal/app"
	"github.com/shrimpsizemoose/allotter/internal/audit"
	"github.com/shrimpsizemoose/allotter/internal/gsheet/gsheettest"
	"github.com/shrimpsizemoose/allotter/internal/store/sqlite"
)

const emailHeader = "X-Teacher-Email"

func sheetFixture() *gsheettest.Fake {
	fake := gsheettest.New("NEET Modules")
	fake.Ranges["'NEET Modules'!A1:Z5"] = [][]string{
		{"Cohort", "Class", "Subject", "Chapter Name", "Video Link", "Error Identified", "Status", "Teacher"},
	}
	fake.Ranges["'NEET Modules'!A2:Z"] = [][]string{
		{"2025", "11", "Physics", "Kinematics", "", "", "", "a@x.com"},
		{"2025", "12", "Chemistry", "Atoms", "", "", "", "b@x.com"},
	}
	fake.Ranges["'NEET Modules'!A1:Z1"] = [][]string{
		{"Cohort", "Class", "Subject"},
	}
	return fake
}

func setupRouter(t *testing.T, fake *gsheettest.Fake) http.Handler {
	cfg := &app.Config{}
	cfg.Server.Port = ":0"
	cfg.Database.DSN = ":memory:"
	cfg.GSheet.SpreadsheetID = "sheet-id"
	cfg.Auth.DevEmailHeader = emailHeader
	cfg.Auth.CookieName = "allotter_session"

	st, err := sqlite.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	auth, err := app.NewAuth(cfg)
	require.NoError(t, err)

	svc, err := app.New(cfg, st, auth, fake, audit.NewWriter(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	return NewRouter(svc)
}

func do(t *testing.T, h http.Handler, method, path, email string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if email != "" {
		req.Header.Set(emailHeader, email)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestUnauthenticated(t *testing.T) {
	h := setupRouter(t, sheetFixture())

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/allotments"},
		{http.MethodPost, "/api/sync"},
		{http.MethodPost, "/api/update-allotment"},
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/debug/sheet"},
	} {
		t.Run(tc.path, func(t *testing.T) {
			rec, body := do(t, h, tc.method, tc.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Unauthorized", body["message"])
		})
	}
}

func syncAndList(t *testing.T, h http.Handler, email string) []interface{} {
	rec, body := do(t, h, http.MethodPost, "/api/sync", email, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Sync successful", body["message"])

	rec, body = do(t, h, http.MethodGet, "/api/allotments", email, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data, ok := body["data"].([]interface{})
	require.True(t, ok)
	return data
}

func TestSyncAndList(t *testing.T) {
	h := setupRouter(t, sheetFixture())

	rec, body := do(t, h, http.MethodPost, "/api/sync", "a@x.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, "NEET Modules", body["mappedSheet"])
	assert.Equal(t, float64(1), body["headerRow"])
	mapping := body["mapping"].(map[string]interface{})
	assert.Equal(t, float64(4), mapping["videoLink"])
	assert.Equal(t, float64(-1), mapping["module"])

	_, body = do(t, h, http.MethodGet, "/api/allotments", "a@x.com", nil)
	data := body["data"].([]interface{})
	require.Len(t, data, 1)
	first := data[0].(map[string]interface{})
	assert.Equal(t, "Kinematics", first["chapterName"])
	assert.Equal(t, "Pending", first["status"])

	_, body = do(t, h, http.MethodGet, "/api/allotments", "nobody@x.com", nil)
	assert.Empty(t, body["data"])
}

func TestSyncNoData(t *testing.T) {
	fake := sheetFixture()
	delete(fake.Ranges, "'NEET Modules'!A2:Z")
	h := setupRouter(t, fake)

	rec, body := do(t, h, http.MethodPost, "/api/sync", "a@x.com", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "No data found in sheet", body["message"])
}

func TestSyncFailure(t *testing.T) {
	h := setupRouter(t, gsheettest.New("Sheet1"))

	rec, body := do(t, h, http.MethodPost, "/api/sync", "a@x.com", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body["error"], "header row not found")
}

func TestUpdateAllotment(t *testing.T) {
	fake := sheetFixture()
	h := setupRouter(t, fake)
	data := syncAndList(t, h, "a@x.com")
	id := data[0].(map[string]interface{})["id"]

	t.Run("success with write-back", func(t *testing.T) {
		rec, body := do(t, h, http.MethodPost, "/api/update-allotment", "a@x.com", map[string]interface{}{
			"id":        id,
			"videoLink": "https://v/1",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Updated successfully", body["message"])
		saved := body["data"].(map[string]interface{})
		assert.Equal(t, "https://v/1", saved["videoLink"])
		wb := body["writeBack"].(map[string]interface{})
		assert.Equal(t, "written", wb["status"])
		assert.Equal(t, "'NEET Modules'!E2", fake.LastWrite()[0].Range)
	})

	t.Run("write-back failure still saves", func(t *testing.T) {
		fake.WriteErr = errors.New("quota")
		defer func() { fake.WriteErr = nil }()

		rec, body := do(t, h, http.MethodPost, "/api/update-allotment", "a@x.com", map[string]interface{}{
			"id":                      id,
			"questionErrorIdentified": "typo",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "failed", body["writeBack"].(map[string]interface{})["status"])
		assert.Equal(t, "typo", body["data"].(map[string]interface{})["questionErrorIdentified"])
	})

	t.Run("missing id", func(t *testing.T) {
		rec, body := do(t, h, http.MethodPost, "/api/update-allotment", "a@x.com", map[string]interface{}{
			"videoLink": "x",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Missing ID", body["message"])
	})

	t.Run("bad status", func(t *testing.T) {
		rec, _ := do(t, h, http.MethodPost, "/api/update-allotment", "a@x.com", map[string]interface{}{
			"id":     id,
			"status": "Whatever",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec, _ := do(t, h, http.MethodPost, "/api/update-allotment", "a@x.com", "{not json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("other teacher", func(t *testing.T) {
		rec, body := do(t, h, http.MethodPost, "/api/update-allotment", "b@x.com", map[string]interface{}{
			"id":        id,
			"videoLink": "https://v/hijack",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Allotment not found or unauthorized", body["message"])
	})
}

func TestDebugSheet(t *testing.T) {
	h := setupRouter(t, sheetFixture())

	rec, body := do(t, h, http.MethodGet, "/api/debug/sheet", "a@x.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"Cohort", "Class", "Subject"}, body["headers"])
	assert.Equal(t, []interface{}{"0: Cohort", "1: Class", "2: Subject"}, body["indices"])
}

func TestAuthEndpointsWithAuthDisabled(t *testing.T) {
	h := setupRouter(t, sheetFixture())

	rec, body := do(t, h, http.MethodGet, "/api/auth/me", " A@X.com ", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@x.com", body["email"])

	rec, _ = do(t, h, http.MethodPost, "/api/auth/google", "", map[string]string{"idToken": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/auth/logout", "a@x.com", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := setupRouter(t, sheetFixture())

	rec, body := do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, _ = do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "api_request_duration_seconds")
}
