package audit

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	l, err := New(path, "debug")
	require.NoError(t, err)
	l.For("sync").WithField("rows", 3).Info("sync finished")
	l.For("writeback").Debug("write-back prepared")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "sync", entry["component"])
	assert.Equal(t, "sync finished", entry["msg"])
	assert.Equal(t, float64(3), entry["rows"])
}

func TestNewAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	for i := 0; i < 2; i++ {
		l, err := New(path, "")
		require.NoError(t, err)
		l.Info("run")
		require.NoError(t, l.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), `"msg":"run"`))
}

func TestNewBadLevel(t *testing.T) {
	_, err := New("", "loud")
	assert.Error(t, err)
}

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf)
	l.For("sync").Warn("skipped")
	assert.Contains(t, buf.String(), `"component":"sync"`)
	assert.NoError(t, l.Close())
}
