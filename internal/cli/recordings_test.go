package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tba/internal/store"
)

func TestRecordingsEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	stdout, _, err := execute(t, "recordings", "--db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "No recordings found.\n", stdout)
}

func TestRecordingsTable(t *testing.T) {
	dbPath := recordingsDB(t, "rec-1", "rec-2")

	stdout, _, err := execute(t, "recordings", "--db", dbPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.True(t, strings.HasPrefix(lines[1], "rec-2"), "latest first")
	assert.Contains(t, lines[1], "knights")
	assert.Contains(t, lines[1], "2024-03-01T19:00:00Z")
	assert.True(t, strings.HasPrefix(lines[2], "rec-1"))
}

func TestRecordingsJSON(t *testing.T) {
	dbPath := recordingsDB(t, "rec-1")

	stdout, _, err := execute(t, "--format", "json", "recordings", "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   []RecordingView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "rec-1", resp.Data[0].ID)
	assert.Equal(t, "spring24", resp.Data[0].Arena)
	assert.Equal(t, 3, resp.Data[0].Events)
	assert.True(t, recordedAt.Equal(resp.Data[0].StartedAt))
}

func TestRecordingsMissingDatabase(t *testing.T) {
	_, _, err := execute(t, "recordings")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
