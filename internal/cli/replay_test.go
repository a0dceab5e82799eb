package cli

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tba/internal/event"
	"github.com/roach88/tba/internal/store"
)

var recordedAt = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

// recordingsDB creates a database holding one short recording per id. All
// events share a timestamp so playback does not pause.
func recordingsDB(t *testing.T, ids ...string) string {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "recordings.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	for i, id := range ids {
		startedAt := recordedAt.Add(time.Duration(i) * time.Hour)
		require.NoError(t, st.CreateRecording(ctx, store.Recording{ID: id, Team: "knights", Arena: "spring24", StartedAt: startedAt}))
		events := []event.Event{
			event.Join{Members: []string{"Alice"}},
			event.TourBegin{},
			event.TourEnd{},
		}
		for seq, ev := range events {
			require.NoError(t, st.AppendEvent(ctx, id, event.Timed{Seq: int64(seq + 1), At: startedAt, Event: ev}))
		}
	}
	return dbPath
}

func TestReplayMissingDatabase(t *testing.T) {
	_, _, err := execute(t, "replay", "latest")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no recording database")
}

func TestReplayRequiresRecordingArgument(t *testing.T) {
	_, _, err := execute(t, "replay", "--db", recordingsDB(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestReplayLatest(t *testing.T) {
	dbPath := recordingsDB(t, "rec-1")

	stdout, _, err := execute(t, "replay", "latest", "--db", dbPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.Equal(t, []string{
		"Alice joined the battle!",
		"The battle has begun. Good luck everyone!",
		"The battle is over. Well played everyone!",
	}, lines)
}

func TestReplayDatabaseFromEnvironment(t *testing.T) {
	dbPath := recordingsDB(t, "rec-1")

	var out strings.Builder
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&strings.Builder{})
	t.Setenv("TBA_RECORD_DB", dbPath)
	t.Setenv("TBA_METRICS_ADDR", "")
	cmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "replay", "rec-1"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Alice joined the battle!")
}

func TestReplaySwedish(t *testing.T) {
	dbPath := recordingsDB(t, "rec-1")

	stdout, _, err := execute(t, "replay", "rec-1", "--db", dbPath, "--lang", "sv")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "joined the battle")
	assert.Contains(t, stdout, "Alice")
}

func TestReplayJSON(t *testing.T) {
	dbPath := recordingsDB(t, "rec-1")

	stdout, _, err := execute(t, "--format", "json", "replay", "rec-1", "--db", dbPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"kind":"join"`)
	assert.Contains(t, lines[1], `"kind":"tour_begin"`)
	assert.Contains(t, lines[2], `"kind":"tour_end"`)
}

func TestReplayUnknownRecording(t *testing.T) {
	dbPath := recordingsDB(t, "rec-1")

	_, _, err := execute(t, "replay", "rec-404", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no runnable pipelines")
	assert.ErrorIs(t, err, store.ErrRecordingNotFound)
}

func TestReplayToFile(t *testing.T) {
	dbPath := recordingsDB(t, "rec-1")
	outPath := filepath.Join(t.TempDir(), "battle.log")

	stdout, _, err := execute(t, "replay", "latest", "--db", dbPath, "--sink", "file", "--sink-opt", "path="+outPath)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.FileExists(t, outPath)
}
