package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tba/internal/pipeline"
	"github.com/roach88/tba/internal/providers"
)

func writePipelines(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipelines.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestWatchRequiresTeamAndArena(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"nothing", []string{"watch"}},
		{"team_only", []string{"watch", "--team", "knights"}},
		{"arena_only", []string{"watch", "--arena", "spring24"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), "--team and --arena")
		})
	}
}

func TestWatchPipelinesExcludesTeam(t *testing.T) {
	_, _, err := execute(t, "watch", "--pipelines", "p.yaml", "--team", "knights")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestWatchInvalidPipelinesFile(t *testing.T) {
	path := writePipelines(t, "pipelines:\n  - source: {provider: teambattle}\n    colour: red\n")

	_, _, err := execute(t, "watch", "--pipelines", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, pipeline.ErrInvalidConfig)
}

func TestWatchInvalidPipelineSkipped(t *testing.T) {
	dbPath := recordingsDB(t, "rec-1")
	path := writePipelines(t, `pipelines:
  - name: replayed
    source: {provider: replay, config: {recording: latest}}
    transformers: [{provider: text}]
    sink: {provider: console}
  - name: broken
    source: {provider: ""}
    sink: {provider: console}
`)

	var out, errOut strings.Builder
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	t.Setenv("TBA_RECORD_DB", dbPath)
	t.Setenv("TBA_METRICS_ADDR", "")
	cmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "watch", "--pipelines", path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Alice joined the battle!")
	assert.Contains(t, errOut.String(), "pipeline skipped")
	assert.Contains(t, errOut.String(), "pipeline 2")
}

func TestWatchMissingPipelinesFile(t *testing.T) {
	_, _, err := execute(t, "watch", "--pipelines", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load pipelines")
}

func TestWatchNoRunnablePipelines(t *testing.T) {
	path := writePipelines(t, `pipelines:
  - name: broken
    source: {provider: carrier-pigeon}
    sink: {provider: console}
`)

	_, stderr, err := execute(t, "watch", "--pipelines", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no runnable pipelines")
	assert.ErrorIs(t, err, pipeline.ErrUnknownProvider)
	assert.Contains(t, stderr, "pipeline skipped")
}

func TestWatchConfigs(t *testing.T) {
	opts := &WatchOptions{
		RootOptions: &RootOptions{Format: "text"},
		outputFlags: outputFlags{Lang: "sv", Sink: providers.SinkFile, SinkConfig: map[string]string{"path": "out.log"}},
		Team:        "knights",
		Arena:       "spring24",
		NoRecord:    true,
	}

	configs, skipped, err := opts.configs()
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, configs, 1)

	c := configs[0]
	assert.Equal(t, "knights", c.Name)
	assert.Equal(t, providers.SourceTeamBattle, c.Source.Provider)
	assert.Equal(t, map[string]string{"team": "knights", "arena": "spring24", "record": "false"}, c.Source.Config)
	require.Len(t, c.Transformers, 1)
	assert.Equal(t, providers.TransformerText, c.Transformers[0].Provider)
	assert.Equal(t, "sv", c.Transformers[0].Config["lang"])
	assert.Equal(t, providers.SinkFile, c.Sink.Provider)
	assert.Equal(t, "out.log", c.Sink.Config["path"])
}

func TestWatchConfigsJSONFormat(t *testing.T) {
	opts := &WatchOptions{
		RootOptions: &RootOptions{Format: "json"},
		outputFlags: outputFlags{Lang: "en", Sink: providers.SinkConsole},
		Team:        "knights",
		Arena:       "spring24",
	}

	configs, skipped, err := opts.configs()
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, configs, 1)
	assert.Equal(t, []pipeline.ProviderConfig{{Provider: providers.TransformerJSON}}, configs[0].Transformers)
	assert.Equal(t, "true", configs[0].Source.Config["record"])
}
