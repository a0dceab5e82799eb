package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvidersText(t *testing.T) {
	stdout, _, err := execute(t, "providers")
	require.NoError(t, err)
	assert.Contains(t, stdout, "sources:      replay, teambattle\n")
	assert.Contains(t, stdout, "transformers: json, text\n")
	assert.Contains(t, stdout, "sinks:        console, file, websocket\n")
}

func TestProvidersJSON(t *testing.T) {
	stdout, _, err := execute(t, "--format", "json", "providers")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Sources []string `json:"sources"`
			Sinks   []string `json:"sinks"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"replay", "teambattle"}, resp.Data.Sources)
	assert.Equal(t, []string{"console", "file", "websocket"}, resp.Data.Sinks)
}
