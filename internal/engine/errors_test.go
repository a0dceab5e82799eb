package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/tba/internal/platform"
)

func TestRemoteError(t *testing.T) {
	err := &RemoteError{Op: OpRoster, Arena: "abc", Err: platform.ErrNotFound}

	assert.Equal(t, "roster (arena=abc): not found", err.Error())
	assert.ErrorIs(t, err, platform.ErrNotFound)
}

func TestIsRemoteError_Wrapped(t *testing.T) {
	err := fmt.Errorf("refresh: %w", &RemoteError{Op: OpStandings, Err: errors.New("boom")})

	assert.True(t, IsRemoteError(err, OpStandings))
	assert.False(t, IsRemoteError(err, OpRoster))
	assert.False(t, IsRemoteError(errors.New("plain"), OpStandings))
}
