package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueListDrainClear(t *testing.T) {
	cfg := writeConfig(t, "remote:\n  base_url: http://remote.invalid\n")

	out, err := execute(t, "--format", "json", "-c", cfg, "queue", "enqueue", "POST", "/notes", `{"title":"draft"}`)
	require.NoError(t, err)
	var queued map[string]string
	decodeResponse(t, out, &queued)
	id := queued["id"]
	require.NotEmpty(t, id)

	out, err = execute(t, "--format", "json", "-c", cfg, "queue", "list")
	require.NoError(t, err)
	var listing QueueListing
	decodeResponse(t, out, &listing)
	assert.False(t, listing.Connected)
	require.Len(t, listing.Pending, 1)
	assert.Equal(t, id, listing.Pending[0].ID)
	assert.Equal(t, "http.request", listing.Pending[0].Type)
	assert.Empty(t, listing.Failed)

	out, err = execute(t, "--format", "json", "-c", cfg, "queue", "drain")
	require.NoError(t, err)
	var report map[string]any
	decodeResponse(t, out, &report)
	assert.Equal(t, "offline", report["skipped"])

	out, err = execute(t, "--format", "json", "-c", cfg, "queue", "clear-all")
	require.NoError(t, err)
	var cleared map[string]int
	decodeResponse(t, out, &cleared)
	assert.Equal(t, 1, cleared["cleared"])

	out, err = execute(t, "--format", "json", "-c", cfg, "queue", "list")
	require.NoError(t, err)
	listing = QueueListing{}
	decodeResponse(t, out, &listing)
	assert.Empty(t, listing.Pending)
}

func TestQueue_TextOutput(t *testing.T) {
	cfg := writeConfig(t, "remote:\n  base_url: http://remote.invalid\n")

	out, err := execute(t, "-c", cfg, "queue", "enqueue", "DELETE", "/notes/1")
	require.NoError(t, err)
	assert.Contains(t, out, "queued ")

	out, err = execute(t, "-c", cfg, "queue", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "connected: false")
	assert.Contains(t, out, "pending (1)")
	assert.Contains(t, out, "failed (0)")

	out, err = execute(t, "-c", cfg, "queue", "drain")
	require.NoError(t, err)
	assert.Contains(t, out, "drain skipped: offline")
}

func TestQueue_DBOverride(t *testing.T) {
	cfg := writeConfig(t, "remote:\n  base_url: http://remote.invalid\n")
	db := filepath.Join(t.TempDir(), "other.db")

	_, err := execute(t, "-c", cfg, "queue", "--db", db, "enqueue", "PUT", "/notes/1", `{}`)
	require.NoError(t, err)

	out, err := execute(t, "--format", "json", "-c", cfg, "queue", "list")
	require.NoError(t, err)
	var listing QueueListing
	decodeResponse(t, out, &listing)
	assert.Empty(t, listing.Pending, "config store must be untouched")

	out, err = execute(t, "--format", "json", "-c", cfg, "queue", "--db", db, "list")
	require.NoError(t, err)
	decodeResponse(t, out, &listing)
	assert.Len(t, listing.Pending, 1)
}

func TestQueue_EnqueueErrors(t *testing.T) {
	t.Run("no remote", func(t *testing.T) {
		cfg := writeConfig(t, "")
		out, err := execute(t, "--format", "json", "-c", cfg, "queue", "enqueue", "POST", "/notes")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Equal(t, ErrCodeConfig, decodeResponse(t, out, nil).Error.Code)
	})

	cfg := writeConfig(t, "remote:\n  base_url: http://remote.invalid\n")
	tests := []struct {
		name string
		args []string
	}{
		{"invalid json", []string{"POST", "/notes", `{`}},
		{"array body", []string{"POST", "/notes", `[1]`}},
		{"bad method", []string{"GET", "/notes"}},
		{"relative path", []string{"POST", "notes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--format", "json", "-c", cfg, "queue", "enqueue"}, tt.args...)
			out, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Equal(t, ErrCodeUsage, decodeResponse(t, out, nil).Error.Code)
		})
	}
}

func TestQueue_RetryDiscardUnknown(t *testing.T) {
	cfg := writeConfig(t, "")

	for _, sub := range []string{"retry", "discard"} {
		t.Run(sub, func(t *testing.T) {
			out, err := execute(t, "--format", "json", "-c", cfg, "queue", sub, "missing")
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Equal(t, ErrCodeNotFound, decodeResponse(t, out, nil).Error.Code)
		})
	}

	out, err := execute(t, "--format", "json", "-c", cfg, "queue", "retry-all")
	require.NoError(t, err)
	var retried map[string]int
	decodeResponse(t, out, &retried)
	assert.Equal(t, 0, retried["retried"])

	out, err = execute(t, "--format", "json", "-c", cfg, "queue", "clear-failed")
	require.NoError(t, err)
	var cleared map[string]int
	decodeResponse(t, out, &cleared)
	assert.Equal(t, 0, cleared["cleared"])
}
