package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLevels(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var quiet bytes.Buffer
	flush := Setup(Options{Console: &quiet})
	slog.Info("hidden")
	slog.Warn("shown", "recipe", "tacos")
	flush()

	assert.NotContains(t, quiet.String(), "hidden")
	assert.Contains(t, quiet.String(), "shown")
	assert.Contains(t, quiet.String(), "tacos")

	var verbose bytes.Buffer
	flush = Setup(Options{Console: &verbose, Verbose: true})
	slog.Debug("details")
	flush()
	assert.Contains(t, verbose.String(), "details")
}

func TestFileCoreWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "larder.log")
	logger := New(Options{Console: &bytes.Buffer{}, FilePath: path})
	logger.Info("Recipe created")
	logger.Debug("not persisted")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Recipe created", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
}
