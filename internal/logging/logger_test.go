package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Console: &buf})
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Str("nickname", "alice").Msg("visible")

	out := buf.String()
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "alice")
	assert.NotContains(t, out, "hidden")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawl.log")
	var buf bytes.Buffer

	logger, err := New(Options{Level: "debug", File: path, Console: &buf})
	require.NoError(t, err)

	logger.Warn().Str("handle", "somechannel").Msg("probe failed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"handle":"somechannel"`)
	assert.Contains(t, string(data), `"level":"warn"`)
}
