package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := DefaultPath(filepath.Join(t.TempDir(), "state"))

	logger, err := New(path, false)
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("file block", zap.String("session", "s-1"), zap.Int("bytes", 5))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"file block"`)
	assert.Contains(t, string(data), `"session":"s-1"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agens.log")

	logger, err := New(path, true)
	require.NoError(t, err)
	logger.Debug("probe", zap.String("backend", "ollama"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"debug"`)
}
