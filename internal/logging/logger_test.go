package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/tranquilize/internal/models"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(models.LogConfig{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tranquilize.log")

	logger, err := New(models.LogConfig{Level: "debug", File: path})
	require.NoError(t, err)

	logger.Info("config refreshed")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "config refreshed")
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := NewDefault()
	assert.Same(t, l, OrNop(l))
}
