package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	var console bytes.Buffer

	log := newLogger(Options{Level: "info", File: path, MaxSizeMB: 1, MaxBackups: 1}, &console)
	log.Info().Str("k", "v").Msg("file sink works")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file sink works")
}

func TestNewLogger_FileSetupFailureWarnsAndFallsBack(t *testing.T) {
	// A regular file where the log directory should go makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	var console bytes.Buffer
	log := newLogger(Options{Level: "info", File: filepath.Join(blocker, "sub", "run.log")}, &console)

	assert.Contains(t, console.String(), "file logging disabled")

	log.Info().Msg("console still works")
	assert.Contains(t, console.String(), "console still works")
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	var console bytes.Buffer
	log := newLogger(Options{Level: "chatty", Console: true}, &console)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
