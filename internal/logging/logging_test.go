package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got, name)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestNew_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := newWithWriter(Config{JSON: true, Service: "tweakd"}, &buf)
	require.NoError(t, err)
	defer closeFn()

	logger.Debug("hidden")
	logger.Info("loaded", "tweak", "zram")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "loaded", rec["msg"])
	require.Equal(t, "tweakd", rec["service"])
	require.Equal(t, "zram", rec["tweak"])
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tweakd.log")
	var buf bytes.Buffer
	logger, closeFn, err := newWithWriter(Config{File: path}, &buf)
	require.NoError(t, err)

	logger.Warn("apply failed")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "apply failed")
	require.Contains(t, buf.String(), "apply failed")
}
