package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notify.log")

	log := New(Options{Service: "notification-service", Level: slog.LevelInfo, File: path, MaxSizeMB: 1})
	log.Debug("hidden")
	log.Info("mail sent", "to", "alice@example.com")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(data, &line))
	assert.Equal(t, "mail sent", line["msg"])
	assert.Equal(t, "notification-service", line["service"])
	assert.Equal(t, "alice@example.com", line["to"])
}

func TestWriterDefaultsToStdout(t *testing.T) {
	assert.Equal(t, os.Stdout, writer(Options{}))
}
