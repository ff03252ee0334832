package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/fintrack/pkg/logger"
)

func TestLog(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).Make()
	require.NoError(t, err)
	require.NotNil(t, templogger)
	// Get Stats Before
	require.Equal(t, buff.Len(), 0)
	templogger.Info("Test")
	// Get Stats After
	require.Contains(t, buff.String(), "Test")
}

func TestLogFields(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	l, err := logger.New().FromBuffer(buff).WithLevel(zerolog.DebugLevel).Make()
	require.NoError(t, err)

	l.Warn("write failed", "path", "users/u1/expenses", "error", errors.New("denied"), "attempt", 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buff.Bytes(), &line))
	require.Equal(t, "warn", line["level"])
	require.Equal(t, "write failed", line["message"])
	require.Equal(t, "users/u1/expenses", line["path"])
	require.Equal(t, "denied", line["error"])
	require.EqualValues(t, 2, line["attempt"])
}

func TestLogLevelFilters(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	l, err := logger.New().FromBuffer(buff).WithLevelName("warn").Make()
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("hidden")
	require.Zero(t, buff.Len())

	l.Error("shown")
	require.Contains(t, buff.String(), "shown")
}

func TestLogFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.log")
	l, err := logger.New().FromPath(path).Make()
	require.NoError(t, err)
	l.Info("to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "to file")
}
