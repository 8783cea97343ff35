package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	assert.NoError(t, os.Setenv("APP_ENV", "dev"))
	defer func() { assert.NoError(t, os.Unsetenv("APP_ENV")) }()
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Infow("info", map[string]any{"week": 3})
	l.Warnf("warn")
	l.Warnw("warn", nil)
	l.Errorf("error")
	l.Errorw("error", map[string]any{"strategy": "p_max"})
}

func TestZerologLoggerStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter(&buf, "dispatch")
	l.Warnw("soc target below initial", map[string]any{"scenario": "cl_1", "week": 2})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "dispatch", line["component"])
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "cl_1", line["scenario"])
	assert.EqualValues(t, 2, line["week"])
}

func TestSetupWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truckhub.log")
	closeFn, err := Setup(Options{Level: "warn", Format: "json", File: path, MaxSizeMB: 1})
	require.NoError(t, err)
	t.Cleanup(func() {
		setupMu.Lock()
		output, level = nil, zerolog.NoLevel
		setupMu.Unlock()
	})

	l := New("runner")
	l.Infow("dropped below warn", map[string]any{"week": 1})
	l.Warnw("unit timed out", map[string]any{"week": 2, "strategy": "nrv"})
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1)
	var line map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &line))
	assert.Equal(t, "runner", line["component"])
	assert.Equal(t, "nrv", line["strategy"])
}

func TestSetupRejectsUnknownValues(t *testing.T) {
	_, err := Setup(Options{Level: "loud"})
	assert.Error(t, err)
	_, err = Setup(Options{Format: "xml"})
	assert.Error(t, err)
}
