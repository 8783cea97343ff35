package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the process-wide log output. Zero values keep the
// APP_ENV / LOG_LEVEL behaviour.
type Options struct {
	// Level is a zerolog level name such as "debug" or "warn".
	Level string `json:"level"`
	// Format is "json" or "console".
	Format string `json:"format"`
	// File additionally writes JSON lines to a rotating file.
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Validate checks level and format names.
func (o Options) Validate() error {
	if o.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(o.Level)); err != nil {
			return fmt.Errorf("logging: %w", err)
		}
	}
	switch o.Format {
	case "", "json", "console":
		return nil
	}
	return fmt.Errorf("logging: unknown format %q", o.Format)
}

var (
	setupMu sync.RWMutex
	output  io.Writer
	level   = zerolog.NoLevel
)

// Setup applies o to every logger created afterwards. The returned function
// closes the log file, if any.
func Setup(o Options) (func() error, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	var out io.Writer = os.Stdout
	if o.Format == "console" || (o.Format == "" && strings.ToLower(os.Getenv("APP_ENV")) == "dev") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	var lj *lumberjack.Logger
	if o.File != "" {
		lj = &lumberjack.Logger{Filename: o.File, MaxSize: o.MaxSizeMB, MaxBackups: o.MaxBackups, MaxAge: o.MaxAgeDays}
		out = zerolog.MultiLevelWriter(out, lj)
	}
	lvl := zerolog.NoLevel
	if o.Level != "" {
		lvl, _ = zerolog.ParseLevel(strings.ToLower(o.Level))
	}

	setupMu.Lock()
	defer setupMu.Unlock()
	output, level = out, lvl
	return func() error {
		if lj == nil {
			return nil
		}
		return lj.Close()
	}, nil
}

func configured() (io.Writer, zerolog.Level) {
	setupMu.RLock()
	defer setupMu.RUnlock()
	return output, level
}
