package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// L is the global logger instance. It discards all output until Init enables it.
var L = slog.New(slog.DiscardHandler)

const (
	logPrefix     = "slabctl-"
	logSuffix     = ".log"
	retentionDays = 30
)

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	LogDir  string     // Directory for dated JSON log files. Empty logs text to Stderr
	Level   slog.Level // Minimum log level
	Stderr  io.Writer  // Text destination when LogDir is empty. Default: os.Stderr
}

// Init configures logging. Call before any log calls. The returned function
// closes the log file, if one was opened.
func Init(opts Options) (func() error, error) {
	noop := func() error { return nil }
	if !opts.Enabled {
		L = slog.New(slog.DiscardHandler)
		return noop, nil
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}

	if opts.LogDir == "" {
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		L = slog.New(slog.NewTextHandler(w, hopts))
		return noop, nil
	}

	if err := os.MkdirAll(opts.LogDir, 0755); err != nil {
		return noop, err
	}

	// Best effort
	cleanOldLogs(opts.LogDir, time.Now())

	filename := filepath.Join(opts.LogDir, logPrefix+time.Now().Format("2006-01-02")+logSuffix)
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return noop, err
	}

	L = slog.New(slog.NewJSONHandler(f, hopts))
	return f.Close, nil
}

// cleanOldLogs removes log files dated more than retentionDays before now.
func cleanOldLogs(logDir string, now time.Time) {
	cutoff := now.AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, logPrefix) || !strings.HasSuffix(name, logSuffix) {
			continue
		}

		// slabctl-2024-01-05.log
		dateStr := strings.TrimPrefix(strings.TrimSuffix(name, logSuffix), logPrefix)
		logDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		if logDate.Before(cutoff) {
			os.Remove(filepath.Join(logDir, name))
		}
	}
}
