// Package logger provides a process-wide slog wrapper that front-ends can
// redirect, e.g. into a TUI panel.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config describes logger settings.
type Config struct {
	Enabled bool
	Level   string
	Stdout  bool
	File    string
	Format  string // text (default) or json
}

var (
	mu      sync.RWMutex
	base    *slog.Logger
	enabled = true

	// Saved state for Intercept/Restore.
	savedCfg  Config
	savedFile *os.File  // log file opened during Init
	intercept io.Writer // non-nil while a front-end owns the terminal
)

// Init initializes the logger with the provided config.
func Init(cfg Config, configDir string) error {
	mu.Lock()
	defer mu.Unlock()

	savedCfg = cfg
	if savedFile != nil {
		_ = savedFile.Close()
		savedFile = nil
	}

	if !cfg.Enabled {
		rebuild()
		return nil
	}

	var initErr error
	if cfg.File != "" {
		path := expandPath(cfg.File, configDir)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("logger: create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			initErr = fmt.Errorf("logger: open log file: %w", err)
		} else {
			savedFile = f
		}
	}

	rebuild()
	return initErr
}

// Intercept routes console output to w instead of stdout.
// The file writer, if any, keeps receiving every line.
func Intercept(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	intercept = w
	rebuild()
}

// Restore undoes Intercept and restores stdout logging.
func Restore() {
	mu.Lock()
	defer mu.Unlock()
	intercept = nil
	rebuild()
}

// rebuild reconstructs the slog handler from current state.
// Must be called with mu held.
func rebuild() {
	if !savedCfg.Enabled {
		enabled = false
		base = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
		return
	}

	level := parseLevel(savedCfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var writers []io.Writer
	if intercept != nil {
		writers = append(writers, intercept)
	} else if savedCfg.Stdout {
		writers = append(writers, os.Stdout)
	}
	if savedFile != nil {
		writers = append(writers, savedFile)
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	out := io.MultiWriter(writers...)
	if strings.EqualFold(savedCfg.Format, "json") {
		base = slog.New(slog.NewJSONHandler(out, opts))
	} else {
		base = slog.New(slog.NewTextHandler(out, opts))
	}
	enabled = true
}

// Close releases the log file opened by Init.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if savedFile == nil {
		return nil
	}
	err := savedFile.Close()
	savedFile = nil
	rebuild()
	return err
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	log(slog.LevelDebug, msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	log(slog.LevelInfo, msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	log(slog.LevelWarn, msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	log(slog.LevelError, msg, args...)
}

func log(level slog.Level, msg string, args ...any) {
	mu.RLock()
	l := base
	on := enabled
	mu.RUnlock()

	if !on || l == nil {
		return
	}

	l.Log(context.Background(), level, msg, args...)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func expandPath(path, configDir string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	if filepath.IsAbs(path) {
		return path
	}
	if configDir != "" {
		return filepath.Join(configDir, path)
	}
	return path
}
