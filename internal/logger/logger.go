// Package logger writes client diagnostics to a file, since the terminal
// belongs to the UI.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const maxLogSize = 10 * 1024 * 1024

var (
	mu       sync.RWMutex
	debugLog *os.File
	logPath  string
	log      = zerolog.Nop()
)

// Init initializes the debug logger under ~/.room-chat.
func Init() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	return InitDir(filepath.Join(homeDir, ".room-chat"))
}

// InitDir initializes the debug logger writing to dir/debug.log.
func InitDir(logDir string) error {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(logDir, "debug.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	// Rotate if file is too large (> 10MB)
	if info, err := f.Stat(); err == nil && info.Size() > maxLogSize {
		_ = f.Close()
		backupPath := filepath.Join(logDir, fmt.Sprintf("debug.log.%d", time.Now().Unix()))
		_ = os.Rename(path, backupPath)
		f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to create new log file: %w", err)
		}
	}

	mu.Lock()
	if debugLog != nil {
		_ = debugLog.Close()
	}
	debugLog = f
	logPath = path
	log = newLogger(f)
	mu.Unlock()

	LogInfo("Logger initialized, log file: %s", path)
	return nil
}

// SetOutput redirects logging to w. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(w)
}

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

// Close closes the debug log file
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if debugLog != nil {
		_ = debugLog.Close()
		debugLog = nil
	}
	log = zerolog.Nop()
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// LogInfo logs an info message
func LogInfo(format string, args ...any) {
	l := current()
	l.Info().CallerSkipFrame(1).Msgf(format, args...)
}

// LogError logs an error message
func LogError(format string, args ...any) {
	l := current()
	l.Error().CallerSkipFrame(1).Msgf(format, args...)
}

// LogPanic logs a panic with stack trace
func LogPanic(r any) {
	l := current()
	l.Error().Str("panic", fmt.Sprint(r)).Str("stack", string(debug.Stack())).Msg("recovered panic")
}

// GetLogPath returns the current log file path
func GetLogPath() string {
	mu.RLock()
	defer mu.RUnlock()
	return logPath
}
