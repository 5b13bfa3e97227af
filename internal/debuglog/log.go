package debuglog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff // Disables all logging
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string into a LogLevel
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "OFF":
		return LevelOff
	default:
		return LevelInfo
	}
}

func (l LogLevel) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

var (
	mu           sync.RWMutex
	currentLevel = LevelOff
	logger       *log.Logger
	logFile      *os.File
)

// Setup configures the logging system with the specified level and optional file path.
// If filePath is empty, defaults to ~/.gallery/gallery.log.
// The terminal belongs to the TUI, so output always goes to a file.
func Setup(level LogLevel, filePath ...string) error {
	mu.Lock()
	defer mu.Unlock()

	currentLevel = level

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	if level == LevelOff {
		logger = nil
		return nil
	}

	var logPath string
	if len(filePath) > 0 && filePath[0] != "" {
		logPath = filePath[0]
	} else {
		home, _ := os.UserHomeDir()
		dir := filepath.Join(home, ".gallery")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		logPath = filepath.Join(dir, "gallery.log")
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	logFile = f
	logger = newLogger(f, level)
	return nil
}

// SetupWriter routes logs to w. Used by tests and by --log-level with a pipe.
func SetupWriter(level LogLevel, w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	currentLevel = level
	if level == LevelOff {
		logger = nil
		return
	}
	logger = newLogger(w, level)
}

func newLogger(w io.Writer, level LogLevel) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "gallery",
		Level:           level.charm(),
	})
}

// SetLevel changes the current logging level
func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = level
	if logger != nil && level != LevelOff {
		logger.SetLevel(level.charm())
	}
}

// GetLevel returns the current logging level
func GetLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// Close closes the log file if open
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	logger = nil
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}

func active(level LogLevel) *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil || currentLevel == LevelOff || level < currentLevel {
		return nil
	}
	return logger
}

func Debugf(format string, args ...any) {
	if l := active(LevelDebug); l != nil {
		l.Debugf(format, args...)
	}
}

func Infof(format string, args ...any) {
	if l := active(LevelInfo); l != nil {
		l.Infof(format, args...)
	}
}

func Warnf(format string, args ...any) {
	if l := active(LevelWarn); l != nil {
		l.Warnf(format, args...)
	}
}

func Errorf(format string, args ...any) {
	if l := active(LevelError); l != nil {
		l.Errorf(format, args...)
	}
}

// FieldLogger attaches key/value pairs to every message.
type FieldLogger struct {
	keyvals []any
}

// With returns a logger that appends keyvals to each line.
func With(keyvals ...any) *FieldLogger {
	return &FieldLogger{keyvals: keyvals}
}

func (fl *FieldLogger) log(level LogLevel, format string, args ...any) {
	l := active(level)
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	switch level {
	case LevelDebug:
		l.Debug(msg, fl.keyvals...)
	case LevelInfo:
		l.Info(msg, fl.keyvals...)
	case LevelWarn:
		l.Warn(msg, fl.keyvals...)
	case LevelError:
		l.Error(msg, fl.keyvals...)
	}
}

func (fl *FieldLogger) Debugf(format string, args ...any) { fl.log(LevelDebug, format, args...) }
func (fl *FieldLogger) Infof(format string, args ...any)  { fl.log(LevelInfo, format, args...) }
func (fl *FieldLogger) Warnf(format string, args ...any)  { fl.log(LevelWarn, format, args...) }
func (fl *FieldLogger) Errorf(format string, args ...any) { fl.log(LevelError, format, args...) }
