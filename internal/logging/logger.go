// Package logging provides the leveled, structured logger used across pldmd.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Entry so callers get a small, stable API
// (Debug/Info/Warn/Error plus printf variants) independent of the
// underlying logging library.
type Logger struct {
	entry *logrus.Entry
}

// Config holds logging configuration.
type Config struct {
	Level  logrus.Level
	Output io.Writer
	Format logrus.Formatter
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  logrus.InfoLevel,
		Output: os.Stderr,
		Format: &logrus.TextFormatter{FullTimestamp: true},
	}
}

// NewLogger creates a new Logger from Config.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	base := logrus.New()
	if config.Output != nil {
		base.SetOutput(config.Output)
	}
	if config.Format != nil {
		base.SetFormatter(config.Format)
	}
	base.SetLevel(config.Level)
	return &Logger{entry: logrus.NewEntry(base)}
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// Default returns the process-wide default logger, creating it if necessary.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the process-wide default logger.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// With returns a child logger carrying the given structured fields
// (e.g. tid, eid, uuid, op) attached to every subsequent entry.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithField is the single-field convenience form of With.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) Debug(msg string, args ...any) { l.entry.WithFields(pairFields(args)).Debug(msg) }
func (l *Logger) Info(msg string, args ...any)  { l.entry.WithFields(pairFields(args)).Info(msg) }
func (l *Logger) Warn(msg string, args ...any)  { l.entry.WithFields(pairFields(args)).Warn(msg) }
func (l *Logger) Error(msg string, args ...any) { l.entry.WithFields(pairFields(args)).Error(msg) }

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

// Printf exists for compatibility with callers expecting a bare printf sink.
func (l *Logger) Printf(format string, args ...any) { l.Infof(format, args...) }

// pairFields converts a flat key,value,key,value... arg list to logrus.Fields.
func pairFields(args []any) logrus.Fields {
	if len(args) == 0 {
		return nil
	}
	fields := make(logrus.Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		fields[key] = args[i+1]
	}
	return fields
}

// Global convenience functions operating on the default logger.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
