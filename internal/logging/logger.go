// Package logging provides the structured logger used throughout the
// orchestrator, backed by logrus.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ExtendedLogger is the logging surface every component depends on. It is
// intentionally small: components never reach for the concrete logrus
// type, so tests can substitute a no-op implementation.
type ExtendedLogger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	WithField(key string, value any) ExtendedLogger
	WithFields(fields map[string]any) ExtendedLogger
}

// Logger implements ExtendedLogger on top of logrus.
type Logger struct {
	entry *logrus.Entry
	file  *os.File
}

var _ ExtendedLogger = (*Logger)(nil)

// Options configures CreateLogger.
type Options struct {
	LogFile      string
	Level        string
	Format       string // "json" or "text"
	EnableStdout bool
}

// CreateLogger builds a Logger per Options, following the same
// file/stdout/formatter wiring the rest of the corpus uses.
func CreateLogger(opts Options) (*Logger, error) {
	base := logrus.New()

	level := opts.Level
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	base.SetLevel(parsed)

	switch strings.ToLower(opts.Format) {
	case "json", "":
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				return "", filepath.Base(f.File)
			},
		})
	case "text":
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return nil, &UnsupportedFormatError{Format: opts.Format}
	}
	base.SetReportCaller(true)

	var file *os.File
	if opts.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		file = f
		if opts.EnableStdout {
			base.SetOutput(io.MultiWriter(file, os.Stdout))
		} else {
			base.SetOutput(file)
		}
	} else {
		base.SetOutput(os.Stdout)
	}

	return &Logger{entry: logrus.NewEntry(base), file: file}, nil
}

// NewNoop returns a Logger that discards everything, for tests.
func NewNoop() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(base)}
}

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *Logger) WithField(key string, value any) ExtendedLogger {
	return &Logger{entry: l.entry.WithField(key, value), file: l.file}
}

func (l *Logger) WithFields(fields map[string]any) ExtendedLogger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields)), file: l.file}
}

// Close closes the underlying log file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// UnsupportedFormatError is returned by CreateLogger for an unknown format.
type UnsupportedFormatError struct{ Format string }

func (e *UnsupportedFormatError) Error() string {
	return "unsupported log format: " + e.Format
}
