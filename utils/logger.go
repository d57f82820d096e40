package utils

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogLevel enumerates severity tiers.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l LogLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

var logrusLevels = [...]logrus.Level{
	logrus.DebugLevel, logrus.InfoLevel, logrus.WarnLevel, logrus.ErrorLevel, logrus.FatalLevel,
}

// ParseLogLevel maps "debug", "info", "warn", "error" to a LogLevel.
// Unknown strings fall back to INFO.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	}
	return INFO
}

// Logger is a concurrency-safe, levelled logger used across the pipeline.
type Logger struct {
	mu    sync.Mutex
	inner *logrus.Logger
	entry *logrus.Entry
	file  *os.File
}

var (
	globalLogger *Logger
	logOnce      sync.Once
)

// InitLogger creates the singleton logger. Call once at startup.
func InitLogger(minLevel LogLevel, logFilePath string) *Logger {
	logOnce.Do(func() {
		var writers []io.Writer
		writers = append(writers, os.Stdout)

		var f *os.File
		if logFilePath != "" {
			var err error
			f, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				writers = append(writers, f)
			} else {
				logrus.Warnf("could not open log file %s: %v", logFilePath, err)
			}
		}

		inner := logrus.New()
		inner.SetOutput(io.MultiWriter(writers...))
		inner.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
		if int(minLevel) < len(logrusLevels) {
			inner.SetLevel(logrusLevels[minLevel])
		}

		globalLogger = &Logger{
			inner: inner,
			entry: logrus.NewEntry(inner),
			file:  f,
		}
	})
	return globalLogger
}

// L returns the global logger (a stdout-only DEBUG logger if InitLogger was never called).
func L() *Logger {
	if globalLogger == nil {
		return InitLogger(DEBUG, "")
	}
	return globalLogger
}

// WithFields returns a child logger that stamps every line with fields.
// The child shares the output and the log file of its parent.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{
		inner: l.inner,
		entry: l.entry.WithFields(logrus.Fields(fields)),
	}
}

// Close closes the log file, if any.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}

func (l *Logger) Debug(f string, a ...any) { l.entry.Debugf(f, a...) }
func (l *Logger) Info(f string, a ...any)  { l.entry.Infof(f, a...) }
func (l *Logger) Warn(f string, a ...any)  { l.entry.Warnf(f, a...) }
func (l *Logger) Error(f string, a ...any) { l.entry.Errorf(f, a...) }

// Fatal logs and exits the process with status 1.
func (l *Logger) Fatal(f string, a ...any) { l.entry.Fatalf(f, a...) }
