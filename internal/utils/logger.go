// internal/utils/logger.go
package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
)

// Fields carries structured key/value context for a log line.
type Fields map[string]interface{}

// logSink is shared by a logger and every child created with With.
type logSink struct {
	mu   sync.Mutex
	out  io.Writer
	file *os.File
}

// Logger writes leveled lines to stdout and, once InitLogFile is called, to a file.
type Logger struct {
	sink    *logSink
	level   LogLevel
	enabled bool
	prefix  Fields
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// GetLogger returns the process logger
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		globalLogger = NewLogger(os.Stdout, INFO)
	})
	return globalLogger
}

// NewLogger creates a logger writing to out.
func NewLogger(out io.Writer, level LogLevel) *Logger {
	return &Logger{sink: &logSink{out: out}, level: level, enabled: true}
}

// ParseLogLevel maps "debug"/"info"/"warn"/"error" to a level, defaulting to INFO.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARNING
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// InitLogFile mirrors every line into logFile (appending).
func (l *Logger) InitLogFile(logFile string) error {
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.file != nil {
		l.sink.file.Close()
	}
	l.sink.file = file
	return nil
}

// Close releases the log file, if any. Children created with With stop writing to it too.
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.file == nil {
		return nil
	}
	err := l.sink.file.Close()
	l.sink.file = nil
	return err
}

// SetLogLevel sets the minimum level for logging
func (l *Logger) SetLogLevel(level LogLevel) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.level = level
}

// Enable enables or disables logging
func (l *Logger) Enable(enabled bool) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.enabled = enabled
}

// With returns a child logger that always appends the given fields.
// The child shares the parent's outputs and lock.
func (l *Logger) With(fields Fields) *Logger {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	merged := make(Fields, len(l.prefix)+len(fields))
	for k, v := range l.prefix {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{sink: l.sink, level: l.level, enabled: l.enabled, prefix: merged}
}

func (l *Logger) log(level LogLevel, message string, fields Fields) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if !l.enabled || level < l.level {
		return
	}

	// skip log + the exported wrapper
	caller := "?"
	if pc, file, line, ok := runtime.Caller(2); ok {
		funcName := ""
		if fn := runtime.FuncForPC(pc); fn != nil {
			funcName = fn.Name()
			if idx := strings.LastIndex(funcName, "/"); idx >= 0 {
				funcName = funcName[idx+1:]
			}
		}
		caller = fmt.Sprintf("%s:%d:%s", filepath.Base(file), line, funcName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s - %s",
		levelToString(level),
		time.Now().Format("2006-01-02 15:04:05.000"),
		caller,
		message)

	all := make(Fields, len(l.prefix)+len(fields))
	for k, v := range l.prefix {
		all[k] = v
	}
	for k, v := range fields {
		all[k] = v
	}
	if len(all) > 0 {
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, all[k])
		}
	}
	b.WriteString("\n")

	line := b.String()
	if l.sink.file != nil {
		l.sink.file.WriteString(line)
	}
	if l.sink.out != nil {
		io.WriteString(l.sink.out, line)
	}
}

func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields Fields) {
	l.log(DEBUG, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields Fields) {
	l.log(INFO, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields Fields) {
	l.log(WARNING, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields Fields) {
	l.log(ERROR, message, fields)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(INFO, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(WARNING, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ERROR, fmt.Sprintf(format, args...), nil)
}
