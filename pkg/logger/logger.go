package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"careerprep/internal/domain"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// AppLogger implements the domain.Logger interface
type AppLogger struct {
	level  LogLevel
	logger *log.Logger
}

// NewLogger creates a new logger instance writing to stdout
func NewLogger(levelStr string) domain.Logger {
	return NewLoggerWithWriter(levelStr, os.Stdout)
}

// NewLoggerWithWriter creates a logger writing to w
func NewLoggerWithWriter(levelStr string, w io.Writer) domain.Logger {
	return &AppLogger{
		level:  parseLogLevel(levelStr),
		logger: log.New(w, "", 0),
	}
}

// Info logs an info message
func (l *AppLogger) Info(msg string, fields ...interface{}) {
	if l.level <= INFO {
		l.log("INFO", msg, fields...)
	}
}

// Error logs an error message
func (l *AppLogger) Error(msg string, err error, fields ...interface{}) {
	if l.level <= ERROR {
		allFields := make([]interface{}, 0, len(fields)+2)
		allFields = append(allFields, "error", err)
		allFields = append(allFields, fields...)
		l.log("ERROR", msg, allFields...)
	}
}

// Debug logs a debug message
func (l *AppLogger) Debug(msg string, fields ...interface{}) {
	if l.level <= DEBUG {
		l.log("DEBUG", msg, fields...)
	}
}

// Warn logs a warning message
func (l *AppLogger) Warn(msg string, fields ...interface{}) {
	if l.level <= WARN {
		l.log("WARN", msg, fields...)
	}
}

// log is the internal logging method
func (l *AppLogger) log(level, msg string, fields ...interface{}) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	logMsg := fmt.Sprintf("[%s] %s: %s", timestamp, level, msg)

	if len(fields) > 0 {
		fieldStrs := make([]string, 0, len(fields)/2)
		for i := 0; i < len(fields); i += 2 {
			if i+1 < len(fields) {
				fieldStrs = append(fieldStrs, fmt.Sprintf("%v=%v", fields[i], fields[i+1]))
			} else {
				// dangling key
				fieldStrs = append(fieldStrs, fmt.Sprintf("%v=?", fields[i]))
			}
		}
		if len(fieldStrs) > 0 {
			logMsg += " " + strings.Join(fieldStrs, " ")
		}
	}

	l.logger.Println(logMsg)
}

// parseLogLevel converts string log level to LogLevel enum
func parseLogLevel(levelStr string) LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// fieldLogger prepends a fixed set of fields to every entry.
type fieldLogger struct {
	next   domain.Logger
	fields []interface{}
}

// With returns a logger that adds fields to every entry written through it.
func With(l domain.Logger, fields ...interface{}) domain.Logger {
	if fl, ok := l.(*fieldLogger); ok {
		merged := make([]interface{}, 0, len(fl.fields)+len(fields))
		merged = append(merged, fl.fields...)
		merged = append(merged, fields...)
		return &fieldLogger{next: fl.next, fields: merged}
	}
	return &fieldLogger{next: l, fields: fields}
}

func (l *fieldLogger) Info(msg string, fields ...interface{}) {
	l.next.Info(msg, l.merge(fields)...)
}

func (l *fieldLogger) Error(msg string, err error, fields ...interface{}) {
	l.next.Error(msg, err, l.merge(fields)...)
}

func (l *fieldLogger) Debug(msg string, fields ...interface{}) {
	l.next.Debug(msg, l.merge(fields)...)
}

func (l *fieldLogger) Warn(msg string, fields ...interface{}) {
	l.next.Warn(msg, l.merge(fields)...)
}

func (l *fieldLogger) merge(fields []interface{}) []interface{} {
	out := make([]interface{}, 0, len(l.fields)+len(fields))
	out = append(out, l.fields...)
	return append(out, fields...)
}
