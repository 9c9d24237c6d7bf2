package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Format represents the output format for logs
type Format int

const (
	// FormatConsole is human-readable console output
	FormatConsole Format = iota
	// FormatJSON is structured JSON output
	FormatJSON
)

// ParseFormat converts a string to a Format
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "json") {
		return FormatJSON
	}
	return FormatConsole
}

// String returns the string representation of a Format
func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "console"
}

// Level represents a logging level
type Level int

const (
	// DebugLevel is for debug messages
	DebugLevel Level = iota
	// InfoLevel is for informational messages
	InfoLevel
	// WarnLevel is for warning messages
	WarnLevel
	// ErrorLevel is for error messages
	ErrorLevel
)

// String returns the string representation of a Level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l Level) logrus() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func fromLogrus(l logrus.Level) Level {
	switch l {
	case logrus.TraceLevel, logrus.DebugLevel:
		return DebugLevel
	case logrus.InfoLevel:
		return InfoLevel
	case logrus.WarnLevel:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

// Logger provides structured logging capabilities on top of logrus.
// Loggers derived with With share the level and output of their parent.
type Logger struct {
	base  *logrus.Logger
	entry *logrus.Entry
}

// Options configures a Logger built by NewWithOptions
type Options struct {
	Level  Level
	Format Format

	// File, when set, receives a copy of every log line and is rotated by size
	File string

	// MaxSizeMB is the rotation threshold for File (default: 100)
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept (default: 3)
	MaxBackups int
}

// New creates a new Logger with the specified level and console format
func New(level Level) *Logger {
	return newLogger(level, FormatConsole, os.Stdout)
}

// NewWithFormat creates a new Logger with the specified level and format
func NewWithFormat(level Level, format Format) *Logger {
	return newLogger(level, format, os.Stdout)
}

// NewWithOutput creates a new Logger with the specified level and output writer
func NewWithOutput(level Level, output io.Writer) *Logger {
	return newLogger(level, FormatConsole, output)
}

// NewWithOptions creates a Logger writing to stdout and, optionally, a rotated file
func NewWithOptions(opts *Options) *Logger {
	if opts == nil {
		opts = &Options{Level: InfoLevel}
	}

	var output io.Writer = os.Stdout
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		maxBackups := opts.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 3
		}
		output = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
		})
	}

	return newLogger(opts.Level, opts.Format, output)
}

// Discard returns a Logger that drops everything, for tests and optional wiring
func Discard() *Logger {
	return newLogger(ErrorLevel, FormatConsole, io.Discard)
}

func newLogger(level Level, format Format, output io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(output)
	base.SetLevel(level.logrus())
	if format == FormatJSON {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		base.SetFormatter(&consoleFormatter{})
	}

	return &Logger{
		base:  base,
		entry: logrus.NewEntry(base),
	}
}

// SetLevel changes the logging level
func (l *Logger) SetLevel(level Level) {
	l.base.SetLevel(level.logrus())
}

// With returns a child logger that adds fields to every line it writes
func (l *Logger) With(fields ...Field) *Logger {
	child := *l
	child.entry = l.entry.WithFields(toLogrus(fields))
	return &child
}

// Debug logs a debug message with optional fields
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(DebugLevel, msg, fields...)
}

// Info logs an informational message with optional fields
func (l *Logger) Info(msg string, fields ...Field) {
	l.log(InfoLevel, msg, fields...)
}

// Warn logs a warning message with optional fields
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(WarnLevel, msg, fields...)
}

// Error logs an error message with optional fields
func (l *Logger) Error(msg string, fields ...Field) {
	l.log(ErrorLevel, msg, fields...)
}

// log is the internal logging method
func (l *Logger) log(level Level, msg string, fields ...Field) {
	if l == nil || !l.base.IsLevelEnabled(level.logrus()) {
		return
	}

	entry := l.entry
	if len(fields) > 0 {
		entry = entry.WithFields(toLogrus(fields))
	}
	entry.Log(level.logrus(), msg)
}

func toLogrus(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, field := range fields {
		out[field.Key] = field.Value
	}
	return out
}

// consoleFormatter renders "timestamp LEVEL message key=value ..."
type consoleFormatter struct{}

func (f *consoleFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var output strings.Builder
	output.WriteString(e.Time.UTC().Format(time.RFC3339))
	output.WriteString(" ")
	output.WriteString(fromLogrus(e.Level).String())
	output.WriteString(" ")
	output.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		output.WriteString(" ")
		output.WriteString(k)
		output.WriteString("=")
		output.WriteString(fmt.Sprintf("%v", e.Data[k]))
	}

	output.WriteString("\n")
	return []byte(output.String()), nil
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value any
}

// String creates a Field with a string value
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates a Field with an integer value
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a Field with a boolean value
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a Field with a duration value
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Error creates a Field with an error value
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any creates a Field with any value
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}
