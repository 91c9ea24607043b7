package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/term"
	"igfeed/pkg/config"
)

// Version is stamped into every log line and reported by the CLI
var Version = "dev"

// Logger is what igfeed packages log through. Children returned by the
// With* methods carry extra fields and never modify their parent.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	DebugWithFields(msg string, fields map[string]interface{})
	InfoWithFields(msg string, fields map[string]interface{})
	WarnWithFields(msg string, fields map[string]interface{})
	ErrorWithFields(msg string, fields map[string]interface{})
}

type zerologLogger struct {
	zl     zerolog.Logger
	fields map[string]interface{}
}

// New builds a Logger from the logging section of the config.
//
// A log file always receives JSON lines. The console gets the human
// readable writer, colored only when stdout is a terminal, unless JSON is
// set, in which case stdout gets JSON as well.
func New(cfg *config.LoggingConfig) (Logger, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var out io.Writer = os.Stdout
	if !cfg.JSON {
		out = consoleWriter(os.Stdout, !term.IsTerminal(int(os.Stdout.Fd())))
	}
	if cfg.File != "" {
		f, err := openLogFile(cfg.File)
		if err != nil {
			return nil, err
		}
		out = zerolog.MultiLevelWriter(out, f)
	}

	return newZerologLogger(out, level), nil
}

func newZerologLogger(out io.Writer, level zerolog.Level) *zerologLogger {
	zl := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("app", "igfeed").
		Str("version", Version).
		Logger()
	return &zerologLogger{zl: zl}
}

func consoleWriter(out io.Writer, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:           out,
		NoColor:       noColor,
		TimeFormat:    "15:04:05",
		FieldsExclude: []string{"app", "version"},
	}
}

func openLogFile(path string) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

// parseLogLevel accepts zerolog's level names plus "warning", with an empty
// level meaning info
func parseLogLevel(level string) (zerolog.Level, error) {
	switch name := strings.ToLower(strings.TrimSpace(level)); name {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	case "debug", "info", "warn", "error", "fatal", "disabled":
		return zerolog.ParseLevel(name)
	}
	return zerolog.InfoLevel, fmt.Errorf("unknown log level: %s", level)
}

func (l *zerologLogger) Debug(msg string) { l.event(l.zl.Debug(), nil).Msg(msg) }
func (l *zerologLogger) Info(msg string)  { l.event(l.zl.Info(), nil).Msg(msg) }
func (l *zerologLogger) Warn(msg string)  { l.event(l.zl.Warn(), nil).Msg(msg) }
func (l *zerologLogger) Error(msg string) { l.event(l.zl.Error(), nil).Msg(msg) }

func (l *zerologLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.event(l.zl.Debug(), fields).Msg(msg)
}

func (l *zerologLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.event(l.zl.Info(), fields).Msg(msg)
}

func (l *zerologLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.event(l.zl.Warn(), fields).Msg(msg)
}

func (l *zerologLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.event(l.zl.Error(), fields).Msg(msg)
}

func (l *zerologLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *zerologLogger) WithFields(fields map[string]interface{}) Logger {
	return &zerologLogger{zl: l.zl, fields: mergeFields(l.fields, fields)}
}

func (l *zerologLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

// event attaches the logger's own fields, then the per-call ones. A disabled
// level yields a nil event, which zerolog treats as a no-op.
func (l *zerologLogger) event(e *zerolog.Event, fields map[string]interface{}) *zerolog.Event {
	if len(l.fields) > 0 {
		e = e.Fields(l.fields)
	}
	if len(fields) > 0 {
		e = e.Fields(fields)
	}
	return e
}

var global Logger

// Initialize replaces the process logger with one built from cfg
func Initialize(cfg *config.LoggingConfig) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	global = l
	return nil
}

// SetLogger replaces the process logger; nil restores the default
func SetLogger(l Logger) {
	global = l
}

// GetLogger returns the process logger, building an info level console
// logger on first use when Initialize was never called
func GetLogger() Logger {
	if global == nil {
		global, _ = New(&config.LoggingConfig{Level: "info"})
	}
	return global
}
