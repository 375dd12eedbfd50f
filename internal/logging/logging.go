// Package logging records what happened to every exported model. Each entry
// goes to a durable JSON-lines file and, when asked, is echoed to the
// console.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Severity of an entry.
type Severity string

const (
	SeverityDebug Severity = "debug"
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

func (s Severity) level() zerolog.Level {
	switch s {
	case SeverityDebug:
		return zerolog.DebugLevel
	case SeverityWarn:
		return zerolog.WarnLevel
	case SeverityError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Entry is one log record about a model, optionally tied to the parent model
// it was found in.
type Entry struct {
	Severity        Severity
	ModelName       string
	ModelURL        string
	Message         string
	ParentModelName string
	ParentModelURL  string
	// Console echoes the entry to the interactive output as well.
	Console bool
}

// Line renders the entry in its human-readable form:
//
//	<model>: <url> <message> (Tied to <parent>: <parent url>)
func (e Entry) Line() string {
	var b strings.Builder
	b.WriteString(e.ModelName)
	b.WriteString(": ")
	b.WriteString(e.ModelURL)
	b.WriteString(" ")
	b.WriteString(e.Message)
	if e.ParentModelName != "" {
		fmt.Fprintf(&b, " (Tied to %s: %s)", e.ParentModelName, e.ParentModelURL)
	}
	return b.String()
}

// Console is the interactive surface entries are echoed to. output.Writer
// satisfies it.
type Console interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
}

// Logger writes entries to the durable log and the console.
type Logger struct {
	file    zerolog.Logger
	console Console
	closer  io.Closer
}

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

// Open creates (or appends to) the log file at path.
func Open(path string, console Console) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	l := New(f, console)
	l.closer = f
	return l, nil
}

// New writes JSON lines to w. console may be nil.
func New(w io.Writer, console Console) *Logger {
	return &Logger{
		file:    zerolog.New(zerolog.SyncWriter(w)).With().Timestamp().Logger(),
		console: console,
	}
}

// With returns a logger whose file entries carry an extra field, such as
// the export run id.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{
		file:    l.file.With().Str(key, value).Logger(),
		console: l.console,
		closer:  l.closer,
	}
}

// Log records e.
func (l *Logger) Log(e Entry) {
	ev := l.file.WithLevel(e.Severity.level()).
		Str("model_name", e.ModelName).
		Str("model_url", e.ModelURL)
	if e.ParentModelName != "" {
		ev = ev.Str("parent_model_name", e.ParentModelName).
			Str("parent_model_url", e.ParentModelURL)
	}
	ev.Msg(e.Line())

	if !e.Console || l.console == nil {
		return
	}
	switch e.Severity {
	case SeverityWarn, SeverityError:
		l.console.Warn("%s", e.Line())
	default:
		l.console.Info("%s", e.Line())
	}
}

// LogException records a failure that did not stop the export. The console
// gets the short form "<message>: <err>"; the file gets the error with its
// stack trace and every metadata pair.
func (l *Logger) LogException(err error, message string, meta map[string]string) {
	if err == nil {
		return
	}
	ev := l.file.Error().Stack().Err(withStack(err))
	if len(meta) > 0 {
		ev = ev.Str("meta", formatMeta(meta))
	}
	ev.Msg(message)

	if l.console != nil {
		l.console.Warn("%s: %v", message, err)
	}
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func withStack(err error) error {
	var st stackTracer
	if errors.As(err, &st) {
		return err
	}
	return errors.WithStack(err)
}

// formatMeta renders metadata as "key:\nvalue" blocks in key order.
func formatMeta(meta map[string]string) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":\n"+meta[k])
	}
	return strings.Join(parts, "\n\n")
}
