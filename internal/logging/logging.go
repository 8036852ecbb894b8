// Package logging provides the structured, leveled logging used by every
// daemon in this repository. Every Event is a single JSON object written to
// an io.Writer (normally stderr), in the same append-buffer style as
// logiface's stumpy backend: fields are appended directly to a byte buffer
// rather than built up via reflection or an intermediate map.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/joeycumines/qsys/internal/jsonenc"
)

// Level is a log severity, ordered from least to most severe.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Logger writes structured log events to an underlying writer. It is safe
// for concurrent use; a single mutex serializes writes so that concurrent
// events never interleave their bytes.
type Logger struct {
	mu      *sync.Mutex // shared with every child Logger made by With
	w       io.Writer
	level   Level
	fields  []field
	clock   func() time.Time
	process string
}

type field struct {
	key string
	val any
}

// New returns a Logger that writes to w, filtering out events below min.
func New(w io.Writer, min Level) *Logger {
	return &Logger{mu: new(sync.Mutex), w: w, level: min, clock: time.Now}
}

// Default returns a Logger writing to os.Stderr at LevelInfo, tagged with
// the given process name (included as a "process" field on every event).
func Default(process string) *Logger {
	l := New(os.Stderr, LevelInfo)
	l.process = process
	return l
}

// With returns a child Logger that includes the given key/value on every
// event it emits, in addition to this Logger's fields.
func (l *Logger) With(key string, val any) *Logger {
	child := &Logger{
		mu:      l.mu,
		w:       l.w,
		level:   l.level,
		clock:   l.clock,
		process: l.process,
	}
	child.fields = append(child.fields, l.fields...)
	child.fields = append(child.fields, field{key: key, val: val})
	return child
}

// Event is a single in-flight log record. Build it up with the With* methods
// and finish it with Msg or Msgf.
type Event struct {
	logger *Logger
	level  Level
	fields []field
	queued bool
}

func (l *Logger) newEvent(level Level) *Event {
	if level < l.level {
		return &Event{queued: false}
	}
	return &Event{logger: l, level: level, queued: true}
}

func (l *Logger) Debug() *Event { return l.newEvent(LevelDebug) }
func (l *Logger) Info() *Event  { return l.newEvent(LevelInfo) }
func (l *Logger) Warn() *Event  { return l.newEvent(LevelWarn) }
func (l *Logger) Error() *Event { return l.newEvent(LevelError) }

// Str adds a string field. A no-op on a disabled event.
func (e *Event) Str(key, val string) *Event { return e.add(key, val) }

// Int adds an integer field.
func (e *Event) Int(key string, val int) *Event { return e.add(key, val) }

// Err adds an error field, omitted entirely if err is nil.
func (e *Event) Err(err error) *Event {
	if err == nil {
		return e
	}
	return e.add("error", err.Error())
}

// Dur adds a duration field, formatted in seconds.
func (e *Event) Dur(key string, val time.Duration) *Event {
	return e.add(key, val.Seconds())
}

// Bool adds a boolean field.
func (e *Event) Bool(key string, val bool) *Event { return e.add(key, val) }

func (e *Event) add(key string, val any) *Event {
	if e == nil || !e.queued {
		return e
	}
	e.fields = append(e.fields, field{key: key, val: val})
	return e
}

// Msg finishes the event, emitting msg as the top-level "msg" field.
func (e *Event) Msg(msg string) {
	if e == nil || !e.queued {
		return
	}
	e.logger.write(e.level, msg, e.fields)
}

// Msgf finishes the event, formatting msg per fmt.Sprintf.
func (e *Event) Msgf(format string, args ...any) {
	if e == nil || !e.queued {
		return
	}
	e.Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) write(level Level, msg string, extra []field) {
	buf := make([]byte, 0, 256)
	buf = append(buf, '{')
	buf = appendKV(buf, true, "time", l.clock().UTC().Format(time.RFC3339Nano))
	buf = appendKV(buf, false, "level", level.String())
	buf = appendKV(buf, false, "msg", msg)
	if l.process != "" {
		buf = appendKV(buf, false, "process", l.process)
	}
	for _, f := range l.fields {
		buf = appendKVAny(buf, f.key, f.val)
	}
	for _, f := range extra {
		buf = appendKVAny(buf, f.key, f.val)
	}
	buf = append(buf, '}', '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(buf)
}

func appendKV(dst []byte, first bool, key, val string) []byte {
	if !first {
		dst = append(dst, ',')
	}
	dst = jsonenc.AppendString(dst, key)
	dst = append(dst, ':')
	return jsonenc.AppendString(dst, val)
}

func appendKVAny(dst []byte, key string, val any) []byte {
	dst = append(dst, ',')
	dst = jsonenc.AppendString(dst, key)
	dst = append(dst, ':')
	switch v := val.(type) {
	case string:
		return jsonenc.AppendString(dst, v)
	case bool:
		if v {
			return append(dst, "true"...)
		}
		return append(dst, "false"...)
	case int:
		return jsonenc.AppendFloat64(dst, float64(v))
	case int64:
		return jsonenc.AppendFloat64(dst, float64(v))
	case uint64:
		return jsonenc.AppendFloat64(dst, float64(v))
	case float64:
		return jsonenc.AppendFloat64(dst, v)
	default:
		return jsonenc.AppendString(dst, fmt.Sprint(v))
	}
}
