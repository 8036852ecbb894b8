package logstore

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"time"

	"github.com/joeycumines/qsys/internal/control"
	"github.com/joeycumines/qsys/internal/longpoll"
)

const (
	StartWriteStreamAction = "start-write-stream"
	StartReadStreamAction  = "start-read-stream"

	minTimeHeader = "_MIN_TIME"
	maxTimeHeader = "_MAX_TIME"
	followHeader  = "_FOLLOW"
)

// NewActionFactory returns the control.ActionFactory loggerd registers on
// its control socket.
func NewActionFactory(store *Store, dir string) control.ActionFactory {
	return func(action string, args control.Args) (control.Action, error) {
		switch action {
		case StartWriteStreamAction:
			var fields []KV
			for _, kv := range args {
				if kv.Key == control.ActionKey {
					continue
				}
				fields = append(fields, KV{Key: kv.Key, Value: kv.Value})
			}
			return &writeStreamAction{store: store, fields: fields}, nil
		case StartReadStreamAction:
			filter, follow, err := parseReadStreamArgs(args)
			if err != nil {
				return nil, err
			}
			return &readStreamAction{dir: dir, filter: filter, follow: follow}, nil
		default:
			return nil, &control.UnknownAction{Action: action}
		}
	}
}

func parseReadStreamArgs(args control.Args) (Filter, bool, error) {
	var filter Filter
	var follow bool
	for _, kv := range args {
		switch kv.Key {
		case control.ActionKey:
		case minTimeHeader:
			t, err := time.Parse(time.RFC3339, kv.Value)
			if err != nil {
				return Filter{}, false, err
			}
			filter.MinTime = t
		case maxTimeHeader:
			t, err := time.Parse(time.RFC3339, kv.Value)
			if err != nil {
				return Filter{}, false, err
			}
			filter.MaxTime = t
		case followHeader:
			f, err := strconv.ParseBool(kv.Value)
			if err != nil {
				return Filter{}, false, err
			}
			follow = f
		default:
			if filter.Fields == nil {
				filter.Fields = make(map[string]string)
			}
			filter.Fields[kv.Key] = kv.Value
		}
	}
	return filter, follow, nil
}

// writeStreamAction streams newline-framed text messages from the client
// into the store, tagging every message with the header's fields.
type writeStreamAction struct {
	store  *Store
	fields []KV
}

func (a *writeStreamAction) Run(ctx context.Context, _ net.Conn, r *bufio.Reader, _ *bufio.Writer) error {
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			line = trimNewline(line)
			msg := &Message{Time: time.Now().UTC(), Fields: a.fields, Message: line}
			if serr := a.store.Append(ctx, msg); serr != nil {
				return serr
			}
		}
		if err != nil {
			return nil // client EOF ends the write stream cleanly
		}
	}
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// readStreamAction streams matching entries to the client as length-prefixed
// JSON frames, blocking for new data if follow mode is set.
type readStreamAction struct {
	dir    string
	filter Filter
	follow bool
}

func (a *readStreamAction) Run(ctx context.Context, _ net.Conn, _ *bufio.Reader, w *bufio.Writer) error {
	send := func(e Entry) error {
		frame := FormatJSON(e)
		buf := appendLengthPrefixed(make([]byte, 0, len(frame)+4), frame)
		if _, err := w.Write(buf); err != nil {
			return err
		}
		return w.Flush()
	}

	if err := Stream(a.dir, a.filter, send); err != nil {
		return err
	}
	if !a.follow {
		return nil
	}

	// Follow mode: poll for newly appended entries, delivering each over a
	// channel fed by a directory watcher goroutine.
	ch := make(chan Entry, 16)
	lastSeen := time.Now().UTC()
	go pollNewEntries(ctx, a.dir, a.filter, &lastSeen, ch)

	return longpoll.Channel(ctx, ch, send)
}

// pollNewEntries re-scans the store directory on an interval, delivering any
// entry newer than lastSeen to ch. It exits when ctx is canceled.
func pollNewEntries(ctx context.Context, dir string, filter Filter, lastSeen *time.Time, ch chan<- Entry) {
	defer close(ch)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := *lastSeen
			f := filter
			f.MinTime = cur
			_ = Stream(dir, f, func(e Entry) error {
				if !e.Time.After(cur) {
					return nil
				}
				select {
				case ch <- e:
				case <-ctx.Done():
					return ctx.Err()
				}
				if e.Time.After(*lastSeen) {
					*lastSeen = e.Time
				}
				return nil
			})
		}
	}
}
