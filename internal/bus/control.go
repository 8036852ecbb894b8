package bus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/joeycumines/qsys/internal/control"
)

// NewActionFactory returns the control.ActionFactory busd registers on its
// control socket: it recognizes "subscribe" and "publish", each requiring a
// "topic" header argument.
func NewActionFactory(b *Bus) control.ActionFactory {
	return func(action string, args control.Args) (control.Action, error) {
		topic, ok := args.Get("topic")
		if !ok {
			return nil, fmt.Errorf("bus: missing topic argument for action %q", action)
		}
		switch action {
		case "subscribe":
			return &subscribeAction{bus: b, topic: topic}, nil
		case "publish":
			return &publishAction{bus: b, topic: topic}, nil
		default:
			return nil, &control.UnknownAction{Action: action}
		}
	}
}

type subscribeAction struct {
	bus   *Bus
	topic string
}

func (a *subscribeAction) Run(ctx context.Context, _ net.Conn, _ *bufio.Reader, w *bufio.Writer) error {
	frames, unsubscribe := a.bus.Subscribe(a.topic)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil // evicted
			}
			if err := writeFrame(w, frame); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}
}

type publishAction struct {
	bus   *Bus
	topic string
}

func (a *publishAction) Run(ctx context.Context, _ net.Conn, r *bufio.Reader, _ *bufio.Writer) error {
	for {
		frame, err := readFrame(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil // producer EOF ends the publisher task cleanly
			}
			return err
		}
		a.bus.Publish(a.topic, frame)
	}
}
