package bus

import (
	"bufio"
	"context"
	"fmt"
	"net"
)

// Client is a connection to a busd control socket, used by producers and
// consumers that live outside the bus process itself (udevd publishing
// device events, udev subscribing to them).
type Client struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

// DialPublish opens a connection to addr and issues a "publish" action for
// topic. WriteFrame sends one message at a time; the connection closes the
// publish stream when the Client is closed.
func DialPublish(addr, topic string) (*Client, error) {
	return dial(addr, "publish", topic)
}

// DialSubscribe opens a connection to addr and issues a "subscribe" action
// for topic. ReadFrame receives messages as busd publishes them.
func DialSubscribe(addr, topic string) (*Client, error) {
	return dial(addr, "subscribe", topic)
}

func dial(addr, action, topic string) (*Client, error) {
	conn, err := net.Dial("unix", addr)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(conn, "ACTION=%s topic=%s\n", action, topic); err != nil {
		conn.Close()
		return nil, err
	}
	return &Client{conn: conn, r: bufio.NewReader(conn), w: bufio.NewWriter(conn)}, nil
}

// WriteFrame publishes one message frame, flushing immediately.
func (c *Client) WriteFrame(frame []byte) error {
	if err := writeFrame(c.w, frame); err != nil {
		return err
	}
	return c.w.Flush()
}

// ReadFrame blocks for the next published message frame.
func (c *Client) ReadFrame() ([]byte, error) {
	return readFrame(c.r)
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// RunContext closes the client's connection when ctx is canceled, unblocking
// any in-flight ReadFrame/WriteFrame call. Callers that want cancellation
// should start this in its own goroutine right after dialing.
func RunContext(ctx context.Context, c *Client) {
	<-ctx.Done()
	_ = c.Close()
}
