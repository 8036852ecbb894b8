// Package netlink consumes kernel device events off the NETLINK_KOBJECT_UEVENT
// socket and enumerates network links off NETLINK_ROUTE, the two kernel
// interfaces udevd needs to do its job.
package netlink

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Event is a single kernel uevent: the free-form summary line (e.g.
// "add@/devices/...") plus the KEY=VALUE fields that follow it, such as
// ACTION, SUBSYSTEM, and (for module autoloading) MODALIAS.
type Event struct {
	Summary string
	Fields  map[string]string
}

// UeventConn is an open NETLINK_KOBJECT_UEVENT socket, bound to the kernel
// multicast group that carries device hotplug events.
type UeventConn struct {
	fd int
}

// OpenUevent opens and binds a NETLINK_KOBJECT_UEVENT socket listening to the
// given multicast groups bitmask. Group 1 is the standard "kernel" uevent
// group used by udevd.
func OpenUevent(groups uint32) (*UeventConn, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("netlink: socket: %w", err)
	}

	sa := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Pid:    uint32(unix.Getpid()),
		Groups: groups,
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netlink: bind: %w", err)
	}

	return &UeventConn{fd: fd}, nil
}

// Close releases the underlying socket.
func (c *UeventConn) Close() error {
	return unix.Close(c.fd)
}

// ReadEvent blocks until the next uevent arrives, or ctx is canceled. The
// kernel's uevent payload is a NUL-separated sequence of lines: the first is
// the free-form summary, the rest are KEY=VALUE pairs. A datagram with no
// SEQNUM field is not a complete event; it is discarded and reading goes on.
func (c *UeventConn) ReadEvent(ctx context.Context) (Event, error) {
	type result struct {
		ev  Event
		err error
	}
	done := make(chan result, 1)
	go func() {
		buf := make([]byte, 64*1024)
		for {
			n, _, err := unix.Recvfrom(c.fd, buf, 0)
			if err != nil {
				done <- result{err: fmt.Errorf("netlink: recvfrom: %w", err)}
				return
			}
			ev := parseUevent(buf[:n])
			if _, ok := ev.Fields["SEQNUM"]; !ok {
				continue
			}
			done <- result{ev: ev}
			return
		}
	}()

	select {
	case <-ctx.Done():
		// Unblock the pending Recvfrom by tearing down the socket; the
		// caller is expected to stop calling ReadEvent after this.
		unix.Close(c.fd)
		return Event{}, ctx.Err()
	case r := <-done:
		return r.ev, r.err
	}
}

func parseUevent(payload []byte) Event {
	segments := bytes.Split(payload, []byte{0})
	ev := Event{Fields: make(map[string]string)}
	for _, seg := range segments {
		s := string(seg)
		if s == "" {
			continue
		}
		key, value, ok := strings.Cut(s, "=")
		if !ok {
			// A line without a KEY=VALUE shape (the leading "add@/devices/..."
			// line) is the free-form summary; only the first one is kept.
			if ev.Summary == "" {
				ev.Summary = s
			}
			continue
		}
		ev.Fields[key] = value
	}
	return ev
}
