package udev

import (
	"context"
	"sort"

	"github.com/joeycumines/qsys/internal/jsonenc"
	qnetlink "github.com/joeycumines/qsys/internal/netlink"
)

// UeventSource is the subset of *netlink.UeventConn that Forward needs,
// narrowed for testability.
type UeventSource interface {
	ReadEvent(ctx context.Context) (qnetlink.Event, error)
}

// Publisher is the subset of *bus.Client that Forward needs.
type Publisher interface {
	WriteFrame(frame []byte) error
}

// Forward reads kernel uevents from src and publishes each as a JSON frame
// on pub until ctx is canceled or src returns a non-context error.
func Forward(ctx context.Context, src UeventSource, pub Publisher) error {
	for {
		ev, err := src.ReadEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := pub.WriteFrame(encodeEvent(ev)); err != nil {
			return err
		}
	}
}

// encodeEvent renders a kernel uevent as a JSON object:
// {"SUMMARY":"...","<FIELD>":"...", ...}, fields sorted for determinism.
func encodeEvent(ev qnetlink.Event) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, '{')
	buf = jsonenc.AppendString(buf, "SUMMARY")
	buf = append(buf, ':')
	buf = jsonenc.AppendString(buf, ev.Summary)

	keys := make([]string, 0, len(ev.Fields))
	for k := range ev.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf = append(buf, ',')
		buf = jsonenc.AppendString(buf, k)
		buf = append(buf, ':')
		buf = jsonenc.AppendString(buf, ev.Fields[k])
	}
	buf = append(buf, '}')
	return buf
}
