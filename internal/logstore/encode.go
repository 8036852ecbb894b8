package logstore

import (
	"sort"
	"time"

	"github.com/joeycumines/qsys/internal/jsonenc"
)

// FormatJSON renders e as a JSON object: {"__timestamp":...,"__msg":...,
// <other fields>...}, matching the read path's output format. Field keys
// other than __msg are emitted in sorted order for deterministic output.
func FormatJSON(e Entry) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, '{')
	buf = jsonenc.AppendString(buf, "__timestamp")
	buf = append(buf, ':')
	buf = jsonenc.AppendString(buf, e.Time.UTC().Format(time.RFC3339Nano))

	buf = append(buf, ',')
	buf = jsonenc.AppendString(buf, "__msg")
	buf = append(buf, ':')
	buf = jsonenc.AppendString(buf, e.Fields["__msg"])

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		if k == "__msg" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf = append(buf, ',')
		buf = jsonenc.AppendString(buf, k)
		buf = append(buf, ':')
		buf = jsonenc.AppendString(buf, e.Fields[k])
	}

	buf = append(buf, '}')
	return buf
}
