package logstore

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Filter selects which entries a read stream delivers.
type Filter struct {
	MinTime time.Time
	MaxTime time.Time
	Fields  map[string]string
}

func (f Filter) matches(t time.Time, fields map[string]string) bool {
	if !f.MinTime.IsZero() && t.Before(f.MinTime) {
		return false
	}
	if !f.MaxTime.IsZero() && t.After(f.MaxTime) {
		return false
	}
	for k, v := range f.Fields {
		if fields[k] != v {
			return false
		}
	}
	return true
}

// logFile is one on-disk segment discovered under a store directory.
type logFile struct {
	path    string
	timeMin time.Time
}

// listFiles returns every "log-*.log" file in dir in ascending time_min
// order, matching the read path's requirement to open files in that order
// so a range query can stop early once time_min exceeds the query max.
func listFiles(dir string) ([]logFile, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "log-*.log"))
	if err != nil {
		return nil, err
	}
	files := make([]logFile, 0, len(entries))
	for _, path := range entries {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h, err := ReadHeaderBlock(f)
		f.Close()
		if err != nil {
			continue // skip files whose header can't be validated
		}
		files = append(files, logFile{path: path, timeMin: h.TimeMin})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].timeMin.Before(files[j].timeMin) })
	return files, nil
}

// Entry is one decoded, filter-matched log record ready for formatting.
type Entry struct {
	Time   time.Time
	Fields map[string]string
}

// StreamFunc is called once per entry that passes the filter. Returning an
// error stops the stream.
type StreamFunc func(Entry) error

// Stream reads every file under dir whose range can overlap filter's
// [MinTime, MaxTime], in ascending time_min order, invoking fn for each
// entry that matches. It does not implement follow mode: it returns once
// the last entry of the last file has been read.
func Stream(dir string, filter Filter, fn StreamFunc) error {
	files, err := listFiles(dir)
	if err != nil {
		return err
	}
	for _, lf := range files {
		if !filter.MaxTime.IsZero() && lf.timeMin.After(filter.MaxTime) {
			break // files are time_min-ordered; nothing later can match
		}
		if err := streamFile(lf.path, filter, fn); err != nil {
			return err
		}
	}
	return nil
}

func streamFile(path string, filter Filter, fn StreamFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h, err := ReadHeaderBlock(f)
	if err != nil {
		return err
	}
	if !filter.MinTime.IsZero() && h.TimeMax.Before(filter.MinTime) {
		return nil // entire file predates the query window
	}
	if h.FirstEntryBlockOffset == 0 {
		return nil // no entries yet
	}

	offset := h.FirstEntryBlockOffset
	for offset != 0 {
		if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
			return err
		}
		entry, err := ReadEntryBlock(f)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				break // tolerate a truncated tail block
			}
			return err
		}

		fields := make(map[string]string, len(entry.FieldOffsets))
		var msg string
		for _, fieldOffset := range entry.FieldOffsets {
			if _, err := f.Seek(int64(fieldOffset), io.SeekStart); err != nil {
				return err
			}
			fb, err := ReadFieldBlock(f)
			if err != nil {
				break // tolerate a truncated tail block
			}
			if fb.Key == "__msg" {
				msg = fb.Value
			} else {
				fields[fb.Key] = fb.Value
			}
		}
		fields["__msg"] = msg

		if filter.matches(entry.Time, fields) {
			if err := fn(Entry{Time: entry.Time, Fields: fields}); err != nil {
				return err
			}
		}

		offset = entry.NextEntryBlockOffset
	}
	return nil
}

// appendLengthPrefixed appends loggerd's read-stream wire framing: a little-endian u32
// byte count followed by that many bytes of JSON.
func appendLengthPrefixed(dst []byte, payload []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, payload...)
}
