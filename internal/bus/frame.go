package bus

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// readFrame reads one big-endian u16 length-prefixed frame from r.
func readFrame(r *bufio.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// writeFrame writes frame as a big-endian u16 length-prefixed frame to w.
// It does not flush w.
func writeFrame(w *bufio.Writer, frame []byte) error {
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("bus: frame of %d bytes exceeds max %d", len(frame), MaxFrameSize)
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(frame)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}
