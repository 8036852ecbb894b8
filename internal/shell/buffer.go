// Package shell implements qsh: a line-editing REPL, a recursive-descent
// command tokenizer, and pipe-chain process execution.
package shell

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const deleteChar = 0x7f
const escChar = 0x1b

// Buffer is a raw-terminal line editor: it reads one byte at a time,
// interprets backspace and left/right arrow escape sequences, and echoes
// the edited line back to the writer as the user types.
type Buffer struct {
	buffer   []rune
	position int
	r        *bufio.Reader
	w        io.Writer
}

// NewBuffer wraps r/w for line editing. The caller is responsible for
// putting the terminal backing r into raw mode (see RawMode).
func NewBuffer(r io.Reader, w io.Writer) *Buffer {
	return &Buffer{r: bufio.NewReader(r), w: w}
}

// ReadLine reads one line of input, writing prompt first and echoing edits
// as the user types. It returns io.EOF once the underlying reader is
// exhausted with no pending input.
func (b *Buffer) ReadLine(prompt string) (string, error) {
	fmt.Fprint(b.w, prompt)
	for {
		c, _, err := b.r.ReadRune()
		if err != nil {
			if err == io.EOF && len(b.buffer) > 0 {
				return b.flush(), nil
			}
			return "", err
		}
		switch {
		case c == '\n' || c == '\r':
			fmt.Fprintln(b.w)
			return b.flush(), nil
		case c == deleteChar:
			b.backspace()
		case c == escChar:
			if err := b.handleEscape(); err != nil {
				return "", err
			}
		default:
			b.insert(c)
		}
	}
}

// handleEscape consumes a CSI sequence ("\x1b[" + final byte, with optional
// numeric parameters) and moves the cursor for the arrow keys; anything else
// is consumed and ignored.
func (b *Buffer) handleEscape() error {
	bracket, _, err := b.r.ReadRune()
	if err != nil {
		return err
	}
	if bracket != '[' {
		return nil
	}

	var params strings.Builder
	for {
		c, _, err := b.r.ReadRune()
		if err != nil {
			return err
		}
		if c >= '0' && c <= '9' || c == ';' {
			params.WriteRune(c)
			continue
		}
		switch c {
		case 'C': // cursor forward
			b.moveCursor(1)
		case 'D': // cursor back
			b.moveCursor(-1)
		}
		return nil
	}
}

// moveCursor shifts the cursor by delta positions, clamped to the buffer's
// bounds, and emits the matching ANSI cursor-movement sequence.
func (b *Buffer) moveCursor(delta int) {
	newPos := b.position + delta
	if newPos < 0 {
		newPos = 0
	} else if newPos > len(b.buffer) {
		newPos = len(b.buffer)
	}
	if newPos == b.position {
		return
	}
	if newPos < b.position {
		fmt.Fprintf(b.w, "\x1b[%dD", b.position-newPos)
	} else {
		fmt.Fprintf(b.w, "\x1b[%dC", newPos-b.position)
	}
	b.position = newPos
}

// insert adds c to the buffer at the cursor and rerenders the line.
func (b *Buffer) insert(c rune) {
	if b.position == len(b.buffer) {
		b.buffer = append(b.buffer, c)
	} else {
		b.buffer = append(b.buffer, 0)
		copy(b.buffer[b.position+1:], b.buffer[b.position:])
		b.buffer[b.position] = c
	}
	b.position++
	b.rerender()
}

// backspace removes the rune before the cursor and rerenders the line.
func (b *Buffer) backspace() {
	if b.position == 0 {
		return
	}
	if b.position == len(b.buffer) {
		b.buffer = b.buffer[:len(b.buffer)-1]
	} else {
		b.buffer = append(b.buffer[:b.position-1], b.buffer[b.position:]...)
	}
	b.position--
	fmt.Fprint(b.w, "\x1b[2D")
	b.rerender()
}

// rerender erases to the end of the line and rewrites it from one rune
// before the cursor, then repositions the cursor using display-width-aware
// column math so wide runes don't desync the terminal's idea of where the
// cursor sits.
func (b *Buffer) rerender() {
	start := b.position
	if start > 0 {
		start--
	}
	tail := string(b.buffer[start:])
	fmt.Fprintf(b.w, "\x1b[0K%s", tail)

	if trailing := len(b.buffer) - b.position; trailing > 0 {
		width := runewidth.StringWidth(string(b.buffer[b.position:]))
		fmt.Fprintf(b.w, "\x1b[%dD", width)
	}
}

// flush returns the accumulated line and resets the buffer for the next
// ReadLine call.
func (b *Buffer) flush() string {
	s := string(b.buffer)
	b.buffer = b.buffer[:0]
	b.position = 0
	return s
}
