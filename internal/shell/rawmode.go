package shell

import "golang.org/x/term"

// RawMode puts fd (typically os.Stdin's file descriptor) into raw mode for
// the duration of a qsh session, so Buffer sees every keystroke instead of
// a line-buffered stream, and returns a restore function to call on exit.
func RawMode(fd int) (restore func() error, err error) {
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() error { return term.Restore(fd, state) }, nil
}
