package shell

import (
	"fmt"
	"io"
	"os"
	"strconv"
)

// Shell is qsh's REPL state: its environment (PS1 supplies the prompt and
// "?" records the last exit status; commands are looked up on the qsh
// process's own PATH, not on Environment["PATH"]) and the stdio it reads
// commands from and writes output to.
type Shell struct {
	Environment map[string]string
	buf         *Buffer
	stdout      io.Writer
	stderr      io.Writer
}

// New returns a Shell with the default environment (PATH and PS1 set,
// everything else empty) reading from r and writing to w/errW.
func New(r io.Reader, w, errW io.Writer) *Shell {
	return &Shell{
		Environment: map[string]string{
			"PATH": "/bin:/usr/bin",
			"PS1":  "$ ",
		},
		buf:    NewBuffer(r, w),
		stdout: w,
		stderr: errW,
	}
}

// Run reads and executes commands until the input stream is exhausted.
func (s *Shell) Run() error {
	for {
		line, err := s.buf.ReadLine(s.Environment["PS1"])
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		s.Evaluate(line)
	}
}

// Evaluate parses and runs a single command line, updating "$?" in the
// environment from its result. Parse errors are reported to stderr and
// also recorded as a non-zero "$?", matching how a failed pipeline reports
// status without aborting the REPL.
func (s *Shell) Evaluate(line string) {
	stages, err := ParsePipeline(line)
	if err != nil {
		fmt.Fprintf(s.stderr, "qsh: %v\n", err)
		s.Environment["?"] = "2"
		return
	}
	if len(stages) == 0 {
		return
	}

	p := &Pipeline{Stages: stages}
	result, err := p.Run(os.Stdin, s.stdout, s.stderr)
	if err != nil {
		fmt.Fprintf(s.stderr, "qsh: %v\n", err)
		s.Environment["?"] = "1"
		return
	}
	s.Environment["?"] = strconv.Itoa(result.ExitCode)
}
