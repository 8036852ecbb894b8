package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// NotFoundExitCode is the exit status reported for a pipeline stage whose
// command could not be found on PATH, matching the shell convention.
const NotFoundExitCode = 127

// Pipeline is a sequence of commands whose stdout/stdin are chained
// together, e.g. "echo hi | cat".
type Pipeline struct {
	Stages [][]string
}

// Result is the outcome of running a Pipeline: the exit code of its final
// stage, which becomes the shell's "$?".
type Result struct {
	ExitCode int
}

// Run executes the pipeline, connecting each stage's stdout to the next
// stage's stdin via an os.Pipe, and waits for every stage to exit. The
// first stage's stdin and the last stage's stdout/stderr are connected to
// the given streams; every stage, interior ones included, writes its stderr
// to stderr.
func (p *Pipeline) Run(stdin io.Reader, stdout, stderr io.Writer) (Result, error) {
	if len(p.Stages) == 0 {
		return Result{}, errors.New("shell: empty pipeline")
	}

	cmds := make([]*exec.Cmd, len(p.Stages))
	for i, stage := range p.Stages {
		cmds[i] = exec.Command(stage[0], stage[1:]...)
		cmds[i].Stderr = stderr
	}

	cmds[0].Stdin = stdin
	cmds[len(cmds)-1].Stdout = stdout

	var pipes []io.Closer
	for i := 0; i < len(cmds)-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			closeAll(pipes)
			return Result{}, fmt.Errorf("shell: creating pipe: %w", err)
		}
		cmds[i].Stdout = w
		cmds[i+1].Stdin = r
		pipes = append(pipes, r, w)
	}

	var started []*exec.Cmd
	for _, cmd := range cmds {
		if err := cmd.Start(); err != nil {
			closeAll(pipes)
			for _, s := range started {
				_ = s.Process.Kill()
				_ = s.Wait()
			}
			fmt.Fprintf(stderr, "%s: command not found\n", cmd.Path)
			return Result{ExitCode: NotFoundExitCode}, nil
		}
		started = append(started, cmd)
	}

	// The writer end of each internal pipe must be closed in the parent once
	// both of its stages have started, or the downstream reader never sees
	// EOF.
	closeAll(pipes)

	var waitErr error
	for i, cmd := range cmds {
		if err := cmd.Wait(); err != nil && i == len(cmds)-1 {
			waitErr = err
		}
	}

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = NotFoundExitCode
		}
	}

	return Result{ExitCode: code}, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
