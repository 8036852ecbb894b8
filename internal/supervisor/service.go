package supervisor

import (
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"syscall"

	"github.com/joeycumines/qsys/internal/auth"
)

// State is a service instance's lifecycle state.
type State int

const (
	Unstarted State = iota
	Running
	Terminated
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Instance is one running (or previously run) invocation of a service, with
// a specific set of resolved argument values.
type Instance struct {
	Name string
	Args map[string]string

	mu       sync.Mutex
	state    State
	pid      int
	exitCode int
	cmd      *exec.Cmd
}

// State returns the instance's current lifecycle state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Pid returns the instance's process id, valid once State is Running or
// Terminated.
func (i *Instance) Pid() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.pid
}

// ExitCode returns the instance's exit code, valid once State is Terminated.
func (i *Instance) ExitCode() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.exitCode
}

// Start launches sc's command under the user/group named in sc.Permissions,
// substituting i.Args into the command template, and begins reaping it in
// the background. onExit, if non-nil, is called once the process has been
// reaped.
func (i *Instance) Start(sc *ServiceConfig, onExit func(*Instance)) error {
	name, argv := TemplateCommand(sc.Service.Command, i.Args)
	if name == "" {
		return fmt.Errorf("supervisor: %s: empty command after templating", sc.Name)
	}

	cred, err := resolveCredential(sc.Permissions)
	if err != nil {
		return fmt.Errorf("supervisor: %s: %w", sc.Name, err)
	}

	cmd := exec.Command(name, argv...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Credential: cred,
		Setpgid:    true,
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervisor: %s: start: %w", sc.Name, err)
	}

	i.mu.Lock()
	i.cmd = cmd
	i.pid = cmd.Process.Pid
	i.state = Running
	i.mu.Unlock()

	go i.reap(onExit)

	return nil
}

// reap blocks on the child's exit, then records its final state. An
// *exec.ExitError gives the recorded exit code; any other Wait error is
// recorded as 127, the shell's "command not found" code. A command that
// cannot be executed at all never reaches here: cmd.Start reports it.
func (i *Instance) reap(onExit func(*Instance)) {
	err := i.cmd.Wait()

	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = 127
		}
	}

	i.mu.Lock()
	i.exitCode = code
	i.state = Terminated
	i.mu.Unlock()

	if onExit != nil {
		onExit(i)
	}
}

// resolveCredential looks up perm's user and group in the system account
// databases and returns the syscall.Credential qinit needs to drop
// privileges to them before exec.
func resolveCredential(perm Permissions) (*syscall.Credential, error) {
	u, ok, err := auth.LookupUser(perm.User)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("unknown user %q", perm.User)
	}

	gid := u.GID
	if perm.Group != "" {
		g, ok, err := auth.LookupGroup(perm.Group)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("unknown group %q", perm.Group)
		}
		gid = g.GID
	}

	return &syscall.Credential{Uid: u.UID, Gid: gid}, nil
}

// instanceKey uniquely names an instance within a supervisor run: the
// service name plus a stable encoding of its resolved arguments, so the same
// service started twice with different arguments is tracked separately.
func instanceKey(name string, args map[string]string) string {
	key := name
	for _, k := range sortedKeys(args) {
		key += "/" + k + "=" + strconv.Quote(args[k])
	}
	return key
}
