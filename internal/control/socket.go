// Package control implements the generic control-socket protocol shared by
// busd and loggerd: a Unix stream listener that reads one
// whitespace-separated "KEY=VALUE ..." header line per connection, dispatches
// on the reserved ACTION key, and hands the rest of the connection to an
// action handler.
package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joeycumines/qsys/internal/logging"
	"github.com/joeycumines/qsys/internal/ratelimit"
)

// abuseRates caps how many malformed headers or unknown actions a single
// peer uid may produce before penalize logs it at error level as having
// exceeded the abuse threshold. Connections are not rejected either way.
var abuseRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 30,
}

// ActionKey is the reserved header token that selects which action to run.
const ActionKey = "ACTION"

// HeaderTimeout bounds how long a connection may take to send its header
// line, capping the cost of a client that connects and never writes
// anything. Section 9's open question (a) resolves in favor of imposing
// this: control sockets are reachable by any local user.
const HeaderTimeout = 5 * time.Second

// Args is the parsed header line: every KEY=VALUE token in the order seen,
// including ACTION itself.
type Args []KV

// KV is a single parsed header token.
type KV struct {
	Key, Value string
}

// Get returns the first value for key, and whether it was present.
func (a Args) Get(key string) (string, bool) {
	for _, kv := range a {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Action is the behavior a control-socket connection runs once its header
// has been parsed and dispatched.
type Action interface {
	// Run executes the action against the connection's buffered reader/
	// writer and the raw connection (for peer-credential access). It owns
	// the connection for the remainder of its lifetime and must close
	// nothing; the caller closes conn once Run returns.
	Run(ctx context.Context, conn net.Conn, r *bufio.Reader, w *bufio.Writer) error
}

// ActionFactory builds an Action from a dispatched action name and its
// header arguments. Returning UnknownAction signals an unrecognized name.
type ActionFactory func(action string, args Args) (Action, error)

// UnknownAction is returned by an ActionFactory when it doesn't recognize
// the requested action.
type UnknownAction struct{ Action string }

func (e *UnknownAction) Error() string { return fmt.Sprintf("control: unknown action %q", e.Action) }

// MalformedHeader is returned when the header line isn't a well-formed
// sequence of KEY=VALUE tokens.
type MalformedHeader struct{ Line string }

func (e *MalformedHeader) Error() string { return fmt.Sprintf("control: malformed header: %q", e.Line) }

// Socket is a Unix-socket control-plane listener.
type Socket struct {
	ln      net.Listener
	factory ActionFactory
	log     *logging.Logger
	abuse   *ratelimit.Limiter
}

// Listen binds a new control socket at path. Any pre-existing socket file at
// path is removed first, matching how a daemon takes ownership of its
// well-known control path on restart.
func Listen(path string, factory ActionFactory, log *logging.Logger) (*Socket, error) {
	_ = removeStaleSocket(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return &Socket{ln: ln, factory: factory, log: log, abuse: ratelimit.NewLimiter(abuseRates)}, nil
}

// Serve accepts connections until ctx is canceled or the listener fails.
// Each connection is handled in its own goroutine; a single connection
// failing never brings down the listener.
func (s *Socket) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handle(ctx, conn)
	}
}

// Addr returns the listener's address.
func (s *Socket) Addr() net.Addr { return s.ln.Addr() }

// Close closes the underlying listener.
func (s *Socket) Close() error { return s.ln.Close() }

func (s *Socket) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(HeaderTimeout)); err != nil {
		s.log.Warn().Err(err).Msg("failed to set header read deadline")
	}

	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		s.log.Warn().Err(err).Msg("failed to read control header")
		return
	}

	// clear the deadline: the action itself owns any further timeouts.
	_ = conn.SetReadDeadline(time.Time{})

	peer := peerCategory(conn)

	args, actionName, err := parseHeader(line)
	if err != nil {
		s.log.Warn().Err(err).Msg("malformed control header")
		s.penalize(peer, "malformed header")
		return
	}

	action, err := s.factory(actionName, args)
	if err != nil {
		var unknown *UnknownAction
		if errors.As(err, &unknown) {
			s.log.Warn().Str("action", actionName).Msg("unknown action")
			s.penalize(peer, "unknown action")
		} else {
			s.log.Warn().Err(err).Str("action", actionName).Msg("failed to build action")
		}
		return
	}

	w := bufio.NewWriter(conn)
	if err := action.Run(ctx, conn, r, w); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn().Err(err).Str("action", actionName).Msg("action failed")
	}
}

// penalize records one malformed-header or unknown-action event against
// peer's abuse budget, escalating to a louder log once the peer crosses the
// threshold in abuseRates. It never closes other connections from the same
// peer; it only makes the misbehavior visible to an operator tailing logs.
func (s *Socket) penalize(peer, reason string) {
	if peer == "" {
		return
	}
	if _, ok := s.abuse.Allow(peer); !ok {
		s.log.Error().Str("peer", peer).Str("reason", reason).Msg("peer exceeded control-socket abuse threshold")
	}
}

func parseHeader(line string) (Args, string, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)

	var args Args
	var action string
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return nil, "", &MalformedHeader{Line: line}
		}
		args = append(args, KV{Key: k, Value: v})
		if k == ActionKey {
			action = v
		}
	}
	return args, action, nil
}

// removeStaleSocket unlinks a leftover socket file from a previous run. If
// something is still listening on path, leave it alone and let the
// subsequent bind fail with "address already in use".
func removeStaleSocket(path string) error {
	conn, err := net.Dial("unix", path)
	if err == nil {
		_ = conn.Close()
		return nil
	}
	return os.Remove(path)
}
