package conn

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mickamy/go-tarantool/internal/iproto"
)

// State is where a Session sits in its lifecycle. A Session starts in
// Connecting, enters Connected when Run starts, and enters Disconnected on
// teardown; StateDraining and StateClosed are defined but no Session ever
// enters them. Only Connected sessions are enqueued as ready by the pool.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session owns one socket: it drives the frame reader, writes serialized
// requests, applies an idle/read timeout, and on disconnect fails every
// outstanding waiter with a uniform connection-lost error.
type Session struct {
	// ID stamps every session for diagnostic correlation across reconnects.
	ID uuid.UUID

	conn        net.Conn
	reader      *iproto.Reader
	inflight    *InFlight
	idleTimeout time.Duration

	writeMu sync.Mutex

	mu    sync.Mutex
	state State

	onState func(*Session, State, error)

	closeOnce sync.Once
	done      chan struct{}
}

// Options configures a Session at construction time.
type Options struct {
	MaxBodySize uint32
	MaxInFlight int
	IdleTimeout time.Duration
	// OnStateChange is invoked whenever the session transitions state,
	// letting the pool track readiness and trigger reconnects.
	OnStateChange func(*Session, State, error)
}

// NewSession wraps an established socket. The caller must call Run in its
// own goroutine to start the read loop.
func NewSession(c net.Conn, opts Options) *Session {
	maxBody := opts.MaxBodySize
	if maxBody == 0 {
		maxBody = 16384
	}
	s := &Session{
		ID:          uuid.New(),
		conn:        c,
		reader:      iproto.NewReader(maxBody),
		inflight:    NewInFlight(opts.MaxInFlight),
		idleTimeout: opts.IdleTimeout,
		onState:     opts.OnStateChange,
		state:       StateConnecting,
		done:        make(chan struct{}),
	}
	return s
}

func (s *Session) setState(st State, err error) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	if s.onState != nil {
		s.onState(s, st, err)
	}
}

// State reports the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run drives the read loop until the connection closes or fails; it marks
// the session Connected once started and always ends by closing the socket
// and broadcasting a connection-lost error to every in-flight waiter.
func (s *Session) Run() {
	s.setState(StateConnected, nil)

	buf := make([]byte, 32*1024)
	for {
		if s.idleTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		n, err := s.conn.Read(buf)
		if n > 0 {
			frames, ferr := s.reader.Feed(buf[:n])
			for _, fr := range frames {
				s.dispatch(fr)
			}
			if ferr != nil {
				s.teardown(fmt.Errorf("conn: session: %w", ferr))
				return
			}
		}
		if err != nil {
			s.teardown(fmt.Errorf("conn: session: read: %w", err))
			return
		}
	}
}

func (s *Session) dispatch(fr iproto.Frame) {
	resp, err := iproto.ParseResponse(fr.Header, fr.Body, nil, "")
	if err != nil {
		s.teardown(fmt.Errorf("conn: session: parse response: %w", err))
		return
	}
	if !s.inflight.Complete(fr.Header.RequestID, resp) {
		s.teardown(fmt.Errorf("conn: session: reply for unknown request id %d: protocol desync", fr.Header.RequestID))
	}
}

// teardown marks the session disconnected, closes the socket, and fails
// every pending waiter exactly once.
func (s *Session) teardown(cause error) {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
		s.setState(StateDisconnected, cause)
		lost := fmt.Errorf("conn: connection lost: %w", cause)
		s.inflight.Broadcast(lost)
		close(s.done)
	})
}

// BuildError marks a failure that happened while serializing a request
// (e.g. an unknown update op, an oversized field) rather than while
// writing to the socket, so callers can tell a usage error apart from a
// transport error.
type BuildError struct{ Err error }

func (e *BuildError) Error() string { return fmt.Sprintf("conn: build request: %v", e.Err) }
func (e *BuildError) Unwrap() error { return e.Err }

// Send allocates a correlation ID, registers a waiter for it, builds the
// frame via build(id), and writes it. Order matters: allocate, register,
// serialize, write — a reply may arrive before the write call returns.
func (s *Session) Send(build func(id uint32) ([]byte, error)) (*Pending, error) {
	id, err := s.inflight.Allocate()
	if err != nil {
		return nil, fmt.Errorf("conn: session: %w", err)
	}
	pending, err := s.inflight.Register(id)
	if err != nil {
		return nil, fmt.Errorf("conn: session: %w", err)
	}
	frame, err := build(id)
	if err != nil {
		s.inflight.Cancel(id)
		return nil, &BuildError{Err: err}
	}
	if err := s.writeFrame(frame); err != nil {
		s.teardown(err)
		return nil, fmt.Errorf("conn: session: %w", err)
	}
	return pending, nil
}

// SendPing writes a PING frame (request_id is always 0) and registers a
// waiter on the dedicated PING FIFO lane.
func (s *Session) SendPing(frame []byte) (*Pending, error) {
	pending, err := s.inflight.RegisterPing()
	if err != nil {
		return nil, fmt.Errorf("conn: session: %w", err)
	}
	if err := s.writeFrame(frame); err != nil {
		s.teardown(err)
		return nil, fmt.Errorf("conn: session: %w", err)
	}
	return pending, nil
}

func (s *Session) writeFrame(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write(frame)
	if err != nil {
		return fmt.Errorf("conn: write: %w", err)
	}
	return nil
}

// Close closes the underlying socket and broadcasts connection-lost to any
// waiters still pending.
func (s *Session) Close() error {
	s.teardown(fmt.Errorf("conn: session closed"))
	return nil
}

// Done is closed once the read loop has exited and teardown has completed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
