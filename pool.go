package tarantool

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mickamy/go-tarantool/internal/conn"
)

// Event is a diagnostic notification emitted whenever a session changes
// lifecycle state; Watch subscribes to the stream so callers (the CLI
// tools' pool monitor, or an operator's own logging) can observe pool
// health without the library itself calling log.
type Event struct {
	SessionID uuid.UUID
	State     conn.State
	Err       error
	Time      time.Time
}

// Pool maintains N parallel sessions and dispatches callers to an idle one
// via a FIFO ready queue, reconnecting dropped sessions with capped
// exponential backoff.
type Pool struct {
	cfg Config

	ready chan *conn.Session

	mu       sync.Mutex
	sessions map[*conn.Session]struct{}
	closing  bool
	drained  chan struct{}

	firstReady     chan struct{}
	firstReadyOnce sync.Once

	subsMu sync.Mutex
	subs   []chan Event

	dialCtx    context.Context
	cancelDial context.CancelFunc
	slotsDone  sync.WaitGroup

	deadSlots int
	allDead   chan struct{}
}

// NewPool opens cfg.PoolSize sessions, each maintained by its own
// reconnect-supervised slot. It returns immediately; use Acquire (directly,
// or through a Handler) to wait for a ready session.
func NewPool(cfg Config) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:        cfg,
		ready:      make(chan *conn.Session, cfg.PoolSize),
		sessions:   make(map[*conn.Session]struct{}),
		drained:    make(chan struct{}),
		firstReady: make(chan struct{}),
		dialCtx:    ctx,
		cancelDial: cancel,
		allDead:    make(chan struct{}),
	}
	for i := 0; i < cfg.PoolSize; i++ {
		p.slotsDone.Add(1)
		go p.runSlot()
	}
	return p
}

// runSlot is one pool slot's lifetime: dial, register, run until
// disconnected, then reconnect with backoff (if configured) or exit.
func (p *Pool) runSlot() {
	defer p.slotsDone.Done()
	attempt := 0
	for {
		p.mu.Lock()
		closing := p.closing
		p.mu.Unlock()
		if closing {
			return
		}

		dialer := net.Dialer{}
		nc, err := dialer.DialContext(p.dialCtx, p.cfg.network(), p.cfg.address())
		if err != nil {
			p.emit(Event{Err: fmt.Errorf("tarantool: dial %s: %w", p.cfg.address(), err), Time: time.Now()})
			if p.cfg.DisableReconnect {
				p.markSlotDead()
				return
			}
			attempt++
			if !p.sleepBackoff(attempt) {
				return
			}
			continue
		}
		attempt = 0

		s := conn.NewSession(nc, conn.Options{
			MaxBodySize: p.cfg.MaxBodySize,
			MaxInFlight: p.cfg.MaxInFlight,
			IdleTimeout: p.cfg.IdleTimeout,
			OnStateChange: func(sess *conn.Session, st conn.State, cause error) {
				p.onStateChange(sess, st, cause)
			},
		})
		p.registerSession(s)
		go s.Run()
		<-s.Done()
		p.unregisterSession(s)

		p.mu.Lock()
		closing = p.closing
		p.mu.Unlock()
		if closing {
			return
		}
		if p.cfg.DisableReconnect {
			p.markSlotDead()
			return
		}
	}
}

// markSlotDead records that one slot has permanently given up dialing (no
// more reconnect attempts forthcoming for it). Once every slot has done so,
// the pool can never produce another session; allDead is closed to wake any
// Acquire call blocked waiting for one. A slot's own session is always
// unregistered before it reaches here, so sessions is already empty by the
// time allDead closes.
func (p *Pool) markSlotDead() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deadSlots++
	if p.deadSlots == p.cfg.PoolSize {
		close(p.allDead)
	}
}

// sleepBackoff waits min(1s*2^(attempt-1), MaxReconnectDelay), returning false
// if the pool was closed while waiting.
func (p *Pool) sleepBackoff(attempt int) bool {
	delay := time.Second
	for i := 1; i < attempt && delay < p.cfg.MaxReconnectDelay; i++ {
		delay *= 2
	}
	if delay > p.cfg.MaxReconnectDelay {
		delay = p.cfg.MaxReconnectDelay
	}
	select {
	case <-time.After(delay):
		return true
	case <-p.dialCtx.Done():
		return false
	}
}

func (p *Pool) registerSession(s *conn.Session) {
	p.mu.Lock()
	p.sessions[s] = struct{}{}
	p.mu.Unlock()
}

func (p *Pool) unregisterSession(s *conn.Session) {
	p.mu.Lock()
	delete(p.sessions, s)
	empty := len(p.sessions) == 0
	closing := p.closing
	p.mu.Unlock()
	if closing && empty {
		select {
		case <-p.drained:
		default:
			close(p.drained)
		}
	}
}

func (p *Pool) onStateChange(s *conn.Session, st conn.State, cause error) {
	p.emit(Event{SessionID: s.ID, State: st, Err: cause, Time: time.Now()})
	if st == conn.StateConnected {
		p.firstReadyOnce.Do(func() { close(p.firstReady) })
		select {
		case p.ready <- s:
		default:
			// Ready queue is sized to PoolSize and a session is only ever
			// enqueued once while connected; a full channel here would
			// indicate a double-enqueue bug rather than real backpressure.
		}
	}
}

func (p *Pool) emit(ev Event) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Watch subscribes to the pool's diagnostic event stream. The returned
// channel is buffered; slow consumers drop events rather than blocking the
// pool.
func (p *Pool) Watch() <-chan Event {
	ch := make(chan Event, 32)
	p.subsMu.Lock()
	p.subs = append(p.subs, ch)
	p.subsMu.Unlock()
	return ch
}

// WaitReady blocks until at least one session has become ready, or ctx is
// done.
func (p *Pool) WaitReady(ctx context.Context) error {
	select {
	case <-p.firstReady:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tarantool: wait ready: %w", ctx.Err())
	}
}

// Acquire waits for an idle, still-connected session. Sessions pulled from
// the ready queue that disconnected while waiting are discarded and the
// wait retried, per the pool's dead-session-discard rule. With reconnect
// disabled, a pool that has lost every session (or, for a lazily-connected
// pool, never acquired one to begin with) is permanently diminished: once
// every slot has given up dialing, Acquire fails fast with a not-connected
// usage error instead of blocking forever waiting for a session that will
// never appear. A slot still mid-dial does not trip this — only allDead,
// closed once every slot has exhausted its attempts, does.
func (p *Pool) Acquire(ctx context.Context) (*conn.Session, error) {
	for {
		p.mu.Lock()
		closing := p.closing
		p.mu.Unlock()
		if closing {
			return nil, newError(KindConnection, "pool is closing", nil)
		}

		select {
		case s := <-p.ready:
			if s.State() != conn.StateConnected {
				continue // dead session pulled from the queue: discard, retry
			}
			return s, nil
		case <-p.allDead:
			return nil, newError(KindUsage, "not connected: pool has no sessions and reconnect is disabled", nil)
		case <-ctx.Done():
			return nil, newError(KindConnection, "acquire: "+ctx.Err().Error(), ctx.Err())
		}
	}
}

// Release returns s to the ready queue if it is still connected; a
// disconnected session is simply dropped (its slot's reconnect loop will
// supply a replacement).
func (p *Pool) Release(s *conn.Session) {
	if s.State() != conn.StateConnected {
		return
	}
	select {
	case p.ready <- s:
	default:
	}
}

// Size reports the number of currently registered (connecting or
// connected) sessions.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Disconnect stops further reconnects, closes every session, and resolves
// once the pool is fully drained (every session unregistered) or ctx is
// done.
func (p *Pool) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return nil
	}
	p.closing = true
	empty := len(p.sessions) == 0
	sessions := make([]*conn.Session, 0, len(p.sessions))
	for s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.mu.Unlock()

	p.cancelDial()
	if empty {
		select {
		case <-p.drained:
		default:
			close(p.drained)
		}
	}
	for _, s := range sessions {
		_ = s.Close()
	}

	select {
	case <-p.drained:
		p.slotsDone.Wait()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tarantool: disconnect: %w", ctx.Err())
	}
}

// String renders "<tarantool: host:port, N connection(s)>" or
// "<tarantool: not connected>", mirroring the reference client's handler
// representation.
func (p *Pool) String() string {
	n := p.Size()
	if n == 0 {
		return "<tarantool: not connected>"
	}
	return fmt.Sprintf("<tarantool: %s, %d connection(s)>", p.cfg.address(), n)
}
