// Package conn implements one socket's session state: the correlation-ID
// in-flight table and the read/write loop driving internal/iproto's frame
// reader and request/response codec.
package conn

import (
	"context"
	"fmt"
	"sync"

	"github.com/mickamy/go-tarantool/internal/iproto"
)

// Result is what a pending waiter is completed with: either a parsed
// response or a terminal error (connection-lost, protocol desync).
type Result struct {
	Response *iproto.Response
	Err      error
}

// Pending is the completion handle registered for one in-flight request.
// Exactly one of Complete or Cancel is ever called on a given Pending.
type Pending struct {
	ch     chan Result
	cancel func()
}

// Recv blocks until the request this Pending was registered for completes.
func (p *Pending) Recv() Result {
	return <-p.ch
}

// RecvContext waits for completion or ctx cancellation, whichever comes
// first. On ctx cancellation it removes this Pending's in-flight entry (a
// later reply is then silently discarded by the dispatcher) and returns
// ctx.Err() as Result.Err.
func (p *Pending) RecvContext(ctx context.Context) Result {
	select {
	case res := <-p.ch:
		return res
	case <-ctx.Done():
		if p.cancel != nil {
			p.cancel()
		}
		return Result{Err: ctx.Err()}
	}
}

// InFlight is the per-session correlation-ID table: it allocates unique
// non-zero 32-bit IDs, holds one pending completion per ID, and keeps a
// separate FIFO lane for PING replies (which always carry id=0).
type InFlight struct {
	mu          sync.Mutex
	next        uint32
	table       map[uint32]*Pending
	pingLane    []*Pending
	maxInFlight int
	closed      bool
}

// NewInFlight creates an in-flight table. maxInFlight caps the number of
// simultaneously registered non-PING waiters; 0 means unbounded.
func NewInFlight(maxInFlight int) *InFlight {
	return &InFlight{
		next:        1,
		table:       make(map[uint32]*Pending),
		maxInFlight: maxInFlight,
	}
}

// Allocate reserves the next free non-zero correlation ID. The counter is
// monotone modulo 2^32, wrapping past 1 (never 0), and skips any ID
// currently occupied.
func (f *InFlight) Allocate() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.maxInFlight > 0 && len(f.table) >= f.maxInFlight {
		return 0, fmt.Errorf("conn: in-flight table: backlog of %d requests exceeds capacity %d", len(f.table), f.maxInFlight)
	}

	for {
		id := f.next
		f.next++
		if f.next == 0 {
			f.next = 1
		}
		if id == 0 {
			continue
		}
		if _, occupied := f.table[id]; !occupied {
			return id, nil
		}
	}
}

// Register records a pending completion for id before the request is
// written. Callers must allocate, register, then write, in that order: a
// reply may arrive before the writer call returns.
func (f *InFlight) Register(id uint32) (*Pending, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, fmt.Errorf("conn: in-flight table: register after teardown")
	}
	p := &Pending{ch: make(chan Result, 1)}
	p.cancel = func() { f.Cancel(id) }
	f.table[id] = p
	return p, nil
}

// RegisterPing appends a waiter to the PING FIFO lane.
func (f *InFlight) RegisterPing() (*Pending, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, fmt.Errorf("conn: in-flight table: register ping after teardown")
	}
	p := &Pending{ch: make(chan Result, 1)}
	p.cancel = func() { f.cancelPing(p) }
	f.pingLane = append(f.pingLane, p)
	return p, nil
}

// Complete routes an inbound (header, response) to the waiter registered
// for requestID. id==0 completes the head of the PING lane. It reports
// false if no matching waiter exists — the caller (the session's read
// loop) must treat that as a protocol desync and drop the connection,
// mirroring the reference client's check_id behavior.
func (f *InFlight) Complete(requestID uint32, resp *iproto.Response) bool {
	f.mu.Lock()
	if requestID == 0 {
		if len(f.pingLane) == 0 {
			f.mu.Unlock()
			return false
		}
		p := f.pingLane[0]
		f.pingLane = f.pingLane[1:]
		f.mu.Unlock()
		p.ch <- Result{Response: resp}
		return true
	}

	p, ok := f.table[requestID]
	if !ok {
		f.mu.Unlock()
		return false
	}
	delete(f.table, requestID)
	f.mu.Unlock()
	p.ch <- Result{Response: resp}
	return true
}

// Cancel removes id's entry without delivering a completion. If the reply
// later arrives, Complete returns false for it and the dispatcher discards
// the packet. Called both for a request-build failure and, via a Pending's
// RecvContext, for caller-driven ctx cancellation.
func (f *InFlight) Cancel(id uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.table, id)
}

// cancelPing removes p from the PING FIFO lane without delivering a
// completion, for a cancelled PING waiter sitting anywhere in the lane.
func (f *InFlight) cancelPing(p *Pending) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, q := range f.pingLane {
		if q == p {
			f.pingLane = append(f.pingLane[:i], f.pingLane[i+1:]...)
			return
		}
	}
}

// Broadcast completes every pending waiter — keyed entries and the PING
// lane alike, in arbitrary order — with err, and marks the table closed so
// no further registration succeeds. Used on session teardown.
func (f *InFlight) Broadcast(err error) {
	f.mu.Lock()
	f.closed = true
	waiters := make([]*Pending, 0, len(f.table)+len(f.pingLane))
	for _, p := range f.table {
		waiters = append(waiters, p)
	}
	waiters = append(waiters, f.pingLane...)
	f.table = make(map[uint32]*Pending)
	f.pingLane = nil
	f.mu.Unlock()

	for _, p := range waiters {
		p.ch <- Result{Err: err}
	}
}
