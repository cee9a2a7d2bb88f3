package conn_test

import (
	"errors"
	"testing"

	"github.com/mickamy/go-tarantool/internal/conn"
	"github.com/mickamy/go-tarantool/internal/iproto"
)

func TestInFlightAllocateNeverZero(t *testing.T) {
	f := conn.NewInFlight(0)
	for i := 0; i < 1000; i++ {
		id, err := f.Allocate()
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		if id == 0 {
			t.Fatal("Allocate returned reserved id 0")
		}
		if _, err := f.Register(id); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
}

func TestInFlightAllocateUniqueWhileOccupied(t *testing.T) {
	f := conn.NewInFlight(0)
	seen := make(map[uint32]bool)
	for i := 0; i < 200; i++ {
		id, err := f.Allocate()
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		if seen[id] {
			t.Fatalf("id %d allocated twice while still occupied", id)
		}
		seen[id] = true
		if _, err := f.Register(id); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
}

func TestInFlightCompleteDeliversToRegisteredWaiter(t *testing.T) {
	f := conn.NewInFlight(0)
	id, err := f.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	p, err := f.Register(id)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	resp := &iproto.Response{RequestID: id}
	if ok := f.Complete(id, resp); !ok {
		t.Fatal("Complete returned false for a registered id")
	}
	result := p.Recv()
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Response != resp {
		t.Error("delivered response does not match")
	}
}

func TestInFlightCompleteUnknownIDReturnsFalse(t *testing.T) {
	f := conn.NewInFlight(0)
	if f.Complete(42, &iproto.Response{}) {
		t.Fatal("Complete should return false for an id with no waiter")
	}
}

func TestInFlightPingLaneFIFO(t *testing.T) {
	f := conn.NewInFlight(0)
	p1, err := f.RegisterPing()
	if err != nil {
		t.Fatalf("RegisterPing: %v", err)
	}
	p2, err := f.RegisterPing()
	if err != nil {
		t.Fatalf("RegisterPing: %v", err)
	}

	first := &iproto.Response{}
	second := &iproto.Response{}
	if !f.Complete(0, first) {
		t.Fatal("Complete(0, ...) should deliver to the head of the ping lane")
	}
	if !f.Complete(0, second) {
		t.Fatal("Complete(0, ...) should deliver to the new head of the ping lane")
	}

	if p1.Recv().Response != first {
		t.Error("first ping waiter did not get the first reply")
	}
	if p2.Recv().Response != second {
		t.Error("second ping waiter did not get the second reply")
	}
}

func TestInFlightCompleteZeroWithEmptyLaneReturnsFalse(t *testing.T) {
	f := conn.NewInFlight(0)
	if f.Complete(0, &iproto.Response{}) {
		t.Fatal("Complete(0, ...) with an empty ping lane must report desync (false)")
	}
}

func TestInFlightCancelPreventsDelivery(t *testing.T) {
	f := conn.NewInFlight(0)
	id, err := f.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := f.Register(id); err != nil {
		t.Fatalf("Register: %v", err)
	}
	f.Cancel(id)
	if f.Complete(id, &iproto.Response{}) {
		t.Fatal("Complete should return false after Cancel")
	}
}

func TestInFlightBroadcastCompletesAllWaiters(t *testing.T) {
	f := conn.NewInFlight(0)
	id1, _ := f.Allocate()
	p1, err := f.Register(id1)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	id2, _ := f.Allocate()
	p2, err := f.Register(id2)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	ping, err := f.RegisterPing()
	if err != nil {
		t.Fatalf("RegisterPing: %v", err)
	}

	lost := errors.New("connection lost")
	f.Broadcast(lost)

	for _, p := range []*conn.Pending{p1, p2, ping} {
		result := p.Recv()
		if !errors.Is(result.Err, lost) {
			t.Errorf("waiter did not receive the broadcast error, got %v", result.Err)
		}
	}
}

func TestInFlightAllocateWrapsPastMaxSkippingZero(t *testing.T) {
	f := conn.NewInFlight(0)
	f.SetNextForTest(0xFFFFFFFE)

	id1, err := f.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if id1 != 0xFFFFFFFE {
		t.Fatalf("id1 = %#x, want 0xFFFFFFFE", id1)
	}
	if _, err := f.Register(id1); err != nil {
		t.Fatalf("Register: %v", err)
	}

	id2, err := f.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if id2 != 0xFFFFFFFF {
		t.Fatalf("id2 = %#x, want 0xFFFFFFFF (only 0 is reserved)", id2)
	}
	if _, err := f.Register(id2); err != nil {
		t.Fatalf("Register: %v", err)
	}

	id3, err := f.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if id3 != 1 {
		t.Fatalf("id3 = %#x, want the counter to wrap past 0xFFFFFFFF straight to 1, skipping the reserved 0", id3)
	}
}

func TestInFlightAllocateWrapSkipsOccupiedSlot(t *testing.T) {
	f := conn.NewInFlight(0)
	f.SetNextForTest(0xFFFFFFFF)

	id1, err := f.Allocate() // wraps to 1 on the next call
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := f.Register(id1); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Occupy id 1 before the wrap reaches it, simulating a long-lived
	// waiter that survived a full counter revolution.
	if _, err := f.Register(1); err != nil {
		t.Fatalf("Register: %v", err)
	}

	id2, err := f.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if id2 != 2 {
		t.Fatalf("id2 = %#x, want the wrap to skip occupied id 1 and land on 2", id2)
	}
}

func TestInFlightBacklogCapacity(t *testing.T) {
	f := conn.NewInFlight(1)
	id, err := f.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := f.Register(id); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := f.Allocate(); err == nil {
		t.Fatal("expected capacity error once backlog cap is reached")
	}
}
