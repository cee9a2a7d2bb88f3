package conn_test

import (
	"net"
	"testing"
	"time"

	"github.com/mickamy/go-tarantool/internal/conn"
	"github.com/mickamy/go-tarantool/internal/iproto"
)

func newSessionPair(t *testing.T) (*conn.Session, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	s := conn.NewSession(client, conn.Options{MaxBodySize: 16384})
	go s.Run()
	t.Cleanup(func() { _ = s.Close() })
	return s, server
}

func TestSessionSendReceivesResponse(t *testing.T) {
	s, server := newSessionPair(t)
	defer server.Close()

	go func() {
		buf := make([]byte, 4096)
		n, err := server.Read(buf)
		if err != nil {
			return
		}
		h, err := iproto.ParseHeader(buf[:n])
		if err != nil {
			return
		}
		body := append([]byte{}, 0, 0, 0, 0) // return_code = 0
		body = append(body, 0, 0, 0, 0)       // rowcount = 0
		reply := iproto.PackHeader(iproto.Header{Op: h.Op, BodyLength: uint32(len(body)), RequestID: h.RequestID})
		reply = append(reply, body...)
		_, _ = server.Write(reply)
	}()

	pending, err := s.Send(func(id uint32) ([]byte, error) {
		return iproto.Select(id, 0, 0, 0, 0, nil)
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case result := <-waitFor(pending):
		if result.Err != nil {
			t.Fatalf("unexpected error: %v", result.Err)
		}
		if result.Response.Status != iproto.StatusOK {
			t.Errorf("status = %v, want OK", result.Response.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for response")
	}
}

func waitFor(p *conn.Pending) <-chan conn.Result {
	ch := make(chan conn.Result, 1)
	go func() { ch <- p.Recv() }()
	return ch
}

func TestSessionDisconnectBroadcastsConnectionLost(t *testing.T) {
	s, server := newSessionPair(t)

	// net.Pipe writes block until the peer reads, so drain the request.
	go func() {
		buf := make([]byte, 4096)
		_, _ = server.Read(buf)
	}()

	pending, err := s.Send(func(id uint32) ([]byte, error) {
		return iproto.Select(id, 0, 0, 0, 0, nil)
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	_ = server.Close() // simulate connection loss

	select {
	case result := <-waitFor(pending):
		if result.Err == nil {
			t.Fatal("expected connection-lost error after disconnect")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection-lost completion")
	}

	if s.State() != conn.StateDisconnected {
		t.Errorf("state = %v, want disconnected", s.State())
	}
}

func TestSessionReplyForUnknownIDTearsDownConnection(t *testing.T) {
	s, server := newSessionPair(t)
	defer server.Close()

	go func() {
		buf := make([]byte, 4096)
		_, _ = server.Read(buf)
		// Reply with a bogus request id that was never registered.
		body := []byte{0, 0, 0, 0, 0, 0, 0, 0}
		reply := iproto.PackHeader(iproto.Header{Op: iproto.OpSelect, BodyLength: uint32(len(body)), RequestID: 0xdeadbeef})
		reply = append(reply, body...)
		_, _ = server.Write(reply)
	}()

	pending, err := s.Send(func(id uint32) ([]byte, error) {
		return iproto.Select(id, 0, 0, 0, 0, nil)
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case result := <-waitFor(pending):
		if result.Err == nil {
			t.Fatal("expected the original waiter to fail once the session tears down on desync")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for teardown to broadcast")
	}
}
