package iproto_test

import (
	"testing"

	"github.com/mickamy/go-tarantool/internal/iproto"
)

func frameBytes(t *testing.T, bodyLen int) []byte {
	t.Helper()
	h := iproto.PackHeader(iproto.Header{Op: iproto.OpPing, BodyLength: uint32(bodyLen), RequestID: 1})
	body := make([]byte, bodyLen)
	for i := range body {
		body[i] = byte(i)
	}
	return append(h, body...)
}

func TestFrameReaderSingleRead(t *testing.T) {
	r := iproto.NewReader(16384)
	frames, err := r.Feed(frameBytes(t, 5))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if len(frames[0].Body) != 5 {
		t.Errorf("body length = %d, want 5", len(frames[0].Body))
	}
}

func TestFrameReaderMultipleFramesOneRead(t *testing.T) {
	r := iproto.NewReader(16384)
	data := append(frameBytes(t, 3), frameBytes(t, 7)...)
	frames, err := r.Feed(data)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if len(frames[0].Body) != 3 || len(frames[1].Body) != 7 {
		t.Errorf("unexpected body lengths: %d, %d", len(frames[0].Body), len(frames[1].Body))
	}
}

func TestFrameReaderFrameSpansManyReads(t *testing.T) {
	r := iproto.NewReader(16384)
	full := frameBytes(t, 10)

	frames, err := r.Feed(full[:5])
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("got %d frames before header complete, want 0", len(frames))
	}

	frames, err = r.Feed(full[5:12]) // completes header, partial body
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("got %d frames before body complete, want 0", len(frames))
	}

	frames, err = r.Feed(full[12:])
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if len(frames[0].Body) != 10 {
		t.Errorf("body length = %d, want 10", len(frames[0].Body))
	}
}

func TestFrameReaderBoundedFraming(t *testing.T) {
	r := iproto.NewReader(16)
	frames, err := r.Feed(frameBytes(t, 16))
	if err != nil {
		t.Fatalf("Feed with body == max_body should succeed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}

	r2 := iproto.NewReader(16)
	_, err = r2.Feed(frameBytes(t, 17))
	if err == nil {
		t.Fatal("expected oversized-frame error for body_length > max_body")
	}
	if !r2.Dead() {
		t.Error("reader should be dead after an oversized frame")
	}
}

func TestFrameReaderDeadAfterError(t *testing.T) {
	r := iproto.NewReader(4)
	if _, err := r.Feed(frameBytes(t, 5)); err == nil {
		t.Fatal("expected error")
	}
	if _, err := r.Feed([]byte{1}); err == nil {
		t.Fatal("expected error when feeding a dead reader")
	}
}
