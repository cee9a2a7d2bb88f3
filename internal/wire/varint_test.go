package wire_test

import (
	"testing"

	"github.com/mickamy/go-tarantool/internal/wire"
)

func TestPackVarintSmallValues(t *testing.T) {
	cases := []struct {
		n    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
	}
	for _, c := range cases {
		got, err := wire.PackVarint(c.n)
		if err != nil {
			t.Fatalf("PackVarint(%d): unexpected error: %v", c.n, err)
		}
		if string(got) != string(c.want) {
			t.Errorf("PackVarint(%d) = %x, want %x", c.n, got, c.want)
		}
	}
}

func TestPackVarintMultiByte(t *testing.T) {
	// 300 = 0b1_0010_1100 -> groups of 7 bits MSB first: 0000010 0101100
	got, err := wire.PackVarint(300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x82, 0x2c}
	if string(got) != string(want) {
		t.Errorf("PackVarint(300) = %x, want %x", got, want)
	}
}

func TestPackVarintOverflow(t *testing.T) {
	_, err := wire.PackVarint(1 << 35)
	if err == nil {
		t.Fatal("expected overflow error for 2^35")
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 2, 126, 127, 128, 129,
		1<<14 - 1, 1 << 14, 1<<21 - 1, 1 << 21,
		1<<28 - 1, 1 << 28, 1<<35 - 1,
	}
	for _, n := range values {
		packed, err := wire.PackVarint(n)
		if err != nil {
			t.Fatalf("PackVarint(%d): %v", n, err)
		}
		got, offset, err := wire.UnpackVarint(packed, 0)
		if err != nil {
			t.Fatalf("UnpackVarint(pack(%d)): %v", n, err)
		}
		if got != n {
			t.Errorf("round trip %d: got %d", n, got)
		}
		if offset != len(packed) {
			t.Errorf("round trip %d: offset %d, want %d", n, offset, len(packed))
		}
	}
}

func TestUnpackVarintTruncated(t *testing.T) {
	if _, _, err := wire.UnpackVarint([]byte{0x82}, 0); err == nil {
		t.Fatal("expected error for truncated continuation byte")
	}
	if _, _, err := wire.UnpackVarint(nil, 0); err == nil {
		t.Fatal("expected error for empty buffer")
	}
}

func TestPackU32PackU64RoundTrip(t *testing.T) {
	b32 := wire.PackU32(0xdeadbeef)
	got32, err := wire.UnpackU32(b32, 0)
	if err != nil || got32 != 0xdeadbeef {
		t.Errorf("u32 round trip: got %x, err %v", got32, err)
	}

	b64 := wire.PackU64(0x0102030405060708)
	got64, err := wire.UnpackU64(b64, 0)
	if err != nil || got64 != 0x0102030405060708 {
		t.Errorf("u64 round trip: got %x, err %v", got64, err)
	}
}
