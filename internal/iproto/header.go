// Package iproto implements the request/response framing layer on top of
// internal/wire: the 12-byte header, the six typed request builders, the
// response body parser, and the streaming frame reader.
package iproto

import (
	"fmt"

	"github.com/mickamy/go-tarantool/internal/wire"
)

// Op codes, per the wire format.
const (
	OpInsert Op = 13
	OpSelect Op = 17
	OpUpdate Op = 19
	OpDelete Op = 21
	OpCall   Op = 22
	OpPing   Op = 65280
)

// Op is a request op code.
type Op uint32

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "INSERT"
	case OpSelect:
		return "SELECT"
	case OpUpdate:
		return "UPDATE"
	case OpDelete:
		return "DELETE"
	case OpCall:
		return "CALL"
	case OpPing:
		return "PING"
	default:
		return fmt.Sprintf("Op(%d)", uint32(o))
	}
}

// Request flag bits.
const (
	FlagReturn  uint32 = 0x01
	FlagAdd     uint32 = 0x02
	FlagReplace uint32 = 0x04
)

// HeaderSize is the fixed byte length of every request/response header.
const HeaderSize = 12

// Header is the 12-byte triple prefixing every frame.
type Header struct {
	Op         Op
	BodyLength uint32
	RequestID  uint32
}

// PackHeader emits op, bodyLength and requestID as 12 little-endian bytes.
func PackHeader(h Header) []byte {
	out := make([]byte, 0, HeaderSize)
	out = append(out, wire.PackU32(uint32(h.Op))...)
	out = append(out, wire.PackU32(h.BodyLength)...)
	out = append(out, wire.PackU32(h.RequestID)...)
	return out
}

// ParseHeader decodes a 12-byte header from buf[0:12].
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("iproto: parse header: need %d bytes, have %d", HeaderSize, len(buf))
	}
	op, err := wire.UnpackU32(buf, 0)
	if err != nil {
		return Header{}, fmt.Errorf("iproto: parse header: op: %w", err)
	}
	bodyLen, err := wire.UnpackU32(buf, 4)
	if err != nil {
		return Header{}, fmt.Errorf("iproto: parse header: body_length: %w", err)
	}
	reqID, err := wire.UnpackU32(buf, 8)
	if err != nil {
		return Header{}, fmt.Errorf("iproto: parse header: request_id: %w", err)
	}
	return Header{Op: Op(op), BodyLength: bodyLen, RequestID: reqID}, nil
}
