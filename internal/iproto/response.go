package iproto

import (
	"fmt"
	"strings"

	"github.com/mickamy/go-tarantool/internal/wire"
)

// CompletionStatus is the low byte of return_code.
type CompletionStatus uint8

const (
	StatusOK       CompletionStatus = 0
	StatusTryAgain CompletionStatus = 1
	StatusError    CompletionStatus = 2
)

func (s CompletionStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTryAgain:
		return "try_again"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("CompletionStatus(%d)", uint8(s))
	}
}

// Response is a parsed reply body: the split return_code, rowcount, and the
// decoded tuple sequence (empty for affected-count-only replies).
type Response struct {
	Op           Op
	RequestID    uint32
	ReturnCode   uint32
	Status       CompletionStatus
	AppCode      uint32
	RowCount     uint32
	Tuples       []wire.Tuple
	ErrorMessage string
}

// ParseResponse decodes a response body per header h. fieldTypes controls
// how raw tuple fields are cast back to semantic Values (see
// wire.CastTuple); charset is currently restricted to UTF-8 (the only
// encoding the reference protocol's text fields use in practice).
func ParseResponse(h Header, body []byte, fieldTypes []wire.Kind, charset string) (*Response, error) {
	if charset != "" && !strings.EqualFold(charset, "utf-8") {
		return nil, fmt.Errorf("iproto: parse response: unsupported charset %q", charset)
	}
	if h.Op == OpPing {
		return &Response{Op: h.Op, RequestID: h.RequestID, Status: StatusOK}, nil
	}
	if len(body) < 8 {
		return nil, fmt.Errorf("iproto: parse response: body too short: %d bytes, need at least 8", len(body))
	}

	returnCode, err := wire.UnpackU32(body, 0)
	if err != nil {
		return nil, fmt.Errorf("iproto: parse response: return_code: %w", err)
	}
	rowCount, err := wire.UnpackU32(body, 4)
	if err != nil {
		return nil, fmt.Errorf("iproto: parse response: rowcount: %w", err)
	}

	resp := &Response{
		Op:         h.Op,
		RequestID:  h.RequestID,
		ReturnCode: returnCode,
		Status:     CompletionStatus(returnCode & 0xff),
		AppCode:    returnCode >> 8,
		RowCount:   rowCount,
	}

	if resp.Status == StatusError {
		bodyLength := len(body)
		if bodyLength < 5 {
			return nil, fmt.Errorf("iproto: parse response: error body too short: %d bytes", bodyLength)
		}
		resp.ErrorMessage = string(body[4 : bodyLength-1])
		return resp, nil
	}

	if len(body) == 8 {
		return resp, nil
	}

	offset := 8
	resp.Tuples = make([]wire.Tuple, 0, rowCount)
	for i := uint32(0); i < rowCount; i++ {
		tupleSize, err := wire.UnpackU32(body, offset)
		if err != nil {
			return nil, fmt.Errorf("iproto: parse response: tuple %d size: %w", i, err)
		}
		offset += 4

		tupleStart := offset
		raw, next, err := wire.ParseTuple(body, tupleStart)
		if err != nil {
			return nil, fmt.Errorf("iproto: parse response: tuple %d: %w", i, err)
		}
		wantEnd := tupleStart + 4 + int(tupleSize)
		if next != wantEnd {
			return nil, fmt.Errorf("iproto: parse response: tuple %d: declared size %d does not match decoded length", i, tupleSize)
		}
		offset = next

		cast, err := wire.CastTuple(raw, fieldTypes)
		if err != nil {
			return nil, fmt.Errorf("iproto: parse response: tuple %d: %w", i, err)
		}
		resp.Tuples = append(resp.Tuples, cast)
	}

	return resp, nil
}

// String renders a short human-readable summary: "ping ok" for a PING
// reply, "N record(s) <verb>" for a mutation that returned no tuples, and a
// Go-syntax dump of the tuple slice otherwise.
func (r *Response) String() string {
	if r.Op == OpPing {
		return "ping ok"
	}
	if len(r.Tuples) == 0 {
		return fmt.Sprintf("%d record(s) %s", r.RowCount, mutationVerb(r.Op))
	}
	return fmt.Sprintf("%v", r.Tuples)
}

func mutationVerb(op Op) string {
	switch op {
	case OpInsert:
		return "inserted"
	case OpUpdate:
		return "updated"
	case OpDelete:
		return "deleted"
	default:
		return "affected"
	}
}
