package iproto

import (
	"fmt"

	"github.com/mickamy/go-tarantool/internal/wire"
)

// UpdateOpCode identifies the mutation a single update operation performs.
type UpdateOpCode uint8

const (
	UpdateAssign UpdateOpCode = 0
	UpdateAdd    UpdateOpCode = 1
	UpdateAnd    UpdateOpCode = 2
	UpdateXor    UpdateOpCode = 3
	UpdateOr     UpdateOpCode = 4
	UpdateSplice UpdateOpCode = 5
	UpdateDelete UpdateOpCode = 6
	UpdateInsert UpdateOpCode = 7
)

// updateOpSymbols maps the symbolic operator names used by callers (and by
// the reference client) to their wire op codes.
var updateOpSymbols = map[string]UpdateOpCode{
	"=":      UpdateAssign,
	"+":      UpdateAdd,
	"&":      UpdateAnd,
	"^":      UpdateXor,
	"|":      UpdateOr,
	"splice": UpdateSplice,
	"#":      UpdateDelete,
	"!":      UpdateInsert,
}

// UpdateOpSymbol resolves a symbolic update operator to its wire code,
// failing before any bytes are emitted if the symbol is unknown.
func UpdateOpSymbol(symbol string) (UpdateOpCode, error) {
	code, ok := updateOpSymbols[symbol]
	if !ok {
		return 0, fmt.Errorf("iproto: unknown update op symbol %q", symbol)
	}
	return code, nil
}

// UpdateOp is a single update operation: assign, arithmetic, bitwise,
// splice, delete or insert-before, applied to one field of a tuple.
type UpdateOp struct {
	FieldNo uint32
	Code    UpdateOpCode
	Arg     wire.Value
}

func packHeaderAndBody(op Op, requestID uint32, body []byte) []byte {
	h := PackHeader(Header{Op: op, BodyLength: uint32(len(body)), RequestID: requestID})
	return append(h, body...)
}

// Ping builds a PING request. Its request id is always 0, per the wire
// format's reserved PING lane.
func Ping() []byte {
	return packHeaderAndBody(OpPing, 0, nil)
}

// Insert builds an INSERT request (also used for the REPLACE variants via
// flags): body = space_no || flags || tuple(args).
func Insert(requestID, spaceNo, flags uint32, args wire.Tuple) ([]byte, error) {
	tb, err := wire.PackTuple(args)
	if err != nil {
		return nil, fmt.Errorf("iproto: build insert: %w", err)
	}
	body := make([]byte, 0, 8+len(tb))
	body = append(body, wire.PackU32(spaceNo)...)
	body = append(body, wire.PackU32(flags)...)
	body = append(body, tb...)
	return packHeaderAndBody(OpInsert, requestID, body), nil
}

// Select builds a SELECT request for a single key. Batched multi-key
// select is out of scope; the trailing key count is always 1.
func Select(requestID, spaceNo, indexNo, offset, limit uint32, key wire.Tuple) ([]byte, error) {
	tb, err := wire.PackTuple(key)
	if err != nil {
		return nil, fmt.Errorf("iproto: build select: %w", err)
	}
	body := make([]byte, 0, 20+len(tb))
	body = append(body, wire.PackU32(spaceNo)...)
	body = append(body, wire.PackU32(indexNo)...)
	body = append(body, wire.PackU32(offset)...)
	body = append(body, wire.PackU32(limit)...)
	body = append(body, wire.PackU32(1)...)
	body = append(body, tb...)
	return packHeaderAndBody(OpSelect, requestID, body), nil
}

// Update builds an UPDATE request: primary key plus a sequence of per-field
// operations.
func Update(requestID, spaceNo, flags uint32, primaryKey wire.Tuple, ops []UpdateOp) ([]byte, error) {
	keyBytes, err := wire.PackTuple(primaryKey)
	if err != nil {
		return nil, fmt.Errorf("iproto: build update: primary key: %w", err)
	}
	body := make([]byte, 0, 8+len(keyBytes)+4+len(ops)*16)
	body = append(body, wire.PackU32(spaceNo)...)
	body = append(body, wire.PackU32(flags)...)
	body = append(body, keyBytes...)
	body = append(body, wire.PackU32(uint32(len(ops)))...)
	for i, op := range ops {
		argBytes, err := wire.PackField(op.Arg)
		if err != nil {
			return nil, fmt.Errorf("iproto: build update: op %d: %w", i, err)
		}
		body = append(body, wire.PackU32(op.FieldNo)...)
		body = append(body, byte(op.Code))
		body = append(body, argBytes...)
	}
	return packHeaderAndBody(OpUpdate, requestID, body), nil
}

// Delete builds a DELETE request: body = space_no || flags || tuple(key).
func Delete(requestID, spaceNo, flags uint32, key wire.Tuple) ([]byte, error) {
	tb, err := wire.PackTuple(key)
	if err != nil {
		return nil, fmt.Errorf("iproto: build delete: %w", err)
	}
	body := make([]byte, 0, 8+len(tb))
	body = append(body, wire.PackU32(spaceNo)...)
	body = append(body, wire.PackU32(flags)...)
	body = append(body, tb...)
	return packHeaderAndBody(OpDelete, requestID, body), nil
}

// Call builds a CALL request: body = flags || field(proc_name) || tuple(args).
func Call(requestID, flags uint32, procName string, args wire.Tuple) ([]byte, error) {
	procBytes, err := wire.PackField(wire.TextValue(procName))
	if err != nil {
		return nil, fmt.Errorf("iproto: build call: proc name: %w", err)
	}
	argBytes, err := wire.PackTuple(args)
	if err != nil {
		return nil, fmt.Errorf("iproto: build call: %w", err)
	}
	body := make([]byte, 0, 4+len(procBytes)+len(argBytes))
	body = append(body, wire.PackU32(flags)...)
	body = append(body, procBytes...)
	body = append(body, argBytes...)
	return packHeaderAndBody(OpCall, requestID, body), nil
}
