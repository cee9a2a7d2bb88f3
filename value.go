package tarantool

import "github.com/mickamy/go-tarantool/internal/wire"

// Value is a single tuple field, tagged with the semantic type it was
// constructed with (bytes, text, or a 32-/64-bit integer). Construct one
// with Bytes, Text, Uint32 or Uint64; Int is a magnitude-based convenience
// constructor for callers that don't care about the exact width.
type Value = wire.Value

// Tuple is an ordered sequence of Fields.
type Tuple = wire.Tuple

// FieldType names how a raw response field should be cast back to a Value.
type FieldType = wire.Kind

const (
	FieldBytes = wire.KindBytes
	FieldText  = wire.KindText
	FieldUint32 = wire.KindU32
	FieldUint64 = wire.KindU64
)

// Bytes wraps raw bytes as an opaque field.
func Bytes(b []byte) Value { return wire.BytesValue(b) }

// Text encodes s as a UTF-8 text field.
func Text(s string) Value { return wire.TextValue(s) }

// Uint32 packs n as a 4-byte field.
func Uint32(n uint32) Value { return wire.U32Value(n) }

// Uint64 packs n as an 8-byte field.
func Uint64(n uint64) Value { return wire.U64Value(n) }

// Int is the magnitude-based convenience constructor: n is packed as 4
// bytes if it fits in a uint32, 8 bytes otherwise. Callers that need a
// specific width should call Uint32/Uint64 directly.
func Int(n uint64) Value { return wire.AutoValue(n) }
