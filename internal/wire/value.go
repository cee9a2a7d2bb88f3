package wire

import (
	"fmt"
)

// Kind discriminates the semantic type a Value was constructed with. It
// replaces the runtime isinstance-style dispatch of the reference client
// with a closed tagged union the compiler can check.
type Kind int

const (
	KindBytes Kind = iota
	KindText
	KindU32
	KindU64
)

func (k Kind) String() string {
	switch k {
	case KindBytes:
		return "bytes"
	case KindText:
		return "text"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	default:
		return fmt.Sprintf("wire.Kind(%d)", int(k))
	}
}

// Value is a single tuple field tagged with the semantic type the caller
// constructed it with. The zero Value is an empty byte field.
type Value struct {
	kind Kind
	raw  []byte
}

// BytesValue wraps raw bytes as an opaque field; they pass through unmodified.
func BytesValue(b []byte) Value { return Value{kind: KindBytes, raw: b} }

// TextValue encodes s as UTF-8 bytes, tagged so it casts back to text.
func TextValue(s string) Value { return Value{kind: KindText, raw: []byte(s)} }

// U32Value packs n as 4 little-endian bytes.
func U32Value(n uint32) Value { return Value{kind: KindU32, raw: PackU32(n)} }

// U64Value packs n as 8 little-endian bytes.
func U64Value(n uint64) Value { return Value{kind: KindU64, raw: PackU64(n)} }

// AutoValue is the magnitude-based convenience constructor the design notes
// keep for compatibility: values that fit in 32 bits pack as 4 bytes,
// everything up to 2^64-1 packs as 8 bytes. Callers that need a specific
// width should call U32Value/U64Value directly instead.
func AutoValue(n uint64) Value {
	if n <= 1<<32-1 {
		return U32Value(uint32(n))
	}
	return U64Value(n)
}

// Kind reports the semantic type this Value was constructed with.
func (v Value) Kind() Kind { return v.kind }

// Raw returns the field's raw byte representation.
func (v Value) Raw() []byte { return v.raw }

// Uint32 casts the field back to a 32-bit integer; the raw length must be
// exactly 4 bytes regardless of the Value's construction Kind.
func (v Value) Uint32() (uint32, error) {
	if len(v.raw) != 4 {
		return 0, fmt.Errorf("wire: cast to u32: field has length %d, want 4", len(v.raw))
	}
	n, err := UnpackU32(v.raw, 0)
	if err != nil {
		return 0, fmt.Errorf("wire: cast to u32: %w", err)
	}
	return n, nil
}

// Uint64 casts the field back to a 64-bit integer; the raw length must be
// exactly 8 bytes.
func (v Value) Uint64() (uint64, error) {
	if len(v.raw) != 8 {
		return 0, fmt.Errorf("wire: cast to u64: field has length %d, want 8", len(v.raw))
	}
	n, err := UnpackU64(v.raw, 0)
	if err != nil {
		return 0, fmt.Errorf("wire: cast to u64: %w", err)
	}
	return n, nil
}

// Text decodes the field as UTF-8. No length constraint applies.
func (v Value) Text() string { return string(v.raw) }

// Tuple is an ordered sequence of Fields as the caller constructed them.
type Tuple []Value

// RawTuple is a decoded tuple before any type casting is applied: each
// element is the field's raw bytes as they came off the wire.
type RawTuple [][]byte

// PackField emits pack_varint(len(bytes)) || bytes for v.
func PackField(v Value) ([]byte, error) {
	lenBytes, err := PackVarint(uint64(len(v.raw)))
	if err != nil {
		return nil, fmt.Errorf("wire: pack field: %w", err)
	}
	out := make([]byte, 0, len(lenBytes)+len(v.raw))
	out = append(out, lenBytes...)
	out = append(out, v.raw...)
	return out, nil
}

// PackTuple emits pack_u32(len(vs)) || concat(pack_field(v) for v in vs).
func PackTuple(vs Tuple) ([]byte, error) {
	out := PackU32(uint32(len(vs)))
	for i, v := range vs {
		fb, err := PackField(v)
		if err != nil {
			return nil, fmt.Errorf("wire: pack tuple: field %d: %w", i, err)
		}
		out = append(out, fb...)
	}
	return out, nil
}

// ParseTuple decodes a tuple starting at buf[offset]: a 32-bit cardinality
// followed by that many varint-length-prefixed fields. It returns the raw
// fields and the offset of the first byte after the tuple.
func ParseTuple(buf []byte, offset int) (RawTuple, int, error) {
	cardinality, err := UnpackU32(buf, offset)
	if err != nil {
		return nil, offset, fmt.Errorf("wire: parse tuple: cardinality: %w", err)
	}
	offset += 4

	fields := make(RawTuple, 0, cardinality)
	for i := uint32(0); i < cardinality; i++ {
		n, next, err := UnpackVarint(buf, offset)
		if err != nil {
			return nil, offset, fmt.Errorf("wire: parse tuple: field %d length: %w", i, err)
		}
		offset = next
		if offset+int(n) > len(buf) {
			return nil, offset, fmt.Errorf("wire: parse tuple: field %d: need %d bytes, have %d", i, n, len(buf)-offset)
		}
		fields = append(fields, buf[offset:offset+int(n)])
		offset += int(n)
	}
	return fields, offset, nil
}

// CastField casts a raw field to the semantic type k. KindBytes is the
// identity cast; KindU32/KindU64 require exact length 4/8; KindText decodes
// the bytes as UTF-8 (internal/iproto's ParseResponse rejects any other
// charset before this point).
func CastField(raw []byte, k Kind) (Value, error) {
	switch k {
	case KindBytes:
		return BytesValue(raw), nil
	case KindText:
		return TextValue(string(raw)), nil
	case KindU32:
		if len(raw) != 4 {
			return Value{}, fmt.Errorf("wire: cast field: u32 requires length 4, got %d", len(raw))
		}
		n, err := UnpackU32(raw, 0)
		if err != nil {
			return Value{}, fmt.Errorf("wire: cast field: %w", err)
		}
		return U32Value(n), nil
	case KindU64:
		if len(raw) != 8 {
			return Value{}, fmt.Errorf("wire: cast field: u64 requires length 8, got %d", len(raw))
		}
		n, err := UnpackU64(raw, 0)
		if err != nil {
			return Value{}, fmt.Errorf("wire: cast field: %w", err)
		}
		return U64Value(n), nil
	default:
		return Value{}, fmt.Errorf("wire: cast field: unsupported kind %v", k)
	}
}

// RecastTuple re-casts an already-decoded Tuple's raw bytes against a new
// set of field types. Used where a response is parsed once (as raw bytes)
// by the session layer before the caller's field_types are known, and cast
// only once the corresponding handler call is matched up.
func RecastTuple(t Tuple, fieldTypes []Kind) (Tuple, error) {
	raw := make(RawTuple, len(t))
	for i, v := range t {
		raw[i] = v.Raw()
	}
	return CastTuple(raw, fieldTypes)
}

// CastTuple casts each field of raw per fieldTypes: the k-th field uses
// fieldTypes[min(k, len(fieldTypes)-1)], so a single-element slice applies
// uniformly and a shorter prefix extends its last type over the remainder.
// A nil or empty fieldTypes leaves every field as KindBytes.
func CastTuple(raw RawTuple, fieldTypes []Kind) (Tuple, error) {
	out := make(Tuple, len(raw))
	for i, f := range raw {
		k := KindBytes
		if len(fieldTypes) > 0 {
			idx := i
			if idx >= len(fieldTypes) {
				idx = len(fieldTypes) - 1
			}
			k = fieldTypes[idx]
		}
		v, err := CastField(f, k)
		if err != nil {
			return nil, fmt.Errorf("wire: cast tuple: field %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
