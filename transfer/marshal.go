package transfer

import (
	"fmt"

	"github.com/rubiojr/bindgen/ffitype"
)

// Marshaler converts values across one target's boundary. Encode maps a
// native value to the representation the host receives; Decode maps a
// boundary value back to a native copy, releasing any native allocation it
// consumed.
type Marshaler interface {
	Encode(t ffitype.Type, v any) (any, error)
	Decode(t ffitype.Type, b any) (any, error)
}

// BoolByte returns the one-byte boundary form of b.
func BoolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// ByteBool is the inverse of BoolByte. Any non-zero byte is true.
func ByteBool(b uint8) bool { return b != 0 }

// Bits returns the raw two's-complement bits of an integer native value.
func Bits(v any) (uint64, error) {
	switch n := v.(type) {
	case int8:
		return uint64(uint8(n)), nil
	case uint8:
		return uint64(n), nil
	case int16:
		return uint64(uint16(n)), nil
	case uint16:
		return uint64(n), nil
	case int32:
		return uint64(uint32(n)), nil
	case uint32:
		return uint64(n), nil
	case int64:
		return uint64(n), nil
	case uint64:
		return n, nil
	}
	return 0, fmt.Errorf("%w: want integer, got %T", ErrMismatch, v)
}

// FromBits rebuilds an integer native value of type t from raw bits.
func FromBits(t ffitype.Type, bits uint64) (any, error) {
	switch t.Origin {
	case "i8":
		return int8(bits), nil
	case "u8":
		return uint8(bits), nil
	case "i16":
		return int16(bits), nil
	case "u16":
		return uint16(bits), nil
	case "i32":
		return int32(bits), nil
	case "u32":
		return uint32(bits), nil
	case "i64":
		return int64(bits), nil
	case "u64":
		return bits, nil
	}
	return nil, fmt.Errorf("%w: %s is not an integer", ErrMismatch, t)
}

// Signed returns the signed integer of t's width holding the same bits as v.
// Hosts without unsigned types receive integers this way.
func Signed(t ffitype.Type, v any) (any, error) {
	bits, err := Bits(v)
	if err != nil {
		return nil, err
	}
	switch t.Width() {
	case 1:
		return int8(bits), nil
	case 2:
		return int16(bits), nil
	case 4:
		return int32(bits), nil
	case 8:
		return int64(bits), nil
	}
	return nil, fmt.Errorf("%w: %s is not an integer", ErrMismatch, t)
}

// PutBits writes the low width bytes of bits little-endian into dst.
func PutBits(dst []byte, width int, bits uint64) {
	for i := 0; i < width; i++ {
		dst[i] = byte(bits >> (8 * i))
	}
}

// GetBits reads width little-endian bytes from src.
func GetBits(src []byte, width int) uint64 {
	var bits uint64
	for i := 0; i < width; i++ {
		bits |= uint64(src[i]) << (8 * i)
	}
	return bits
}
