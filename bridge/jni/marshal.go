package jni

import (
	"fmt"

	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/ffitype"
	"github.com/rubiojr/bindgen/transfer"
)

// Marshaler models the JNI boundary. Java has no unsigned integers, so
// integers cross as the signed type of the same width and bit pattern;
// booleans cross as jboolean (uint8); strings are VM copies; integer
// sequences are Java primitive arrays; aggregates and other sequences are
// JSON strings; callbacks are int64 handles.
type Marshaler struct {
	Structs contract.StructSet
}

func (m *Marshaler) Encode(t ffitype.Type, v any) (any, error) {
	switch t.Category() {
	case ffitype.CatVoid:
		return nil, nil
	case ffitype.CatDirect:
		if err := transfer.CheckValue(t, v, m.Structs); err != nil {
			return nil, err
		}
		switch {
		case t.Kind == ffitype.Bool:
			return transfer.BoolByte(v.(bool)), nil
		case t.IsInteger():
			return transfer.Signed(t, v)
		}
		return v, nil
	case ffitype.CatString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: want string, got %T", transfer.ErrMismatch, v)
		}
		return s, nil
	case ffitype.CatBuffer:
		if err := transfer.CheckValue(t, v, m.Structs); err != nil {
			return nil, err
		}
		return encodeArray(*t.Elem, v.([]any))
	case ffitype.CatText:
		return transfer.EncodeText(t, v, m.Structs)
	case ffitype.CatHandle:
		h, ok := v.(transfer.Handle)
		if !ok {
			return nil, fmt.Errorf("%w: want handle, got %T", transfer.ErrMismatch, v)
		}
		return int64(h), nil
	}
	return nil, fmt.Errorf("jni: no mapping for %s", t)
}

func (m *Marshaler) Decode(t ffitype.Type, b any) (any, error) {
	switch t.Category() {
	case ffitype.CatVoid:
		return nil, nil
	case ffitype.CatDirect:
		return decodeScalar(t, b)
	case ffitype.CatString:
		s, ok := b.(string)
		if !ok {
			return nil, fmt.Errorf("%w: want jstring, got %T", transfer.ErrMismatch, b)
		}
		return s, nil
	case ffitype.CatBuffer:
		return decodeArray(*t.Elem, b)
	case ffitype.CatText:
		s, ok := b.(string)
		if !ok {
			return nil, fmt.Errorf("%w: want JSON string, got %T", transfer.ErrMismatch, b)
		}
		return transfer.DecodeText(t, s, m.Structs)
	case ffitype.CatHandle:
		h, ok := b.(int64)
		if !ok {
			return nil, fmt.Errorf("%w: want jlong handle, got %T", transfer.ErrMismatch, b)
		}
		return transfer.Handle(h), nil
	}
	return nil, fmt.Errorf("jni: no mapping for %s", t)
}

func decodeScalar(t ffitype.Type, b any) (any, error) {
	switch t.Kind {
	case ffitype.Bool:
		z, ok := b.(uint8)
		if !ok {
			return nil, fmt.Errorf("%w: want jboolean, got %T", transfer.ErrMismatch, b)
		}
		return transfer.ByteBool(z), nil
	case ffitype.Float32:
		f, ok := b.(float32)
		if !ok {
			return nil, fmt.Errorf("%w: want jfloat, got %T", transfer.ErrMismatch, b)
		}
		return f, nil
	case ffitype.Float64:
		f, ok := b.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: want jdouble, got %T", transfer.ErrMismatch, b)
		}
		return f, nil
	}
	signed := ffitype.Prim(t.Kind, "i"+fmt.Sprint(t.Width()*8))
	if err := transfer.CheckValue(signed, b, nil); err != nil {
		return nil, fmt.Errorf("want %s: %w", scalars[t.Kind].jtype, err)
	}
	bits, err := transfer.Bits(b)
	if err != nil {
		return nil, err
	}
	return transfer.FromBits(t, bits)
}

func encodeArray(elem ffitype.Type, items []any) (any, error) {
	switch elem.Width() {
	case 1:
		out := make([]int8, len(items))
		for i, v := range items {
			s, err := transfer.Signed(elem, v)
			if err != nil {
				return nil, err
			}
			out[i] = s.(int8)
		}
		return out, nil
	case 2:
		out := make([]int16, len(items))
		for i, v := range items {
			s, err := transfer.Signed(elem, v)
			if err != nil {
				return nil, err
			}
			out[i] = s.(int16)
		}
		return out, nil
	case 4:
		out := make([]int32, len(items))
		for i, v := range items {
			s, err := transfer.Signed(elem, v)
			if err != nil {
				return nil, err
			}
			out[i] = s.(int32)
		}
		return out, nil
	case 8:
		out := make([]int64, len(items))
		for i, v := range items {
			s, err := transfer.Signed(elem, v)
			if err != nil {
				return nil, err
			}
			out[i] = s.(int64)
		}
		return out, nil
	}
	return nil, fmt.Errorf("jni: no array mapping for %s", elem)
}

func decodeArray(elem ffitype.Type, b any) (any, error) {
	var bits []uint64
	switch arr := b.(type) {
	case []int8:
		for _, v := range arr {
			bits = append(bits, uint64(uint8(v)))
		}
	case []int16:
		for _, v := range arr {
			bits = append(bits, uint64(uint16(v)))
		}
	case []int32:
		for _, v := range arr {
			bits = append(bits, uint64(uint32(v)))
		}
	case []int64:
		for _, v := range arr {
			bits = append(bits, uint64(v))
		}
	default:
		return nil, fmt.Errorf("%w: want %s, got %T", transfer.ErrMismatch, scalars[elem.Kind].array, b)
	}
	want := map[int]string{1: "[]int8", 2: "[]int16", 4: "[]int32", 8: "[]int64"}[elem.Width()]
	if got := fmt.Sprintf("%T", b); got != want {
		return nil, fmt.Errorf("%w: want %s, got %s", transfer.ErrMismatch, want, got)
	}
	out := make([]any, len(bits))
	for i, v := range bits {
		n, err := transfer.FromBits(elem, v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
