package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/ffitype"
)

// ErrMismatch is wrapped when a value does not fit its declared type.
var ErrMismatch = errors.New("value does not match type")

func mismatch(path string, t ffitype.Type, v any) error {
	return fmt.Errorf("%s: %w: want %s, got %T", path, ErrMismatch, t, v)
}

// EncodeText encodes a native value of type t as JSON. Struct fields keep
// declaration order; tuple structs encode as arrays.
func EncodeText(t ffitype.Type, v any, structs contract.StructSet) (string, error) {
	norm, err := normalize(t, v, structs, t.String())
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(norm)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", t, err)
	}
	return string(b), nil
}

// DecodeText decodes JSON text into a native value of type t. Every struct
// field must be present; unknown object keys are ignored.
func DecodeText(t ffitype.Type, text string, structs contract.StructSet) (any, error) {
	return decode(t, json.RawMessage(text), structs, t.String())
}

// CheckValue reports whether v is a well-formed native value of type t.
func CheckValue(t ffitype.Type, v any, structs contract.StructSet) error {
	_, err := normalize(t, v, structs, t.String())
	return err
}

func isTuple(s *contract.StructDesc) bool {
	for _, f := range s.Fields {
		if f.Name == "" {
			return true
		}
	}
	return false
}

func lookupStruct(t ffitype.Type, structs contract.StructSet, path string) (*contract.StructDesc, error) {
	s, ok := structs.Lookup(t.Name())
	if !ok {
		return nil, fmt.Errorf("%s: unknown struct %s", path, t.Name())
	}
	return s, nil
}

// normalize validates v against t and returns a JSON-ready value.
func normalize(t ffitype.Type, v any, structs contract.StructSet, path string) (any, error) {
	switch t.Kind {
	case ffitype.Void, ffitype.Callback:
		return nil, fmt.Errorf("%s: %s has no text encoding", path, t)
	case ffitype.Struct:
		r, ok := v.(*Record)
		if !ok || r == nil {
			return nil, mismatch(path, t, v)
		}
		s, err := lookupStruct(t, structs, path)
		if err != nil {
			return nil, err
		}
		if isTuple(s) {
			if len(r.Fields) != len(s.Fields) {
				return nil, fmt.Errorf("%s: %w: want %d members, got %d", path, ErrMismatch, len(s.Fields), len(r.Fields))
			}
			out := make([]any, len(s.Fields))
			for i, f := range s.Fields {
				n, err := normalize(f.Type, r.Fields[i].Value, structs, fmt.Sprintf("%s.%d", path, i))
				if err != nil {
					return nil, err
				}
				out[i] = n
			}
			return out, nil
		}
		out := &Record{Name: s.Name, Fields: make([]Field, 0, len(s.Fields))}
		for _, f := range s.Fields {
			fv, ok := r.Get(f.Name)
			if !ok {
				return nil, fmt.Errorf("%s: missing field %s", path, f.Name)
			}
			n, err := normalize(f.Type, fv, structs, path+"."+f.Name)
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, Field{Name: f.Name, Value: n})
		}
		return out, nil
	case ffitype.Vec:
		items, ok := v.([]any)
		if !ok {
			return nil, mismatch(path, t, v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			n, err := normalize(*t.Elem, item, structs, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	if !scalarFits(t, v) {
		return nil, mismatch(path, t, v)
	}
	switch f := v.(type) {
	case float32:
		return floatText(float64(f), v), nil
	case float64:
		return floatText(f, v), nil
	}
	return v, nil
}

// Non-finite floats, which JSON numbers cannot carry, encode as these
// strings.
const (
	textNaN    = "NaN"
	textInf    = "Infinity"
	textNegInf = "-Infinity"
)

func floatText(f float64, v any) any {
	switch {
	case math.IsNaN(f):
		return textNaN
	case math.IsInf(f, 1):
		return textInf
	case math.IsInf(f, -1):
		return textNegInf
	}
	return v
}

func parseFloatText(t ffitype.Type, s string) (any, error) {
	var f float64
	switch s {
	case textNaN:
		f = math.NaN()
	case textInf:
		f = math.Inf(1)
	case textNegInf:
		f = math.Inf(-1)
	default:
		return nil, fmt.Errorf("%w: want %s, got string %q", ErrMismatch, t, s)
	}
	if t.Kind == ffitype.Float32 {
		return float32(f), nil
	}
	return f, nil
}

// scalarFits reports whether v has the Go type matching t's declared
// spelling.
func scalarFits(t ffitype.Type, v any) bool {
	var ok bool
	switch t.Origin {
	case "i8":
		_, ok = v.(int8)
	case "u8":
		_, ok = v.(uint8)
	case "i16":
		_, ok = v.(int16)
	case "u16":
		_, ok = v.(uint16)
	case "i32":
		_, ok = v.(int32)
	case "u32":
		_, ok = v.(uint32)
	case "i64":
		_, ok = v.(int64)
	case "u64":
		_, ok = v.(uint64)
	case "f32":
		_, ok = v.(float32)
	case "f64":
		_, ok = v.(float64)
	default:
		switch t.Kind {
		case ffitype.Bool:
			_, ok = v.(bool)
		case ffitype.String:
			_, ok = v.(string)
		}
	}
	return ok
}

func decode(t ffitype.Type, raw json.RawMessage, structs contract.StructSet, path string) (any, error) {
	if string(raw) == "null" || len(raw) == 0 {
		if t.Kind == ffitype.Void {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w: want %s, got null", path, ErrMismatch, t)
	}
	switch t.Kind {
	case ffitype.Void, ffitype.Callback:
		return nil, fmt.Errorf("%s: %s has no text encoding", path, t)
	case ffitype.Struct:
		s, err := lookupStruct(t, structs, path)
		if err != nil {
			return nil, err
		}
		rec := &Record{Name: s.Name, Fields: make([]Field, 0, len(s.Fields))}
		if isTuple(s) {
			var items []json.RawMessage
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			if len(items) != len(s.Fields) {
				return nil, fmt.Errorf("%s: %w: want %d members, got %d", path, ErrMismatch, len(s.Fields), len(items))
			}
			for i, f := range s.Fields {
				v, err := decode(f.Type, items[i], structs, fmt.Sprintf("%s.%d", path, i))
				if err != nil {
					return nil, err
				}
				rec.Fields = append(rec.Fields, Field{Value: v})
			}
			return rec, nil
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, f := range s.Fields {
			fr, ok := obj[f.Name]
			if !ok {
				return nil, fmt.Errorf("%s: missing field %s", path, f.Name)
			}
			v, err := decode(f.Type, fr, structs, path+"."+f.Name)
			if err != nil {
				return nil, err
			}
			rec.Fields = append(rec.Fields, Field{Name: f.Name, Value: v})
		}
		return rec, nil
	case ffitype.Vec:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, err := decode(*t.Elem, item, structs, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case ffitype.Bool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return b, nil
	case ffitype.String:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return s, nil
	}
	if raw[0] == '"' {
		var text string
		if t.Kind != ffitype.Float32 && t.Kind != ffitype.Float64 || json.Unmarshal(raw, &text) != nil {
			return nil, fmt.Errorf("%s: %w: want %s, got string", path, ErrMismatch, t)
		}
		v, err := parseFloatText(t, text)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return v, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	v, err := ParseNumber(t, n.String())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// ParseNumber parses s as a numeric value of type t, returning the Go type
// matching t's declared spelling. Out-of-range values are errors.
func ParseNumber(t ffitype.Type, s string) (any, error) {
	switch t.Kind {
	case ffitype.Float32:
		f, err := strconv.ParseFloat(s, 32)
		return float32(f), err
	case ffitype.Float64:
		return strconv.ParseFloat(s, 64)
	}
	if !t.IsInteger() {
		return nil, fmt.Errorf("%w: %s is not numeric", ErrMismatch, t)
	}
	bits := t.Width() * 8
	if t.Unsigned() {
		u, err := strconv.ParseUint(s, 10, bits)
		if err != nil {
			return nil, err
		}
		switch bits {
		case 8:
			return uint8(u), nil
		case 16:
			return uint16(u), nil
		case 32:
			return uint32(u), nil
		}
		return u, nil
	}
	i, err := strconv.ParseInt(s, 10, bits)
	if err != nil {
		return nil, err
	}
	switch bits {
	case 8:
		return int8(i), nil
	case 16:
		return int16(i), nil
	case 32:
		return int32(i), nil
	}
	return i, nil
}
