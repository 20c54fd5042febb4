// Package transfer models values on either side of the generated boundary and
// implements the self-describing text codec used for aggregates and
// collections.
//
// Native values follow the declared spelling of their type: an "i32" is an
// int32, a "u8" a uint8, a String a string, a struct a *Record and a sequence
// a []any. Boundary values are whatever a target strategy hands across: plain
// numbers, JSON text, Buffers, StructArrays, CStrings and Handles.
package transfer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rubiojr/bindgen/ownership"
)

// Field is one named record member. Tuple struct members have an empty name.
type Field struct {
	Name  string
	Value any
}

// F is shorthand for a Field.
func F(name string, v any) Field { return Field{Name: name, Value: v} }

// Record is a native aggregate value with ordered fields.
type Record struct {
	Name   string
	Fields []Field
}

// NewRecord returns a record of the named struct.
func NewRecord(name string, fields ...Field) *Record {
	return &Record{Name: name, Fields: fields}
}

// Get returns the value of the named field.
func (r *Record) Get(name string) (any, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the named field, appending it when absent.
func (r *Record) Set(name string, v any) {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			r.Fields[i].Value = v
			return
		}
	}
	r.Fields = append(r.Fields, Field{Name: name, Value: v})
}

// MarshalJSON encodes the record as an object with fields in declaration
// order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(jsonValue(f.Value))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func jsonValue(v any) any {
	switch f := v.(type) {
	case float32:
		return floatText(float64(f), v)
	case float64:
		return floatText(f, v)
	}
	return v
}

// Handle is an opaque reference to a host-implemented callback object.
type Handle int64

// CString is a NUL-terminated string allocated on the native side.
type CString ownership.Ptr

// Buffer is a length-tagged integer array: element pointer and 32-bit
// signed element count.
type Buffer struct {
	Ptr   ownership.Ptr
	Len   int32
	Width int // element byte width
}

// ByteLen returns the span the host passes when freeing the buffer.
func (b Buffer) ByteLen() int { return int(b.Len) * b.Width }

// StructArray is an array of proxy records crossing the native boundary.
// Elems holds the proxy records in order; Stride is the C size of one
// record.
type StructArray struct {
	Ptr    ownership.Ptr
	Len    int32
	Stride int
	Elems  []*Record
}
