package capi

import (
	"fmt"

	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/ffitype"
	"github.com/rubiojr/bindgen/ownership"
	"github.com/rubiojr/bindgen/transfer"
)

// Marshaler models the C boundary over a simulated native heap. Numbers
// cross unchanged and booleans as one byte. Strings, buffers, proxy strings
// and struct arrays are allocated in the arena by Encode and released by
// Decode through the entry point matching their shape, so a balanced round
// trip leaves nothing outstanding.
type Marshaler struct {
	Structs contract.StructSet
	Arena   *ownership.Arena
}

// NewMarshaler returns a marshaler allocating from arena.
func NewMarshaler(structs contract.StructSet, arena *ownership.Arena) *Marshaler {
	return &Marshaler{Structs: structs, Arena: arena}
}

func (m *Marshaler) lookup(name string) (*contract.StructDesc, error) {
	s, ok := m.Structs.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("capi: unknown struct %s", name)
	}
	return s, nil
}

func (m *Marshaler) Encode(t ffitype.Type, v any) (any, error) {
	switch t.Category() {
	case ffitype.CatVoid:
		return nil, nil
	case ffitype.CatDirect:
		if err := transfer.CheckValue(t, v, m.Structs); err != nil {
			return nil, err
		}
		if t.Kind == ffitype.Bool {
			return transfer.BoolByte(v.(bool)), nil
		}
		return v, nil
	case ffitype.CatString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: want string, got %T", transfer.ErrMismatch, v)
		}
		return transfer.CString(m.Arena.AllocString(s)), nil
	case ffitype.CatBuffer:
		if err := transfer.CheckValue(t, v, m.Structs); err != nil {
			return nil, err
		}
		return m.encodeBuffer(*t.Elem, v.([]any))
	case ffitype.CatText:
		if err := transfer.CheckValue(t, v, m.Structs); err != nil {
			return nil, err
		}
		switch {
		case t.Kind == ffitype.Struct:
			s, err := m.lookup(t.Name())
			if err != nil {
				return nil, err
			}
			return m.encodeProxy(s, v.(*transfer.Record))
		case isStructArray(t):
			return m.encodeStructArray(t.Elem.Name(), v.([]any))
		}
		text, err := transfer.EncodeText(t, v, m.Structs)
		if err != nil {
			return nil, err
		}
		return transfer.CString(m.Arena.AllocString(text)), nil
	case ffitype.CatHandle:
		h, ok := v.(transfer.Handle)
		if !ok {
			return nil, fmt.Errorf("%w: want handle, got %T", transfer.ErrMismatch, v)
		}
		return int64(h), nil
	}
	return nil, fmt.Errorf("capi: no mapping for %s", t)
}

func (m *Marshaler) Decode(t ffitype.Type, b any) (any, error) {
	switch t.Category() {
	case ffitype.CatVoid:
		return nil, nil
	case ffitype.CatDirect:
		return decodeScalar(t, b)
	case ffitype.CatString:
		return m.takeString(b)
	case ffitype.CatBuffer:
		buf, ok := b.(transfer.Buffer)
		if !ok {
			return nil, fmt.Errorf("%w: want %s, got %T", transfer.ErrMismatch, ArrayName(t.Elem.Width()), b)
		}
		return m.decodeBuffer(*t.Elem, buf)
	case ffitype.CatText:
		switch {
		case t.Kind == ffitype.Struct:
			s, err := m.lookup(t.Name())
			if err != nil {
				return nil, err
			}
			p, ok := b.(*transfer.Record)
			if !ok || p == nil {
				return nil, fmt.Errorf("%w: want %s, got %T", transfer.ErrMismatch, ProxyName(s.Name), b)
			}
			return m.decodeProxy(s, p)
		case isStructArray(t):
			arr, ok := b.(transfer.StructArray)
			if !ok {
				return nil, fmt.Errorf("%w: want %s, got %T", transfer.ErrMismatch, StructArrayName(t.Elem.Name()), b)
			}
			return m.decodeStructArray(t.Elem.Name(), arr)
		}
		text, err := m.takeString(b)
		if err != nil {
			return nil, err
		}
		return transfer.DecodeText(t, text.(string), m.Structs)
	case ffitype.CatHandle:
		h, ok := b.(int64)
		if !ok {
			return nil, fmt.Errorf("%w: want int64 index, got %T", transfer.ErrMismatch, b)
		}
		return transfer.Handle(h), nil
	}
	return nil, fmt.Errorf("capi: no mapping for %s", t)
}

// takeString reads a C string and releases it.
func (m *Marshaler) takeString(b any) (any, error) {
	p, ok := b.(transfer.CString)
	if !ok {
		return nil, fmt.Errorf("%w: want C string, got %T", transfer.ErrMismatch, b)
	}
	s, err := m.Arena.ReadString(ownership.Ptr(p))
	if err != nil {
		return nil, err
	}
	if err := m.Arena.FreeString(ownership.Ptr(p)); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeScalar(t ffitype.Type, b any) (any, error) {
	if t.Kind == ffitype.Bool {
		z, ok := b.(uint8)
		if !ok {
			return nil, fmt.Errorf("%w: want uint8, got %T", transfer.ErrMismatch, b)
		}
		return transfer.ByteBool(z), nil
	}
	if err := transfer.CheckValue(t, b, nil); err != nil {
		return nil, err
	}
	return b, nil
}

func (m *Marshaler) encodeBuffer(elem ffitype.Type, items []any) (transfer.Buffer, error) {
	width := elem.Width()
	data := make([]byte, len(items)*width)
	for i, v := range items {
		bits, err := transfer.Bits(v)
		if err != nil {
			return transfer.Buffer{}, err
		}
		transfer.PutBits(data[i*width:], width, bits)
	}
	return transfer.Buffer{Ptr: m.Arena.AllocBuffer(data), Len: int32(len(items)), Width: width}, nil
}

func (m *Marshaler) decodeBuffer(elem ffitype.Type, buf transfer.Buffer) ([]any, error) {
	width := elem.Width()
	if buf.Width != width {
		return nil, fmt.Errorf("%w: want %d-byte elements, got %d", transfer.ErrMismatch, width, buf.Width)
	}
	data, err := m.Arena.Read(buf.Ptr, buf.ByteLen())
	if err != nil {
		return nil, err
	}
	out := make([]any, buf.Len)
	for i := range out {
		n, err := transfer.FromBits(elem, transfer.GetBits(data[i*width:], width))
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	if err := m.Arena.FreeBuffer(buf.Ptr, buf.ByteLen()); err != nil {
		return nil, err
	}
	return out, nil
}

func fieldValue(s *contract.StructDesc, r *transfer.Record, i int) any {
	if isTuple(s) {
		return r.Fields[i].Value
	}
	v, _ := r.Get(s.Fields[i].Name)
	return v
}

// encodeProxy lays r out as the proxy record of s. The record must already
// have been checked against s.
func (m *Marshaler) encodeProxy(s *contract.StructDesc, r *transfer.Record) (*transfer.Record, error) {
	p := transfer.NewRecord(ProxyName(s.Name))
	for i, f := range proxyFields(s) {
		v := fieldValue(s, r, i)
		switch {
		case f.Type.Kind == ffitype.Bool:
			p.Set(f.Name, transfer.BoolByte(v.(bool)))
		case f.Direct:
			p.Set(f.Name, v)
		case f.Type.Kind == ffitype.String:
			p.Set(f.Name, transfer.CString(m.Arena.AllocString(v.(string))))
		default:
			text, err := transfer.EncodeText(f.Type, v, m.Structs)
			if err != nil {
				return nil, err
			}
			p.Set(f.Name, transfer.CString(m.Arena.AllocString(text)))
		}
	}
	return p, nil
}

// decodeProxy rebuilds the native record of s from p and releases every
// string p owns.
func (m *Marshaler) decodeProxy(s *contract.StructDesc, p *transfer.Record) (*transfer.Record, error) {
	tuple := isTuple(s)
	r := transfer.NewRecord(s.Name)
	for i, f := range proxyFields(s) {
		raw, ok := p.Get(f.Name)
		if !ok {
			return nil, fmt.Errorf("%s: missing member %s", ProxyName(s.Name), f.Name)
		}
		var v any
		var err error
		switch {
		case f.Direct:
			v, err = decodeScalar(f.Type, raw)
		case f.Type.Kind == ffitype.String:
			v, err = m.takeString(raw)
		default:
			var text any
			if text, err = m.takeString(raw); err == nil {
				v, err = transfer.DecodeText(f.Type, text.(string), m.Structs)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", ProxyName(s.Name), f.Name, err)
		}
		name := s.Fields[i].Name
		if tuple {
			name = ""
		}
		r.Fields = append(r.Fields, transfer.F(name, v))
	}
	return r, nil
}

func (m *Marshaler) encodeStructArray(name string, items []any) (transfer.StructArray, error) {
	s, err := m.lookup(name)
	if err != nil {
		return transfer.StructArray{}, err
	}
	stride := Stride(s)
	arr := transfer.StructArray{Len: int32(len(items)), Stride: stride, Elems: make([]*transfer.Record, len(items))}
	for i, item := range items {
		p, err := m.encodeProxy(s, item.(*transfer.Record))
		if err != nil {
			return transfer.StructArray{}, err
		}
		arr.Elems[i] = p
	}
	arr.Ptr = m.Arena.AllocBuffer(make([]byte, len(items)*stride))
	return arr, nil
}

func (m *Marshaler) decodeStructArray(name string, arr transfer.StructArray) ([]any, error) {
	s, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	if int(arr.Len) != len(arr.Elems) {
		return nil, fmt.Errorf("%w: %s length %d with %d elements", transfer.ErrMismatch, StructArrayName(name), arr.Len, len(arr.Elems))
	}
	if stride := Stride(s); arr.Stride != stride {
		return nil, fmt.Errorf("%w: %s stride %d, want %d", transfer.ErrMismatch, StructArrayName(name), arr.Stride, stride)
	}
	out := make([]any, len(arr.Elems))
	for i, p := range arr.Elems {
		r, err := m.decodeProxy(s, p)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = r
	}
	if err := m.Arena.FreeBuffer(arr.Ptr, int(arr.Len)*arr.Stride); err != nil {
		return nil, err
	}
	return out, nil
}
