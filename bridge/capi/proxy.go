package capi

import (
	"fmt"

	"github.com/rubiojr/bindgen/bridge"
	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/emit"
	"github.com/rubiojr/bindgen/ffitype"
	"github.com/rubiojr/bindgen/ownership"
)

// proxyField is how one struct field is laid out in its proxy record.
type proxyField struct {
	Name   string // proxy member name
	Access string // native member: a field name or tuple index
	Type   ffitype.Type
	Direct bool // stored by value, otherwise a host-owned C string
}

// proxyFields lays out s. Numbers and bool are stored in place; strings are
// C strings; nested structs and sequences are JSON C strings.
func proxyFields(s *contract.StructDesc) []proxyField {
	out := make([]proxyField, len(s.Fields))
	for i, f := range s.Fields {
		pf := proxyField{Name: f.Name, Access: f.Name, Type: f.Type, Direct: f.Type.Category() == ffitype.CatDirect}
		if f.Name == "" {
			pf.Name = fmt.Sprintf("f%d", i)
			pf.Access = fmt.Sprint(i)
		}
		out[i] = pf
	}
	return out
}

func isTuple(s *contract.StructDesc) bool {
	for _, f := range s.Fields {
		if f.Name == "" {
			return true
		}
	}
	return false
}

// Structure writes everything the C boundary needs for s: the serde mirror,
// the proxy record with its conversions, the sequence record and the two
// free entry points.
func (s *Strategy) Structure(w *emit.Writer, sc *bridge.Scope, st *contract.StructDesc) error {
	if err := bridge.WriteMirror(w, sc, st); err != nil {
		return err
	}
	proxy := ProxyName(st.Name)
	fields := proxyFields(st)

	w.Line("#[repr(C)]")
	w.Block(fmt.Sprintf("pub struct %s {", proxy), "}", func() {
		for _, f := range fields {
			if f.Direct {
				w.Line("pub %s: %s,", f.Name, scalarType(f.Type))
			} else {
				w.Line("pub %s: *mut c_char,", f.Name)
			}
		}
	})
	w.Blank()

	w.Block(fmt.Sprintf("impl %s {", proxy), "}", func() {
		w.Block(fmt.Sprintf("pub fn from_native(v: %s) -> Self {", st.Name), "}", func() {
			w.Block(proxy+" {", "}", func() {
				for _, f := range fields {
					w.Line("%s: %s,", f.Name, toProxy("v."+f.Access, f))
				}
			})
		})
		w.Blank()
		w.Block(fmt.Sprintf("pub fn to_native(&self) -> %s {", st.Name), "}", func() {
			if isTuple(st) {
				w.Block(st.Name+"(", ")", func() {
					for _, f := range fields {
						w.Line("%s,", fromProxy("self."+f.Name, f))
					}
				})
				return
			}
			w.Block(st.Name+" {", "}", func() {
				for _, f := range fields {
					w.Line("%s: %s,", f.Name, fromProxy("self."+f.Name, f))
				}
			})
		})
		w.Blank()
		w.Block("pub fn release(self) {", "}", func() {
			for _, f := range fields {
				if f.Direct {
					continue
				}
				w.Block(fmt.Sprintf("if !self.%s.is_null() {", f.Name), "}", func() {
					w.Line("drop(unsafe { CString::from_raw(self.%s) });", f.Name)
				})
			}
		})
	})
	w.Blank()

	array := StructArrayName(st.Name)
	w.Line("#[repr(C)]")
	w.Block(fmt.Sprintf("pub struct %s {", array), "}", func() {
		w.Line("pub ptr: *mut %s,", proxy)
		w.Line("pub len: i32,")
		w.Line("pub free_ptr: extern \"C\" fn(*mut %s, i32),", proxy)
	})
	w.Blank()

	freeArray := ownership.FreeStructArray(st.Name)
	w.Line("#[no_mangle]")
	w.Block(fmt.Sprintf("pub extern \"C\" fn %s(ptr: *mut %s, len: i32) {", freeArray, proxy), "}", func() {
		w.Guard(freeArray, "()", func() {
			w.Block("if ptr.is_null() {", "}", func() {
				w.Line("return;")
			})
			w.Line("let items = unsafe { Box::from_raw(std::slice::from_raw_parts_mut(ptr, len as usize)) };")
			w.Block("for item in items.into_vec() {", "}", func() {
				w.Line("item.release();")
			})
		})
	})
	w.Blank()

	freeProxy := ownership.FreeProxy(s.opts.Crate, st.Name)
	w.Line("#[no_mangle]")
	w.Block(fmt.Sprintf("pub extern \"C\" fn %s(p: %s) {", freeProxy, proxy), "}", func() {
		w.Guard(freeProxy, "()", func() {
			w.Line("p.release()")
		})
	})
	w.Blank()

	sc.Ledger.Provide(freeArray)
	sc.Ledger.Provide(freeProxy)
	return nil
}

func toProxy(expr string, f proxyField) string {
	switch {
	case f.Type.Kind == ffitype.Bool:
		return expr + " as u8"
	case f.Direct:
		return expr
	case f.Type.Kind == ffitype.String:
		return fmt.Sprintf("CString::new(%s).expect(\"string contains NUL\").into_raw()", expr)
	}
	return fmt.Sprintf("CString::new(%s).expect(\"text contains NUL\").into_raw()", bridge.EncodeJSON(expr, f.Type))
}

func fromProxy(expr string, f proxyField) string {
	switch {
	case f.Type.Kind == ffitype.Bool:
		return expr + " != 0"
	case f.Direct:
		return expr
	case f.Type.Kind == ffitype.String:
		return fmt.Sprintf("%s(%s)", readCStr, expr)
	}
	return bridge.DecodeJSON(fmt.Sprintf("&%s(%s)", readCStr, expr), f.Type)
}
