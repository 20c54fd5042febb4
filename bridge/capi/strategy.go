// Package capi is the native-ABI target: bridge functions exported with the
// C calling convention, a C header declaring them, proxy records for
// aggregates and free entry points for everything handed to the host.
package capi

import (
	"fmt"

	"github.com/rubiojr/bindgen/bridge"
	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/emit"
	"github.com/rubiojr/bindgen/ffitype"
	"github.com/rubiojr/bindgen/naming"
	"github.com/rubiojr/bindgen/ownership"
	"github.com/rubiojr/bindgen/transfer"
)

// Name is the registry name of the target.
const Name = "capi"

func init() {
	bridge.Register(Name, func(opts bridge.Options) (bridge.Strategy, error) {
		return New(opts)
	})
}

// Strategy implements bridge.Strategy for the C ABI.
type Strategy struct {
	opts bridge.Options
}

// New returns a C ABI strategy. The header defaults to <crate>.h.
func New(opts bridge.Options) (*Strategy, error) {
	if opts.Crate == "" {
		return nil, fmt.Errorf("capi: crate name is required")
	}
	if opts.Header == "" {
		opts.Header = opts.Crate + ".h"
	}
	return &Strategy{opts: opts}, nil
}

func (s *Strategy) Name() string { return Name }

// symbol is the exported function of iface.method.
func (s *Strategy) symbol(iface, method string) string {
	return fmt.Sprintf("%s_%s_%s", s.opts.Crate, naming.SnakeCase(iface), method)
}

// ArrayName is the length-tagged buffer record for integers of width bytes.
func ArrayName(width int) string { return fmt.Sprintf("CInt%dArray", width*8) }

// ProxyName is the flat C record mirroring struct name.
func ProxyName(name string) string { return "Proxy" + name }

// StructArrayName is the C record carrying a sequence of ProxyName(name).
func StructArrayName(name string) string { return "C" + name + "Array" }

// ModelName is the record of host function pointers implementing cb.
func ModelName(cb string) string { return cb + "Model" }

func isStructArray(t ffitype.Type) bool {
	return t.Kind == ffitype.Vec && t.Elem.Kind == ffitype.Struct
}

// scalarType is the Rust spelling of a direct value at the boundary. Bool
// crosses as one byte.
func scalarType(t ffitype.Type) string {
	if t.Kind == ffitype.Bool {
		return "u8"
	}
	return t.Origin
}

func (s *Strategy) Prologue(w *emit.Writer, sc *bridge.Scope) error {
	w.Line("// Code generated by bindgen. DO NOT EDIT.")
	w.Line("#![allow(unused_imports, unused_variables, non_snake_case, non_camel_case_types, dead_code)]")
	w.Blank()
	w.Line("use std::collections::HashMap;")
	w.Line("use std::ffi::{CStr, CString};")
	w.Line("use std::os::raw::c_char;")
	w.Line("use std::sync::{Mutex, OnceLock};")
	w.Blank()
	w.Line("use serde::{Deserialize, Serialize};")
	w.Blank()
	w.Line("use super::*;")
	for _, m := range sc.ForeignModules() {
		w.Line("use super::%s::*;", m)
	}
	for _, u := range sc.Uses() {
		w.Line("use %s;", u)
	}
	w.Blank()

	sc.Ledger.Provide(ownership.FreeRust(s.opts.Crate))
	sc.Ledger.Provide(ownership.FreeStr(s.opts.Crate))
	for _, st := range sc.ForeignStructs() {
		sc.Ledger.Provide(ownership.FreeStructArray(st.Name))
		sc.Ledger.Provide(ownership.FreeProxy(s.opts.Crate, st.Name))
	}
	return nil
}

// bufferWidths are the integer widths with a length-tagged array record.
var bufferWidths = []int{1, 2, 4, 8}

func (s *Strategy) Index(w *emit.Writer, modules []string) error {
	w.Line("// Code generated by bindgen. DO NOT EDIT.")
	w.Line("#![allow(dead_code)]")
	w.Blank()
	w.Line("use std::ffi::{CStr, CString};")
	w.Line("use std::os::raw::c_char;")
	w.Blank()
	for _, m := range modules {
		w.Line("pub mod %s;", m)
	}
	w.Blank()
	for _, width := range bufferWidths {
		w.Line("#[repr(C)]")
		w.Block(fmt.Sprintf("pub struct %s {", ArrayName(width)), "}", func() {
			w.Line("pub ptr: *const i%d,", width*8)
			w.Line("pub len: i32,")
		})
		w.Blank()
	}
	ownership.WriteEntryPoints(w, s.opts.Crate)
	w.Blank()
	w.Block("pub(crate) fn "+readCStr+"(ptr: *const c_char) -> String {", "}", func() {
		w.Block("if ptr.is_null() {", "}", func() {
			w.Line("return String::new();")
		})
		w.Line("unsafe { CStr::from_ptr(ptr) }.to_string_lossy().into_owned()")
	})
	w.Blank()
	w.Block("pub(crate) fn "+takeHostStr+"(ptr: *mut c_char, free_ptr: extern \"C\" fn(*mut i8, i32)) -> String {", "}", func() {
		w.Block("if ptr.is_null() {", "}", func() {
			w.Line("return String::new();")
		})
		w.Line("let c = unsafe { CStr::from_ptr(ptr) };")
		w.Line("let len = c.to_bytes_with_nul().len() as i32;")
		w.Line("let out = c.to_string_lossy().into_owned();")
		w.Line("free_ptr(ptr as *mut i8, len);")
		w.Line("out")
	})
	w.Blank()
	bridge.WriteJSONFloats(w)
	emit.WritePanicHelper(w)
	return nil
}

// readCStr copies a host string into an owned String. Null reads as empty.
const readCStr = "read_c_str"

// takeHostStr copies a string returned by a host callback and releases it
// through the model's free function, passing the byte length including the
// terminator.
const takeHostStr = "take_host_str"

func (s *Strategy) MethodSig(iface *contract.InterfaceDesc, m *contract.MethodDesc, sig bridge.Signature) string {
	out := fmt.Sprintf("pub extern \"C\" fn %s(%s)", s.symbol(iface.Name, m.Name), sig.ParamList())
	if sig.Return != "" {
		out += " -> " + sig.Return
	}
	return out
}

func (s *Strategy) BoundaryType(sc *bridge.Scope, site bridge.Site, t ffitype.Type, d bridge.Direction) (string, error) {
	switch t.Category() {
	case ffitype.CatVoid:
		if d == bridge.Argument {
			return "", bridge.Unsupported(site, "unit argument")
		}
		return "", nil
	case ffitype.CatDirect:
		return scalarType(t), nil
	case ffitype.CatBuffer:
		return ArrayName(t.Elem.Width()), nil
	case ffitype.CatString:
		if d == bridge.Argument {
			return "*const c_char", nil
		}
		return "*mut c_char", nil
	case ffitype.CatText:
		if err := sc.CheckText(site, t); err != nil {
			return "", err
		}
		switch {
		case t.Kind == ffitype.Struct:
			return ProxyName(t.Name()), nil
		case isStructArray(t):
			return StructArrayName(t.Elem.Name()), nil
		case d == bridge.Argument:
			return "*const c_char", nil
		}
		return "*mut c_char", nil
	case ffitype.CatHandle:
		if d == bridge.Return {
			return "", bridge.Unsupported(site, "callbacks cannot be returned")
		}
		if _, ok := sc.Callback(t.Name()); !ok {
			return "", bridge.Unsupported(site, "unknown callback %s", t.Name())
		}
		return ModelName(t.Name()), nil
	}
	return "", bridge.Unsupported(site, "no C mapping for %s", t)
}

func (s *Strategy) DefaultReturn(sc *bridge.Scope, t ffitype.Type) string {
	switch t.Category() {
	case ffitype.CatVoid:
		return "()"
	case ffitype.CatDirect:
		if t.Kind == ffitype.Float32 || t.Kind == ffitype.Float64 {
			return "0.0"
		}
		return "0"
	case ffitype.CatBuffer:
		return fmt.Sprintf("%s { ptr: std::ptr::null(), len: 0 }", ArrayName(t.Elem.Width()))
	}
	switch {
	case t.Kind == ffitype.Struct:
		return "unsafe { std::mem::zeroed() }"
	case isStructArray(t):
		e := t.Elem.Name()
		return fmt.Sprintf("%s { ptr: std::ptr::null_mut(), len: 0, free_ptr: %s }", StructArrayName(e), ownership.FreeStructArray(e))
	}
	return "std::ptr::null_mut()"
}

func (s *Strategy) Marshaler(structs contract.StructSet) transfer.Marshaler {
	return NewMarshaler(structs, ownership.NewArena())
}
