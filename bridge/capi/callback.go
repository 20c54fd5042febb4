package capi

import (
	"fmt"
	"strings"

	"github.com/rubiojr/bindgen/bridge"
	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/emit"
	"github.com/rubiojr/bindgen/ffitype"
	"github.com/rubiojr/bindgen/ownership"
)

// callbackParam is the C type a callback method receives an argument as.
// Aggregates and non-integer sequences arrive as JSON text that the library
// keeps ownership of for the duration of the call.
func callbackParam(t ffitype.Type) string {
	switch t.Category() {
	case ffitype.CatDirect:
		return scalarType(t)
	case ffitype.CatBuffer:
		return ArrayName(t.Elem.Width())
	}
	return "*const c_char"
}

// callbackReturn is the C type a callback method hands its result back
// as. Strings, text and buffers are host allocations the library copies and
// then releases through the model's free_ptr.
func callbackReturn(t ffitype.Type) string {
	switch t.Category() {
	case ffitype.CatDirect:
		return scalarType(t)
	case ffitype.CatBuffer:
		return ArrayName(t.Elem.Width())
	}
	return "*mut c_char"
}

// ownsReturns reports whether a callback method returns a host allocation.
func ownsReturns(m *contract.MethodDesc) bool {
	switch m.Return.Category() {
	case ffitype.CatString, ffitype.CatBuffer, ffitype.CatText:
		return true
	}
	return false
}

func needsHostFree(cb *contract.InterfaceDesc) bool {
	for i := range cb.Methods {
		if ownsReturns(&cb.Methods[i]) {
			return true
		}
	}
	return false
}

func callbackFnType(m *contract.MethodDesc) string {
	params := []string{"i64"}
	for _, a := range m.Args {
		params = append(params, callbackParam(a.Type))
	}
	sig := fmt.Sprintf("extern \"C\" fn(%s)", strings.Join(params, ", "))
	if m.Return.Kind != ffitype.Void {
		sig += " -> " + callbackReturn(m.Return)
	}
	return sig
}

// CallbackTrampoline writes the host function-pointer model of cb and the
// native implementation forwarding each method through it.
func (s *Strategy) CallbackTrampoline(w *emit.Writer, sc *bridge.Scope, cb *contract.InterfaceDesc) error {
	model := ModelName(cb.Name)
	hostFree := needsHostFree(cb)
	if hostFree {
		sc.Ledger.Provide(ownership.HostFree(model))
	}
	w.Line("#[repr(C)]")
	w.Line("#[derive(Clone, Copy)]")
	w.Block(fmt.Sprintf("pub struct %s {", model), "}", func() {
		for i := range cb.Methods {
			m := bridge.NamedArgs(&cb.Methods[i])
			w.Line("pub %s: %s,", m.Name, callbackFnType(m))
		}
		if hostFree {
			w.Line("pub free_ptr: extern \"C\" fn(*mut i8, i32),")
		}
		w.Line("pub free_callback: extern \"C\" fn(i64),")
		w.Line("pub index: i64,")
	})
	w.Blank()

	tramp := bridge.TrampolineName(cb.Name)
	w.Block(fmt.Sprintf("struct %s {", tramp), "}", func() {
		w.Line("handle: i64,")
	})
	w.Blank()

	w.Block(fmt.Sprintf("impl %s for %s {", cb.Name, tramp), "}", func() {
		for i := range cb.Methods {
			m := bridge.NamedArgs(&cb.Methods[i])
			if ownsReturns(m) {
				recordHostReturn(sc, cb.Name, m)
			}
			trampolineMethod(w, cb.Name, m)
		}
	})
	w.Blank()

	w.Block(fmt.Sprintf("impl Drop for %s {", tramp), "}", func() {
		w.Block("fn drop(&mut self) {", "}", func() {
			w.Block(fmt.Sprintf("if let Some(CallbackEntry::%s(model)) = release_callback(self.handle) {", cb.Name), "}", func() {
				w.Line("(model.free_callback)(self.handle);")
			})
		})
	})
	w.Blank()
	return nil
}

func trampolineMethod(w *emit.Writer, cb string, m *contract.MethodDesc) {
	params := []string{"&self"}
	for _, a := range m.Args {
		params = append(params, a.Name+": "+bridge.RustType(a.Type))
	}
	sig := fmt.Sprintf("fn %s(%s)", m.Name, strings.Join(params, ", "))
	if m.Return.Kind != ffitype.Void {
		sig += " -> " + bridge.RustType(m.Return)
	}

	w.Block(sig+" {", "}", func() {
		bridge.WriteTrampolineLookup(w, cb, "model")
		values := []string{"self.handle"}
		for _, a := range m.Args {
			values = append(values, callbackValue(w, a))
		}
		call := fmt.Sprintf("(model.%s)(%s)", m.Name, strings.Join(values, ", "))
		t := m.Return
		switch t.Category() {
		case ffitype.CatString:
			w.Text(fmt.Sprintf("%s(%s, model.free_ptr)", takeHostStr, call))
		case ffitype.CatText:
			w.Line("let text = %s(%s, model.free_ptr);", takeHostStr, call)
			w.Text(bridge.DecodeJSON("&text", t))
		case ffitype.CatBuffer:
			width := t.Elem.Width()
			w.Line("let arr = %s;", call)
			w.Block(fmt.Sprintf("let out: %s = if arr.ptr.is_null() || arr.len <= 0 {", bridge.RustType(t)), "} else {", func() {
				w.Line("Vec::new()")
			})
			w.Indent()
			w.Line("unsafe { std::slice::from_raw_parts(arr.ptr, arr.len as usize) }.iter().map(|v| *v as %s).collect()", t.Elem.Origin)
			w.Dedent()
			w.Line("};")
			w.Block("if !arr.ptr.is_null() {", "}", func() {
				w.Line("(model.free_ptr)(arr.ptr as *mut i8, arr.len * %d);", width)
			})
			w.Line("out")
		case ffitype.CatDirect:
			if t.Kind == ffitype.Bool {
				call += " != 0"
			}
			w.Text(call)
		default:
			w.Text(call)
		}
	})
}

// recordHostReturn notes the host allocation returned by cb.m, released
// through the model's free_ptr.
func recordHostReturn(sc *bridge.Scope, cb string, m *contract.MethodDesc) {
	t := m.Return
	tr := ownership.Transfer{
		Kind:    ownership.KindString,
		Site:    bridge.ReturnSite(cb, m.Name).String(),
		Free:    ownership.HostFree(ModelName(cb)),
		Elem:    t.String(),
		Inbound: true,
	}
	if t.Category() == ffitype.CatBuffer {
		tr.Kind = ownership.KindBuffer
		tr.Width = t.Elem.Width()
	}
	sc.Ledger.Record(tr)
}

// callbackValue writes the temporaries keeping a's boundary form alive for
// the call and returns the expression passed to the host.
func callbackValue(w *emit.Writer, a contract.ArgDesc) string {
	t := a.Type
	switch t.Category() {
	case ffitype.CatDirect:
		if t.Kind == ffitype.Bool {
			return a.Name + " as u8"
		}
		return a.Name
	case ffitype.CatString:
		w.Line("let c_%s = CString::new(%s).expect(\"string contains NUL\");", a.Name, a.Name)
		return fmt.Sprintf("c_%s.as_ptr()", a.Name)
	case ffitype.CatBuffer:
		width := t.Elem.Width()
		w.Line("let c_%s_buf: Vec<i%d> = %s.into_iter().map(|v| v as i%d).collect();", a.Name, width*8, a.Name, width*8)
		return fmt.Sprintf("%s { ptr: c_%s_buf.as_ptr(), len: c_%s_buf.len() as i32 }", ArrayName(width), a.Name, a.Name)
	}
	w.Line("let c_%s = CString::new(%s).expect(\"text contains NUL\");", a.Name, bridge.EncodeJSON(a.Name, t))
	return fmt.Sprintf("c_%s.as_ptr()", a.Name)
}

// CallbackTable writes the module dispatch table. Each live handle keeps a
// copy of the model it was registered with.
func (s *Strategy) CallbackTable(w *emit.Writer, sc *bridge.Scope, cbs []*contract.InterfaceDesc) error {
	entries := make([]bridge.TableEntry, len(cbs))
	for i, cb := range cbs {
		entries[i] = bridge.TableEntry{Variant: cb.Name, Payload: ModelName(cb.Name)}
	}
	bridge.WriteDispatchTable(w, entries)
	return nil
}
