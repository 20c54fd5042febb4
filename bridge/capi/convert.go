package capi

import (
	"fmt"

	"github.com/rubiojr/bindgen/bridge"
	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/emit"
	"github.com/rubiojr/bindgen/ffitype"
	"github.com/rubiojr/bindgen/ownership"
)

// ArgConvert copies the host argument into an owned native value. Strings,
// buffers and proxies stay owned by the host. A struct array is consumed: it
// is released through its own free_ptr once copied.
func (s *Strategy) ArgConvert(w *emit.Writer, sc *bridge.Scope, site bridge.Site, arg contract.ArgDesc) (string, error) {
	name := arg.Name
	out := "r_" + name
	t := arg.Type
	if _, err := s.BoundaryType(sc, site, t, bridge.Argument); err != nil {
		return "", err
	}

	switch t.Category() {
	case ffitype.CatDirect:
		if t.Kind == ffitype.Bool {
			w.Line("let %s = %s != 0;", out, name)
		} else {
			w.Line("let %s = %s;", out, name)
		}
	case ffitype.CatString:
		w.Line("let %s: String = %s(%s);", out, readCStr, name)
	case ffitype.CatBuffer:
		w.Block(fmt.Sprintf("let %s: %s = if %s.ptr.is_null() || %s.len <= 0 {", out, bridge.RustType(t), name, name), "} else {", func() {
			w.Line("Vec::new()")
		})
		w.Indent()
		w.Line("unsafe { std::slice::from_raw_parts(%s.ptr, %s.len as usize) }.iter().map(|v| *v as %s).collect()", name, name, t.Elem.Origin)
		w.Dedent()
		w.Line("};")
	case ffitype.CatText:
		switch {
		case t.Kind == ffitype.Struct:
			w.Line("let %s: %s = %s.to_native();", out, t.Name(), name)
		case isStructArray(t):
			e := t.Elem.Name()
			w.Block(fmt.Sprintf("let %s: Vec<%s> = {", out, e), "};", func() {
				w.Block(fmt.Sprintf("let items: Vec<%s> = if %s.ptr.is_null() || %s.len <= 0 {", e, name, name), "} else {", func() {
					w.Line("Vec::new()")
				})
				w.Indent()
				w.Line("unsafe { std::slice::from_raw_parts(%s.ptr, %s.len as usize) }.iter().map(|p| p.to_native()).collect()", name, name)
				w.Dedent()
				w.Line("};")
				w.Block(fmt.Sprintf("if !%s.ptr.is_null() {", name), "}", func() {
					w.Line("(%s.free_ptr)(%s.ptr, %s.len);", name, name, name)
				})
				w.Line("items")
			})
		default:
			text := out + "_text"
			w.Line("let %s: String = %s(%s);", text, readCStr, name)
			w.Line("let %s: %s = %s;", out, bridge.RustType(t), bridge.DecodeJSON("&"+text, t))
		}
	case ffitype.CatHandle:
		cb := t.Name()
		w.Line("register_callback(%s.index, CallbackEntry::%s(%s));", name, cb, name)
		w.Line("let %s: Box<dyn %s> = Box::new(%s { handle: %s.index });", out, cb, bridge.TrampolineName(cb), name)
	default:
		return "", bridge.Unsupported(site, "no C mapping for %s", t)
	}
	return out, nil
}

// ReturnConvert hands the native result to the host. Every allocation the
// host receives is recorded with the entry point that releases it.
func (s *Strategy) ReturnConvert(w *emit.Writer, sc *bridge.Scope, site bridge.Site, t ffitype.Type) error {
	if _, err := s.BoundaryType(sc, site, t, bridge.Return); err != nil {
		return err
	}
	crate := s.opts.Crate
	switch t.Category() {
	case ffitype.CatVoid:
		w.Line("result")
	case ffitype.CatDirect:
		if t.Kind == ffitype.Bool {
			w.Line("result as u8")
		} else {
			w.Line("result")
		}
	case ffitype.CatString:
		w.Line("CString::new(result).expect(\"string contains NUL\").into_raw()")
		sc.Ledger.Record(ownership.Transfer{Kind: ownership.KindString, Site: site.String(), Free: ownership.FreeStr(crate)})
	case ffitype.CatBuffer:
		width := t.Elem.Width()
		w.Line("let boxed = result.into_boxed_slice();")
		w.Line("let len = boxed.len() as i32;")
		w.Line("let ptr = Box::into_raw(boxed) as *mut %s as *const i%d;", t.Elem.Origin, width*8)
		w.Line("%s { ptr, len }", ArrayName(width))
		sc.Ledger.Record(ownership.Transfer{Kind: ownership.KindBuffer, Site: site.String(), Free: ownership.FreeRust(crate), Width: width, Elem: t.Elem.Origin})
	case ffitype.CatText:
		switch {
		case t.Kind == ffitype.Struct:
			w.Line("%s::from_native(result)", ProxyName(t.Name()))
			sc.Ledger.Record(ownership.Transfer{Kind: ownership.KindProxy, Site: site.String(), Free: ownership.FreeProxy(crate, t.Name()), Elem: ProxyName(t.Name())})
		case isStructArray(t):
			e := t.Elem.Name()
			proxy := ProxyName(e)
			w.Line("let items: Vec<%s> = result.into_iter().map(%s::from_native).collect();", proxy, proxy)
			w.Line("let boxed = items.into_boxed_slice();")
			w.Line("let len = boxed.len() as i32;")
			w.Line("%s { ptr: Box::into_raw(boxed) as *mut %s, len, free_ptr: %s }", StructArrayName(e), proxy, ownership.FreeStructArray(e))
			sc.Ledger.Record(ownership.Transfer{Kind: ownership.KindStructArray, Site: site.String(), Free: ownership.FreeStructArray(e), Elem: proxy})
		default:
			w.Line("let text = %s;", bridge.EncodeJSON("result", t))
			w.Line("CString::new(text).expect(\"text contains NUL\").into_raw()")
			sc.Ledger.Record(ownership.Transfer{Kind: ownership.KindString, Site: site.String(), Free: ownership.FreeStr(crate), Elem: t.String()})
		}
	default:
		return bridge.Unsupported(site, "no C mapping for %s", t)
	}
	return nil
}
