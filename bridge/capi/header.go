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

var cScalars = map[string]string{
	"i8": "int8_t", "u8": "uint8_t",
	"i16": "int16_t", "u16": "uint16_t",
	"i32": "int32_t", "u32": "uint32_t",
	"i64": "int64_t", "u64": "uint64_t",
	"f32": "float", "f64": "double",
	"bool": "uint8_t",
}

func cScalar(t ffitype.Type) string {
	if t.Kind == ffitype.Bool {
		return "uint8_t"
	}
	return cScalars[t.Origin]
}

// cType is the C spelling of t at the boundary in direction d.
func cType(t ffitype.Type, d bridge.Direction) string {
	switch t.Category() {
	case ffitype.CatVoid:
		return "void"
	case ffitype.CatDirect:
		return cScalar(t)
	case ffitype.CatBuffer:
		return ArrayName(t.Elem.Width())
	case ffitype.CatHandle:
		return ModelName(t.Name())
	}
	switch {
	case t.Kind == ffitype.Struct:
		return ProxyName(t.Name())
	case isStructArray(t):
		return StructArrayName(t.Elem.Name())
	case d == bridge.Argument:
		return "const char *"
	}
	return "char *"
}

func cDecl(typ, name string) string {
	if strings.HasSuffix(typ, "*") {
		return typ + name
	}
	return typ + " " + name
}

func guardMacro(header string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(header) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// HostFile returns the C header: the shared array records, then every
// proxy, sequence and callback model, then the exported functions and free
// entry points.
func (s *Strategy) HostFile(scopes []*bridge.Scope) (*bridge.File, error) {
	w := emit.NewWriter()
	macro := guardMacro(s.opts.Header)
	crate := s.opts.Crate

	w.Line("// Code generated by bindgen. DO NOT EDIT.")
	w.Line("#ifndef %s", macro)
	w.Line("#define %s", macro)
	w.Blank()
	w.Line("#include <stdint.h>")
	w.Blank()
	w.Line("#ifdef __cplusplus")
	w.Line(`extern "C" {`)
	w.Line("#endif")
	w.Blank()

	for _, width := range bufferWidths {
		w.Block("typedef struct {", fmt.Sprintf("} %s;", ArrayName(width)), func() {
			w.Line("const int%d_t *ptr;", width*8)
			w.Line("int32_t len;")
		})
		w.Blank()
	}

	for _, sc := range scopes {
		for _, st := range sc.OwnStructs() {
			writeCStruct(w, st)
		}
		for _, cb := range sc.Plan.Callbacks {
			writeCModel(w, cb)
		}
	}

	w.Line("void %s(int8_t *ptr, uint32_t length);", ownership.FreeRust(crate))
	w.Line("void %s(char *ptr);", ownership.FreeStr(crate))
	for _, sc := range scopes {
		for _, st := range sc.OwnStructs() {
			proxy := ProxyName(st.Name)
			w.Line("void %s(%s *ptr, int32_t len);", ownership.FreeStructArray(st.Name), proxy)
			w.Line("void %s(%s p);", ownership.FreeProxy(crate, st.Name), proxy)
		}
	}

	for _, sc := range scopes {
		if len(sc.Plan.Bindings) == 0 {
			continue
		}
		w.Blank()
		w.Line("// module %s", sc.Module.Name)
		for _, b := range sc.Plan.Bindings {
			for i := range b.Interface.Methods {
				m := bridge.NamedArgs(&b.Interface.Methods[i])
				params := make([]string, len(m.Args))
				for j, a := range m.Args {
					params[j] = cDecl(cType(a.Type, bridge.Argument), a.Name)
				}
				if len(params) == 0 {
					params = []string{"void"}
				}
				w.Line("%s(%s);", cDecl(cType(m.Return, bridge.Return), s.symbol(b.Interface.Name, m.Name)), strings.Join(params, ", "))
			}
		}
	}

	w.Blank()
	w.Line("#ifdef __cplusplus")
	w.Line("}")
	w.Line("#endif")
	w.Blank()
	w.Line("#endif // %s", macro)
	return &bridge.File{Name: s.opts.Header, Content: w.String()}, nil
}

func writeCStruct(w *emit.Writer, st *contract.StructDesc) {
	proxy := ProxyName(st.Name)
	w.Block(fmt.Sprintf("typedef struct %s {", proxy), fmt.Sprintf("} %s;", proxy), func() {
		for _, f := range proxyFields(st) {
			if f.Direct {
				w.Line("%s %s;", cScalar(f.Type), f.Name)
			} else {
				w.Line("char *%s;", f.Name)
			}
		}
	})
	w.Blank()
	array := StructArrayName(st.Name)
	w.Block(fmt.Sprintf("typedef struct %s {", array), fmt.Sprintf("} %s;", array), func() {
		w.Line("%s *ptr;", proxy)
		w.Line("int32_t len;")
		w.Line("void (*free_ptr)(%s *, int32_t);", proxy)
	})
	w.Blank()
}

func writeCModel(w *emit.Writer, cb *contract.InterfaceDesc) {
	model := ModelName(cb.Name)
	w.Line("// %s callbacks receive the index first.", cb.Name)
	w.Block(fmt.Sprintf("typedef struct %s {", model), fmt.Sprintf("} %s;", model), func() {
		for i := range cb.Methods {
			m := bridge.NamedArgs(&cb.Methods[i])
			params := []string{"int64_t"}
			for _, a := range m.Args {
				params = append(params, cCallbackParam(a.Type))
			}
			w.Line("%s(%s);", cDecl(cCallbackReturn(m.Return), "(*"+m.Name+")"), strings.Join(params, ", "))
		}
		if needsHostFree(cb) {
			w.Line("void (*free_ptr)(int8_t *, int32_t);")
		}
		w.Line("void (*free_callback)(int64_t);")
		w.Line("int64_t index;")
	})
	w.Blank()
}

func cCallbackReturn(t ffitype.Type) string {
	switch t.Category() {
	case ffitype.CatVoid:
		return "void"
	case ffitype.CatDirect:
		return cScalar(t)
	case ffitype.CatBuffer:
		return ArrayName(t.Elem.Width())
	}
	return "char *"
}

func cCallbackParam(t ffitype.Type) string {
	switch t.Category() {
	case ffitype.CatDirect:
		return cScalar(t)
	case ffitype.CatBuffer:
		return ArrayName(t.Elem.Width())
	}
	return "const char *"
}
