package jni

import (
	"fmt"

	"github.com/rubiojr/bindgen/bridge"
	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/emit"
	"github.com/rubiojr/bindgen/ffitype"
)

// ArgConvert copies the JNI argument into an owned native value. Strings
// and arrays are copied out of the VM, which keeps ownership of the
// originals; nothing is left for the host to free.
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
			w.Line("let %s = %s as %s;", out, name, t.Origin)
		}
	case ffitype.CatString:
		w.Line("let %s: String = %s;", out, readString(name, "argument "+name))
	case ffitype.CatBuffer:
		w.Block(fmt.Sprintf("let %s: %s = {", out, bridge.RustType(t)), "};", func() {
			readArray(w, name, t, name)
		})
	case ffitype.CatText:
		text := out + "_text"
		w.Line("let %s: String = %s;", text, readString(name, "argument "+name))
		w.Line("let %s: %s = %s;", out, bridge.RustType(t), bridge.DecodeJSON("&"+text, t))
	case ffitype.CatHandle:
		cb := t.Name()
		w.Line("let host_class = env.find_class(%q).expect(\"host class\");", s.classPath())
		w.Line("let host_class = env.new_global_ref(host_class).expect(\"host class reference\");")
		w.Line("register_callback(%s, CallbackEntry::%s(host_class));", name, cb)
		w.Line("let %s: Box<dyn %s> = Box::new(%s { handle: %s });", out, cb, bridge.TrampolineName(cb), name)
	default:
		return "", bridge.Unsupported(site, "no JNI mapping for %s", t)
	}
	return out, nil
}

// readString is the expression copying the Java string src into a String.
func readString(src, what string) string {
	return fmt.Sprintf("env.get_string(%s).expect(\"invalid string %s\").into()", src, what)
}

// readArray writes the statements copying the primitive array src out of
// the VM, ending with the collected Vec expression of sequence type t.
func readArray(w *emit.Writer, src string, t ffitype.Type, what string) {
	sv := scalars[t.Elem.Kind]
	w.Line("let len = env.get_array_length(%s).expect(\"array length of %s\") as usize;", src, what)
	w.Line("let mut buf: Vec<%s> = vec![0; len];", sv.jtype)
	w.Line("env.get_%s_array_region(%s, 0, &mut buf).expect(\"array region of %s\");", sv.java, src, what)
	w.Line("buf.into_iter().map(|v| v as %s).collect()", t.Elem.Origin)
}

// ReturnConvert hands the native result to the VM. Returned strings and
// arrays are VM objects owned by the garbage collector.
func (s *Strategy) ReturnConvert(w *emit.Writer, sc *bridge.Scope, site bridge.Site, t ffitype.Type) error {
	if _, err := s.BoundaryType(sc, site, t, bridge.Return); err != nil {
		return err
	}
	switch t.Category() {
	case ffitype.CatVoid:
		w.Line("result")
	case ffitype.CatDirect:
		w.Line("result as %s", scalars[t.Kind].jtype)
	case ffitype.CatString:
		w.Line("env.new_string(result).expect(\"new string\").into_inner()")
	case ffitype.CatBuffer:
		sv := scalars[t.Elem.Kind]
		w.Line("let out: Vec<%s> = result.into_iter().map(|v| v as %s).collect();", sv.jtype, sv.jtype)
		w.Line("let arr = env.new_%s_array(out.len() as jsize).expect(\"new array\");", sv.java)
		w.Line("env.set_%s_array_region(arr, 0, &out).expect(\"array region\");", sv.java)
		w.Line("arr")
	case ffitype.CatText:
		w.Line("let text = %s;", bridge.EncodeJSON("result", t))
		w.Line("env.new_string(text).expect(\"new string\").into_inner()")
	default:
		return bridge.Unsupported(site, "no JNI mapping for %s", t)
	}
	return nil
}
