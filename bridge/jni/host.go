package jni

import (
	"fmt"
	"strings"

	"github.com/rubiojr/bindgen/bridge"
	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/emit"
	"github.com/rubiojr/bindgen/naming"
)

func javaParams(args []contract.ArgDesc) string {
	params := make([]string, len(args))
	for i, a := range args {
		params[i] = javaType(a.Type) + " " + naming.CamelCase(a.Name)
	}
	return strings.Join(params, ", ")
}

func javaArgs(args []contract.ArgDesc) string {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = naming.CamelCase(a.Name)
	}
	return strings.Join(names, ", ")
}

// HostFile returns the Java class declaring every native method, the
// callback interfaces, the handle registry the dispatchers read from and a
// nested class per struct converting to and from its JSON text.
func (s *Strategy) HostFile(scopes []*bridge.Scope) (*bridge.File, error) {
	w := emit.NewWriter()
	cls := s.opts.HostClass
	hasCallbacks, hasStructs := false, false
	for _, sc := range scopes {
		if len(sc.Plan.Callbacks) > 0 {
			hasCallbacks = true
		}
		if len(sc.OwnStructs()) > 0 {
			hasStructs = true
		}
	}

	w.Line("// Code generated by bindgen. DO NOT EDIT.")
	w.Line("package %s;", s.opts.Namespace)
	w.Blank()
	if hasCallbacks {
		w.Line("import java.util.concurrent.ConcurrentHashMap;")
		w.Line("import java.util.concurrent.atomic.AtomicLong;")
	}
	if hasStructs {
		w.Line("import org.json.JSONArray;")
		w.Line("import org.json.JSONException;")
		w.Line("import org.json.JSONObject;")
		w.Line("import org.json.JSONTokener;")
	}
	if hasCallbacks || hasStructs {
		w.Blank()
	}
	w.Block(fmt.Sprintf("public final class %s {", cls), "}", func() {
		w.Block("static {", "}", func() {
			w.Line("System.loadLibrary(%q);", s.opts.Crate)
		})
		w.Blank()
		w.Line("private %s() {}", cls)

		if hasCallbacks {
			w.Blank()
			w.Line("private static final ConcurrentHashMap<Long, Object> CALLBACKS = new ConcurrentHashMap<>();")
			w.Line("private static final AtomicLong NEXT_HANDLE = new AtomicLong(1);")
			w.Blank()
			w.Block("public static long registerCallback(Object callback) {", "}", func() {
				w.Line("long handle = NEXT_HANDLE.getAndIncrement();")
				w.Line("CALLBACKS.put(handle, callback);")
				w.Line("return handle;")
			})
			w.Blank()
			w.Block("static void freeCallback(long handle) {", "}", func() {
				w.Line("CALLBACKS.remove(handle);")
			})
		}
		if hasStructs {
			writeJSONHelpers(w)
		}

		for _, sc := range scopes {
			if len(sc.Plan.Bindings) == 0 && len(sc.Plan.Callbacks) == 0 && len(sc.OwnStructs()) == 0 {
				continue
			}
			w.Blank()
			w.Line("// module %s", sc.Module.Name)
			for _, b := range sc.Plan.Bindings {
				for i := range b.Interface.Methods {
					m := bridge.NamedArgs(&b.Interface.Methods[i])
					w.Line("public static native %s %s(%s);", javaType(m.Return), nativeName(b.Interface.Name, m.Name), javaParams(m.Args))
				}
			}
			for _, cb := range sc.Plan.Callbacks {
				writeJavaCallback(w, cb)
			}
			for _, st := range sc.OwnStructs() {
				writeJavaStruct(w, st)
			}
		}
	})
	return &bridge.File{Name: cls + ".java", Content: w.String()}, nil
}

func writeJavaCallback(w *emit.Writer, cb *contract.InterfaceDesc) {
	w.Blank()
	w.Block(fmt.Sprintf("public interface %s {", cb.Name), "}", func() {
		for i := range cb.Methods {
			m := bridge.NamedArgs(&cb.Methods[i])
			w.Line("%s %s(%s);", javaType(m.Return), naming.CamelCase(m.Name), javaParams(m.Args))
		}
	})
	for i := range cb.Methods {
		m := bridge.NamedArgs(&cb.Methods[i])
		params := "long handle"
		if len(m.Args) > 0 {
			params += ", " + javaParams(m.Args)
		}
		ret := javaType(m.Return)
		w.Blank()
		w.Block(fmt.Sprintf("static %s %s(%s) {", ret, dispatcherName(cb.Name, m.Name), params), "}", func() {
			call := fmt.Sprintf("((%s) CALLBACKS.get(handle)).%s(%s);", cb.Name, naming.CamelCase(m.Name), javaArgs(m.Args))
			if ret == "void" {
				w.Text(call)
			} else {
				w.Line("return %s", call)
			}
		})
	}
}
