package jni

import (
	"fmt"
	"strings"

	"github.com/rubiojr/bindgen/bridge"
	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/emit"
	"github.com/rubiojr/bindgen/ffitype"
	"github.com/rubiojr/bindgen/naming"
)

// dispatcherName is the static host method invoking cb.method on the
// object registered under a handle.
func dispatcherName(cb, method string) string {
	return "invoke" + naming.PascalCase(cb) + naming.PascalCase(method)
}

// methodDescriptor is the JVM descriptor of a dispatcher: the handle first,
// then the callback arguments.
func methodDescriptor(m *contract.MethodDesc) string {
	var b strings.Builder
	b.WriteString("(J")
	for _, a := range m.Args {
		b.WriteString(descriptor(a.Type))
	}
	b.WriteString(")")
	b.WriteString(descriptor(m.Return))
	return b.String()
}

// CallbackTrampoline writes the native implementation of cb. Each method
// attaches the current thread and calls the host dispatcher through the
// host class captured when the handle was registered.
func (s *Strategy) CallbackTrampoline(w *emit.Writer, sc *bridge.Scope, cb *contract.InterfaceDesc) error {
	tramp := bridge.TrampolineName(cb.Name)
	w.Block(fmt.Sprintf("struct %s {", tramp), "}", func() {
		w.Line("handle: i64,")
	})
	w.Blank()

	var ferr error
	w.Block(fmt.Sprintf("impl %s for %s {", cb.Name, tramp), "}", func() {
		for i := range cb.Methods {
			m := bridge.NamedArgs(&cb.Methods[i])
			if err := s.trampolineMethod(w, cb.Name, m); err != nil {
				ferr = err
				return
			}
		}
	})
	if ferr != nil {
		return ferr
	}
	w.Blank()

	w.Block(fmt.Sprintf("impl Drop for %s {", tramp), "}", func() {
		w.Block("fn drop(&mut self) {", "}", func() {
			w.Block(fmt.Sprintf("if let Some(CallbackEntry::%s(host_class)) = release_callback(self.handle) {", cb.Name), "}", func() {
				w.Block("if let Ok(env) = java_vm().attach_current_thread() {", "}", func() {
					w.Line("let class = JClass::from(host_class.as_obj());")
					w.Line(`let _ = env.call_static_method(class, "freeCallback", "(J)V", &[JValue::Long(self.handle)]);`)
				})
			})
		})
	})
	w.Blank()
	return nil
}

func (s *Strategy) trampolineMethod(w *emit.Writer, cb string, m *contract.MethodDesc) error {
	params := []string{"&self"}
	for _, a := range m.Args {
		params = append(params, a.Name+": "+bridge.RustType(a.Type))
	}
	sig := fmt.Sprintf("fn %s(%s)", m.Name, strings.Join(params, ", "))
	if m.Return.Kind != ffitype.Void {
		sig += " -> " + bridge.RustType(m.Return)
	}

	var ferr error
	w.Block(sig+" {", "}", func() {
		bridge.WriteTrampolineLookup(w, cb, "host_class")
		w.Line(`let env = java_vm().attach_current_thread().expect("attach thread");`)
		values := []string{"JValue::Long(self.handle)"}
		for _, a := range m.Args {
			v, err := s.jvalue(w, a)
			if err != nil {
				ferr = err
				return
			}
			values = append(values, v)
		}
		w.Line("let class = JClass::from(host_class.as_obj());")
		w.Line("let ret = env.call_static_method(class, %q, %q, &[%s]).expect(%q);",
			dispatcherName(cb, m.Name), methodDescriptor(m), strings.Join(values, ", "), dispatcherName(cb, m.Name))
		ferr = s.trampolineReturn(w, cb, m)
	})
	return ferr
}

// trampolineReturn writes the conversion of the dispatcher result "ret"
// into the native return value of m. Strings and arrays returned by the
// host are VM objects; they are copied out and left to the collector.
func (s *Strategy) trampolineReturn(w *emit.Writer, cb string, m *contract.MethodDesc) error {
	t := m.Return
	site := bridge.ReturnSite(cb, m.Name)
	switch t.Category() {
	case ffitype.CatVoid:
		w.Line("let _ = ret;")
	case ffitype.CatDirect:
		sv, err := scalarOf(t)
		if err != nil {
			return bridge.Unsupported(site, "%v", err)
		}
		if t.Kind == ffitype.Bool {
			w.Line("ret.z().expect(\"boolean result\")")
		} else {
			w.Line("ret.%s().expect(\"%s result\") as %s", sv.getter, sv.java, t.Origin)
		}
	case ffitype.CatString:
		w.Line("let j_ret = JString::from(ret.l().expect(\"string result\"));")
		w.Line("let out: String = %s;", readString("j_ret", "result of "+m.Name))
		w.Line("out")
	case ffitype.CatText:
		w.Line("let j_ret = JString::from(ret.l().expect(\"string result\"));")
		w.Line("let text: String = %s;", readString("j_ret", "result of "+m.Name))
		w.Text(bridge.DecodeJSON("&text", t))
	case ffitype.CatBuffer:
		sv, err := scalarOf(*t.Elem)
		if err != nil {
			return bridge.Unsupported(site, "%v", err)
		}
		w.Line("let j_ret = ret.l().expect(\"array result\").into_inner() as %s;", sv.array)
		readArray(w, "j_ret", t, "result of "+m.Name)
	default:
		return bridge.Unsupported(site, "no JNI mapping for %s", t)
	}
	return nil
}

// jvalue writes any temporaries needed to pass a and returns the JValue
// expression.
func (s *Strategy) jvalue(w *emit.Writer, a contract.ArgDesc) (string, error) {
	t := a.Type
	switch t.Category() {
	case ffitype.CatDirect:
		sv := scalars[t.Kind]
		if t.Kind == ffitype.Bool {
			return fmt.Sprintf("JValue::Bool(%s as jboolean)", a.Name), nil
		}
		return fmt.Sprintf("JValue::%s(%s as %s)", sv.jvalue, a.Name, sv.jtype), nil
	case ffitype.CatString:
		w.Line("let j_%s = env.new_string(%s).expect(\"new string\");", a.Name, a.Name)
		return fmt.Sprintf("JValue::Object(JObject::from(j_%s))", a.Name), nil
	case ffitype.CatText:
		w.Line("let j_%s = env.new_string(%s).expect(\"new string\");", a.Name, bridge.EncodeJSON(a.Name, t))
		return fmt.Sprintf("JValue::Object(JObject::from(j_%s))", a.Name), nil
	case ffitype.CatBuffer:
		sv := scalars[t.Elem.Kind]
		w.Line("let j_%s_buf: Vec<%s> = %s.into_iter().map(|v| v as %s).collect();", a.Name, sv.jtype, a.Name, sv.jtype)
		w.Line("let j_%s = env.new_%s_array(j_%s_buf.len() as jsize).expect(\"new array\");", a.Name, sv.java, a.Name)
		w.Line("env.set_%s_array_region(j_%s, 0, &j_%s_buf).expect(\"array region\");", sv.java, a.Name, a.Name)
		return fmt.Sprintf("JValue::Object(JObject::from(j_%s))", a.Name), nil
	}
	return "", bridge.Unsupported(bridge.Site{Subject: "argument " + a.Name}, "no JNI mapping for %s", t)
}

// CallbackTable writes the module dispatch table. Each live handle keeps a
// global reference to the host class holding the dispatchers.
func (s *Strategy) CallbackTable(w *emit.Writer, sc *bridge.Scope, cbs []*contract.InterfaceDesc) error {
	entries := make([]bridge.TableEntry, len(cbs))
	for i, cb := range cbs {
		entries[i] = bridge.TableEntry{Variant: cb.Name, Payload: "GlobalRef"}
	}
	bridge.WriteDispatchTable(w, entries)
	return nil
}
