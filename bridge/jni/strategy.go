// Package jni is the managed-VM target: bridge functions exported through
// the Java Native Interface, a Java host class declaring them, and
// trampolines forwarding callback interfaces to static host dispatchers.
package jni

import (
	"fmt"
	"strings"

	"github.com/rubiojr/bindgen/bridge"
	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/emit"
	"github.com/rubiojr/bindgen/ffitype"
	"github.com/rubiojr/bindgen/naming"
	"github.com/rubiojr/bindgen/transfer"
)

// Name is the registry name of the target.
const Name = "jni"

// DefaultHostClass is used when no host class is configured.
const DefaultHostClass = "RustLib"

func init() {
	bridge.Register(Name, func(opts bridge.Options) (bridge.Strategy, error) {
		return New(opts)
	})
}

// Strategy implements bridge.Strategy for JNI.
type Strategy struct {
	opts bridge.Options
}

// New returns a JNI strategy. A namespace is required.
func New(opts bridge.Options) (*Strategy, error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("jni: namespace is required")
	}
	if opts.HostClass == "" {
		opts.HostClass = DefaultHostClass
	}
	return &Strategy{opts: opts}, nil
}

func (s *Strategy) Name() string { return Name }

// classPath is the slash-separated JVM name of the host class.
func (s *Strategy) classPath() string {
	return strings.ReplaceAll(s.opts.Namespace, ".", "/") + "/" + s.opts.HostClass
}

// nativeName is the Java name of the native method bridging iface.method.
func nativeName(iface, method string) string {
	return "native" + naming.PascalCase(iface) + naming.PascalCase(method)
}

// symbol is the exported JNI symbol of iface.method.
func (s *Strategy) symbol(iface, method string) string {
	return fmt.Sprintf("Java_%s_%s_%s",
		naming.JNIMangle(s.opts.Namespace),
		naming.JNIMangle(s.opts.HostClass),
		naming.JNIMangle(nativeName(iface, method)))
}

func (s *Strategy) Prologue(w *emit.Writer, sc *bridge.Scope) error {
	w.Line("// Code generated by bindgen. DO NOT EDIT.")
	w.Line("#![allow(unused_imports, unused_variables, non_snake_case, dead_code)]")
	w.Blank()
	w.Line("use std::collections::HashMap;")
	w.Line("use std::sync::{Mutex, OnceLock};")
	w.Blank()
	w.Line("use jni::objects::{GlobalRef, JClass, JObject, JString, JValue};")
	w.Line("use jni::sys::*;")
	w.Line("use jni::JNIEnv;")
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
	return nil
}

func (s *Strategy) Index(w *emit.Writer, modules []string) error {
	w.Line("// Code generated by bindgen. DO NOT EDIT.")
	w.Line("#![allow(dead_code)]")
	w.Blank()
	w.Line("use std::ffi::c_void;")
	w.Line("use std::sync::OnceLock;")
	w.Blank()
	w.Line("use jni::sys::{jint, JNI_VERSION_1_6};")
	w.Line("use jni::JavaVM;")
	w.Blank()
	for _, m := range modules {
		w.Line("pub mod %s;", m)
	}
	w.Blank()
	w.Line("static JAVA_VM: OnceLock<JavaVM> = OnceLock::new();")
	w.Blank()
	w.Line("#[no_mangle]")
	w.Block("pub extern \"system\" fn JNI_OnLoad(vm: JavaVM, _reserved: *mut c_void) -> jint {", "}", func() {
		w.Line("let _ = JAVA_VM.set(vm);")
		w.Line("JNI_VERSION_1_6")
	})
	w.Blank()
	w.Block("pub(crate) fn java_vm() -> &'static JavaVM {", "}", func() {
		w.Line(`JAVA_VM.get().expect("JNI_OnLoad has not run")`)
	})
	w.Blank()
	bridge.WriteJSONFloats(w)
	emit.WritePanicHelper(w)
	return nil
}

func (s *Strategy) MethodSig(iface *contract.InterfaceDesc, m *contract.MethodDesc, sig bridge.Signature) string {
	sig.Params = append([]bridge.Param{{Name: "env", Type: "JNIEnv"}, {Name: "_class", Type: "JClass"}}, sig.Params...)
	out := fmt.Sprintf("pub extern \"system\" fn %s(%s)", s.symbol(iface.Name, m.Name), sig.ParamList())
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
		sv, err := scalarOf(t)
		if err != nil {
			return "", bridge.Unsupported(site, "%v", err)
		}
		return sv.jtype, nil
	case ffitype.CatBuffer:
		sv, err := scalarOf(*t.Elem)
		if err != nil {
			return "", bridge.Unsupported(site, "%v", err)
		}
		return sv.array, nil
	case ffitype.CatString:
		if d == bridge.Argument {
			return "JString", nil
		}
		return "jstring", nil
	case ffitype.CatText:
		if err := sc.CheckText(site, t); err != nil {
			return "", err
		}
		if d == bridge.Argument {
			return "JString", nil
		}
		return "jstring", nil
	case ffitype.CatHandle:
		if d == bridge.Return {
			return "", bridge.Unsupported(site, "callbacks cannot be returned")
		}
		if _, ok := sc.Callback(t.Name()); !ok {
			return "", bridge.Unsupported(site, "unknown callback %s", t.Name())
		}
		return "jlong", nil
	}
	return "", bridge.Unsupported(site, "no JNI mapping for %s", t)
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
	}
	return "std::ptr::null_mut()"
}

func (s *Strategy) Structure(w *emit.Writer, sc *bridge.Scope, st *contract.StructDesc) error {
	return bridge.WriteMirror(w, sc, st)
}

func (s *Strategy) Marshaler(structs contract.StructSet) transfer.Marshaler {
	return &Marshaler{Structs: structs}
}
