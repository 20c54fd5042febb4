package bridge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/emit"
	"github.com/rubiojr/bindgen/ffitype"
	"github.com/rubiojr/bindgen/transfer"
)

// Direction is the side a value is travelling to.
type Direction int

const (
	Argument Direction = iota // host → library
	Return                    // library → host
)

func (d Direction) String() string {
	if d == Return {
		return "return"
	}
	return "argument"
}

// Site locates a conversion for diagnostics and ownership records.
type Site struct {
	Interface string
	Method    string
	Subject   string
}

func (s Site) String() string {
	if s.Method == "" {
		return s.Interface + " " + s.Subject
	}
	return fmt.Sprintf("%s.%s %s", s.Interface, s.Method, s.Subject)
}

// ArgSite returns the site of argument name of iface.method.
func ArgSite(iface, method, name string) Site {
	return Site{Interface: iface, Method: method, Subject: "argument " + name}
}

// ReturnSite returns the site of the return value of iface.method.
func ReturnSite(iface, method string) Site {
	return Site{Interface: iface, Method: method, Subject: "return"}
}

// Param is one exported parameter.
type Param struct {
	Name string
	Type string
}

// Signature holds the boundary types of one exported entry point.
type Signature struct {
	Params []Param
	Return string // empty for unit
}

// ParamList joins the parameters as "name: type, ...".
func (s Signature) ParamList() string {
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.Name + ": " + p.Type
	}
	return strings.Join(parts, ", ")
}

// File is a generated artifact relative to the output directory.
type File struct {
	Name    string
	Content string
}

// Strategy supplies the target-specific pieces of a bridge module. One
// strategy is selected per run. Methods that write take the module Scope;
// conversions that produce host-bound allocations record them in
// Scope.Ledger.
type Strategy interface {
	// Name is the registry name of the target.
	Name() string
	// Prologue writes the module header and imports.
	Prologue(w *emit.Writer, sc *Scope) error
	// Index writes the index artifact body for the generated modules.
	Index(w *emit.Writer, modules []string) error
	// MethodSig returns the exported function signature of iface.m with
	// the boundary types in sig, without the opening brace.
	MethodSig(iface *contract.InterfaceDesc, m *contract.MethodDesc, sig Signature) string
	// ArgConvert writes the conversion of arg into a native value and
	// returns the name bound to the converted value.
	ArgConvert(w *emit.Writer, sc *Scope, site Site, arg contract.ArgDesc) (string, error)
	// ReturnConvert writes the conversion of the native value bound to
	// "result", ending with the boundary value expression.
	ReturnConvert(w *emit.Writer, sc *Scope, site Site, ret ffitype.Type) error
	// DefaultReturn is the boundary value returned when the call panics.
	DefaultReturn(sc *Scope, ret ffitype.Type) string
	// BoundaryType is the type spelled in the exported signature for a
	// value of type t travelling in direction d. Unit returns are "".
	BoundaryType(sc *Scope, site Site, t ffitype.Type, d Direction) (string, error)
	// CallbackTrampoline writes the native implementation of a callback
	// interface that forwards to the host.
	CallbackTrampoline(w *emit.Writer, sc *Scope, cb *contract.InterfaceDesc) error
	// CallbackTable writes the module dispatch table for cbs.
	CallbackTable(w *emit.Writer, sc *Scope, cbs []*contract.InterfaceDesc) error
	// Structure writes the transfer structure of s.
	Structure(w *emit.Writer, sc *Scope, s *contract.StructDesc) error
	// HostFile returns the host-language artifact covering the scopes of
	// every generated module.
	HostFile(scopes []*Scope) (*File, error)
	// Marshaler returns the Go-side boundary codec of the target.
	Marshaler(structs contract.StructSet) transfer.Marshaler
}

// Options configure a strategy.
type Options struct {
	Crate     string // library name, prefix of C entry points
	Namespace string // JNI package, e.g. "com.example.ffi"
	HostClass string // JNI class holding the native declarations
	Header    string // C header file name
}

// Factory constructs a strategy.
type Factory func(opts Options) (Strategy, error)

var registry = map[string]Factory{}

// Register adds a strategy to the registry.
// Called from init() in each target package.
func Register(name string, f Factory) {
	registry[name] = f
}

// NewStrategy constructs the registered strategy name.
func NewStrategy(name string, opts Options) (Strategy, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown target %q (registered: %v)", name, Names())
	}
	if opts.Crate == "" {
		return nil, fmt.Errorf("target %s: crate name is required", name)
	}
	return f(opts)
}

// Names returns sorted names of all registered strategies.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
