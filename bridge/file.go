// Package bridge resolves contract interfaces to their implementations and
// assembles per-module bridge source through a target Strategy.
package bridge

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/emit"
	"github.com/rubiojr/bindgen/ffitype"
	"github.com/rubiojr/bindgen/ownership"
)

// Cache remembers the input hash of generated modules.
type Cache interface {
	Lookup(module, target, hash string) (bool, error)
	Store(module, target, hash string) error
}

// Generator produces bridge modules with one strategy.
type Generator struct {
	Strategy Strategy
	Impls    []contract.ImplDesc
	OutDir   string
	Jobs     int    // parallel modules, 0 means runtime.NumCPU()
	Cache    Cache  // optional
	Log      *zap.Logger
	// Fingerprint is mixed into every module hash, so a change of
	// strategy options invalidates cached output.
	Fingerprint string
}

func (g *Generator) log() *zap.Logger {
	if g.Log == nil {
		return zap.NewNop()
	}
	return g.Log
}

// Artifact is the generated bridge source of one module.
type Artifact struct {
	Module string
	File   File
	Scope  *Scope
	Hash   string
}

// FileName is the output file of module name.
func FileName(module string) string { return module + ".rs" }

// GenerateModule builds the complete bridge source of mod in memory.
// structs resolves struct references; nil means the module's own structs.
// Nothing is returned on failure, so a failed module leaves no output.
func (g *Generator) GenerateModule(mod *contract.Module, structs contract.StructSet) (*Artifact, error) {
	if structs == nil {
		structs = contract.IndexStructs(mod.Structs)
	}
	log := g.log().With(zap.String("module", mod.Name), zap.String("target", g.Strategy.Name()))

	plan, err := Resolve(mod, g.Impls)
	if err != nil {
		return nil, err
	}
	for _, name := range plan.Skipped {
		log.Debug("no implementation, skipping interface", zap.String("interface", name))
	}

	sc := &Scope{Module: mod, Plan: plan, Structs: structs, Ledger: ownership.NewLedger()}
	w := emit.NewWriter()
	if err := g.generate(w, sc); err != nil {
		return nil, withModule(err, mod.Name)
	}
	if err := sc.Ledger.Verify(); err != nil {
		return nil, &GenerateError{Module: mod.Name, Msg: "ownership check failed", Err: err}
	}

	log.Debug("generated module",
		zap.Int("bindings", len(plan.Bindings)),
		zap.Int("callbacks", len(plan.Callbacks)),
		zap.Int("structs", len(mod.Structs)),
		zap.Int("transfers", len(sc.Ledger.Transfers())),
	)
	return &Artifact{
		Module: mod.Name,
		File:   File{Name: FileName(mod.Name), Content: w.String()},
		Scope:  sc,
	}, nil
}

func (g *Generator) generate(w *emit.Writer, sc *Scope) error {
	st := g.Strategy
	if err := st.Prologue(w, sc); err != nil {
		return err
	}
	for _, b := range sc.Plan.Bindings {
		for i := range b.Interface.Methods {
			if err := g.method(w, sc, b, &b.Interface.Methods[i]); err != nil {
				return err
			}
		}
	}
	for _, cb := range sc.Plan.Callbacks {
		if err := CheckCallback(sc, cb); err != nil {
			return err
		}
		if err := st.CallbackTrampoline(w, sc, cb); err != nil {
			return err
		}
	}
	if len(sc.Plan.Callbacks) > 0 {
		if err := st.CallbackTable(w, sc, sc.Plan.Callbacks); err != nil {
			return err
		}
	}
	for _, s := range sc.OwnStructs() {
		if err := st.Structure(w, sc, s); err != nil {
			return err
		}
	}
	return nil
}

// method writes one call-through entry point: exported signature, argument
// conversions in order, the implementation call and the return conversion,
// all inside an unwind guard.
func (g *Generator) method(w *emit.Writer, sc *Scope, b Binding, m *contract.MethodDesc) error {
	iface := b.Interface
	m = NamedArgs(m)
	for _, a := range m.Args {
		if a.Type.Kind == ffitype.Void {
			return Unsupported(ArgSite(iface.Name, m.Name, a.Name), "unit argument")
		}
	}
	if m.Return.Kind == ffitype.Callback {
		return Unsupported(ReturnSite(iface.Name, m.Name), "callbacks cannot be returned")
	}

	sig, err := g.signature(sc, iface, m)
	if err != nil {
		return err
	}
	label := iface.Name + "." + m.Name
	var ferr error
	w.Line("#[no_mangle]")
	w.Block(g.Strategy.MethodSig(iface, m, sig)+" {", "}", func() {
		w.Guard(label, g.Strategy.DefaultReturn(sc, m.Return), func() {
			ferr = g.callThrough(w, sc, b, m)
		})
	})
	w.Blank()
	return ferr
}

// signature asks the strategy for the boundary type of every argument and
// the return of m.
func (g *Generator) signature(sc *Scope, iface *contract.InterfaceDesc, m *contract.MethodDesc) (Signature, error) {
	sig := Signature{Params: make([]Param, 0, len(m.Args))}
	for _, a := range m.Args {
		bt, err := g.Strategy.BoundaryType(sc, ArgSite(iface.Name, m.Name, a.Name), a.Type, Argument)
		if err != nil {
			return Signature{}, err
		}
		sig.Params = append(sig.Params, Param{Name: a.Name, Type: bt})
	}
	ret, err := g.Strategy.BoundaryType(sc, ReturnSite(iface.Name, m.Name), m.Return, Return)
	if err != nil {
		return Signature{}, err
	}
	sig.Return = ret
	return sig, nil
}

func (g *Generator) callThrough(w *emit.Writer, sc *Scope, b Binding, m *contract.MethodDesc) error {
	names := make([]string, 0, len(m.Args))
	for _, a := range m.Args {
		name, err := g.Strategy.ArgConvert(w, sc, ArgSite(b.Interface.Name, m.Name, a.Name), a)
		if err != nil {
			return err
		}
		names = append(names, name)
	}
	w.Line("let result = %s::%s(%s);", b.Impl.Name, m.Name, strings.Join(names, ", "))
	return g.Strategy.ReturnConvert(w, sc, ReturnSite(b.Interface.Name, m.Name), m.Return)
}

func withModule(err error, module string) error {
	var ge *GenerateError
	if errors.As(err, &ge) {
		if ge.Module == "" {
			ge.Module = module
		}
		return err
	}
	return fmt.Errorf("module %s: %w", module, err)
}

// reservedArgs are names the generated code binds itself, in entry-point
// parameters and bridge locals, plus Java and C keywords that are valid
// Rust identifiers.
var reservedArgs = map[string]bool{
	"env": true, "_class": true, "class": true, "host_class": true,
	"result": true, "ret": true, "j_ret": true, "model": true, "handle": true,
	"arr": true, "out": true, "text": true, "len": true, "buf": true,
	"boxed": true, "items": true, "ptr": true, "c": true,

	"boolean": true, "byte": true, "char": true, "double": true,
	"float": true, "int": true, "long": true, "short": true,
	"native": true, "new": true, "package": true, "private": true,
	"public": true, "protected": true, "this": true, "throw": true,
	"null": true, "interface": true, "switch": true, "case": true,
	"catch": true, "finally": true, "import": true, "extends": true,
	"void": true, "unsigned": true, "signed": true, "register": true,
	"volatile": true, "auto": true, "default": true, "goto": true,
	"sizeof": true, "typedef": true, "union": true, "inline": true,
	"restrict": true,
}

// NamedArgs returns m with unnamed arguments named arg0, arg1, ... and
// reserved names prefixed with arg_.
func NamedArgs(m *contract.MethodDesc) *contract.MethodDesc {
	named := *m
	named.Args = make([]contract.ArgDesc, len(m.Args))
	for i, a := range m.Args {
		switch {
		case a.Name == "" || a.Name == "_":
			a.Name = fmt.Sprintf("arg%d", i)
		case reservedArgs[a.Name]:
			a.Name = "arg_" + a.Name
		}
		named.Args[i] = a
	}
	return &named
}
