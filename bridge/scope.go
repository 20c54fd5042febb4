package bridge

import (
	"sort"

	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/ffitype"
	"github.com/rubiojr/bindgen/ownership"
)

// Scope is what a strategy sees while generating one module.
type Scope struct {
	Module  *contract.Module
	Plan    *Plan
	Structs contract.StructSet // every struct of the run
	Ledger  *ownership.Ledger
}

// Callback returns the callback interface declared in this module.
func (sc *Scope) Callback(name string) (*contract.InterfaceDesc, bool) {
	for _, cb := range sc.Plan.Callbacks {
		if cb.Name == name {
			return cb, true
		}
	}
	return nil, false
}

// Struct returns the struct named name.
func (sc *Scope) Struct(name string) (*contract.StructDesc, bool) {
	return sc.Structs.Lookup(name)
}

// OwnStructs returns the structs declared in this module.
func (sc *Scope) OwnStructs() []*contract.StructDesc {
	out := make([]*contract.StructDesc, 0, len(sc.Module.Structs))
	for i := range sc.Module.Structs {
		out = append(out, &sc.Module.Structs[i])
	}
	return out
}

// ReferencedStructs returns the structs reached from bound methods,
// callback methods and this module's own struct fields, sorted by name.
// Unknown names are left out.
func (sc *Scope) ReferencedStructs() []*contract.StructDesc {
	seen := map[string]bool{}
	var visit func(t ffitype.Type)
	visit = func(t ffitype.Type) {
		t.Walk(func(e ffitype.Type) {
			if e.Kind != ffitype.Struct || seen[e.Name()] {
				return
			}
			s, ok := sc.Structs.Lookup(e.Name())
			if !ok {
				return
			}
			seen[e.Name()] = true
			for _, f := range s.Fields {
				visit(f.Type)
			}
		})
	}
	visitMethods := func(ms []contract.MethodDesc) {
		for _, m := range ms {
			for _, a := range m.Args {
				visit(a.Type)
			}
			visit(m.Return)
		}
	}
	for _, b := range sc.Plan.Bindings {
		visitMethods(b.Interface.Methods)
	}
	for _, cb := range sc.Plan.Callbacks {
		visitMethods(cb.Methods)
	}
	for _, s := range sc.Module.Structs {
		visit(ffitype.NewStruct(s.Name))
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*contract.StructDesc, 0, len(names))
	for _, n := range names {
		s, _ := sc.Structs.Lookup(n)
		out = append(out, s)
	}
	return out
}

// ForeignStructs returns the referenced structs declared in other modules.
func (sc *Scope) ForeignStructs() []*contract.StructDesc {
	var out []*contract.StructDesc
	for _, s := range sc.ReferencedStructs() {
		if s.ModName != sc.Module.Name {
			out = append(out, s)
		}
	}
	return out
}

// ForeignModules returns the sorted names of the modules declaring
// ForeignStructs.
func (sc *Scope) ForeignModules() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range sc.ForeignStructs() {
		if !seen[s.ModName] {
			seen[s.ModName] = true
			out = append(out, s.ModName)
		}
	}
	sort.Strings(out)
	return out
}

// Uses returns the sorted library paths the module must import: contract
// modules, implementation types and referenced structs.
func (sc *Scope) Uses() []string {
	seen := map[string]bool{}
	add := func(p string) {
		if p != "" && p != "::" {
			seen[p] = true
		}
	}
	for _, b := range sc.Plan.Bindings {
		add(b.Interface.ModPath + "::" + b.Interface.Name)
		add(b.Impl.ModPath + "::" + b.Impl.Name)
	}
	for _, cb := range sc.Plan.Callbacks {
		add(cb.ModPath + "::" + cb.Name)
	}
	for _, s := range sc.ReferencedStructs() {
		add(s.ModPath + "::" + s.Name)
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// CheckText reports an error when t, or anything nested in it, has no text
// encoding: unit, callbacks and unknown structs.
func (sc *Scope) CheckText(site Site, t ffitype.Type) error {
	seen := map[string]bool{}
	var check func(t ffitype.Type, site Site) error
	check = func(t ffitype.Type, site Site) error {
		var err error
		t.Walk(func(e ffitype.Type) {
			if err != nil {
				return
			}
			switch e.Kind {
			case ffitype.Void:
				err = Unsupported(site, "unit value cannot be encoded")
			case ffitype.Callback:
				err = Unsupported(site, "callback %s cannot be nested in %s", e.Name(), t)
			case ffitype.Struct:
				if seen[e.Name()] {
					return
				}
				s, ok := sc.Structs.Lookup(e.Name())
				if !ok {
					err = Unsupported(site, "unknown struct %s", e.Name())
					return
				}
				seen[e.Name()] = true
				for _, f := range s.Fields {
					fs := Site{Interface: s.Name, Subject: "field " + fieldLabel(f.Name)}
					if err = check(f.Type, fs); err != nil {
						return
					}
				}
			}
		})
		return err
	}
	return check(t, site)
}

func fieldLabel(name string) string {
	if name == "" {
		return "<unnamed>"
	}
	return name
}
