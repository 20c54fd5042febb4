// Package contract parses the library's contract declarations (traits and
// structs) and implementation blocks into normalized descriptions.
//
// Descriptions are produced once per run and are read-only afterwards.
package contract

import "github.com/rubiojr/bindgen/ffitype"

// InterfaceDesc describes a trait exposed across the boundary.
type InterfaceDesc struct {
	Name    string
	ModName string // e.g. "demo"
	ModPath string // e.g. "crate::contract::demo"
	Crate   string
	// Callback is true when any method takes a receiver. Such interfaces are
	// implemented host-side and invoked from native code.
	Callback bool
	Methods  []MethodDesc
}

// MethodDesc describes one interface method. Receiver parameters are not
// listed in Args.
type MethodDesc struct {
	Name   string
	Args   []ArgDesc
	Return ffitype.Type
}

// ArgDesc is a named, classified value: a method argument or a struct field.
type ArgDesc struct {
	Name string
	Type ffitype.Type
}

// StructDesc describes a by-value aggregate crossing the boundary.
type StructDesc struct {
	Name    string
	ModName string
	ModPath string
	Crate   string
	Fields  []ArgDesc
}

// ImplDesc names the concrete type implementing a contract interface.
type ImplDesc struct {
	Name     string // implementing type, e.g. "DemoImpl"
	Contract string // implemented interface, e.g. "DemoTrait"
	ModName  string
	ModPath  string // e.g. "crate::imp::demo"
}

// StructSet indexes struct descriptions by name.
type StructSet map[string]*StructDesc

// IndexStructs builds a StructSet. The first declaration of a name wins.
func IndexStructs(structs []StructDesc) StructSet {
	set := make(StructSet, len(structs))
	for i := range structs {
		if _, ok := set[structs[i].Name]; !ok {
			set[structs[i].Name] = &structs[i]
		}
	}
	return set
}

// Lookup returns the struct named name.
func (s StructSet) Lookup(name string) (*StructDesc, bool) {
	d, ok := s[name]
	return d, ok
}

// Method returns the method named name.
func (d *InterfaceDesc) Method(name string) (*MethodDesc, bool) {
	for i := range d.Methods {
		if d.Methods[i].Name == name {
			return &d.Methods[i], true
		}
	}
	return nil, false
}
