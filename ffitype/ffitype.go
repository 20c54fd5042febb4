// Package ffitype defines the closed type taxonomy shared by the declaration
// parser, the orchestrator and both target strategies.
//
// Every type a contract exposes is classified into exactly one Kind. The Kind
// in turn decides the marshalling Category, which is what strategies switch on
// when choosing a boundary representation.
package ffitype

import (
	"fmt"
	"strings"
)

// Kind is the taxonomy class of a declared type.
type Kind int

const (
	Void Kind = iota
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
	Bool
	String
	Struct   // by-value aggregate, referenced by name
	Vec      // homogeneous sequence, see Type.Elem
	Callback // boxed interface reference (host-implemented)
)

func (k Kind) String() string {
	switch k {
	case Void:
		return "void"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Struct:
		return "struct"
	case Vec:
		return "vec"
	case Callback:
		return "callback"
	default:
		return "unknown"
	}
}

// Category classifies how a value of a given type crosses the boundary.
type Category int

const (
	CatVoid   Category = iota // nothing crosses
	CatDirect                 // numeric or bool, plain cast
	CatString                 // UTF-8 string, copied on each side
	CatBuffer                 // length-tagged buffer of fixed-width integers
	CatText                   // self-describing text encoding
	CatHandle                 // opaque 64-bit handle to a host object
)

func (c Category) String() string {
	switch c {
	case CatVoid:
		return "void"
	case CatDirect:
		return "direct"
	case CatString:
		return "string"
	case CatBuffer:
		return "buffer"
	case CatText:
		return "text"
	case CatHandle:
		return "handle"
	default:
		return "unknown"
	}
}

// Type is a classified type. Origin keeps the declared spelling ("u8", "i32",
// a struct or interface name) so emitted casts use the library's own types.
type Type struct {
	Kind   Kind
	Origin string
	Elem   *Type // set for Vec
	Dyn    bool  // Callback declared as Box<dyn X>
}

// VoidType is the classified unit type.
var VoidType = Type{Kind: Void, Origin: "()"}

// Prim returns a primitive type of the given kind spelled as origin.
func Prim(k Kind, origin string) Type {
	return Type{Kind: k, Origin: origin}
}

// NewVec returns a sequence over elem.
func NewVec(elem Type) Type {
	e := elem
	return Type{Kind: Vec, Origin: "Vec", Elem: &e}
}

// NewStruct returns an aggregate reference.
func NewStruct(name string) Type {
	return Type{Kind: Struct, Origin: name}
}

// NewCallback returns a boxed interface reference. dyn records whether the
// declaration used an existential bound (Box<dyn X>).
func NewCallback(name string, dyn bool) Type {
	return Type{Kind: Callback, Origin: name, Dyn: dyn}
}

// Name returns the referenced struct or interface name for Struct and
// Callback types, and the origin spelling otherwise.
func (t Type) Name() string {
	return t.Origin
}

// IsInteger reports whether t is a signed or unsigned fixed-width integer.
func (t Type) IsInteger() bool {
	switch t.Kind {
	case Int8, Int16, Int32, Int64:
		return true
	}
	return false
}

// IsNumeric reports whether t is an integer or a float.
func (t Type) IsNumeric() bool {
	return t.IsInteger() || t.Kind == Float32 || t.Kind == Float64
}

// Unsigned reports whether the declared spelling is an unsigned integer.
func (t Type) Unsigned() bool {
	return t.IsInteger() && strings.HasPrefix(t.Origin, "u")
}

// Width returns the byte width of a numeric or bool type, 0 otherwise.
func (t Type) Width() int {
	switch t.Kind {
	case Int8, Bool:
		return 1
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	}
	return 0
}

// IsBuffer reports whether t is a sequence of fixed-width integers, which
// crosses the boundary as a length-tagged buffer instead of text.
func (t Type) IsBuffer() bool {
	return t.Kind == Vec && t.Elem != nil && t.Elem.IsInteger()
}

// Category returns the marshalling category of t.
func (t Type) Category() Category {
	switch t.Kind {
	case Void:
		return CatVoid
	case Int8, Int16, Int32, Int64, Float32, Float64, Bool:
		return CatDirect
	case String:
		return CatString
	case Vec:
		if t.IsBuffer() {
			return CatBuffer
		}
		return CatText
	case Struct:
		return CatText
	case Callback:
		return CatHandle
	}
	return CatVoid
}

// String renders t in the library's own syntax.
func (t Type) String() string {
	switch t.Kind {
	case Vec:
		if t.Elem == nil {
			return "Vec<?>"
		}
		return "Vec<" + t.Elem.String() + ">"
	case Callback:
		if t.Dyn {
			return "Box<dyn " + t.Origin + ">"
		}
		return "Box<" + t.Origin + ">"
	default:
		return t.Origin
	}
}

// Walk calls fn for t and, for sequences, every nested element type.
func (t Type) Walk(fn func(Type)) {
	fn(t)
	if t.Elem != nil {
		t.Elem.Walk(fn)
	}
}

// UnsupportedError reports a type name that has no taxonomy class.
type UnsupportedError struct {
	Name   string
	Reason string
}

func (e *UnsupportedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unsupported type %s", e.Name)
	}
	return fmt.Sprintf("unsupported type %s: %s", e.Name, e.Reason)
}
