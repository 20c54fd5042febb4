package ffitype

import "fmt"

// primitives maps the library's scalar spellings to their taxonomy class.
// Unsigned spellings share the class of the same width; Origin keeps them
// apart so emitted code casts back to the declared type.
var primitives = map[string]Kind{
	"i8":     Int8,
	"u8":     Int8,
	"i16":    Int16,
	"u16":    Int16,
	"i32":    Int32,
	"u32":    Int32,
	"i64":    Int64,
	"u64":    Int64,
	"f32":    Float32,
	"f64":    Float64,
	"bool":   Bool,
	"String": String,
}

// unsupportedScalars are built-in scalar names with no boundary mapping.
var unsupportedScalars = map[string]bool{
	"usize": true,
	"isize": true,
	"u128":  true,
	"i128":  true,
	"char":  true,
	"str":   true,
}

// Wrapper names recognised by ClassifyGeneric.
const (
	SeqWrapper = "Vec"
	BoxWrapper = "Box"
)

// ClassifyName classifies a plain (non-generic) type name. Known scalars map
// through the primitive table; any other identifier names an aggregate.
func ClassifyName(name string) (Type, error) {
	if name == "" {
		return Type{}, &UnsupportedError{Name: "<empty>"}
	}
	if name == "()" {
		return VoidType, nil
	}
	if k, ok := primitives[name]; ok {
		return Prim(k, name), nil
	}
	if unsupportedScalars[name] {
		return Type{}, &UnsupportedError{Name: name, Reason: "no fixed-width boundary mapping"}
	}
	if name == SeqWrapper || name == BoxWrapper {
		return Type{}, &UnsupportedError{Name: name, Reason: "wrapper requires one type argument"}
	}
	return NewStruct(name), nil
}

// ClassifySeq classifies Vec<elem>.
func ClassifySeq(elem Type) (Type, error) {
	if elem.Kind == Void {
		return Type{}, &UnsupportedError{Name: "Vec<()>", Reason: "sequence of unit"}
	}
	return NewVec(elem), nil
}

// ClassifyBox classifies Box<name> or Box<dyn name>. Both forms denote a
// boxed interface reference.
func ClassifyBox(name string, dyn bool) (Type, error) {
	if name == "" {
		return Type{}, &UnsupportedError{Name: "Box<?>", Reason: "missing boxed type"}
	}
	if _, ok := primitives[name]; ok {
		return Type{}, &UnsupportedError{Name: fmt.Sprintf("Box<%s>", name), Reason: "boxed scalar"}
	}
	return NewCallback(name, dyn), nil
}

// Marker returns the one-rune marker used when printing classifications.
func (c Category) Marker() string {
	switch c {
	case CatDirect:
		return "✓"
	case CatString, CatBuffer:
		return "~"
	case CatText:
		return "≡"
	case CatHandle:
		return "λ"
	default:
		return "·"
	}
}
