package bridge

import (
	"fmt"
	"strings"

	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/emit"
	"github.com/rubiojr/bindgen/ffitype"
)

// RustType spells t as a library-side Rust type.
func RustType(t ffitype.Type) string {
	switch t.Kind {
	case ffitype.Void:
		return "()"
	case ffitype.Vec:
		return "Vec<" + RustType(*t.Elem) + ">"
	case ffitype.Callback:
		return "Box<dyn " + t.Name() + ">"
	case ffitype.String:
		return "String"
	}
	return t.Origin
}

// MirrorName is the serde transfer structure mirroring struct name.
func MirrorName(name string) string { return "Struct_" + name }

// MirrorType spells t with every struct replaced by its mirror and every
// float by its text-safe wrapper.
func MirrorType(t ffitype.Type) string {
	switch t.Kind {
	case ffitype.Struct:
		return MirrorName(t.Name())
	case ffitype.Vec:
		return "Vec<" + MirrorType(*t.Elem) + ">"
	case ffitype.Float32:
		return jsonF32
	case ffitype.Float64:
		return jsonF64
	}
	return RustType(t)
}

func needsMirror(t ffitype.Type) bool {
	found := false
	t.Walk(func(e ffitype.Type) {
		switch e.Kind {
		case ffitype.Struct, ffitype.Float32, ffitype.Float64:
			found = true
		}
	})
	return found
}

// ToMirror returns the expression converting the native value expr of type
// t into its mirror.
func ToMirror(expr string, t ffitype.Type) string {
	switch {
	case t.Kind == ffitype.Struct:
		return MirrorName(t.Name()) + "::from(" + expr + ")"
	case t.Kind == ffitype.Float32 || t.Kind == ffitype.Float64:
		return MirrorType(t) + "(" + expr + ")"
	case t.Kind == ffitype.Vec && needsMirror(*t.Elem):
		return fmt.Sprintf("%s.into_iter().map(|e| %s).collect::<Vec<_>>()", expr, ToMirror("e", *t.Elem))
	}
	return expr
}

// FromMirror is the inverse of ToMirror.
func FromMirror(expr string, t ffitype.Type) string {
	switch {
	case t.Kind == ffitype.Struct:
		return t.Name() + "::from(" + expr + ")"
	case t.Kind == ffitype.Float32 || t.Kind == ffitype.Float64:
		return expr + ".0"
	case t.Kind == ffitype.Vec && needsMirror(*t.Elem):
		return fmt.Sprintf("%s.into_iter().map(|e| %s).collect::<Vec<_>>()", expr, FromMirror("e", *t.Elem))
	}
	return expr
}

const (
	jsonF32 = "JsonF32"
	jsonF64 = "JsonF64"
)

// WriteJSONFloats writes the float wrappers used by mirrors. Non-finite
// values travel as the strings "NaN", "Infinity" and "-Infinity"; finite
// values as JSON numbers.
func WriteJSONFloats(w *emit.Writer) {
	w.Block("macro_rules! json_float {", "}", func() {
		w.Block("($name:ident, $t:ty, $ser:ident) => {", "};", func() {
			w.Line("#[derive(Clone, Copy)]")
			w.Line("pub(crate) struct $name(pub $t);")
			w.Blank()
			w.Block("impl serde::Serialize for $name {", "}", func() {
				w.Block("fn serialize<S: serde::Serializer>(&self, s: S) -> Result<S::Ok, S::Error> {", "}", func() {
					w.Line("if self.0.is_nan() {")
					w.Indent()
					w.Line(`s.serialize_str("NaN")`)
					w.Dedent()
					w.Line("} else if self.0.is_infinite() {")
					w.Indent()
					w.Line(`s.serialize_str(if self.0 > 0.0 { "Infinity" } else { "-Infinity" })`)
					w.Dedent()
					w.Line("} else {")
					w.Indent()
					w.Line("s.$ser(self.0)")
					w.Dedent()
					w.Line("}")
				})
			})
			w.Blank()
			w.Block("impl<'de> serde::Deserialize<'de> for $name {", "}", func() {
				w.Block("fn deserialize<D: serde::Deserializer<'de>>(d: D) -> Result<Self, D::Error> {", "}", func() {
					w.Line("#[derive(serde::Deserialize)]")
					w.Line("#[serde(untagged)]")
					w.Block("enum Repr {", "}", func() {
						w.Line("Num($t),")
						w.Line("Text(String),")
					})
					w.Block("match <Repr as serde::Deserialize>::deserialize(d)? {", "}", func() {
						w.Line("Repr::Num(v) => Ok($name(v)),")
						w.Block("Repr::Text(t) => match t.as_str() {", "},", func() {
							w.Line(`"NaN" => Ok($name(<$t>::NAN)),`)
							w.Line(`"Infinity" => Ok($name(<$t>::INFINITY)),`)
							w.Line(`"-Infinity" => Ok($name(<$t>::NEG_INFINITY)),`)
							w.Line(`_ => Err(serde::de::Error::custom(format!("invalid float {}", t))),`)
						})
					})
				})
			})
		})
	})
	w.Blank()
	w.Line("json_float!(%s, f32, serialize_f32);", jsonF32)
	w.Line("json_float!(%s, f64, serialize_f64);", jsonF64)
	w.Blank()
}

// EncodeJSON returns the expression serializing the native value expr of
// type t to a JSON String.
func EncodeJSON(expr string, t ffitype.Type) string {
	return fmt.Sprintf("serde_json::to_string(&%s).expect(\"serialize %s\")", ToMirror(expr, t), t)
}

// DecodeJSON returns the expression deserializing the &str expression text
// into a native value of type t.
func DecodeJSON(text string, t ffitype.Type) string {
	parsed := fmt.Sprintf("serde_json::from_str::<%s>(%s).expect(\"deserialize %s\")", MirrorType(t), text, t)
	return FromMirror(parsed, t)
}

// WriteMirror writes the serde transfer structure of s and the conversions
// to and from the library struct.
func WriteMirror(w *emit.Writer, sc *Scope, s *contract.StructDesc) error {
	site := Site{Interface: s.Name, Subject: "structure"}
	if err := sc.CheckText(site, ffitype.NewStruct(s.Name)); err != nil {
		return err
	}
	mirror := MirrorName(s.Name)
	tuple := false
	for _, f := range s.Fields {
		if f.Name == "" {
			tuple = true
		}
	}

	w.Line("#[allow(non_camel_case_types)]")
	w.Line("#[derive(Serialize, Deserialize)]")
	if tuple {
		types := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			types[i] = "pub " + MirrorType(f.Type)
		}
		w.Line("pub struct %s(%s);", mirror, strings.Join(types, ", "))
	} else {
		w.Block(fmt.Sprintf("pub struct %s {", mirror), "}", func() {
			for _, f := range s.Fields {
				w.Line("pub %s: %s,", f.Name, MirrorType(f.Type))
			}
		})
	}
	w.Blank()

	convert := func(from, to string, conv func(string, ffitype.Type) string) {
		w.Block(fmt.Sprintf("impl From<%s> for %s {", from, to), "}", func() {
			w.Block(fmt.Sprintf("fn from(v: %s) -> Self {", from), "}", func() {
				if tuple {
					parts := make([]string, len(s.Fields))
					for i, f := range s.Fields {
						parts[i] = conv(fmt.Sprintf("v.%d", i), f.Type)
					}
					w.Line("%s(%s)", to, strings.Join(parts, ", "))
					return
				}
				w.Block(to+" {", "}", func() {
					for _, f := range s.Fields {
						w.Line("%s: %s,", f.Name, conv("v."+f.Name, f.Type))
					}
				})
			})
		})
	}
	convert(s.Name, mirror, ToMirror)
	w.Blank()
	convert(mirror, s.Name, FromMirror)
	w.Blank()
	return nil
}
