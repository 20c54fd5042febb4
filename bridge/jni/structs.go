package jni

import (
	"fmt"
	"strings"

	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/emit"
	"github.com/rubiojr/bindgen/ffitype"
	"github.com/rubiojr/bindgen/naming"
)

// javaFieldType spells t as a field of a host struct class.
func javaFieldType(t ffitype.Type) string {
	switch t.Category() {
	case ffitype.CatDirect:
		return scalars[t.Kind].java
	case ffitype.CatString:
		return "String"
	}
	switch t.Kind {
	case ffitype.Struct:
		return t.Name()
	case ffitype.Vec:
		return javaFieldType(*t.Elem) + "[]"
	}
	return "Object"
}

// newArray is the allocation of an array of n elements of type elem, which
// may itself be an array type.
func newArray(elem, n string) string {
	if i := strings.Index(elem, "["); i >= 0 {
		return fmt.Sprintf("new %s[%s]%s", elem[:i], n, elem[i:])
	}
	return fmt.Sprintf("new %s[%s]", elem, n)
}

// jsonCodec writes the statements converting struct fields between Java
// values and org.json values. Unsigned integers are widened on the way out
// so the text matches the library's unsigned reading; floats go through the
// host class helpers that carry non-finite values as strings.
type jsonCodec struct {
	w    *emit.Writer
	next int
}

func (c *jsonCodec) tmp(prefix string) string {
	c.next++
	return fmt.Sprintf("%s%d", prefix, c.next)
}

// out returns the JSON value of the Java expression expr of type t,
// writing any loop it needs first.
func (c *jsonCodec) out(expr string, t ffitype.Type) string {
	switch t.Kind {
	case ffitype.Float32, ffitype.Float64:
		return "jsonFloat(" + expr + ")"
	case ffitype.Struct:
		return expr + ".toJsonValue()"
	case ffitype.Vec:
		arr, e := c.tmp("a"), c.tmp("e")
		c.w.Line("JSONArray %s = new JSONArray();", arr)
		c.w.Block(fmt.Sprintf("for (%s %s : %s) {", javaFieldType(*t.Elem), e, expr), "}", func() {
			c.w.Line("%s.put(%s);", arr, c.out(e, *t.Elem))
		})
		return arr
	}
	switch t.Origin {
	case "u8":
		return "Byte.toUnsignedInt(" + expr + ")"
	case "u16":
		return "Short.toUnsignedInt(" + expr + ")"
	case "u32":
		return "Integer.toUnsignedLong(" + expr + ")"
	case "u64":
		return "new java.math.BigInteger(Long.toUnsignedString(" + expr + "))"
	}
	return expr
}

// in returns the Java value of type t read from the JSON value src.
func (c *jsonCodec) in(src string, t ffitype.Type) string {
	switch t.Kind {
	case ffitype.Bool:
		return "(Boolean) " + src
	case ffitype.String:
		return "(String) " + src
	case ffitype.Float32:
		return "(float) parseFloat(" + src + ")"
	case ffitype.Float64:
		return "parseFloat(" + src + ")"
	case ffitype.Struct:
		return t.Name() + ".fromJsonValue(" + src + ")"
	case ffitype.Vec:
		arr, v, i := c.tmp("a"), c.tmp("v"), c.tmp("i")
		elem := javaFieldType(*t.Elem)
		c.w.Line("JSONArray %s = (JSONArray) %s;", arr, src)
		c.w.Line("%s %s = %s;", javaFieldType(t), v, newArray(elem, arr+".length()"))
		c.w.Block(fmt.Sprintf("for (int %s = 0; %s < %s.length(); %s++) {", i, i, arr, i), "}", func() {
			c.w.Line("%s[%s] = %s;", v, i, c.in(fmt.Sprintf("%s.get(%s)", arr, i), *t.Elem))
		})
		return v
	}
	if t.Origin == "u64" {
		return "new java.math.BigInteger(" + src + ".toString()).longValue()"
	}
	return fmt.Sprintf("((Number) %s).%sValue()", src, scalars[t.Kind].java)
}

func javaFieldName(f contract.ArgDesc, i int) string {
	if f.Name == "" {
		return fmt.Sprintf("f%d", i)
	}
	return naming.CamelCase(f.Name)
}

func isTupleStruct(st *contract.StructDesc) bool {
	for _, f := range st.Fields {
		if f.Name == "" {
			return true
		}
	}
	return false
}

// writeJavaStruct writes the host class of st. Named structs travel as JSON
// objects keyed by the declared field names, tuple structs as arrays.
func writeJavaStruct(w *emit.Writer, st *contract.StructDesc) {
	tuple := isTupleStruct(st)
	w.Blank()
	w.Block(fmt.Sprintf("public static final class %s {", st.Name), "}", func() {
		for i, f := range st.Fields {
			w.Line("public %s %s;", javaFieldType(f.Type), javaFieldName(f, i))
		}
		w.Blank()
		w.Block("public String toJson() throws JSONException {", "}", func() {
			w.Line("return toJsonValue().toString();")
		})
		w.Blank()
		w.Block(fmt.Sprintf("public static %s fromJson(String json) throws JSONException {", st.Name), "}", func() {
			w.Line("return fromJsonValue(new JSONTokener(json).nextValue());")
		})
		w.Blank()
		w.Block("Object toJsonValue() throws JSONException {", "}", func() {
			c := &jsonCodec{w: w}
			if tuple {
				w.Line("JSONArray out = new JSONArray();")
			} else {
				w.Line("JSONObject out = new JSONObject();")
			}
			for i, f := range st.Fields {
				v := c.out("this."+javaFieldName(f, i), f.Type)
				if tuple {
					w.Line("out.put(%s);", v)
				} else {
					w.Line("out.put(%q, %s);", f.Name, v)
				}
			}
			w.Line("return out;")
		})
		w.Blank()
		w.Block(fmt.Sprintf("static %s fromJsonValue(Object value) throws JSONException {", st.Name), "}", func() {
			c := &jsonCodec{w: w}
			if tuple {
				w.Line("JSONArray in = (JSONArray) value;")
			} else {
				w.Line("JSONObject in = (JSONObject) value;")
			}
			w.Line("%s out = new %s();", st.Name, st.Name)
			for i, f := range st.Fields {
				src := fmt.Sprintf("in.get(%q)", f.Name)
				if tuple {
					src = fmt.Sprintf("in.get(%d)", i)
				}
				w.Line("out.%s = %s;", javaFieldName(f, i), c.in(src, f.Type))
			}
			w.Line("return out;")
		})
	})
}

// writeJSONHelpers writes the float helpers the struct classes share.
func writeJSONHelpers(w *emit.Writer) {
	w.Blank()
	w.Block("static Object jsonFloat(double v) {", "}", func() {
		w.Block("if (Double.isNaN(v)) {", "}", func() {
			w.Line(`return "NaN";`)
		})
		w.Block("if (Double.isInfinite(v)) {", "}", func() {
			w.Line(`return v > 0 ? "Infinity" : "-Infinity";`)
		})
		w.Line("return v;")
	})
	w.Blank()
	w.Block("static double parseFloat(Object v) {", "}", func() {
		w.Block("if (v instanceof String) {", "}", func() {
			w.Line("return Double.parseDouble((String) v);")
		})
		w.Line("return ((Number) v).doubleValue();")
	})
}
