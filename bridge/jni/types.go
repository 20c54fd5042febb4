package jni

import (
	"fmt"

	"github.com/rubiojr/bindgen/ffitype"
)

// scalar describes how one primitive kind crosses the JNI boundary.
type scalar struct {
	jtype  string // JNI sys type, e.g. "jint"
	array  string // primitive array type, e.g. "jintArray"
	jvalue string // JValue variant, e.g. "Int"
	getter string // JValue accessor, e.g. "i"
	desc   string // JVM type descriptor, e.g. "I"
	java   string // Java type, also the infix of array accessors
}

var scalars = map[ffitype.Kind]scalar{
	ffitype.Int8:    {"jbyte", "jbyteArray", "Byte", "b", "B", "byte"},
	ffitype.Int16:   {"jshort", "jshortArray", "Short", "s", "S", "short"},
	ffitype.Int32:   {"jint", "jintArray", "Int", "i", "I", "int"},
	ffitype.Int64:   {"jlong", "jlongArray", "Long", "j", "J", "long"},
	ffitype.Float32: {"jfloat", "", "Float", "f", "F", "float"},
	ffitype.Float64: {"jdouble", "", "Double", "d", "D", "double"},
	ffitype.Bool:    {"jboolean", "", "Bool", "z", "Z", "boolean"},
}

func scalarOf(t ffitype.Type) (scalar, error) {
	s, ok := scalars[t.Kind]
	if !ok {
		return scalar{}, fmt.Errorf("%s is not a JNI primitive", t)
	}
	return s, nil
}

// javaType spells t in the host class. Aggregates and non-buffer sequences
// travel as JSON strings, callbacks as registered handles.
func javaType(t ffitype.Type) string {
	switch t.Category() {
	case ffitype.CatVoid:
		return "void"
	case ffitype.CatDirect:
		return scalars[t.Kind].java
	case ffitype.CatBuffer:
		return scalars[t.Elem.Kind].java + "[]"
	case ffitype.CatHandle:
		return "long"
	}
	return "String"
}

// descriptor is the JVM type descriptor of t.
func descriptor(t ffitype.Type) string {
	switch t.Category() {
	case ffitype.CatVoid:
		return "V"
	case ffitype.CatDirect:
		return scalars[t.Kind].desc
	case ffitype.CatBuffer:
		return "[" + scalars[t.Elem.Kind].desc
	case ffitype.CatHandle:
		return "J"
	}
	return "Ljava/lang/String;"
}
