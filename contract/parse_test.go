package contract

import (
	"errors"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/bindgen/ffitype"
)

func fixtureDir(name string) string {
	_, f, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(f), "testdata", name)
}

func TestParseFile_Demo(t *testing.T) {
	p := &Parser{}
	path := filepath.Join(fixtureDir("project"), "src", "contract", "demo.rs")
	ifaces, structs, err := p.ParseFile("demo", path, "crate::contract::demo")
	require.NoError(t, err)
	require.Len(t, ifaces, 2)
	require.Len(t, structs, 1)

	demo := ifaces[0]
	assert.Equal(t, "DemoTrait", demo.Name)
	assert.Equal(t, "demo", demo.ModName)
	assert.Equal(t, "crate::contract::demo", demo.ModPath)
	assert.Equal(t, "demo", demo.Crate)
	assert.False(t, demo.Callback)

	var names []string
	for _, m := range demo.Methods {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"setup", "add", "greet", "echo_bytes", "points", "origin", "register"}, names)

	add, ok := demo.Method("add")
	require.True(t, ok)
	require.Len(t, add.Args, 2)
	assert.Equal(t, "a", add.Args[0].Name)
	assert.Equal(t, ffitype.Int32, add.Args[0].Type.Kind)
	assert.Equal(t, ffitype.Int32, add.Return.Kind)

	setup, _ := demo.Method("setup")
	assert.Equal(t, ffitype.Void, setup.Return.Kind)
	assert.Empty(t, setup.Args)

	echo, _ := demo.Method("echo_bytes")
	assert.True(t, echo.Args[0].Type.IsBuffer())
	assert.Equal(t, "u8", echo.Args[0].Type.Elem.Origin)

	pts, _ := demo.Method("points")
	assert.Equal(t, ffitype.Vec, pts.Return.Kind)
	assert.Equal(t, ffitype.Struct, pts.Return.Elem.Kind)
	assert.Equal(t, "Point", pts.Return.Elem.Name())

	reg, _ := demo.Method("register")
	assert.Equal(t, ffitype.Callback, reg.Args[0].Type.Kind)
	assert.Equal(t, "DemoCallback", reg.Args[0].Type.Name())
	assert.True(t, reg.Args[0].Type.Dyn)

	cb := ifaces[1]
	assert.Equal(t, "DemoCallback", cb.Name)
	assert.True(t, cb.Callback)
	onValue, _ := cb.Method("on_value")
	require.Len(t, onValue.Args, 1, "receiver is not an argument")
	assert.Equal(t, "value", onValue.Args[0].Name)

	point := structs[0]
	assert.Equal(t, "Point", point.Name)
	require.Len(t, point.Fields, 2)
	assert.Equal(t, "x", point.Fields[0].Name)
	assert.Equal(t, "y", point.Fields[1].Name)
}

func TestParseSource_MixedReceiverMarksCallback(t *testing.T) {
	src := `
pub trait Mixed {
    fn plain(a: i32) -> i32;
    fn with_self(&self, b: i64);
}
`
	p := &Parser{}
	ifaces, _, err := p.ParseSource("c", "m", "crate::contract::m", src)
	require.NoError(t, err)
	require.Len(t, ifaces, 1)
	assert.True(t, ifaces[0].Callback, "one receiver marks the whole interface")
}

func TestParseSource_ReceiverNotFirst(t *testing.T) {
	// Receiver position is not validated.
	src := `
pub trait Odd {
    fn f(a: i32, &self) -> i32;
}
`
	p := &Parser{}
	ifaces, _, err := p.ParseSource("c", "m", "crate::contract::m", src)
	if err != nil {
		// Older grammars reject a trailing receiver outright; either outcome
		// leaves no partially classified interface behind.
		var pe *ParseError
		assert.True(t, errors.As(err, &pe))
		return
	}
	require.Len(t, ifaces, 1)
	assert.True(t, ifaces[0].Callback)
	require.Len(t, ifaces[0].Methods[0].Args, 1)
	assert.Equal(t, "a", ifaces[0].Methods[0].Args[0].Name)
}

func TestParseSource_ScopedAndBoxed(t *testing.T) {
	src := `
pub trait T {
    fn a(v: std::vec::Vec<i64>) -> std::string::String;
    fn b(cb: Box<Listener>);
    fn c(cb: Box<dyn Listener + Send>);
    fn d(n: Vec<Vec<u16>>) -> Vec<String>;
}
`
	p := &Parser{}
	ifaces, _, err := p.ParseSource("c", "m", "crate::contract::m", src)
	require.NoError(t, err)
	ms := ifaces[0].Methods

	assert.True(t, ms[0].Args[0].Type.IsBuffer())
	assert.Equal(t, ffitype.String, ms[0].Return.Kind)

	assert.Equal(t, ffitype.Callback, ms[1].Args[0].Type.Kind)
	assert.False(t, ms[1].Args[0].Type.Dyn)

	assert.Equal(t, ffitype.Callback, ms[2].Args[0].Type.Kind)
	assert.Equal(t, "Listener", ms[2].Args[0].Type.Name())
	assert.True(t, ms[2].Args[0].Type.Dyn)

	assert.Equal(t, "Vec<Vec<u16>>", ms[3].Args[0].Type.String())
	assert.Equal(t, ffitype.CatText, ms[3].Args[0].Type.Category())
	assert.Equal(t, ffitype.CatText, ms[3].Return.Category())
}

func TestParseSource_TupleAndUntypedFields(t *testing.T) {
	src := `
pub struct Pair(pub i32, pub String);
pub struct Loose {
    pub name: &'static str,
    pub count: u32,
}
`
	p := &Parser{}
	_, structs, err := p.ParseSource("c", "m", "crate::contract::m", src)
	require.NoError(t, err)
	require.Len(t, structs, 2)

	pair := structs[0]
	require.Len(t, pair.Fields, 2)
	assert.Equal(t, "", pair.Fields[0].Name)
	assert.Equal(t, ffitype.Int32, pair.Fields[0].Type.Kind)
	assert.Equal(t, ffitype.String, pair.Fields[1].Type.Kind)

	loose := structs[1]
	assert.Equal(t, ffitype.Void, loose.Fields[0].Type.Kind, "unsupported field shape binds to void")
	assert.Equal(t, ffitype.Int32, loose.Fields[1].Type.Kind)
}

func TestParseSource_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", "pub trait X { fn a(b: i32 -> i32; }"},
		{"empty", "use std::fmt;\n"},
		{"no methods", "pub trait Marker {}\n"},
		{"reference arg", "pub trait X { fn a(b: &str); }"},
		{"tuple return", "pub trait X { fn a() -> (i32, i32); }"},
		{"unsupported scalar", "pub trait X { fn a(n: usize); }"},
		{"unknown wrapper", "pub trait X { fn a(n: Option<i32>); }"},
		{"two args", "pub trait X { fn a(n: Vec<i32, i32>); }"},
		{"duplicate method", "pub trait X { fn a(); fn a(); }"},
	}

	p := &Parser{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := p.ParseSource("c", "m", "crate::contract::m", tt.src)
			require.Error(t, err)
			var pe *ParseError
			assert.True(t, errors.As(err, &pe), "got %T: %v", err, err)
		})
	}
}

func TestParseSource_SyntaxErrorPosition(t *testing.T) {
	p := &Parser{}
	_, _, err := p.ParseSource("c", "m", "crate::contract::m", "pub trait X {\n    fn a(b: i32 -> i32;\n}\n")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "m.rs", pe.File)
	assert.Positive(t, pe.Line)
	assert.Contains(t, pe.Error(), "m.rs:")
}

func TestParseImplSource(t *testing.T) {
	src := `
impl DemoImpl {
    fn helper() {}
}

impl DemoTrait for DemoImpl {
    fn add(a: i32, b: i32) -> i32 { a + b }
}

impl crate::contract::other::Other for imp::Thing<u8> {}
`
	p := &Parser{}
	impls, err := p.ParseImplSource("demo", "crate::imp::demo", src)
	require.NoError(t, err)
	require.Len(t, impls, 2)
	assert.Equal(t, ImplDesc{Name: "DemoImpl", Contract: "DemoTrait", ModName: "demo", ModPath: "crate::imp::demo"}, impls[0])
	assert.Equal(t, "Thing", impls[1].Name)
	assert.Equal(t, "Other", impls[1].Contract)
}

func TestParseImplSource_None(t *testing.T) {
	p := &Parser{}
	impls, err := p.ParseImplSource("x", "crate::imp::x", "pub fn f() {}\n")
	require.NoError(t, err)
	assert.Empty(t, impls)
}

func TestIndexStructs_FirstDeclarationWins(t *testing.T) {
	set := IndexStructs([]StructDesc{
		{Name: "Point", ModName: "geo"},
		{Name: "Point", ModName: "grid"},
		{Name: "Size", ModName: "grid"},
	})
	assert.Len(t, set, 2)
	p, ok := set.Lookup("Point")
	require.True(t, ok)
	assert.Equal(t, "geo", p.ModName)
}
