package capi

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/bindgen/bridge"
	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/emit"
	"github.com/rubiojr/bindgen/ffitype"
	"github.com/rubiojr/bindgen/ownership"
	"github.com/rubiojr/bindgen/transfer"
)

const demoContract = `
pub trait DemoTrait {
    fn setup();
    fn add(a: i32, b: i32) -> i32;
    fn greet(name: String) -> String;
    fn echo_bytes(data: Vec<u8>) -> Vec<u8>;
    fn points(points: Vec<Point>) -> Vec<Point>;
    fn origin() -> Point;
    fn register(cb: Box<dyn DemoCallback>) -> bool;
}

pub trait DemoCallback {
    fn on_value(&self, value: i32) -> i32;
    fn on_flag(&self, flag: bool);
}

pub struct Point {
    pub x: i32,
    pub y: i32,
}
`

const demoImpl = `
impl DemoTrait for DemoImpl {}
`

const labelContract = `
pub struct Label {
    pub text: String,
    pub visible: bool,
    pub size: u16,
    pub anchors: Vec<Point>,
}

pub struct Pair(pub u8, pub u64);

pub struct Point {
    pub x: i32,
    pub y: i32,
}
`

func parseNamed(t *testing.T, name, src string) *contract.Module {
	t.Helper()
	p := &contract.Parser{}
	path := "crate::contract::" + name
	ifaces, structs, err := p.ParseSource("demo", name, path, src)
	require.NoError(t, err)
	return &contract.Module{Name: name, Path: path, Interfaces: ifaces, Structs: structs}
}

func parseModule(t *testing.T, src string) *contract.Module {
	t.Helper()
	return parseNamed(t, "demo", src)
}

func parseImpls(t *testing.T, src string) []contract.ImplDesc {
	t.Helper()
	p := &contract.Parser{}
	impls, err := p.ParseImplSource("demo", "crate::imp::demo", src)
	require.NoError(t, err)
	return impls
}

func newStrategy(t *testing.T) *Strategy {
	t.Helper()
	s, err := New(bridge.Options{Crate: "demo"})
	require.NoError(t, err)
	return s
}

func generateDemo(t *testing.T) *bridge.Artifact {
	t.Helper()
	g := &bridge.Generator{Strategy: newStrategy(t), Impls: parseImpls(t, demoImpl)}
	art, err := g.GenerateModule(parseModule(t, demoContract), nil)
	require.NoError(t, err)
	return art
}

func TestGenerateModule_Demo(t *testing.T) {
	art := generateDemo(t)
	assert.Equal(t, "demo.rs", art.File.Name)
	out := art.File.Content

	assert.Contains(t, out, "use super::*;")
	assert.Contains(t, out, "use crate::imp::demo::DemoImpl;")

	assert.Contains(t, out, `pub extern "C" fn demo_demo_trait_setup() {`)
	assert.Contains(t, out, `pub extern "C" fn demo_demo_trait_add(a: i32, b: i32) -> i32 {`)
	assert.Contains(t, out, "let r_a = a;")
	assert.Contains(t, out, "let result = DemoImpl::add(r_a, r_b);")
	assert.Contains(t, out, `eprintln!("DemoTrait.add panicked: {}", panic_message(&e));`)

	assert.Contains(t, out, `pub extern "C" fn demo_demo_trait_greet(name: *const c_char) -> *mut c_char {`)
	assert.Contains(t, out, "let r_name: String = read_c_str(name);")
	assert.Contains(t, out, `CString::new(result).expect("string contains NUL").into_raw()`)

	assert.Contains(t, out, `pub extern "C" fn demo_demo_trait_echo_bytes(data: CInt8Array) -> CInt8Array {`)
	assert.Contains(t, out, "std::slice::from_raw_parts(data.ptr, data.len as usize) }.iter().map(|v| *v as u8).collect()")
	assert.Contains(t, out, "let ptr = Box::into_raw(boxed) as *mut u8 as *const i8;")
	assert.Contains(t, out, "CInt8Array { ptr: std::ptr::null(), len: 0 }")

	assert.Contains(t, out, `pub extern "C" fn demo_demo_trait_points(points: CPointArray) -> CPointArray {`)
	assert.Contains(t, out, "(points.free_ptr)(points.ptr, points.len);")
	assert.Contains(t, out, "CPointArray { ptr: Box::into_raw(boxed) as *mut ProxyPoint, len, free_ptr: free_CPointArray }")

	assert.Contains(t, out, `pub extern "C" fn demo_demo_trait_origin() -> ProxyPoint {`)
	assert.Contains(t, out, "ProxyPoint::from_native(result)")
	assert.Contains(t, out, "unsafe { std::mem::zeroed() }")

	assert.Contains(t, out, `pub extern "C" fn demo_demo_trait_register(cb: DemoCallbackModel) -> u8 {`)
	assert.Contains(t, out, "register_callback(cb.index, CallbackEntry::DemoCallback(cb));")
	assert.Contains(t, out, "let r_cb: Box<dyn DemoCallback> = Box::new(DemoCallbackTrampoline { handle: cb.index });")
	assert.Contains(t, out, "result as u8")

	assert.Contains(t, out, "pub struct DemoCallbackModel {")
	assert.Contains(t, out, `pub on_value: extern "C" fn(i64, i32) -> i32,`)
	assert.Contains(t, out, `pub on_flag: extern "C" fn(i64, u8),`)
	assert.Contains(t, out, `pub free_callback: extern "C" fn(i64),`)
	assert.Contains(t, out, "(model.on_value)(self.handle, value)")
	assert.Contains(t, out, "(model.on_flag)(self.handle, flag as u8)")
	assert.Contains(t, out, "(model.free_callback)(self.handle);")
	assert.Contains(t, out, "DemoCallback(DemoCallbackModel),")

	assert.Contains(t, out, "pub struct Struct_Point {")
	assert.Contains(t, out, "pub struct ProxyPoint {")
	assert.Contains(t, out, "pub fn from_native(v: Point) -> Self {")
	assert.Contains(t, out, "pub fn to_native(&self) -> Point {")
	assert.Contains(t, out, `pub free_ptr: extern "C" fn(*mut ProxyPoint, i32),`)
	assert.Contains(t, out, `pub extern "C" fn free_CPointArray(ptr: *mut ProxyPoint, len: i32) {`)
	assert.Contains(t, out, `pub extern "C" fn demo_free_point_proxy(p: ProxyPoint) {`)
}

func TestGenerateModule_MethodOrderFollowsDeclaration(t *testing.T) {
	out := generateDemo(t).File.Content
	setup := strings.Index(out, "fn demo_demo_trait_setup")
	add := strings.Index(out, "fn demo_demo_trait_add")
	reg := strings.Index(out, "fn demo_demo_trait_register")
	tramp := strings.Index(out, "struct DemoCallbackTrampoline")
	table := strings.Index(out, "enum CallbackEntry")
	proxy := strings.Index(out, "pub struct ProxyPoint")
	assert.True(t, setup < add && add < reg && reg < tramp && tramp < table && table < proxy)
}

func TestGenerateModule_Ledger(t *testing.T) {
	l := generateDemo(t).Scope.Ledger
	require.NoError(t, l.Verify())

	got := l.Transfers()
	require.Len(t, got, 4)
	assert.Equal(t, ownership.Transfer{Kind: ownership.KindString, Site: "DemoTrait.greet return", Free: "demo_free_str"}, got[0])
	assert.Equal(t, ownership.Transfer{Kind: ownership.KindBuffer, Site: "DemoTrait.echo_bytes return", Free: "demo_free_rust", Width: 1, Elem: "u8"}, got[1])
	assert.Equal(t, ownership.KindStructArray, got[2].Kind)
	assert.Equal(t, "free_CPointArray", got[2].Free)
	assert.Equal(t, ownership.KindProxy, got[3].Kind)
	assert.Equal(t, "demo_free_point_proxy", got[3].Free)

	assert.Equal(t, []string{"demo_free_point_proxy", "demo_free_rust", "demo_free_str", "free_CPointArray"}, l.Provided())
}

const sourceContract = `
pub trait Api {
    fn listen(cb: Box<dyn Source>);
}

pub trait Source {
    fn test_str(&self, arg: String) -> String;
    fn test_return_vec_u8(&self) -> Vec<u8>;
    fn test_point(&self) -> Point;
    fn test_count(&self) -> i32;
}

pub struct Point {
    pub x: i32,
    pub y: i32,
}
`

func generateSource(t *testing.T) *bridge.Artifact {
	t.Helper()
	g := &bridge.Generator{Strategy: newStrategy(t), Impls: parseImpls(t, "impl Api for ApiImpl {}")}
	art, err := g.GenerateModule(parseModule(t, sourceContract), nil)
	require.NoError(t, err)
	return art
}

func TestCallbackTrampoline_OwnedReturns(t *testing.T) {
	out := generateSource(t).File.Content

	assert.Contains(t, out, `pub test_str: extern "C" fn(i64, *const c_char) -> *mut c_char,`)
	assert.Contains(t, out, `pub test_return_vec_u8: extern "C" fn(i64) -> CInt8Array,`)
	assert.Contains(t, out, `pub test_count: extern "C" fn(i64) -> i32,`)
	assert.Contains(t, out, `pub free_ptr: extern "C" fn(*mut i8, i32),`)

	assert.Contains(t, out, "take_host_str((model.test_str)(self.handle, c_arg.as_ptr()), model.free_ptr)")
	assert.Contains(t, out, "let arr = (model.test_return_vec_u8)(self.handle);")
	assert.Contains(t, out, "let out: Vec<u8> = if arr.ptr.is_null() || arr.len <= 0 {")
	assert.Contains(t, out, "(model.free_ptr)(arr.ptr as *mut i8, arr.len * 1);")
	assert.Contains(t, out, "let text = take_host_str((model.test_point)(self.handle), model.free_ptr);")
	assert.Contains(t, out, `Point::from(serde_json::from_str::<Struct_Point>(&text).expect("deserialize Point"))`)
	assert.Contains(t, out, "(model.test_count)(self.handle)\n")
}

func TestCallbackTrampoline_ScalarModelHasNoHostFree(t *testing.T) {
	out := generateDemo(t).File.Content
	model := out[strings.Index(out, "pub struct DemoCallbackModel {"):]
	model = model[:strings.Index(model, "}")]
	assert.NotContains(t, model, "free_ptr")
}

func TestCallbackTrampoline_LedgerRecordsHostReturns(t *testing.T) {
	l := generateSource(t).Scope.Ledger
	require.NoError(t, l.Verify())
	assert.Contains(t, l.Provided(), "SourceModel.free_ptr")

	var inbound []ownership.Transfer
	for _, tr := range l.Transfers() {
		if tr.Inbound {
			inbound = append(inbound, tr)
		}
	}
	require.Len(t, inbound, 3)
	assert.Equal(t, "Source.test_str return", inbound[0].Site)
	assert.Equal(t, ownership.KindString, inbound[0].Kind)
	assert.Equal(t, "Source.test_return_vec_u8 return", inbound[1].Site)
	assert.Equal(t, ownership.KindBuffer, inbound[1].Kind)
	assert.Equal(t, 1, inbound[1].Width)
	assert.Equal(t, "Source.test_point return", inbound[2].Site)
	for _, tr := range inbound {
		assert.Equal(t, "SourceModel.free_ptr", tr.Free)
	}
}

func TestHostFile_OwnedCallbackReturns(t *testing.T) {
	f, err := newStrategy(t).HostFile([]*bridge.Scope{generateSource(t).Scope})
	require.NoError(t, err)
	out := f.Content
	assert.Contains(t, out, "char *(*test_str)(int64_t, const char *);")
	assert.Contains(t, out, "CInt8Array (*test_return_vec_u8)(int64_t);")
	assert.Contains(t, out, "char *(*test_point)(int64_t);")
	assert.Contains(t, out, "void (*free_ptr)(int8_t *, int32_t);")
}

func TestGenerateModule_ForeignStruct(t *testing.T) {
	demo := parseModule(t, demoContract)
	shapes := parseNamed(t, "shapes", "pub trait Shapes { fn centroid(points: Vec<Point>) -> Point; }")
	structs := contract.IndexStructs(append(append([]contract.StructDesc{}, demo.Structs...), shapes.Structs...))

	impls := []contract.ImplDesc{{Name: "ShapesImpl", Contract: "Shapes", ModName: "shapes", ModPath: "crate::imp::shapes"}}
	g := &bridge.Generator{Strategy: newStrategy(t), Impls: impls}
	art, err := g.GenerateModule(shapes, structs)
	require.NoError(t, err)

	out := art.File.Content
	assert.Contains(t, out, "use super::demo::*;")
	assert.Contains(t, out, "use crate::contract::demo::Point;")
	assert.NotContains(t, out, "pub struct ProxyPoint")
	assert.Contains(t, out, "ProxyPoint::from_native(result)")
	assert.Len(t, art.Scope.Ledger.Transfers(), 1)
}

func TestGenerateModule_Unsupported(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		subject string
	}{
		{"unknown callback", "pub trait T { fn f(cb: Box<dyn Missing>); }", "argument cb"},
		{"unknown struct", "pub trait T { fn f(p: Missing) -> i32; }", "argument p"},
		{"unit arg", "pub trait T { fn f(u: ()); }", "argument u"},
		{"callback return", "pub trait T { fn f() -> Box<dyn Cb>; }\npub trait Cb { fn g(&self); }", "return"},
		{"callback in struct", "pub trait T { fn f(h: Holder); }\npub trait Cb { fn g(&self); }\npub struct Holder { pub cb: Box<dyn Cb> }", "field cb"},
		{"callback returning callback", "pub trait Cb { fn g(&self) -> Box<dyn Cb>; }", "return"},
		{"callback returning unknown struct", "pub trait Cb { fn g(&self) -> Missing; }", "return"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &bridge.Generator{Strategy: newStrategy(t), Impls: []contract.ImplDesc{{Name: "Imp", Contract: "T", ModPath: "crate::imp::demo"}}}
			art, err := g.GenerateModule(parseModule(t, tt.src), nil)
			require.Error(t, err)
			assert.Nil(t, art)
			var ge *bridge.GenerateError
			require.True(t, errors.As(err, &ge), "got %T: %v", err, err)
			assert.Equal(t, "demo", ge.Module)
			assert.Equal(t, tt.subject, ge.Subject)
		})
	}
}

func TestHostFile(t *testing.T) {
	s := newStrategy(t)
	art := generateDemo(t)
	f, err := s.HostFile([]*bridge.Scope{art.Scope})
	require.NoError(t, err)
	assert.Equal(t, "demo.h", f.Name)

	out := f.Content
	assert.True(t, strings.HasPrefix(out, "// Code generated by bindgen. DO NOT EDIT.\n#ifndef DEMO_H\n#define DEMO_H\n"))
	assert.Contains(t, out, "#include <stdint.h>")
	assert.Contains(t, out, "const int8_t *ptr;")
	assert.Contains(t, out, "} CInt8Array;")
	assert.Contains(t, out, "typedef struct ProxyPoint {")
	assert.Contains(t, out, "void (*free_ptr)(ProxyPoint *, int32_t);")
	assert.Contains(t, out, "int32_t (*on_value)(int64_t, int32_t);")
	assert.Contains(t, out, "void (*on_flag)(int64_t, uint8_t);")
	assert.Contains(t, out, "void (*free_callback)(int64_t);")

	assert.Contains(t, out, "void demo_free_rust(int8_t *ptr, uint32_t length);")
	assert.Contains(t, out, "void demo_free_str(char *ptr);")
	assert.Contains(t, out, "void free_CPointArray(ProxyPoint *ptr, int32_t len);")
	assert.Contains(t, out, "void demo_free_point_proxy(ProxyPoint p);")

	assert.Contains(t, out, "void demo_demo_trait_setup(void);")
	assert.Contains(t, out, "int32_t demo_demo_trait_add(int32_t a, int32_t b);")
	assert.Contains(t, out, "char *demo_demo_trait_greet(const char *name);")
	assert.Contains(t, out, "CInt8Array demo_demo_trait_echo_bytes(CInt8Array data);")
	assert.Contains(t, out, "CPointArray demo_demo_trait_points(CPointArray points);")
	assert.Contains(t, out, "ProxyPoint demo_demo_trait_origin(void);")
	assert.Contains(t, out, "uint8_t demo_demo_trait_register(DemoCallbackModel cb);")
	assert.True(t, strings.HasSuffix(out, "#endif // DEMO_H\n"))

	assert.Less(t, strings.Index(out, "} CInt64Array;"), strings.Index(out, "typedef struct ProxyPoint"))
	assert.Less(t, strings.Index(out, "} DemoCallbackModel;"), strings.Index(out, "demo_demo_trait_register"))
}

func TestIndex(t *testing.T) {
	s := newStrategy(t)
	w := emit.NewWriter()
	require.NoError(t, s.Index(w, []string{"demo", "shapes"}))
	out := w.String()
	assert.Contains(t, out, "pub mod demo;\npub mod shapes;\n")
	assert.Contains(t, out, "pub struct CInt8Array {")
	assert.Contains(t, out, "pub ptr: *const i64,")
	assert.Contains(t, out, `pub extern "C" fn demo_free_rust(ptr: *mut i8, length: u32) {`)
	assert.Contains(t, out, `pub extern "C" fn demo_free_str(ptr: *mut c_char) {`)
	assert.Contains(t, out, "pub(crate) fn read_c_str(ptr: *const c_char) -> String {")
	assert.Contains(t, out, "pub(crate) fn panic_message(")
}

func TestStride(t *testing.T) {
	structs := contract.IndexStructs(parseModule(t, labelContract).Structs)
	for name, want := range map[string]int{"Point": 8, "Label": 24, "Pair": 16} {
		s, ok := structs.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, want, Stride(s), name)
	}
}

func TestByteBuffer_PointerAndCount(t *testing.T) {
	arena := ownership.NewArena()
	m := NewMarshaler(nil, arena)
	bytes := ffitype.NewVec(ffitype.Prim(ffitype.Int8, "u8"))
	in := []any{uint8(10), uint8(20), uint8(30), uint8(40), uint8(250)}

	b, err := m.Encode(bytes, in)
	require.NoError(t, err)
	buf := b.(transfer.Buffer)
	assert.Equal(t, int32(5), buf.Len)
	assert.Equal(t, 5, buf.ByteLen())
	assert.Equal(t, 1, arena.Outstanding())

	got, err := m.Decode(bytes, b)
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.Equal(t, 0, arena.Outstanding())

	_, err = m.Decode(bytes, b)
	assert.True(t, errors.Is(err, ownership.ErrDoubleFree))
}

func TestMarshaler_WideBuffer(t *testing.T) {
	arena := ownership.NewArena()
	m := NewMarshaler(nil, arena)
	words := ffitype.NewVec(ffitype.Prim(ffitype.Int32, "u32"))
	in := []any{uint32(1), uint32(math.MaxUint32)}

	b, err := m.Encode(words, in)
	require.NoError(t, err)
	buf := b.(transfer.Buffer)
	assert.Equal(t, 8, buf.ByteLen())
	raw, err := arena.Read(buf.Ptr, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}, raw)

	_, err = m.Decode(ffitype.NewVec(ffitype.Prim(ffitype.Int16, "u16")), b)
	assert.True(t, errors.Is(err, transfer.ErrMismatch))

	got, err := m.Decode(words, b)
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.Equal(t, 0, arena.Outstanding())
}

func TestMarshaler_PrimitiveRoundTrip(t *testing.T) {
	m := newStrategy(t).Marshaler(nil)
	tests := []struct {
		t ffitype.Type
		v any
	}{
		{ffitype.Prim(ffitype.Int8, "u8"), uint8(math.MaxUint8)},
		{ffitype.Prim(ffitype.Int16, "i16"), int16(math.MinInt16)},
		{ffitype.Prim(ffitype.Int32, "u32"), uint32(math.MaxUint32)},
		{ffitype.Prim(ffitype.Int64, "u64"), uint64(math.MaxUint64)},
		{ffitype.Prim(ffitype.Float64, "f64"), math.MaxFloat64},
		{ffitype.Prim(ffitype.Bool, "bool"), true},
	}
	for _, tt := range tests {
		b, err := m.Encode(tt.t, tt.v)
		require.NoError(t, err, tt.t.Origin)
		got, err := m.Decode(tt.t, b)
		require.NoError(t, err, tt.t.Origin)
		assert.Equal(t, tt.v, got, tt.t.Origin)
	}

	b, err := m.Encode(ffitype.Prim(ffitype.Int32, "u32"), uint32(math.MaxUint32))
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), b, "C keeps unsigned types")
	b, err = m.Encode(ffitype.Prim(ffitype.Bool, "bool"), true)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), b)
}

func TestMarshaler_String(t *testing.T) {
	arena := ownership.NewArena()
	m := NewMarshaler(nil, arena)
	str := ffitype.Prim(ffitype.String, "String")

	b, err := m.Encode(str, "héllo wörld")
	require.NoError(t, err)
	raw, err := arena.Read(ownership.Ptr(b.(transfer.CString)), len("héllo wörld")+1)
	require.NoError(t, err)
	assert.Equal(t, byte(0), raw[len(raw)-1])

	got, err := m.Decode(str, b)
	require.NoError(t, err)
	assert.Equal(t, "héllo wörld", got)
	assert.Equal(t, 0, arena.Outstanding())

	_, err = m.Decode(str, b)
	assert.True(t, errors.Is(err, ownership.ErrDoubleFree))
}

func TestMarshaler_Proxy(t *testing.T) {
	arena := ownership.NewArena()
	structs := contract.IndexStructs(parseModule(t, labelContract).Structs)
	m := NewMarshaler(structs, arena)
	label := ffitype.NewStruct("Label")
	in := transfer.NewRecord("Label",
		transfer.F("text", "north"),
		transfer.F("visible", true),
		transfer.F("size", uint16(12)),
		transfer.F("anchors", []any{
			transfer.NewRecord("Point", transfer.F("x", int32(1)), transfer.F("y", int32(-1))),
		}),
	)

	b, err := m.Encode(label, in)
	require.NoError(t, err)
	p := b.(*transfer.Record)
	assert.Equal(t, "ProxyLabel", p.Name)
	visible, _ := p.Get("visible")
	assert.Equal(t, uint8(1), visible)
	size, _ := p.Get("size")
	assert.Equal(t, uint16(12), size)
	anchors, _ := p.Get("anchors")
	text, err := arena.ReadString(ownership.Ptr(anchors.(transfer.CString)))
	require.NoError(t, err)
	assert.Equal(t, `[{"x":1,"y":-1}]`, text)
	assert.Equal(t, 2, arena.Outstanding(), "text and anchors")

	got, err := m.Decode(label, b)
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.Equal(t, 0, arena.Outstanding())
}

func TestMarshaler_TupleProxy(t *testing.T) {
	structs := contract.IndexStructs(parseModule(t, labelContract).Structs)
	m := NewMarshaler(structs, ownership.NewArena())
	pair := ffitype.NewStruct("Pair")
	in := transfer.NewRecord("Pair", transfer.F("", uint8(7)), transfer.F("", uint64(math.MaxUint64)))

	b, err := m.Encode(pair, in)
	require.NoError(t, err)
	f1, ok := b.(*transfer.Record).Get("f1")
	require.True(t, ok)
	assert.Equal(t, uint64(math.MaxUint64), f1)

	got, err := m.Decode(pair, b)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestMarshaler_StructArray(t *testing.T) {
	arena := ownership.NewArena()
	structs := contract.IndexStructs(parseModule(t, demoContract).Structs)
	m := NewMarshaler(structs, arena)
	seq := ffitype.NewVec(ffitype.NewStruct("Point"))
	in := []any{
		transfer.NewRecord("Point", transfer.F("x", int32(1)), transfer.F("y", int32(2))),
		transfer.NewRecord("Point", transfer.F("x", int32(3)), transfer.F("y", int32(4))),
	}

	b, err := m.Encode(seq, in)
	require.NoError(t, err)
	arr := b.(transfer.StructArray)
	assert.Equal(t, int32(2), arr.Len)
	assert.Equal(t, 8, arr.Stride)
	assert.Equal(t, 1, arena.Outstanding())

	tampered := arr
	tampered.Stride = 4
	_, err = m.Decode(seq, tampered)
	assert.True(t, errors.Is(err, transfer.ErrMismatch))

	got, err := m.Decode(seq, b)
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.Equal(t, 0, arena.Outstanding())
}

func TestMarshaler_TextAndHandle(t *testing.T) {
	arena := ownership.NewArena()
	m := NewMarshaler(nil, arena)
	floats := ffitype.NewVec(ffitype.Prim(ffitype.Float64, "f64"))
	in := []any{1.5, -2.25}

	b, err := m.Encode(floats, in)
	require.NoError(t, err)
	text, err := arena.ReadString(ownership.Ptr(b.(transfer.CString)))
	require.NoError(t, err)
	assert.Equal(t, "[1.5,-2.25]", text)
	got, err := m.Decode(floats, b)
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.Equal(t, 0, arena.Outstanding())

	cb := ffitype.NewCallback("DemoCallback", true)
	h, err := m.Encode(cb, transfer.Handle(9))
	require.NoError(t, err)
	assert.Equal(t, int64(9), h)
	back, err := m.Decode(cb, h)
	require.NoError(t, err)
	assert.Equal(t, transfer.Handle(9), back)
}

func TestMarshaler_Mismatch(t *testing.T) {
	m := newStrategy(t).Marshaler(nil)
	_, err := m.Encode(ffitype.Prim(ffitype.Int32, "i32"), "seven")
	assert.True(t, errors.Is(err, transfer.ErrMismatch))
	_, err = m.Decode(ffitype.Prim(ffitype.Bool, "bool"), true)
	assert.True(t, errors.Is(err, transfer.ErrMismatch))
	_, err = m.Decode(ffitype.Prim(ffitype.String, "String"), "raw")
	assert.True(t, errors.Is(err, transfer.ErrMismatch))
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, bridge.Names(), Name)
	s, err := bridge.NewStrategy(Name, bridge.Options{Crate: "geo"})
	require.NoError(t, err)
	assert.Equal(t, "geo_geo_point_distance", s.(*Strategy).symbol("GeoPoint", "distance"))
	assert.Equal(t, "geo.h", s.(*Strategy).opts.Header)

	s, err = bridge.NewStrategy(Name, bridge.Options{Crate: "geo", Header: "include/geo_ffi.h"})
	require.NoError(t, err)
	f, err := s.HostFile(nil)
	require.NoError(t, err)
	assert.Equal(t, "include/geo_ffi.h", f.Name)
	assert.Contains(t, f.Content, "#ifndef INCLUDE_GEO_FFI_H")
}
