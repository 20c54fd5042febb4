package ownership

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/bindgen/emit"
)

func TestLedger_Verify(t *testing.T) {
	l := NewLedger()
	l.Provide("demo_free_str")
	l.Provide("demo_free_rust")
	l.Record(Transfer{Kind: KindString, Site: "DemoTrait.greet return", Free: "demo_free_str"})
	l.Record(Transfer{Kind: KindBuffer, Site: "DemoTrait.echo_bytes return", Free: "demo_free_rust", Width: 1})
	assert.NoError(t, l.Verify())
	assert.Len(t, l.Transfers(), 2)
	assert.Equal(t, []string{"demo_free_rust", "demo_free_str"}, l.Provided())
}

func TestLedger_InboundTransfer(t *testing.T) {
	l := NewLedger()
	tr := Transfer{Kind: KindString, Site: "Source.test_str return", Free: HostFree("SourceModel"), Inbound: true}
	l.Record(tr)
	assert.ErrorIs(t, l.Verify(), ErrUnpaired)

	l.Provide("SourceModel.free_ptr")
	assert.NoError(t, l.Verify())
	assert.Equal(t, "Source.test_str return host string via SourceModel.free_ptr", tr.String())
}

func TestLedger_VerifyMissingFree(t *testing.T) {
	l := NewLedger()
	l.Record(Transfer{Kind: KindProxy, Site: "DemoTrait.origin return", Free: "demo_free_point_proxy", Elem: "Point"})
	err := l.Verify()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnpaired))
	assert.Contains(t, err.Error(), "demo_free_point_proxy is not emitted")
}

func TestLedger_VerifyDuplicateFree(t *testing.T) {
	l := NewLedger()
	l.Provide("demo_free_str")
	l.Provide("demo_free_str")
	l.Record(Transfer{Kind: KindString, Site: "x", Free: "demo_free_str"})
	err := l.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "emitted 2 times")
}

func TestLedger_UnusedFreeIsFine(t *testing.T) {
	l := NewLedger()
	l.Provide("demo_free_rust")
	assert.NoError(t, l.Verify())
}

func TestArena_BufferLifecycle(t *testing.T) {
	a := NewArena()
	p := a.AllocBuffer([]byte{1, 2, 3, 4, 5})
	assert.Equal(t, 1, a.Outstanding())

	got, err := a.Read(p, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, got)

	err = a.FreeBuffer(p, 4)
	assert.True(t, errors.Is(err, ErrSpanMismatch))
	require.NoError(t, a.FreeBuffer(p, 5))
	assert.Equal(t, 0, a.Outstanding())

	err = a.FreeBuffer(p, 5)
	assert.True(t, errors.Is(err, ErrDoubleFree))

	allocs, frees := a.Stats()
	assert.Equal(t, 1, allocs)
	assert.Equal(t, 1, frees)
}

func TestArena_StringLifecycle(t *testing.T) {
	a := NewArena()
	p := a.AllocString("hello")
	s, err := a.ReadString(p)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	assert.True(t, errors.Is(a.FreeBuffer(p, 6), ErrKindMismatch))
	require.NoError(t, a.FreeString(p))
	assert.True(t, errors.Is(a.FreeString(p), ErrDoubleFree))
}

func TestArena_UnknownPointer(t *testing.T) {
	a := NewArena()
	assert.True(t, errors.Is(a.FreeString(0), ErrUnknownPointer))
	assert.True(t, errors.Is(a.FreeBuffer(Ptr(99), 1), ErrUnknownPointer))
	_, err := a.Read(Ptr(99), 0)
	assert.True(t, errors.Is(err, ErrUnknownPointer))
}

func TestWriteEntryPoints(t *testing.T) {
	w := emit.NewWriter()
	WriteEntryPoints(w, "demo")
	out := w.String()
	assert.Contains(t, out, `pub extern "C" fn demo_free_rust(ptr: *mut i8, length: u32) {`)
	assert.Contains(t, out, `pub extern "C" fn demo_free_str(ptr: *mut c_char) {`)
	assert.Contains(t, out, "Vec::from_raw_parts(ptr, len, len)")
	assert.Contains(t, out, "CString::from_raw(ptr)")
	assert.Contains(t, out, `eprintln!("demo_free_str panicked: {}"`)
}

func TestFreeNames(t *testing.T) {
	assert.Equal(t, "free_CPointArray", FreeStructArray("Point"))
	assert.Equal(t, "demo_free_point_proxy", FreeProxy("demo", "Point"))
}

func TestFreeProxy_SnakeCase(t *testing.T) {
	assert.Equal(t, "demo_free_geo_point_proxy", FreeProxy("demo", "GeoPoint"))
}
