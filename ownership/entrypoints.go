package ownership

import (
	"fmt"

	"github.com/rubiojr/bindgen/emit"
	"github.com/rubiojr/bindgen/naming"
)

// FreeRust is the buffer free entry point of crate.
func FreeRust(crate string) string { return crate + "_free_rust" }

// FreeStr is the string free entry point of crate.
func FreeStr(crate string) string { return crate + "_free_str" }

// FreeStructArray is the free entry point of a C<S>Array.
func FreeStructArray(structName string) string { return "free_C" + structName + "Array" }

// FreeProxy is the free entry point of a single Proxy<S> record.
func FreeProxy(crate, structName string) string {
	return fmt.Sprintf("%s_free_%s_proxy", crate, naming.SnakeCase(structName))
}

// HostFree is the host free function carried by a callback model record.
func HostFree(model string) string { return model + ".free_ptr" }

// WriteEntryPoints emits the crate-wide free entry points. Buffers are
// released by byte span: the host passes count*width.
func WriteEntryPoints(w *emit.Writer, crate string) {
	name := FreeRust(crate)
	w.Line("#[no_mangle]")
	w.Block(fmt.Sprintf("pub extern \"C\" fn %s(ptr: *mut i8, length: u32) {", name), "}", func() {
		w.Guard(name, "()", func() {
			w.Block("if ptr.is_null() {", "}", func() {
				w.Line("return;")
			})
			w.Line("let len = length as usize;")
			w.Line("drop(unsafe { Vec::from_raw_parts(ptr, len, len) });")
		})
	})
	w.Blank()

	name = FreeStr(crate)
	w.Line("#[no_mangle]")
	w.Block(fmt.Sprintf("pub extern \"C\" fn %s(ptr: *mut c_char) {", name), "}", func() {
		w.Guard(name, "()", func() {
			w.Block("if ptr.is_null() {", "}", func() {
				w.Line("return;")
			})
			w.Line("drop(unsafe { CString::from_raw(ptr) });")
		})
	})
}
