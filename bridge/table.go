package bridge

import (
	"fmt"

	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/emit"
	"github.com/rubiojr/bindgen/ffitype"
)

// TrampolineName is the native type forwarding callback cb to the host.
func TrampolineName(cb string) string { return cb + "Trampoline" }

// TableEntry is one variant of a module dispatch table.
type TableEntry struct {
	Variant string // callback interface name
	Payload string // Rust type stored for a live handle
}

// WriteDispatchTable writes the module's handle → callback entry table and
// its accessors. Entries are registered when a callback crosses into the
// library and released when its trampoline is dropped.
func WriteDispatchTable(w *emit.Writer, entries []TableEntry) {
	w.Line("#[derive(Clone)]")
	w.Block("enum CallbackEntry {", "}", func() {
		for _, e := range entries {
			w.Line("%s(%s),", e.Variant, e.Payload)
		}
	})
	w.Blank()
	w.Line("static CALLBACK_TABLE: OnceLock<Mutex<HashMap<i64, CallbackEntry>>> = OnceLock::new();")
	w.Blank()
	w.Block("fn callback_table() -> &'static Mutex<HashMap<i64, CallbackEntry>> {", "}", func() {
		w.Line("CALLBACK_TABLE.get_or_init(|| Mutex::new(HashMap::new()))")
	})
	w.Blank()
	w.Block("fn register_callback(handle: i64, entry: CallbackEntry) {", "}", func() {
		w.Line("callback_table().lock().unwrap().insert(handle, entry);")
	})
	w.Blank()
	w.Block("fn lookup_callback(handle: i64) -> Option<CallbackEntry> {", "}", func() {
		w.Line("callback_table().lock().unwrap().get(&handle).cloned()")
	})
	w.Blank()
	w.Block("fn release_callback(handle: i64) -> Option<CallbackEntry> {", "}", func() {
		w.Line("callback_table().lock().unwrap().remove(&handle)")
	})
	w.Blank()
}

// WriteTrampolineLookup writes the statement binding name to the payload of
// the live entry for self.handle, panicking when the handle is unknown.
func WriteTrampolineLookup(w *emit.Writer, cb, name string) {
	w.Block(fmt.Sprintf("let %s = match lookup_callback(self.handle) {", name), "};", func() {
		w.Line("Some(CallbackEntry::%s(p)) => p,", cb)
		w.Line(`_ => panic!("%s handle {} is not registered", self.handle),`, cb)
	})
}

// CheckCallback rejects callback methods the trampolines cannot forward:
// unit arguments, nested callbacks and structs missing from scope.
func CheckCallback(sc *Scope, cb *contract.InterfaceDesc) error {
	for _, m := range cb.Methods {
		for _, a := range m.Args {
			site := ArgSite(cb.Name, m.Name, a.Name)
			switch a.Type.Category() {
			case ffitype.CatVoid:
				return Unsupported(site, "unit argument")
			case ffitype.CatHandle:
				return Unsupported(site, "callback %s cannot be passed to a callback", a.Type.Name())
			case ffitype.CatText:
				if err := sc.CheckText(site, a.Type); err != nil {
					return err
				}
			}
		}
		site := ReturnSite(cb.Name, m.Name)
		switch m.Return.Category() {
		case ffitype.CatHandle:
			return Unsupported(site, "callbacks cannot be returned")
		case ffitype.CatText:
			if err := sc.CheckText(site, m.Return); err != nil {
				return err
			}
		}
	}
	return nil
}
