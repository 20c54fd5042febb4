package emit

// PanicHelper is the Rust function every guarded entry point reports through.
const PanicHelper = "panic_message"

// WritePanicHelper emits the payload-to-string helper used by Guard. It is
// written once per generated crate module, in the index file.
func WritePanicHelper(w *Writer) {
	w.Block("pub(crate) fn "+PanicHelper+"(e: &Box<dyn std::any::Any + Send>) -> String {", "}", func() {
		w.Block("if let Some(s) = e.downcast_ref::<&str>() {", "}", func() {
			w.Line("return s.to_string();")
		})
		w.Block("if let Some(s) = e.downcast_ref::<String>() {", "}", func() {
			w.Line("return s.clone();")
		})
		w.Line(`"unknown panic".to_string()`)
	})
}

// Guard wraps body in an unwind guard. body must leave the value of the
// guarded expression as its last line. A panic is reported under label and
// fallback is returned in its place.
func (w *Writer) Guard(label, fallback string, body func()) {
	w.Line("let result = std::panic::catch_unwind(std::panic::AssertUnwindSafe(|| {")
	w.Indent()
	body()
	w.Dedent()
	w.Line("}));")
	w.Block("match result {", "}", func() {
		w.Line("Ok(r) => r,")
		w.Block("Err(e) => {", "}", func() {
			w.Line(`eprintln!("%s panicked: {}", %s(&e));`, label, PanicHelper)
			w.Text(fallback)
		})
	})
}
