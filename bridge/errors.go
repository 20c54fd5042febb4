package bridge

import (
	"fmt"
	"strings"
)

// GenerateError reports a binding that cannot be generated: an ambiguous
// implementation or a type a target cannot convert. It is fatal to the
// module named in Module only.
type GenerateError struct {
	Module    string
	Interface string
	Method    string
	Subject   string // "argument a", "return", "field x"
	Msg       string
	Err       error
}

func (e *GenerateError) Error() string {
	var where []string
	if e.Module != "" {
		where = append(where, "module "+e.Module)
	}
	switch {
	case e.Interface != "" && e.Method != "":
		where = append(where, e.Interface+"."+e.Method)
	case e.Interface != "":
		where = append(where, e.Interface)
	}
	if e.Subject != "" {
		where = append(where, e.Subject)
	}
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if len(where) == 0 {
		return "generate error: " + msg
	}
	return fmt.Sprintf("generate error: %s: %s", strings.Join(where, ": "), msg)
}

func (e *GenerateError) Unwrap() error { return e.Err }

// Unsupported returns a GenerateError for a type the strategy cannot carry
// at site.
func Unsupported(site Site, format string, args ...any) *GenerateError {
	return &GenerateError{
		Interface: site.Interface,
		Method:    site.Method,
		Subject:   site.Subject,
		Msg:       fmt.Sprintf(format, args...),
	}
}
