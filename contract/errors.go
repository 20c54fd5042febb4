package contract

import "fmt"

// ParseError reports malformed or unsupported declaration source.
type ParseError struct {
	File string
	Line int // 1-based, 0 when unknown
	Col  int // 1-based, 0 when unknown
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.File, e.Line, e.Col)
	}
	if loc == "" {
		return "parse error: " + e.Msg
	}
	return fmt.Sprintf("parse error: %s: %s", loc, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }
