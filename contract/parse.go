package contract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
	"go.uber.org/zap"

	"github.com/rubiojr/bindgen/ffitype"
)

// Parser turns Rust contract and implementation source into descriptions.
// A zero Parser is ready to use and logs nothing.
type Parser struct {
	Log *zap.Logger
}

func (p *Parser) log() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

// ParseFile reads a contract file and parses it. The module name is the file
// stem.
func (p *Parser) ParseFile(crate, path, modPath string) ([]InterfaceDesc, []StructDesc, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &ParseError{File: path, Msg: "reading source", Err: err}
	}
	modName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ifaces, structs, err := p.parse(crate, modName, modPath, path, src)
	return ifaces, structs, err
}

// ParseSource parses contract source text for the module modName.
func (p *Parser) ParseSource(crate, modName, modPath, src string) ([]InterfaceDesc, []StructDesc, error) {
	return p.parse(crate, modName, modPath, modName+".rs", []byte(src))
}

func (p *Parser) parse(crate, modName, modPath, file string, src []byte) ([]InterfaceDesc, []StructDesc, error) {
	root, closeTree, err := parseTree(file, src)
	if err != nil {
		return nil, nil, err
	}
	defer closeTree()

	w := &walker{src: src, file: file}
	var ifaces []InterfaceDesc
	var structs []StructDesc

	for i := 0; i < int(root.NamedChildCount()); i++ {
		item := root.NamedChild(i)
		switch item.Type() {
		case "trait_item":
			desc, err := w.trait(item)
			if err != nil {
				return nil, nil, err
			}
			desc.ModName, desc.ModPath, desc.Crate = modName, modPath, crate
			p.log().Debug("found trait",
				zap.String("module", modName),
				zap.String("name", desc.Name),
				zap.Bool("callback", desc.Callback),
				zap.Int("methods", len(desc.Methods)))
			ifaces = append(ifaces, desc)
		case "struct_item":
			desc := w.structure(item)
			desc.ModName, desc.ModPath, desc.Crate = modName, modPath, crate
			p.log().Debug("found struct",
				zap.String("module", modName),
				zap.String("name", desc.Name),
				zap.Int("fields", len(desc.Fields)))
			structs = append(structs, desc)
		}
	}

	if len(ifaces) == 0 && len(structs) == 0 {
		return nil, nil, &ParseError{File: file, Msg: "no trait or struct declarations found"}
	}
	return ifaces, structs, nil
}

// parseTree runs tree-sitter over src and rejects trees with syntax errors.
func parseTree(file string, src []byte) (*sitter.Node, func(), error) {
	parser := sitter.NewParser()
	parser.SetLanguage(rust.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		parser.Close()
		return nil, nil, &ParseError{File: file, Msg: "tree-sitter parse failed", Err: err}
	}
	closeTree := func() {
		tree.Close()
		parser.Close()
	}
	root := tree.RootNode()
	if root.HasError() {
		bad := firstErrorNode(root)
		pe := &ParseError{File: file, Msg: "syntax error"}
		if bad != nil {
			pt := bad.StartPoint()
			pe.Line, pe.Col = int(pt.Row)+1, int(pt.Column)+1
			if bad.IsMissing() {
				pe.Msg = fmt.Sprintf("syntax error: missing %s", bad.Type())
			} else if text := strings.TrimSpace(bad.Content(src)); text != "" {
				pe.Msg = fmt.Sprintf("syntax error near %q", firstLine(text))
			}
		}
		closeTree()
		return nil, nil, pe
	}
	return root, closeTree, nil
}

// firstErrorNode returns the first ERROR or MISSING node in document order.
func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !(c.HasError() || c.IsMissing()) {
			continue
		}
		if bad := firstErrorNode(c); bad != nil {
			return bad
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// walker extracts descriptions from tree-sitter nodes of one file.
type walker struct {
	src  []byte
	file string
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.src)
}

func (w *walker) errorf(n *sitter.Node, format string, args ...any) *ParseError {
	pe := &ParseError{File: w.file, Msg: fmt.Sprintf(format, args...)}
	if n != nil {
		pt := n.StartPoint()
		pe.Line, pe.Col = int(pt.Row)+1, int(pt.Column)+1
	}
	return pe
}

func (w *walker) trait(item *sitter.Node) (InterfaceDesc, error) {
	desc := InterfaceDesc{Name: w.text(item.ChildByFieldName("name"))}
	body := item.ChildByFieldName("body")
	if body == nil {
		return desc, w.errorf(item, "trait %s has no body", desc.Name)
	}

	seen := map[string]bool{}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		fn := body.NamedChild(i)
		if fn.Type() != "function_signature_item" && fn.Type() != "function_item" {
			continue
		}
		m, hasRecv, err := w.method(fn)
		if err != nil {
			return desc, err
		}
		if seen[m.Name] {
			return desc, w.errorf(fn, "trait %s declares method %s twice", desc.Name, m.Name)
		}
		seen[m.Name] = true
		if hasRecv {
			desc.Callback = true
		}
		desc.Methods = append(desc.Methods, m)
	}

	if len(desc.Methods) == 0 {
		return desc, w.errorf(item, "trait %s declares no methods", desc.Name)
	}
	return desc, nil
}

// method parses one signature. The receiver, wherever it appears, is dropped
// from the argument list and reported through hasRecv.
func (w *walker) method(fn *sitter.Node) (m MethodDesc, hasRecv bool, err error) {
	m.Name = w.text(fn.ChildByFieldName("name"))

	params := fn.ChildByFieldName("parameters")
	if params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			switch p.Type() {
			case "self_parameter":
				hasRecv = true
			case "parameter":
				arg, err := w.param(p)
				if err != nil {
					return m, hasRecv, err
				}
				m.Args = append(m.Args, arg)
			case "attribute_item", "line_comment", "block_comment":
			case "variadic_parameter":
				return m, hasRecv, w.errorf(p, "method %s: variadic parameters are not supported", m.Name)
			default:
				// A bare type without a pattern binds to an unnamed argument.
				ty, err := w.classify(p)
				if err != nil {
					return m, hasRecv, w.errorf(p, "method %s: %v", m.Name, err)
				}
				m.Args = append(m.Args, ArgDesc{Type: ty})
			}
		}
	}

	m.Return = ffitype.VoidType
	if ret := fn.ChildByFieldName("return_type"); ret != nil {
		ty, err := w.classify(ret)
		if err != nil {
			return m, hasRecv, w.errorf(ret, "method %s: return: %v", m.Name, err)
		}
		m.Return = ty
	}
	return m, hasRecv, nil
}

func (w *walker) param(p *sitter.Node) (ArgDesc, error) {
	var arg ArgDesc
	if pat := p.ChildByFieldName("pattern"); pat != nil && pat.Type() == "identifier" {
		arg.Name = w.text(pat)
	} else if pat != nil && pat.Type() == "mut_pattern" {
		arg.Name = w.text(pat.NamedChild(int(pat.NamedChildCount()) - 1))
	}
	ty, err := w.classify(p.ChildByFieldName("type"))
	if err != nil {
		return arg, w.errorf(p, "argument %s: %v", arg.Name, err)
	}
	arg.Type = ty
	return arg, nil
}

func (w *walker) structure(item *sitter.Node) StructDesc {
	desc := StructDesc{Name: w.text(item.ChildByFieldName("name"))}
	body := item.ChildByFieldName("body")
	if body == nil {
		return desc
	}
	switch body.Type() {
	case "field_declaration_list":
		for i := 0; i < int(body.NamedChildCount()); i++ {
			f := body.NamedChild(i)
			if f.Type() != "field_declaration" {
				continue
			}
			desc.Fields = append(desc.Fields, ArgDesc{
				Name: w.text(f.ChildByFieldName("name")),
				Type: w.fieldType(f.ChildByFieldName("type")),
			})
		}
	case "ordered_field_declaration_list":
		for i := 0; i < int(body.NamedChildCount()); i++ {
			f := body.NamedChild(i)
			if f.Type() == "visibility_modifier" || f.Type() == "attribute_item" {
				continue
			}
			desc.Fields = append(desc.Fields, ArgDesc{Type: w.fieldType(f)})
		}
	}
	return desc
}

// fieldType classifies a struct field. Fields the taxonomy cannot express
// bind to Void instead of failing the parse.
func (w *walker) fieldType(n *sitter.Node) ffitype.Type {
	ty, err := w.classify(n)
	if err != nil {
		return ffitype.VoidType
	}
	return ty
}

// classify maps a type node onto the taxonomy.
func (w *walker) classify(n *sitter.Node) (ffitype.Type, error) {
	if n == nil {
		return ffitype.Type{}, &ffitype.UnsupportedError{Name: "<missing>"}
	}
	switch n.Type() {
	case "primitive_type", "type_identifier":
		return ffitype.ClassifyName(w.text(n))
	case "scoped_type_identifier":
		return ffitype.ClassifyName(w.text(n.ChildByFieldName("name")))
	case "unit_type":
		return ffitype.VoidType, nil
	case "generic_type":
		return w.classifyGeneric(n)
	default:
		return ffitype.Type{}, &ffitype.UnsupportedError{Name: w.text(n), Reason: strings.ReplaceAll(n.Type(), "_", " ")}
	}
}

func (w *walker) classifyGeneric(n *sitter.Node) (ffitype.Type, error) {
	base := n.ChildByFieldName("type")
	name := w.text(base)
	if base != nil && base.Type() == "scoped_type_identifier" {
		name = w.text(base.ChildByFieldName("name"))
	}

	var targs []*sitter.Node
	if args := n.ChildByFieldName("type_arguments"); args != nil {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			a := args.NamedChild(i)
			if a.Type() == "lifetime" {
				continue
			}
			targs = append(targs, a)
		}
	}
	if len(targs) != 1 {
		return ffitype.Type{}, &ffitype.UnsupportedError{Name: w.text(n), Reason: fmt.Sprintf("expected one type argument, got %d", len(targs))}
	}
	arg := targs[0]

	switch name {
	case ffitype.SeqWrapper:
		elem, err := w.classify(arg)
		if err != nil {
			return ffitype.Type{}, err
		}
		return ffitype.ClassifySeq(elem)
	case ffitype.BoxWrapper:
		switch arg.Type() {
		case "type_identifier":
			return ffitype.ClassifyBox(w.text(arg), false)
		case "scoped_type_identifier":
			return ffitype.ClassifyBox(w.text(arg.ChildByFieldName("name")), false)
		case "dynamic_type":
			return ffitype.ClassifyBox(w.traitName(arg.ChildByFieldName("trait")), true)
		case "bounded_type":
			// dyn X + Send: the first bound names the interface.
			for i := 0; i < int(arg.NamedChildCount()); i++ {
				b := arg.NamedChild(i)
				if b.Type() == "dynamic_type" {
					return ffitype.ClassifyBox(w.traitName(b.ChildByFieldName("trait")), true)
				}
				if name := w.traitName(b); name != "" {
					return ffitype.ClassifyBox(name, false)
				}
			}
		}
		return ffitype.Type{}, &ffitype.UnsupportedError{Name: w.text(n), Reason: "boxed value must name an interface"}
	}
	return ffitype.Type{}, &ffitype.UnsupportedError{Name: w.text(n), Reason: "unknown generic wrapper " + name}
}

// traitName resolves the first trait named in a dyn bound.
func (w *walker) traitName(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "type_identifier":
		return w.text(n)
	case "scoped_type_identifier":
		return w.text(n.ChildByFieldName("name"))
	case "generic_type":
		return w.traitName(n.ChildByFieldName("type"))
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if name := w.traitName(n.NamedChild(i)); name != "" {
			return name
		}
	}
	return ""
}
