package contract

import (
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"
)

// ParseImplFile reads an implementation file and collects its trait impls.
func (p *Parser) ParseImplFile(path, modPath string) ([]ImplDesc, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{File: path, Msg: "reading source", Err: err}
	}
	modName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return p.parseImpls(modName, modPath, path, src)
}

// ParseImplSource collects `impl Trait for Type` items from src. Inherent
// impls are ignored; a file without trait impls yields no descriptions and no
// error.
func (p *Parser) ParseImplSource(modName, modPath, src string) ([]ImplDesc, error) {
	return p.parseImpls(modName, modPath, modName+".rs", []byte(src))
}

func (p *Parser) parseImpls(modName, modPath, file string, src []byte) ([]ImplDesc, error) {
	root, closeTree, err := parseTree(file, src)
	if err != nil {
		return nil, err
	}
	defer closeTree()

	w := &walker{src: src, file: file}
	var impls []ImplDesc
	for i := 0; i < int(root.NamedChildCount()); i++ {
		item := root.NamedChild(i)
		if item.Type() != "impl_item" {
			continue
		}
		trait := item.ChildByFieldName("trait")
		if trait == nil {
			continue
		}
		imp := ImplDesc{
			Name:     w.baseName(item.ChildByFieldName("type")),
			Contract: w.baseName(trait),
			ModName:  modName,
			ModPath:  modPath,
		}
		p.log().Debug("found impl",
			zap.String("module", modName),
			zap.String("impl", imp.Name),
			zap.String("contract", imp.Contract))
		impls = append(impls, imp)
	}
	return impls, nil
}

// baseName strips paths and generic arguments from a type node.
func (w *walker) baseName(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "scoped_type_identifier":
		return w.text(n.ChildByFieldName("name"))
	case "generic_type":
		return w.baseName(n.ChildByFieldName("type"))
	default:
		return w.text(n)
	}
}
