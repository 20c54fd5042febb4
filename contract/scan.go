package contract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Module is one parsed contract source file.
type Module struct {
	Name       string // file stem
	Path       string // module path, e.g. "crate::contract::demo"
	File       string
	Interfaces []InterfaceDesc
	Structs    []StructDesc
}

// ScanContracts parses every contract file in dir. Each file is one module
// with path modPrefix::stem. Files that fail to parse are left out of the
// result and reported in the returned error; the others are still returned.
func (p *Parser) ScanContracts(crate, dir, modPrefix string) ([]Module, error) {
	files, err := rustSources(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no contract files found in %s", dir)
	}

	var mods []Module
	var errs []error
	for _, f := range files {
		stem := strings.TrimSuffix(filepath.Base(f), ".rs")
		modPath := modPrefix + "::" + stem
		ifaces, structs, err := p.ParseFile(crate, f, modPath)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		mods = append(mods, Module{
			Name:       stem,
			Path:       modPath,
			File:       f,
			Interfaces: ifaces,
			Structs:    structs,
		})
	}
	return mods, errors.Join(errs...)
}

// ScanImpls collects trait impls from every implementation file in dir.
// A missing directory yields no impls.
func (p *Parser) ScanImpls(dir, modPrefix string) ([]ImplDesc, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	files, err := rustSources(dir)
	if err != nil {
		return nil, err
	}
	var impls []ImplDesc
	for _, f := range files {
		stem := strings.TrimSuffix(filepath.Base(f), ".rs")
		found, err := p.ParseImplFile(f, modPrefix+"::"+stem)
		if err != nil {
			return nil, err
		}
		impls = append(impls, found...)
	}
	return impls, nil
}

// rustSources lists module files in dir, sorted. mod.rs and lib.rs only
// re-export modules and are skipped.
func rustSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !rustSourceFilter(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func rustSourceFilter(name string) bool {
	if !strings.HasSuffix(name, ".rs") {
		return false
	}
	switch name {
	case "mod.rs", "lib.rs":
		return false
	}
	return !strings.HasSuffix(name, "_test.rs")
}
