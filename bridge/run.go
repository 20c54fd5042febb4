package bridge

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/emit"
)

// IndexFile is the name of the index artifact.
const IndexFile = "mod.rs"

// Report summarizes a Run.
type Report struct {
	Modules   []string // successfully generated, in input order
	Failed    []string
	Unchanged []string // generated but not rewritten, cache hit
	Written   []string // paths written
}

type outcome struct {
	art *Artifact
	err error
}

// Run generates every module on a bounded worker pool. Each module fails
// independently; failures are joined into the returned error while the
// successful modules are still written together with the index and host
// artifacts covering them.
func (g *Generator) Run(ctx context.Context, mods []*contract.Module) (*Report, error) {
	var all []contract.StructDesc
	for _, m := range mods {
		all = append(all, m.Structs...)
	}
	structs := contract.IndexStructs(all)
	dups := duplicateStructs(mods)

	jobs := g.Jobs
	if jobs < 1 {
		jobs = runtime.NumCPU()
	}
	if jobs > len(mods) {
		jobs = len(mods)
	}

	results := make([]outcome, len(mods))
	work := make(chan int, len(mods))
	for i := range mods {
		work <- i
	}
	close(work)
	var wg sync.WaitGroup
	for range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				if err := ctx.Err(); err != nil {
					results[i].err = fmt.Errorf("module %s: %w", mods[i].Name, err)
					continue
				}
				if err, ok := dups[i]; ok {
					results[i].err = err
					continue
				}
				art, err := g.GenerateModule(mods[i], structs)
				if err == nil {
					art.Hash, err = g.moduleHash(mods[i], art.Scope)
				}
				results[i] = outcome{art: art, err: err}
			}
		}()
	}
	wg.Wait()

	report := &Report{}
	var errs []error
	var scopes []*Scope
	var names []string
	for i, r := range results {
		if r.err != nil {
			g.log().Warn("module failed", zap.String("module", mods[i].Name), zap.Error(r.err))
			report.Failed = append(report.Failed, mods[i].Name)
			errs = append(errs, r.err)
			continue
		}
		if err := g.write(r.art, report); err != nil {
			report.Failed = append(report.Failed, mods[i].Name)
			errs = append(errs, err)
			continue
		}
		report.Modules = append(report.Modules, r.art.Module)
		scopes = append(scopes, r.art.Scope)
		names = append(names, r.art.Module)
	}

	if len(names) > 0 {
		if err := g.writeShared(names, scopes, report); err != nil {
			errs = append(errs, err)
		}
	}
	return report, errors.Join(errs...)
}

// duplicateStructs returns, by module index, an error for the first struct
// a module declares that another module declares too. Struct references
// resolve by bare name across the run, so such names are ambiguous.
func duplicateStructs(mods []*contract.Module) map[int]error {
	owners := make(map[string][]string)
	for _, m := range mods {
		for _, st := range m.Structs {
			owners[st.Name] = append(owners[st.Name], m.Name)
		}
	}
	dups := make(map[int]error)
	for i, m := range mods {
		for _, st := range m.Structs {
			if o := owners[st.Name]; len(o) > 1 {
				dups[i] = &GenerateError{
					Module:    m.Name,
					Interface: st.Name,
					Subject:   "structure",
					Msg:       "struct is declared in modules " + strings.Join(o, ", "),
				}
				break
			}
		}
	}
	return dups
}

// write stores one module artifact unless the cache shows identical input
// and the file is still present.
func (g *Generator) write(art *Artifact, report *Report) error {
	path := filepath.Join(g.OutDir, art.File.Name)
	target := g.Strategy.Name()
	if g.Cache != nil {
		hit, err := g.Cache.Lookup(art.Module, target, art.Hash)
		if err != nil {
			g.log().Warn("cache lookup failed", zap.String("module", art.Module), zap.Error(err))
		}
		if hit {
			if _, err := os.Stat(path); err == nil {
				g.log().Debug("module unchanged", zap.String("module", art.Module))
				report.Unchanged = append(report.Unchanged, art.Module)
				return nil
			}
		}
	}
	if err := writeFile(path, art.File.Content); err != nil {
		return fmt.Errorf("module %s: %w", art.Module, err)
	}
	report.Written = append(report.Written, path)
	if g.Cache != nil {
		if err := g.Cache.Store(art.Module, target, art.Hash); err != nil {
			g.log().Warn("cache store failed", zap.String("module", art.Module), zap.Error(err))
		}
	}
	return nil
}

func (g *Generator) writeShared(names []string, scopes []*Scope, report *Report) error {
	w := emit.NewWriter()
	if err := g.Strategy.Index(w, names); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	path := filepath.Join(g.OutDir, IndexFile)
	if err := writeFile(path, w.String()); err != nil {
		return err
	}
	report.Written = append(report.Written, path)

	host, err := g.Strategy.HostFile(scopes)
	if err != nil {
		return fmt.Errorf("host file: %w", err)
	}
	if host == nil {
		return nil
	}
	path = filepath.Join(g.OutDir, host.Name)
	if err := writeFile(path, host.Content); err != nil {
		return err
	}
	report.Written = append(report.Written, path)
	return nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// moduleHash returns a hex key over everything the module output depends
// on: its descriptions, the implementations bound in it, the foreign
// structs it references, the target and the strategy fingerprint.
func (g *Generator) moduleHash(mod *contract.Module, sc *Scope) (string, error) {
	impls := make([]contract.ImplDesc, 0, len(sc.Plan.Bindings))
	for _, b := range sc.Plan.Bindings {
		impls = append(impls, b.Impl)
	}
	input := struct {
		Module  *contract.Module
		Impls   []contract.ImplDesc
		Foreign []*contract.StructDesc
	}{mod, impls, sc.ForeignStructs()}
	b, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("hashing module %s: %w", mod.Name, err)
	}
	h := sha256.New()
	h.Write(b)
	h.Write([]byte{0})
	h.Write([]byte(g.Strategy.Name()))
	h.Write([]byte{0})
	h.Write([]byte(g.Fingerprint))
	return fmt.Sprintf("%x", h.Sum(nil))[:16], nil
}
