package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/rubiojr/bindgen/bridge"
	"github.com/rubiojr/bindgen/cache"
	"github.com/rubiojr/bindgen/config"
	"github.com/rubiojr/bindgen/contract"
)

// Execute runs the bindgen CLI with the given version string.
// Import target packages via blank imports before calling this function
// so they register via init().
func Execute(version string) {
	cmd := &cli.Command{
		Name:                   "bindgen",
		Usage:                  "Generate foreign-function bridges for a Rust library",
		Version:                version,
		UseShortOptionHandling: true,
		Commands: []*cli.Command{
			{
				Name:      "generate",
				Usage:     "Generate bridge sources for every contract module",
				ArgsUsage: "[dir]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to bindgen.toml or its directory",
					},
					&cli.StringFlag{
						Name:    "target",
						Aliases: []string{"t"},
						Usage:   "Target strategy (see `bindgen targets`)",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output directory",
					},
					&cli.IntFlag{
						Name:    "jobs",
						Aliases: []string{"j"},
						Usage:   "Parallel modules (0 = one per CPU)",
					},
					&cli.BoolFlag{
						Name:  "no-cache",
						Usage: "Rewrite every module even when its input is unchanged",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Debug logging",
					},
				},
				Action: generateAction,
			},
			{
				Name:      "inspect",
				Usage:     "Show how the declarations in a contract file are classified",
				ArgsUsage: "<file.rs>",
				Action:    inspectAction,
			},
			{
				Name:   "targets",
				Usage:  "List the registered target strategies",
				Action: targetsAction,
			},
			{
				Name:  "cache",
				Usage: "Manage the generation cache",
				Commands: []*cli.Command{
					{
						Name:      "clear",
						Usage:     "Forget every cached module hash",
						ArgsUsage: "[dir]",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "config",
								Aliases: []string{"c"},
								Usage:   "Path to bindgen.toml or its directory",
							},
						},
						Action: cacheClearAction,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.Encoding = "console"
	return cfg.Build()
}

// loadConfig resolves the project configuration: an explicit --config, or
// the nearest bindgen.toml above dir, or the defaults for dir.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	dir := "."
	if cmd.NArg() > 0 {
		dir = cmd.Args().First()
	}
	if p := cmd.String("config"); p != "" {
		if strings.HasSuffix(p, ".toml") {
			p = filepath.Dir(p)
		}
		return config.Load(p)
	}
	cfg, err := config.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return config.Default(dir)
	}
	return cfg, nil
}

func useColor() bool {
	return os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stderr.Fd()))
}

func generateAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd.Bool("verbose"))
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	report, err := generate(ctx, cfg, generateOptions{
		Target:  cmd.String("target"),
		OutDir:  cmd.String("out"),
		Jobs:    cmd.Int("jobs"),
		NoCache: cmd.Bool("no-cache"),
	}, log)
	printReport(os.Stderr, report, useColor())
	return err
}

// generateOptions are the command-line overrides of a generate run.
type generateOptions struct {
	Target  string
	OutDir  string
	Jobs    int
	NoCache bool
}

func generate(ctx context.Context, cfg *config.Config, opts generateOptions, log *zap.Logger) (*bridge.Report, error) {
	target := cfg.Target
	if opts.Target != "" {
		target = opts.Target
	}
	outDir := cfg.OutDirPath()
	if opts.OutDir != "" {
		abs, err := filepath.Abs(opts.OutDir)
		if err != nil {
			return nil, err
		}
		outDir = abs
	}

	strategy, err := bridge.NewStrategy(target, cfg.StrategyOptions())
	if err != nil {
		return nil, err
	}

	p := &contract.Parser{Log: log}
	mods, scanErr := p.ScanContracts(cfg.Crate.Name, cfg.ContractDirPath(), cfg.Crate.ContractPath)
	if len(mods) == 0 && scanErr != nil {
		return nil, scanErr
	}
	impls, err := p.ScanImpls(cfg.ImpDirPath(), cfg.Crate.ImpPath)
	if err != nil {
		return nil, err
	}

	g := &bridge.Generator{
		Strategy:    strategy,
		Impls:       impls,
		OutDir:      outDir,
		Jobs:        opts.Jobs,
		Log:         log,
		Fingerprint: cfg.Fingerprint(),
	}
	if cfg.Cache.Enabled && !opts.NoCache {
		c, err := cache.Open(cfg.CachePath())
		if err != nil {
			log.Warn("generation cache disabled", zap.Error(err))
		} else {
			defer c.Close()
			g.Cache = c
		}
	}

	ptrs := make([]*contract.Module, len(mods))
	for i := range mods {
		ptrs[i] = &mods[i]
	}
	log.Debug("generating",
		zap.String("target", target),
		zap.Int("modules", len(ptrs)),
		zap.Int("impls", len(impls)),
		zap.String("out", outDir),
	)
	report, runErr := g.Run(ctx, ptrs)
	return report, errors.Join(scanErr, runErr)
}

func printReport(w io.Writer, r *bridge.Report, color bool) {
	if r == nil {
		return
	}
	colorOK, colorFail, colorReset := "\033[32m", "\033[31m", "\033[0m"
	if !color {
		colorOK, colorFail, colorReset = "", "", ""
	}
	fmt.Fprintf(w, "%s%d modules generated%s, %d unchanged", colorOK, len(r.Modules), colorReset, len(r.Unchanged))
	if len(r.Failed) > 0 {
		fmt.Fprintf(w, ", %s%d failed%s (%s)", colorFail, len(r.Failed), colorReset, strings.Join(r.Failed, ", "))
	}
	fmt.Fprintln(w)
}

func inspectAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: bindgen inspect <file.rs>")
	}
	path := cmd.Args().First()
	stem := strings.TrimSuffix(filepath.Base(path), ".rs")
	p := &contract.Parser{}
	ifaces, structs, err := p.ParseFile("", path, "crate::"+stem)
	if err != nil {
		return err
	}
	printClassification(os.Stdout, path, ifaces, structs, useColor())
	return nil
}

func targetsAction(ctx context.Context, cmd *cli.Command) error {
	for _, name := range bridge.Names() {
		fmt.Println(name)
	}
	return nil
}

func cacheClearAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	c, err := cache.Open(cfg.CachePath())
	if err != nil {
		return err
	}
	defer c.Close()
	n, err := c.Clear()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "removed %d cached modules from %s\n", n, cfg.CachePath())
	return nil
}
