// Package config handles bindgen.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/rubiojr/bindgen/bridge"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "bindgen.toml"

// Config represents a bindgen.toml project configuration.
type Config struct {
	Target  string  `toml:"target"`
	Crate   Crate   `toml:"crate"`
	Android Android `toml:"android"`
	IOS     IOS     `toml:"ios"`
	Cache   Cache   `toml:"cache"`

	// Dir is the directory containing the bindgen.toml file (set at load time).
	Dir string `toml:"-"`
}

// Crate locates the library sources and the generated output.
type Crate struct {
	Name         string `toml:"name"`
	ContractDir  string `toml:"contract_dir"`
	ImpDir       string `toml:"imp_dir"`
	OutDir       string `toml:"out_dir"`
	ContractPath string `toml:"contract_path"` // module path of contract_dir
	ImpPath      string `toml:"imp_path"`
}

// Android configures the jni target.
type Android struct {
	Namespace string `toml:"namespace"`
	HostClass string `toml:"host_class"`
}

// IOS configures the capi target.
type IOS struct {
	Header string `toml:"header"`
}

// Cache configures the generation cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the configuration used when dir has no bindgen.toml.
func Default(dir string) (*Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	c := &Config{Dir: abs}
	c.applyDefaults(toml.MetaData{})
	return c, nil
}

// Load parses the bindgen.toml file in dir.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	c.applyDefaults(md)
	return &c, nil
}

// FindAndLoad walks up from startDir to find a bindgen.toml file, then
// loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (c *Config) applyDefaults(md toml.MetaData) {
	if c.Target == "" {
		c.Target = "capi"
	}
	if c.Crate.Name == "" {
		c.Crate.Name = strings.ReplaceAll(filepath.Base(c.Dir), "-", "_")
	}
	if c.Crate.ContractDir == "" {
		c.Crate.ContractDir = filepath.Join("src", "contract")
	}
	if c.Crate.ImpDir == "" {
		c.Crate.ImpDir = filepath.Join("src", "imp")
	}
	if c.Crate.OutDir == "" {
		c.Crate.OutDir = filepath.Join("_gen", "bridge")
	}
	if c.Crate.ContractPath == "" {
		c.Crate.ContractPath = "crate::contract"
	}
	if c.Crate.ImpPath == "" {
		c.Crate.ImpPath = "crate::imp"
	}
	if c.Android.HostClass == "" {
		c.Android.HostClass = "RustLib"
	}
	if c.IOS.Header == "" {
		c.IOS.Header = c.Crate.Name + ".h"
	}
	if !md.IsDefined("cache", "enabled") {
		c.Cache.Enabled = true
	}
	if c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(".bindgen", "cache.db")
	}
}

func (c *Config) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// ContractDirPath returns the absolute contract source directory.
func (c *Config) ContractDirPath() string { return c.abs(c.Crate.ContractDir) }

// ImpDirPath returns the absolute implementation source directory.
func (c *Config) ImpDirPath() string { return c.abs(c.Crate.ImpDir) }

// OutDirPath returns the absolute output directory.
func (c *Config) OutDirPath() string { return c.abs(c.Crate.OutDir) }

// CachePath returns the absolute path of the cache database.
func (c *Config) CachePath() string { return c.abs(c.Cache.Path) }

// StrategyOptions returns the options every target is constructed with.
func (c *Config) StrategyOptions() bridge.Options {
	return bridge.Options{
		Crate:     c.Crate.Name,
		Namespace: c.Android.Namespace,
		HostClass: c.Android.HostClass,
		Header:    c.IOS.Header,
	}
}

// Fingerprint identifies the options that change generated output, so a
// cached module is regenerated when any of them changes.
func (c *Config) Fingerprint() string {
	o := c.StrategyOptions()
	return strings.Join([]string{o.Crate, o.Namespace, o.HostClass, o.Header, c.Crate.ContractPath, c.Crate.ImpPath}, "\x00")
}
