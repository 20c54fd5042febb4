package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
target = "jni"

[crate]
name = "demo"
contract_dir = "rust/contract"
imp_dir = "rust/imp"
out_dir = "rust/bridge"

[android]
namespace = "com.example.ffi"
host_class = "DemoLib"

[ios]
header = "include/demo_ffi.h"

[cache]
enabled = false
path = "/tmp/bindgen.db"
`)

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "jni", c.Target)
	assert.Equal(t, "demo", c.Crate.Name)
	assert.Equal(t, filepath.Join(c.Dir, "rust/contract"), c.ContractDirPath())
	assert.Equal(t, filepath.Join(c.Dir, "rust/imp"), c.ImpDirPath())
	assert.Equal(t, filepath.Join(c.Dir, "rust/bridge"), c.OutDirPath())
	assert.Equal(t, "/tmp/bindgen.db", c.CachePath())
	assert.False(t, c.Cache.Enabled)

	opts := c.StrategyOptions()
	assert.Equal(t, "demo", opts.Crate)
	assert.Equal(t, "com.example.ffi", opts.Namespace)
	assert.Equal(t, "DemoLib", opts.HostClass)
	assert.Equal(t, "include/demo_ffi.h", opts.Header)
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[crate]
name = "geo"
`)

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "capi", c.Target)
	assert.Equal(t, filepath.Join(c.Dir, "src", "contract"), c.ContractDirPath())
	assert.Equal(t, filepath.Join(c.Dir, "src", "imp"), c.ImpDirPath())
	assert.Equal(t, filepath.Join(c.Dir, "_gen", "bridge"), c.OutDirPath())
	assert.Equal(t, "crate::contract", c.Crate.ContractPath)
	assert.Equal(t, "crate::imp", c.Crate.ImpPath)
	assert.Equal(t, "RustLib", c.Android.HostClass)
	assert.Equal(t, "geo.h", c.IOS.Header)
	assert.True(t, c.Cache.Enabled)
	assert.Equal(t, filepath.Join(c.Dir, ".bindgen", "cache.db"), c.CachePath())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "cannot read")

	dir := t.TempDir()
	writeConfig(t, dir, "[crate\nname = 1")
	_, err = Load(dir)
	assert.ErrorContains(t, err, "parse error")

	dir = t.TempDir()
	writeConfig(t, dir, "[crate]\nnmae = \"typo\"\n")
	_, err = Load(dir)
	assert.ErrorContains(t, err, "unknown key crate.nmae")
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[crate]\nname = \"walk\"\n")
	nested := filepath.Join(root, "src", "contract")
	require.NoError(t, os.MkdirAll(nested, 0755))

	c, err := FindAndLoad(nested)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "walk", c.Crate.Name)
	wantDir, err := filepath.Abs(root)
	require.NoError(t, err)
	assert.Equal(t, wantDir, c.Dir)
}

func TestDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my-lib")
	require.NoError(t, os.MkdirAll(dir, 0755))
	c, err := Default(dir)
	require.NoError(t, err)
	assert.Equal(t, "my_lib", c.Crate.Name)
	assert.Equal(t, "my_lib.h", c.IOS.Header)
	assert.True(t, c.Cache.Enabled)
}

func TestFingerprint(t *testing.T) {
	a, err := Default(t.TempDir())
	require.NoError(t, err)
	b := *a
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	b.Android.Namespace = "com.other"
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
