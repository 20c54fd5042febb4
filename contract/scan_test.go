package contract

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanContracts(t *testing.T) {
	p := &Parser{}
	dir := filepath.Join(fixtureDir("project"), "src", "contract")
	mods, err := p.ScanContracts("demo", dir, "crate::contract")
	require.NoError(t, err)
	require.Len(t, mods, 2, "mod.rs is skipped")

	assert.Equal(t, "demo", mods[0].Name)
	assert.Equal(t, "crate::contract::demo", mods[0].Path)
	assert.Len(t, mods[0].Interfaces, 2)

	assert.Equal(t, "shapes", mods[1].Name)
	assert.Empty(t, mods[1].Interfaces)
	require.Len(t, mods[1].Structs, 1)
	assert.Equal(t, "Circle", mods[1].Structs[0].Name)
}

func TestScanContracts_PartialFailure(t *testing.T) {
	p := &Parser{}
	mods, err := p.ScanContracts("demo", fixtureDir("mixed"), "crate::contract")
	require.Error(t, err)
	var pe *ParseError
	assert.True(t, errors.As(err, &pe))
	require.Len(t, mods, 1, "good module survives a broken sibling")
	assert.Equal(t, "good", mods[0].Name)
}

func TestScanContracts_EmptyDir(t *testing.T) {
	p := &Parser{}
	_, err := p.ScanContracts("demo", t.TempDir(), "crate::contract")
	assert.Error(t, err)
}

func TestScanImpls(t *testing.T) {
	p := &Parser{}
	impls, err := p.ScanImpls(filepath.Join(fixtureDir("project"), "src", "imp"), "crate::imp")
	require.NoError(t, err)
	require.Len(t, impls, 1)
	assert.Equal(t, "DemoImpl", impls[0].Name)
	assert.Equal(t, "DemoTrait", impls[0].Contract)
	assert.Equal(t, "crate::imp::demo", impls[0].ModPath)
}

func TestScanImpls_MissingDir(t *testing.T) {
	p := &Parser{}
	impls, err := p.ScanImpls(filepath.Join(t.TempDir(), "nope"), "crate::imp")
	require.NoError(t, err)
	assert.Empty(t, impls)
}

func TestRustSourceFilter(t *testing.T) {
	assert.True(t, rustSourceFilter("demo.rs"))
	assert.False(t, rustSourceFilter("mod.rs"))
	assert.False(t, rustSourceFilter("lib.rs"))
	assert.False(t, rustSourceFilter("demo_test.rs"))
	assert.False(t, rustSourceFilter("demo.go"))
}
