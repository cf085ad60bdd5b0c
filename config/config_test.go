package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/a4vg/disk-based-bptree/bptree"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "loadgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
index:
  path: idx.db
`)

	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "idx.db", f.Index.Path)
	require.Equal(t, defaultPageSize, f.Index.PageSize)
	require.Equal(t, bptree.EstimateOrder(defaultPageSize), f.Index.Order)
}

func TestLoad_ExplicitValuesOverrideDefaults(t *testing.T) {
	path := writeConfig(t, `
index:
  path: idx.db
  page_size: 64
  order: 2
  truncate: true
`)

	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 64, f.Index.PageSize)
	require.Equal(t, 2, f.Index.Order)
	require.True(t, f.Index.Truncate)
}

func TestDump_Load_RoundTrip(t *testing.T) {
	in := &File{Index: Index{Path: "idx.db", PageSize: 4096, Order: 82, Truncate: false}}

	dir := t.TempDir()
	path := filepath.Join(dir, "dumped.yaml")
	require.NoError(t, Dump(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, in.Index, out.Index)
}
