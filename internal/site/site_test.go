package site

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func apiDir(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.json"), `{"funds":[]}`)
	writeFile(t, filepath.Join(dir, "funds", "11111111000111.json"), `{}`)
	return dir
}

func TestBuild_BundledTemplate(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "site")
	writeFile(t, filepath.Join(dest, DataDir, "stale.json"), "old")

	got, err := Build(apiDir(t), "", dest)
	require.NoError(t, err)
	assert.Equal(t, dest, got)

	assert.FileExists(t, filepath.Join(dest, "index.html"))
	assert.FileExists(t, filepath.Join(dest, "app.js"))
	assert.FileExists(t, filepath.Join(dest, DataDir, "index.json"))
	assert.FileExists(t, filepath.Join(dest, DataDir, "funds", "11111111000111.json"))
	assert.NoFileExists(t, filepath.Join(dest, DataDir, "stale.json"))
}

func TestBuild_CustomTemplateOverwrites(t *testing.T) {
	tmpl := t.TempDir()
	writeFile(t, filepath.Join(tmpl, "index.html"), "custom")
	writeFile(t, filepath.Join(tmpl, "css", "site.css"), "body{}")

	dest := t.TempDir()
	writeFile(t, filepath.Join(dest, "index.html"), "previous")
	writeFile(t, filepath.Join(dest, "keep.txt"), "kept")

	_, err := Build(apiDir(t), tmpl, dest)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "custom", string(data))
	assert.FileExists(t, filepath.Join(dest, "css", "site.css"))
	assert.FileExists(t, filepath.Join(dest, "keep.txt"))
}

func TestBuild_MissingTemplateSkips(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "site")

	got, err := Build(apiDir(t), filepath.Join(t.TempDir(), "web"), dest)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoDirExists(t, dest)
}
