// Package site assembles the static dashboard from a template and the
// exported API files.
package site

import (
	"embed"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DataDir is the directory inside the site that holds the API files.
const DataDir = "data"

//go:embed template
var bundled embed.FS

// Template returns the bundled site template.
func Template() fs.FS {
	sub, err := fs.Sub(bundled, "template")
	if err != nil {
		panic(err) // embedded path is fixed at build time
	}
	return sub
}

// Build copies the template into dest, merging with existing files, then
// replaces dest/data with a copy of apiDir. An empty templateDir selects the
// bundled template. A configured templateDir that does not exist is logged
// and the site is skipped; Build then returns "".
func Build(apiDir, templateDir, dest string) (string, error) {
	log := zap.L().With(zap.String("component", "site"))

	tmpl := Template()
	if templateDir != "" {
		info, err := os.Stat(templateDir)
		if err != nil || !info.IsDir() {
			log.Warn("site template directory not found, skipping static site", zap.String("dir", templateDir))
			return "", nil
		}
		tmpl = os.DirFS(templateDir)
	}

	if err := copyFS(dest, tmpl); err != nil {
		return "", eris.Wrapf(err, "site: copy template into %s", dest)
	}

	data := filepath.Join(dest, DataDir)
	if err := os.RemoveAll(data); err != nil {
		return "", eris.Wrapf(err, "site: remove %s", data)
	}
	if err := copyFS(data, os.DirFS(apiDir)); err != nil {
		return "", eris.Wrapf(err, "site: copy %s into %s", apiDir, data)
	}

	log.Info("static site built", zap.String("dest", dest))
	return dest, nil
}

// copyFS copies every regular file of fsys under dir, overwriting existing
// files.
func copyFS(dir string, fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dir, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(fsys, path, target)
	})
}

func copyFile(fsys fs.FS, path, target string) error {
	src, err := fsys.Open(path)
	if err != nil {
		return err
	}
	defer src.Close() //nolint:errcheck

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close() //nolint:errcheck
		return err
	}
	return dst.Close()
}
