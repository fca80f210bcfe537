package fetcher

import (
	"archive/zip"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// ZIPMembers lists the regular files inside a ZIP archive, in archive order.
func ZIPMembers(zipPath string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var names []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
	}
	return names, nil
}

// IsCSVName reports whether name has a .csv extension, ignoring case.
func IsCSVName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".csv")
}

// zipMember closes both the entry and the archive that owns it.
type zipMember struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (m *zipMember) Close() error {
	err := m.ReadCloser.Close()
	if cerr := m.archive.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenZIPMember opens the first regular member whose name satisfies match and
// returns it with its name. A nil match selects the first ".csv" member.
// Closing the returned reader also closes the archive.
func OpenZIPMember(zipPath string, match func(name string) bool) (io.ReadCloser, string, error) {
	if match == nil {
		match = IsCSVName
	}
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, "", eris.Wrap(err, "zip: open archive")
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !match(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			_ = r.Close()
			return nil, "", eris.Wrapf(err, "zip: open entry %s", f.Name)
		}
		return &zipMember{ReadCloser: rc, archive: r}, f.Name, nil
	}

	_ = r.Close()
	return nil, "", eris.Errorf("zip: no matching member in %s", path.Base(zipPath))
}

// NameContains returns a case-insensitive substring predicate for OpenZIPMember.
func NameContains(substr string) func(string) bool {
	substr = strings.ToLower(substr)
	return func(name string) bool {
		return strings.Contains(strings.ToLower(name), substr)
	}
}

// NameEquals returns an exact-name predicate for OpenZIPMember.
func NameEquals(name string) func(string) bool {
	return func(n string) bool { return n == name }
}
