// Package archive expands zip uploads into a working folder.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for entries that would land outside the destination.
var ErrUnsafePath = errors.New("zip entry escapes destination")

// ErrDuplicateEntry is returned when two entries map to the same file.
var ErrDuplicateEntry = errors.New("duplicate zip entry")

// Expand extracts every entry of the zip at zipPath into destDir, creating
// it if needed, and returns the paths of the extracted files. Any failure
// aborts the expansion.
func Expand(zipPath, destDir string) ([]string, error) {
	zr, err := zip.OpenReader(zipPath)
	// ErrInsecurePath still yields a usable reader; entries are checked below.
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create dest dir: %w", err)
	}

	var files []string
	seen := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		name := filepath.FromSlash(f.Name)
		if !filepath.IsLocal(name) {
			return files, fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
		}
		// Finder metadata, never a document.
		if strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}

		target := filepath.Join(destDir, name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, fmt.Errorf("create dir %s: %w", f.Name, err)
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}
		if seen[name] {
			return files, fmt.Errorf("%w: %s", ErrDuplicateEntry, f.Name)
		}
		seen[name] = true

		if err := extractFile(f, target); err != nil {
			return files, err
		}
		files = append(files, target)
	}
	return files, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}
