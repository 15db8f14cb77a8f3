// Package archive builds Walk abstraction on top of "archive/zip".
package archive

import (
	"archive/zip"
	"fmt"
	"path"
	"strings"
)

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. The archive argument contains path to archive passed to
// Walk. If an error is returned, processing stops.
type WalkFunc func(archive string, file *zip.File) error

// MatchFunc selects archive entries by name.
type MatchFunc func(name string) bool

// HasExt returns MatchFunc accepting names with one of the extensions (case
// insensitive, with leading dot).
func HasExt(exts ...string) MatchFunc {
	return func(name string) bool {
		ext := strings.ToLower(path.Ext(name))
		for _, e := range exts {
			if ext == strings.ToLower(e) {
				return true
			}
		}
		return false
	}
}

// Walk walks files in the archive located under prefix and accepted by match
// (nil accepts everything), calling walkFn for each. Archives containing
// absolute entry names or ".." components are rejected to prevent Zip Slip.
func Walk(archive, prefix string, match MatchFunc, walkFn WalkFunc) error {

	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		if match != nil && !match(name) {
			continue
		}
		if err := walkFn(archive, f); err != nil {
			return err
		}
	}
	return nil
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	for part := range strings.SplitSeq(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
