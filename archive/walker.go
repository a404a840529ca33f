// Package archive gives access to books stored in zip containers: stand
// alone archives holding many books and EPUB files, which are zip archives
// themselves.
package archive

import (
	"fmt"
	"path"
	"strings"

	"github.com/hidez8891/zip"
)

// WalkFunc is called by Walk for every file in archive which matches prefix.
// Archive is the path passed to Walk. Returning an error stops the walk.
type WalkFunc func(archive string, file *zip.File) error

// Walk visits all regular files of the archive whose names start with
// prefix. Archives with absolute names or names containing ".." are refused.
func Walk(archive, prefix string, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if !isSafePath(f.Name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", f.Name)
		}
		if f.FileInfo().IsDir() || !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		if err := walkFn(archive, f); err != nil {
			return err
		}
	}
	return nil
}

func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	for part := range strings.SplitSeq(strings.ReplaceAll(name, `\`, "/"), "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
