package archive

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/hidez8891/zip"
	"golang.org/x/text/encoding"
)

// maxEntrySize limits amount of data read from a single entry.
const maxEntrySize = 256 << 20

// Reader gives random access to archive entries by name.
type Reader struct {
	zr    *zip.Reader
	close func() error
	files map[string]*zip.File
	lower map[string]*zip.File
}

// Open opens archive file. Names of entries not flagged as UTF-8 are decoded
// with cp when it is not nil.
func Open(name string, cp encoding.Encoding) (*Reader, error) {
	rc, err := zip.OpenReader(name)
	if err != nil {
		return nil, err
	}
	return newReader(&rc.Reader, rc.Close, cp), nil
}

// NewReader reads archive from memory.
func NewReader(data []byte, cp encoding.Encoding) (*Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return newReader(zr, func() error { return nil }, cp), nil
}

func newReader(zr *zip.Reader, closer func() error, cp encoding.Encoding) *Reader {
	r := &Reader{
		zr:    zr,
		close: closer,
		files: make(map[string]*zip.File, len(zr.File)),
		lower: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		if !isSafePath(f.Name) || f.FileInfo().IsDir() {
			continue
		}
		name := f.Name
		if cp != nil && f.NonUTF8 {
			if n, err := cp.NewDecoder().String(name); err == nil {
				name = n
			}
		}
		name = strings.ReplaceAll(name, `\`, "/")
		r.files[name] = f
		r.lower[strings.ToLower(name)] = f
	}
	return r
}

func (r *Reader) Close() error {
	return r.close()
}

// Names returns names of all regular entries in archive order.
func (r *Reader) Names() []string {
	byFile := make(map[*zip.File]string, len(r.files))
	for n, f := range r.files {
		byFile[f] = n
	}
	names := make([]string, 0, len(r.files))
	for _, f := range r.zr.File {
		if n, ok := byFile[f]; ok {
			names = append(names, n)
		}
	}
	return names
}

func (r *Reader) lookup(name string) (*zip.File, bool) {
	name = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(name, `\`, "/")), "/")
	if f, ok := r.files[name]; ok {
		return f, true
	}
	// books are often produced on case insensitive file systems
	f, ok := r.lower[strings.ToLower(name)]
	return f, ok
}

// Exists reports whether regular entry with name is present.
func (r *Reader) Exists(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

// ReadFile returns content of the named entry.
func (r *Reader) ReadFile(name string) ([]byte, error) {
	f, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}
	if f.UncompressedSize64 > maxEntrySize {
		return nil, fmt.Errorf("%s: entry is too large (%d bytes)", name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxEntrySize))
}

// IsArchive reports whether file content is a zip archive. EPUB files are
// recognized as zip archives too.
func IsArchive(name string) (bool, error) {
	f, err := os.Open(name)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	return IsArchiveData(head[:n]), nil
}

// IsArchiveData checks header bytes for zip signature.
func IsArchiveData(head []byte) bool {
	return filetype.IsType(head, matchers.TypeZip) || filetype.IsType(head, matchers.TypeEpub)
}

// Split separates path of the form "dir/archive.zip/inner/path" into archive
// file name and path inside the archive. When path names existing regular
// file which is not archive inner is empty and isArchive is false.
func Split(name string) (file, inner string, isArchive bool, err error) {
	name = filepath.Clean(name)
	for head, tail := name, ""; len(head) != 0; {
		fi, err := os.Stat(head)
		if err == nil {
			switch {
			case fi.IsDir():
				if len(tail) != 0 {
					return "", "", false, fmt.Errorf("input source was not found (%s) => (%s): %w", head, tail, fs.ErrNotExist)
				}
				return head, "", false, nil
			case !fi.Mode().IsRegular():
				return "", "", false, fmt.Errorf("unexpected path mode for (%s)", head)
			}
			arc, err := IsArchive(head)
			if err != nil {
				return "", "", false, err
			}
			if !arc && len(tail) != 0 {
				return "", "", false, fmt.Errorf("%s is not an archive, unable to look for (%s)", head, tail)
			}
			return head, filepath.ToSlash(tail), arc, nil
		}
		dir, base := filepath.Split(head)
		if len(base) == 0 {
			break
		}
		if len(tail) == 0 {
			tail = base
		} else {
			tail = base + string(filepath.Separator) + tail
		}
		head = strings.TrimSuffix(dir, string(filepath.Separator))
	}
	return "", "", false, fmt.Errorf("input source was not found (%s): %w", name, fs.ErrNotExist)
}
