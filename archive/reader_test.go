package archive

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestReader(t *testing.T) {
	zipPath := makeZip(t, t.TempDir(), library)

	r, err := Open(zipPath, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	want := []string{"fiction/one.fb2", "fiction/two.epub", "docs/readme.txt", "config.yml"}
	if got := r.Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	tests := []struct {
		name    string
		content string
	}{
		{"docs/readme.txt", "readme content"},
		{"/docs/readme.txt", "readme content"},
		{"docs/../docs/readme.txt", "readme content"},
		{"DOCS/README.TXT", "readme content"},
		{`fiction\one.fb2`, "<FictionBook/>"},
	}
	for _, tt := range tests {
		data, err := r.ReadFile(tt.name)
		if err != nil {
			t.Errorf("ReadFile(%q) error = %v", tt.name, err)
			continue
		}
		if string(data) != tt.content {
			t.Errorf("ReadFile(%q) = %q, want %q", tt.name, data, tt.content)
		}
	}

	if _, err := r.ReadFile("fiction/"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("directories are not readable, got %v", err)
	}
	if r.Exists("missing.txt") || !r.Exists("config.yml") {
		t.Error("unexpected Exists() result")
	}
}

func TestNewReader(t *testing.T) {
	data, err := os.ReadFile(makeZip(t, t.TempDir(), library))
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewReader(data, nil)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	if !r.Exists("fiction/two.epub") {
		t.Error("expected entry in memory archive")
	}
	if !IsArchiveData(data) || IsArchiveData([]byte("plain text")) {
		t.Error("unexpected IsArchiveData() result")
	}
}

func TestSplit(t *testing.T) {
	dir := t.TempDir()
	zipPath := makeZip(t, dir, library)
	plain := filepath.Join(dir, "book.html")
	if err := os.WriteFile(plain, []byte("<p>text</p>"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		in      string
		file    string
		inner   string
		archive bool
		wantErr bool
	}{
		{in: zipPath, file: zipPath, archive: true},
		{in: filepath.Join(zipPath, "fiction", "one.fb2"), file: zipPath, inner: "fiction/one.fb2", archive: true},
		{in: plain, file: plain},
		{in: dir, file: dir},
		{in: filepath.Join(plain, "inner"), wantErr: true},
		{in: filepath.Join(dir, "nothing", "here"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.in), func(t *testing.T) {
			file, inner, arc, err := Split(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Split() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if file != tt.file || inner != tt.inner || arc != tt.archive {
				t.Errorf("Split() = %q, %q, %v; want %q, %q, %v", file, inner, arc, tt.file, tt.inner, tt.archive)
			}
		})
	}
}
