package archive

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/hidez8891/zip"
)

type entry struct {
	name    string
	content string
}

func makeZip(t *testing.T, dir string, entries []entry) string {
	t.Helper()
	zipPath := filepath.Join(dir, "test.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, e := range entries {
		if e.name[len(e.name)-1] == '/' {
			h := &zip.FileHeader{Name: e.name}
			h.SetMode(os.ModeDir | 0755)
			if _, err := w.CreateHeader(h); err != nil {
				t.Fatalf("Failed to create directory %s: %v", e.name, err)
			}
			continue
		}
		fw, err := w.Create(e.name)
		if err != nil {
			t.Fatalf("Failed to create file %s in zip: %v", e.name, err)
		}
		if _, err := fw.Write([]byte(e.content)); err != nil {
			t.Fatalf("Failed to write content for %s: %v", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return zipPath
}

var library = []entry{
	{"fiction/", ""},
	{"fiction/one.fb2", "<FictionBook/>"},
	{"fiction/two.epub", "epub"},
	{"docs/readme.txt", "readme content"},
	{"config.yml", "config content"},
}

func TestWalk(t *testing.T) {
	zipPath := makeZip(t, t.TempDir(), library)

	tests := []struct {
		prefix string
		want   []string
	}{
		{"fiction/", []string{"fiction/one.fb2", "fiction/two.epub"}},
		{"docs/", []string{"docs/readme.txt"}},
		{"Docs/", nil},
		{"nonexistent/", nil},
		{"", []string{"fiction/one.fb2", "fiction/two.epub", "docs/readme.txt", "config.yml"}},
	}
	for _, tt := range tests {
		t.Run("prefix "+tt.prefix, func(t *testing.T) {
			var visited []string
			err := Walk(zipPath, tt.prefix, func(archive string, file *zip.File) error {
				if archive != zipPath {
					t.Errorf("archive = %s, want %s", archive, zipPath)
				}
				visited = append(visited, file.Name)
				return nil
			})
			if err != nil {
				t.Fatalf("Walk() error = %v", err)
			}
			if !slices.Equal(visited, tt.want) {
				t.Errorf("visited %v, want %v", visited, tt.want)
			}
		})
	}

	t.Run("early termination", func(t *testing.T) {
		stop := errors.New("stop walking")
		visited := 0
		err := Walk(zipPath, "", func(string, *zip.File) error {
			visited++
			if visited == 2 {
				return stop
			}
			return nil
		})
		if err != stop || visited != 2 {
			t.Errorf("Walk() = %v after %d files, want stop after 2", err, visited)
		}
	})
}

func TestWalk_Invalid(t *testing.T) {
	dir := t.TempDir()

	if err := Walk(filepath.Join(dir, "absent.zip"), "", func(string, *zip.File) error { return nil }); err == nil {
		t.Error("Expected error for nonexistent file")
	}

	bad := filepath.Join(dir, "bad.zip")
	if err := os.WriteFile(bad, []byte("not a zip file"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Walk(bad, "", func(string, *zip.File) error { return nil }); err == nil {
		t.Error("Expected error for invalid zip file")
	}

	unsafe := makeZip(t, t.TempDir(), []entry{{"../escape.txt", "x"}})
	if err := Walk(unsafe, "", func(string, *zip.File) error { return nil }); err == nil {
		t.Error("Expected error for path traversal entry")
	}
}

func TestIsSafePath(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a/b.txt", true},
		{"a..b/c", true},
		{"/etc/passwd", false},
		{`\windows\file`, false},
		{"a/../../b", false},
		{`a\..\b`, false},
	}
	for _, tt := range tests {
		if got := isSafePath(tt.name); got != tt.want {
			t.Errorf("isSafePath(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
