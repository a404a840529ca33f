package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hidez8891/zip"
)

func readArchive(t *testing.T, name string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("failed to open report: %v", err)
	}
	defer r.Close()

	out := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("failed to read %s: %v", f.Name, err)
		}
		out[f.Name] = string(data)
	}
	return out
}

func TestReport(t *testing.T) {
	tmpDir := t.TempDir()
	conf := ReporterConfig{Destination: filepath.Join(tmpDir, "report.zip")}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}

	logFile := filepath.Join(tmpDir, "run.log")
	if err := os.WriteFile(logFile, []byte("log line"), 0644); err != nil {
		t.Fatal(err)
	}
	pagesDir := filepath.Join(tmpDir, "pages")
	if err := os.MkdirAll(filepath.Join(pagesDir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pagesDir, "sub", "page-1.txt"), []byte("page one"), 0644); err != nil {
		t.Fatal(err)
	}

	r.Store("final.log", logFile)
	r.Store("missing.log", filepath.Join(tmpDir, "absent.log"))
	r.StoreData("config.yaml", []byte("version: 1\n"))
	if err := r.StoreCopy("pages", pagesDir); err != nil {
		t.Fatalf("StoreCopy() error: %v", err)
	}
	// snapshot is taken at call time
	if err := os.WriteFile(filepath.Join(pagesDir, "sub", "page-1.txt"), []byte("changed"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := r.StoreCopy("pages", filepath.Join(pagesDir, "sub", "page-1.txt")); err != nil {
		t.Fatalf("StoreCopy() error: %v", err)
	}
	copies := append([]string(nil), r.copies...)

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	files := readArchive(t, r.Name())
	if files["final.log"] != "log line" || files["config.yaml"] != "version: 1\n" {
		t.Errorf("unexpected archive content: %v", files)
	}
	if files["pages/sub/page-1.txt"] != "page one" {
		t.Errorf("copied directory content = %q", files["pages/sub/page-1.txt"])
	}
	if _, ok := files["missing.log"]; ok {
		t.Error("absent file must not be archived")
	}
	manifest := files["MANIFEST"]
	if !strings.Contains(manifest, "final.log") || strings.Count(manifest, "\n") != 5 {
		t.Errorf("unexpected manifest:\n%s", manifest)
	}

	for _, dir := range copies {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("temporary copy %s was not removed", dir)
		}
	}
	if _, err := os.Stat(logFile); err != nil {
		t.Errorf("stored file must not be removed: %v", err)
	}
}

func TestReportRedefinition(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	r.Store("a", "/x")
	r.Store("a", "/x")

	defer func() {
		if recover() == nil {
			t.Error("expected panic on redefined entry")
		}
	}()
	r.Store("a", "/y")
}

func TestReportNil(t *testing.T) {
	var r *Report
	r.Store("a", "b")
	r.StoreData("c", nil)
	if err := r.StoreCopy("d", "/nonexistent"); err != nil {
		t.Errorf("StoreCopy on nil report should not error, got: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
	if r.Name() != "" {
		t.Error("nil report has no name")
	}

	empty := &Report{entries: make(map[string]entry)}
	if err := empty.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}
