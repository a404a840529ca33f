package book

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"reflow/config"
	"reflow/utils/images"
)

func TestImageStoreLookup(t *testing.T) {
	s := NewImageStore(nil, zaptest.NewLogger(t))
	for _, key := range []string{"OEBPS/Images/Cover Art.png", "cover", RecIndexPrefix + "3"} {
		if err := s.Add(key, pngData(t, 20, 10)); err != nil {
			t.Fatalf("Add(%q): %v", key, err)
		}
	}

	tests := []struct {
		name  string
		ref   string
		scope string
		want  string
	}{
		{"relative to chapter", "../Images/Cover%20Art.png", "OEBPS/Text/ch1.xhtml", "OEBPS/Images/Cover Art.png"},
		{"case insensitive", "../images/cover art.PNG", "OEBPS/Text/ch1.xhtml", "OEBPS/Images/Cover Art.png"},
		{"full path", "/OEBPS/Images/Cover Art.png", "", "OEBPS/Images/Cover Art.png"},
		{"binary id", "#cover", "", "cover"},
		{"record index", "00003", "", RecIndexPrefix + "3"},
		{"missing", "nothing.png", "OEBPS/Text/ch1.xhtml", ""},
		{"external", "http://example.com/cover", "", ""},
		{"data url", "data:image/png;base64,AAAA", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, ok := s.LookupImage(tt.ref, tt.scope)
			if len(tt.want) == 0 {
				if ok {
					t.Fatalf("expected miss, got %q", img.ID)
				}
				return
			}
			if !ok || img.ID != tt.want {
				t.Fatalf("LookupImage(%q, %q) = %v, %v; want %q", tt.ref, tt.scope, img, ok, tt.want)
			}
			if img.Width != 20 || img.Height != 10 || img.Format != "png" {
				t.Errorf("unexpected image %+v", img)
			}
		})
	}

	if keys := s.Keys(); len(keys) != 3 || keys[0] != "OEBPS/Images/Cover Art.png" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestImageStoreConfig(t *testing.T) {
	log := zaptest.NewLogger(t)

	t.Run("disabled", func(t *testing.T) {
		s := NewImageStore(&config.ImagesConfig{}, log)
		_ = s.Add("a", pngData(t, 2, 2))
		if _, ok := s.LookupImage("a", ""); ok {
			t.Error("images are disabled")
		}
	})

	t.Run("scale factor", func(t *testing.T) {
		s := NewImageStore(&config.ImagesConfig{Enable: true, ScaleFactor: 1.5}, log)
		if err := s.Add("a", pngData(t, 20, 10)); err != nil {
			t.Fatal(err)
		}
		img, _ := s.Get("a")
		if img.Width != 30 || img.Height != 15 {
			t.Errorf("expected 30x15, got %dx%d", img.Width, img.Height)
		}
	})

	t.Run("broken", func(t *testing.T) {
		s := NewImageStore(&config.ImagesConfig{Enable: true}, log)
		if err := s.Add("bad", []byte("not an image")); err == nil {
			t.Error("expected error for broken image")
		}
		if s.Len() != 0 {
			t.Error("broken image must not be stored")
		}

		s = NewImageStore(&config.ImagesConfig{Enable: true, UseBroken: true}, log)
		if err := s.Add("bad", []byte("not an image")); err != nil {
			t.Fatalf("placeholder expected: %v", err)
		}
		img, ok := s.LookupImage("bad", "")
		if !ok || img.Format != images.FormatSVG || img.Width != 120 || img.Height != 90 {
			t.Errorf("unexpected placeholder %+v", img)
		}
	})
}

func TestImageStoreDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "img"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "img", "a.png"), pngData(t, 8, 6), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(filepath.Dir(dir), "outside.png"), pngData(t, 8, 6), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(filepath.Join(filepath.Dir(dir), "outside.png")) })

	s := NewImageStore(nil, zaptest.NewLogger(t))
	s.SetDir(dir)

	img, ok := s.LookupImage("img/a.png", "")
	if !ok || img.Width != 8 {
		t.Fatalf("expected image from disk, got %v %v", img, ok)
	}
	if s.Len() != 1 {
		t.Error("loaded image must be cached")
	}
	if _, ok := s.LookupImage("../outside.png", ""); ok {
		t.Error("references must not leave book directory")
	}
}
