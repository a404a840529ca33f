package book

import (
	_ "embed"
	"fmt"
	"math"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/maruel/natural"
	"go.uber.org/zap"

	"reflow/config"
	"reflow/layout"
	"reflow/utils/images"
)

//go:embed broken.svg
var brokenImage []byte

// RecIndexPrefix is the key prefix of images addressed by Mobipocket record
// index.
const RecIndexPrefix = "recindex:"

// ImageStore keeps book images keyed by their path inside the book (or by
// FB2 binary id) and resolves markup references against it.
type ImageStore struct {
	cfg *config.ImagesConfig
	log *zap.Logger

	mu     sync.Mutex
	images map[string]*layout.Image
	lower  map[string]string
	dir    string // images missing from the store are read from this directory
}

// NewImageStore returns empty store. With nil cfg images are enabled and
// kept at their intrinsic size.
func NewImageStore(cfg *config.ImagesConfig, log *zap.Logger) *ImageStore {
	if cfg == nil {
		cfg = &config.ImagesConfig{Enable: true}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ImageStore{
		cfg:    cfg,
		log:    log.Named("images"),
		images: make(map[string]*layout.Image),
		lower:  make(map[string]string),
	}
}

// SetDir makes store load references it does not hold from files under dir.
// Used for books which are plain files on disk.
func (s *ImageStore) SetDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dir = dir
}

// Add measures image and stores it under key. Images which cannot be
// measured are replaced with placeholder when configured, otherwise
// dropped with error.
func (s *ImageStore) Add(key string, data []byte) error {
	img, err := s.prepare(key, data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(key, img)
	return nil
}

func (s *ImageStore) put(key string, img *layout.Image) {
	s.images[key] = img
	s.lower[strings.ToLower(key)] = key
}

func (s *ImageStore) prepare(key string, data []byte) (*layout.Image, error) {
	w, h, format, err := images.Size(data)
	if err != nil {
		if !s.cfg.UseBroken {
			return nil, fmt.Errorf("unable to measure image %q: %w", key, err)
		}
		s.log.Warn("Unable to measure image, using placeholder", zap.String("id", key), zap.Error(err))
		data = brokenImage
		if w, h, err = images.SVGSize(data); err != nil {
			return nil, fmt.Errorf("unable to measure placeholder: %w", err)
		}
		format = images.FormatSVG
	}
	if k := s.cfg.ScaleFactor; k > 0 && k != 1 {
		w = max(int(math.Round(float64(w)*k)), 1)
		h = max(int(math.Round(float64(h)*k)), 1)
	}
	return &layout.Image{ID: key, Format: format, Data: data, Width: w, Height: h}, nil
}

// Len returns number of stored images.
func (s *ImageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}

// Get returns image stored under exact key.
func (s *ImageStore) Get(key string) (*layout.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[key]
	return img, ok
}

// Keys returns keys of stored images in natural order.
func (s *ImageStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.images))
	for k := range s.images {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		}
		return 0
	})
	return keys
}

// LookupImage resolves markup reference. Scope is the path of the chapter
// reference was found in, relative references are taken from its directory.
// Record indexes of Mobipocket images and FB2 binary ids ("#id") are
// accepted as well.
func (s *ImageStore) LookupImage(ref, scope string) (*layout.Image, bool) {
	if !s.cfg.Enable {
		return nil, false
	}
	ref = strings.TrimSpace(ref)
	if len(ref) == 0 || strings.Contains(ref, "://") || strings.HasPrefix(ref, "data:") {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range candidates(ref, scope) {
		if img, ok := s.images[key]; ok {
			return img, true
		}
		if k, ok := s.lower[strings.ToLower(key)]; ok {
			return s.images[k], true
		}
	}
	if len(s.dir) > 0 {
		return s.loadFile(ref, scope)
	}
	return nil, false
}

func candidates(ref, scope string) []string {
	ref = strings.TrimPrefix(ref, "#")
	if u, err := url.PathUnescape(ref); err == nil {
		ref = u
	}
	ref = strings.ReplaceAll(ref, `\`, "/")
	if n, err := strconv.Atoi(ref); err == nil {
		return []string{RecIndexPrefix + strconv.Itoa(n), ref}
	}
	keys := []string{ref}
	if dir := path.Dir(scope); len(scope) > 0 && dir != "." {
		keys = append([]string{cleanKey(path.Join(dir, ref))}, keys...)
	}
	return append(keys, cleanKey(ref))
}

func cleanKey(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// loadFile reads image from disk, must be called with lock held.
func (s *ImageStore) loadFile(ref, scope string) (*layout.Image, bool) {
	key := candidates(ref, scope)[0]
	name := filepath.Join(s.dir, filepath.FromSlash(cleanKey(key)))
	if rel, err := filepath.Rel(s.dir, name); err != nil || strings.HasPrefix(rel, "..") {
		return nil, false
	}
	data, err := os.ReadFile(name)
	if err != nil {
		s.log.Debug("Image file is not available", zap.String("file", name), zap.Error(err))
		return nil, false
	}
	img, err := s.prepare(key, data)
	if err != nil {
		s.log.Warn("Skipping image", zap.Error(err))
		return nil, false
	}
	s.put(key, img)
	return img, true
}
