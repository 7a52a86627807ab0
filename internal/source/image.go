// Package source loads the raster assets referenced by the stage.
package source

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "golang.org/x/image/webp"
)

// Images decodes image files relative to a base directory and caches the
// result, failures included, so every frame reuses the same decode.
type Images struct {
	base string

	mu    sync.Mutex
	cache map[string]entry
}

type entry struct {
	img image.Image
	err error
}

// NewImages creates a cache rooted at base. An empty base means the working
// directory.
func NewImages(base string) *Images {
	return &Images{base: base, cache: make(map[string]entry)}
}

// Load returns the decoded image for ref. Absolute refs are used as is.
func (s *Images) Load(ref string) (image.Image, error) {
	if ref == "" {
		return nil, fmt.Errorf("empty image reference")
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return nil, fmt.Errorf("remote image %s is not supported", ref)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.cache[ref]; ok {
		return e.img, e.err
	}
	img, err := decode(s.resolve(ref))
	s.cache[ref] = entry{img: img, err: err}
	return img, err
}

// Dimensions reports the size of ref without decoding the pixels.
func (s *Images) Dimensions(ref string) (int, int, error) {
	f, err := os.Open(s.resolve(ref))
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func (s *Images) resolve(ref string) string {
	if filepath.IsAbs(ref) || s.base == "" {
		return ref
	}
	return filepath.Join(s.base, ref)
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}
