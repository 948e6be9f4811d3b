// Package media stores uploaded image blobs on disk. Database rows keep
// the returned reference; the bytes live beneath one root directory.
package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
)

// ErrBadRef rejects references that would resolve outside the root.
var ErrBadRef = errors.New("media: reference escapes the media directory")

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating media dir: %w", err)
	}
	return &Store{root: root}, nil
}

// Save writes data under a fresh ULID name, keeping the upload's
// extension when it is a known image type. Returns the reference to
// store alongside the entry.
func (s *Store) Save(data []byte, name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !imageExts[ext] {
		ext = ""
	}
	ref := ulid.Make().String() + ext
	if err := os.WriteFile(filepath.Join(s.root, ref), data, 0o644); err != nil {
		return "", fmt.Errorf("writing blob %s: %w", ref, err)
	}
	return ref, nil
}

func (s *Store) Read(ref string) ([]byte, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (s *Store) Remove(ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (s *Store) resolve(ref string) (string, error) {
	if ref == "" || !filepath.IsLocal(ref) {
		return "", ErrBadRef
	}
	return filepath.Join(s.root, ref), nil
}
