// Package storage persists uploaded payment proofs and hands back reference
// URLs. The local-disk implementation is enough for a single-node deployment;
// anything else can satisfy the same interface.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("os.MkdirAll -> %w", err)
	}

	return &LocalStorage{
		dir:     dir,
		baseURL: baseURL,
	}, nil
}

func (s *LocalStorage) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	ext, ok := extensions[contentType]
	if !ok {
		ext = ".bin"
	}
	key := uuid.NewString() + ext

	if err := os.WriteFile(filepath.Join(s.dir, key), data, 0o644); err != nil {
		return "", fmt.Errorf("os.WriteFile -> %w", err)
	}

	return s.baseURL + "/" + key, nil
}

// Remove deletes a previously stored object by the URL Store returned. A
// missing file is not an error; the object is gone either way.
func (s *LocalStorage) Remove(_ context.Context, url string) error {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || key == "" || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("unrecognized storage url %q", url)
	}

	if err := os.Remove(filepath.Join(s.dir, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("os.Remove -> %w", err)
	}

	return nil
}
