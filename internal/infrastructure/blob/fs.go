// Package blob stores binary payloads (invoice scans, request files)
// under content paths. The filesystem store keeps them below one root
// directory and returns file URIs.
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const uriScheme = "file://"

// FileStore is a filesystem-backed blob store.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FileStore{root: abs}, nil
}

// Put writes data under the given relative path and returns its URI.
// Path traversal outside the root is rejected.
func (s *FileStore) Put(ctx context.Context, path string, data []byte) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob %s: %w", path, err)
	}

	return uriScheme + full, nil
}

// Get reads a blob back by the URI Put returned.
func (s *FileStore) Get(ctx context.Context, uri string) ([]byte, error) {
	full := strings.TrimPrefix(uri, uriScheme)

	rel, err := filepath.Rel(s.root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("blob uri %q is outside the store", uri)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", uri, err)
	}
	return data, nil
}

func (s *FileStore) resolve(path string) (string, error) {
	cleaned := filepath.Clean("/" + path)
	full := filepath.Join(s.root, cleaned)

	rel, err := filepath.Rel(s.root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("blob path %q escapes the store", path)
	}
	return full, nil
}
