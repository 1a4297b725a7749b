// Package blobstore stores raw uploaded document bytes on disk, keyed by
// document ID. Metadata lives in the docstore; this holds only the bytes.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrNotFound indicates no blob exists for the key.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidKey indicates the key is unsafe as a filename.
	ErrInvalidKey = errors.New("invalid blob key")
)

// keyPattern restricts keys to filename-safe characters so a key can never
// escape the store root.
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)

// Store persists raw document bytes.
type Store interface {
	// Put writes the blob, replacing any existing one for the key.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the blob or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, key string) error
}

// FileStore is a Store rooted at a local directory.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore, creating the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blobstore root is required")
	}
	root, err := expandHome(root)
	if err != nil {
		return nil, fmt.Errorf("expanding root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blobstore root: %w", err)
	}
	return &FileStore{root: root}, nil
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func (s *FileStore) path(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.root, key), nil
}

// Put writes the blob atomically via a temp file rename.
func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.root, ".put-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing blob: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming blob: %w", err)
	}
	return nil
}

// Get returns the blob or ErrNotFound.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	return data, nil
}

// Delete removes the blob. Deleting a missing blob is not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
