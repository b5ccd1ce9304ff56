package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// FileStore keeps blobs as files below a root directory of an afero filesystem.
type FileStore struct {
	fs   afero.Fs
	root string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(fs afero.Fs, root string) (*FileStore, error) {
	if err := fs.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob root %s: %w", root, err)
	}
	return &FileStore{fs: fs, root: root}, nil
}

func (s *FileStore) pathFor(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

// Put writes data through a temp file and a rename so readers never see a partial blob.
func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	p, err := s.pathFor(key)
	if err != nil {
		return err
	}

	if err := s.fs.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp := p + ".tmp-" + uuid.NewString()
	if err := afero.WriteFile(s.fs, tmp, data, 0644); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}

	if err := s.fs.Rename(tmp, p); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to commit blob %s: %w", key, err)
	}

	return nil
}

// Get returns the blob stored under key, wrapping ErrNotFound when it is absent.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return data, nil
}

// Exists reports whether a blob is stored under key.
func (s *FileStore) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, p)
}

// Delete removes the blob under key. A missing blob is not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	p, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}
