// Package local keeps blobs in a directory and hands out file:// URLs.
package local

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

type Store struct {
	root string
}

func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blob directory %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory %s: %w", abs, err)
	}
	return &Store{root: abs}, nil
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, span := tracer.Start(ctx, "put blob")
	defer span.End()

	target := filepath.Join(s.root, filepath.FromSlash(key))
	if rel, err := filepath.Rel(s.root, target); err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("blob key %q escapes %s", key, s.root)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".blob-*")
	if err != nil {
		return "", fmt.Errorf("failed to create blob %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close blob %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to store blob %s: %w", key, err)
	}

	logger.Debug("blob stored", "key", key, "content_type", contentType, "size", len(data))
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(target)}).String(), nil
}
