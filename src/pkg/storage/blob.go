package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"portfoliotree/app/src/pkg/model"
)

// BlobStore keeps the bytes of uploaded assets. Keys are slash separated.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewBlobStore returns the blob backend selected by cfg.UploadBackend.
func NewBlobStore(ctx context.Context, cfg *model.Config) (BlobStore, error) {
	switch cfg.UploadBackend {
	case model.UploadBackendLocal, "":
		return NewLocalBlobStore(cfg.UploadDir)
	case model.UploadBackendS3:
		return NewS3BlobStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported upload backend: %s", cfg.UploadBackend)
	}
}

// BlobKey builds a fresh storage key for a file uploaded to a portfolio.
// Only the extension of the client file name is kept.
func BlobKey(portfolioID int, fileName string) string {
	ext := strings.ToLower(path.Ext(filepath.Base(fileName)))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return fmt.Sprintf("portfolios/%d/%s%s", portfolioID, uuid.NewString(), ext)
}

// LocalBlobStore stores blobs as files under a root directory.
type LocalBlobStore struct {
	root string
}

// NewLocalBlobStore creates the root directory if needed.
func NewLocalBlobStore(root string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalBlobStore{root: root}, nil
}

// resolve maps a key to a path inside root, rejecting keys that would escape it.
func (l *LocalBlobStore) resolve(key string) (string, error) {
	rel := filepath.FromSlash(key)
	if key == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: invalid blob key %q", model.ErrInvalidInput, key)
	}
	return filepath.Join(l.root, rel), nil
}

// Put writes the blob to a temporary file and renames it into place.
func (l *LocalBlobStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	dst, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create blob file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close blob file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store blob: %w", err)
	}
	return nil
}

// Get opens the blob for reading.
func (l *LocalBlobStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	src, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("blob %q: %w", key, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// Delete removes the blob. Deleting a missing blob is not an error.
func (l *LocalBlobStore) Delete(_ context.Context, key string) error {
	target, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}
