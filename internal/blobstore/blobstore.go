// Package blobstore abstracts the object-storage collaborator that converts
// raw evidence bytes into stable references.
package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store uploads a blob and returns a stable reference to it. Implementations
// must be safe to retry: re-uploading the same bytes may yield a new
// reference but must never corrupt a prior one.
type Store interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// DiskStore writes blobs under a local directory and returns file paths
// prefixed with BaseURL. Used for single-site deployments and tests.
type DiskStore struct {
	Dir     string
	BaseURL string // prepended to the generated name, e.g. "file:///var/sb/blobs"
}

// NewDiskStore creates the backing directory if needed.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("blobstore: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create %s: %w", dir, err)
	}
	return &DiskStore{Dir: dir, BaseURL: baseURL}, nil
}

// Upload writes the blob to a uniquely named file.
func (s *DiskStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := uuid.NewString() + extFor(contentType)
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("blobstore: write %s: %w", path, err)
	}
	if s.BaseURL != "" {
		return s.BaseURL + "/" + name, nil
	}
	return path, nil
}

// extFor maps the content types the app actually sends to file extensions.
func extFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "audio/webm":
		return ".webm"
	case "audio/mp4":
		return ".m4a"
	default:
		return ".bin"
	}
}
