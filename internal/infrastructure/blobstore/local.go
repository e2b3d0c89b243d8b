package blobstore

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"TrendIllustrator/internal/ports"
)

// LocalStore keeps one image file per story under a single flat directory.
// The returned URL is a relative path served by the front end.
type LocalStore struct {
	dir       string
	urlPrefix string
}

var _ ports.BlobStore = (*LocalStore)(nil)

// NewLocalStore creates the directory if needed.
func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("local store directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &LocalStore{
		dir:       dir,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}, nil
}

// Put writes data under key via a temp file and rename, so a partial write
// never replaces an existing artifact and repeated puts stay idempotent.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("publish %s: %w", key, err)
	}

	return s.PublicURL(key), nil
}

// PublicURL maps a key directly to a URL path segment.
func (s *LocalStore) PublicURL(key string) string {
	return s.urlPrefix + "/" + path.Base(key)
}

// Exists reports whether an artifact file is present.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Stat returns size and modification time of the stored artifact.
func (s *LocalStore) Stat(ctx context.Context, key string) (ports.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ports.ObjectInfo{}, err
	}
	info, err := os.Stat(s.path(key))
	if err != nil {
		return ports.ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}
	return ports.ObjectInfo{Key: key, Size: info.Size(), ModifiedAt: info.ModTime()}, nil
}

func (s *LocalStore) path(key string) string {
	// Keys are fingerprint-derived, but never trust them as paths.
	return filepath.Join(s.dir, filepath.Base(key))
}
