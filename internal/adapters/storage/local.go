// Package storage implements ports.Storage on the local filesystem.
// Objects live under root/<category>/<key>; keys carry a short random
// prefix so repeated exports of the same track never collide.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/calliope-audio/stemforge/internal/core/ports"
)

// Local stores objects as plain files under a root directory.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed and returns the store.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, fmt.Errorf("storage: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &Local{root: root}, nil
}

// Upload writes data under the category directory and returns the
// storage key. contentType is accepted for interface parity; the
// filesystem backend has nowhere to record it.
func (l *Local) Upload(ctx context.Context, data []byte, category, fileName, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := filepath.Join(sanitizeSegment(category), uuid.NewString()[:8]+"_"+sanitizeSegment(fileName))
	path := filepath.Join(l.root, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", &ports.StorageError{Op: "upload", Key: key, Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &ports.StorageError{Op: "upload", Key: key, Err: err}
	}
	return key, nil
}

// Download reads the object bytes for a key.
func (l *Local) Download(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ports.StorageError{Op: "download", Key: key, Err: err}
	}
	return data, nil
}

// DownloadURL returns a file:// URL for the object. A cloud backend
// would mint a signed URL here.
func (l *Local) DownloadURL(ctx context.Context, key string) (string, error) {
	path, err := l.resolve(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", &ports.StorageError{Op: "url", Key: key, Err: err}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &ports.StorageError{Op: "url", Key: key, Err: err}
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// Delete removes the object. Deleting a missing key is not an error.
func (l *Local) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &ports.StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// resolve maps a key to a path and rejects traversal outside the root.
func (l *Local) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", &ports.StorageError{Op: "resolve", Key: key, Err: fmt.Errorf("invalid key")}
	}
	return filepath.Join(l.root, clean), nil
}

func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "misc"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
