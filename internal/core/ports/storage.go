package ports

import "context"

// Storage persists rendered bytes durably and hands out download URLs.
// Keys are opaque; category namespaces related files (stems, bundles).
type Storage interface {
	Upload(ctx context.Context, data []byte, category, fileName, contentType string) (key string, err error)
	Download(ctx context.Context, key string) ([]byte, error)
	DownloadURL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}
