package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/calliope-audio/stemforge/internal/core/ports"
)

func TestLocalUploadDownload(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	key, err := store.Upload(ctx, []byte("audio-bytes"), "stems", "Lead Vox.wav", "audio/wav")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasPrefix(key, "stems/") {
		t.Fatalf("key not category-scoped: %q", key)
	}

	data, err := store.Download(ctx, key)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("payload: got %q", data)
	}
}

func TestLocalKeysNeverCollide(t *testing.T) {
	store, _ := NewLocal(t.TempDir())
	ctx := context.Background()

	k1, _ := store.Upload(ctx, []byte("a"), "stems", "same.wav", "audio/wav")
	k2, _ := store.Upload(ctx, []byte("b"), "stems", "same.wav", "audio/wav")
	if k1 == k2 {
		t.Fatalf("identical keys for repeated uploads: %q", k1)
	}
}

func TestLocalDownloadURL(t *testing.T) {
	store, _ := NewLocal(t.TempDir())
	ctx := context.Background()

	key, _ := store.Upload(ctx, []byte("zip"), "archives", "bundle.zip", "application/zip")
	url, err := store.DownloadURL(ctx, key)
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	if !strings.HasPrefix(url, "file://") {
		t.Fatalf("url scheme: got %q", url)
	}

	if _, err := store.DownloadURL(ctx, "archives/missing.zip"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestLocalDelete(t *testing.T) {
	store, _ := NewLocal(t.TempDir())
	ctx := context.Background()

	key, _ := store.Upload(ctx, []byte("x"), "stems", "gone.wav", "audio/wav")
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Download(ctx, key); err == nil {
		t.Fatal("object survived deletion")
	}

	// Deleting a missing key is not an error.
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	store, _ := NewLocal(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"../etc/passwd", "/etc/passwd", "..", "."} {
		_, err := store.Download(ctx, key)
		var storageErr *ports.StorageError
		if !errors.As(err, &storageErr) {
			t.Fatalf("key %q: got %v, want StorageError", key, err)
		}
	}
}
