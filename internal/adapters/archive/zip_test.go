package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/calliope-audio/stemforge/internal/core/ports"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestZipBundle(t *testing.T) {
	dir := t.TempDir()
	entries := []ports.ArchiveEntry{
		{Path: writeTemp(t, dir, "a.wav", "left channel"), DisplayName: "Drums.wav"},
		{Path: writeTemp(t, dir, "b.wav", "right channel"), DisplayName: "Bass.wav"},
	}

	var out bytes.Buffer
	if err := NewZip().Bundle(context.Background(), entries, &out); err != nil {
		t.Fatalf("Bundle: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("entry count: got %d, want 2", len(zr.File))
	}

	want := map[string]string{"Drums.wav": "left channel", "Bass.wav": "right channel"}
	for _, f := range zr.File {
		content, ok := want[f.Name]
		if !ok {
			t.Fatalf("unexpected entry %q", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		if string(data) != content {
			t.Fatalf("%s: got %q, want %q", f.Name, data, content)
		}
	}
}

func TestZipBundleMissingFile(t *testing.T) {
	entries := []ports.ArchiveEntry{
		{Path: filepath.Join(t.TempDir(), "missing.wav"), DisplayName: "Missing.wav"},
	}
	var out bytes.Buffer
	if err := NewZip().Bundle(context.Background(), entries, &out); err == nil {
		t.Fatal("expected error for missing source file")
	}
}

func TestZipBundleEmpty(t *testing.T) {
	var out bytes.Buffer
	if err := NewZip().Bundle(context.Background(), nil, &out); err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if _, err := zip.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len())); err != nil {
		t.Fatalf("empty bundle is not a valid zip: %v", err)
	}
}

func TestZipBundleCancelled(t *testing.T) {
	dir := t.TempDir()
	entries := []ports.ArchiveEntry{
		{Path: writeTemp(t, dir, "a.wav", "x"), DisplayName: "A.wav"},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	if err := NewZip().Bundle(ctx, entries, &out); err == nil {
		t.Fatal("expected context error")
	}
}
