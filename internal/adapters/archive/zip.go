// Package archive implements ports.Archiver with zip bundles.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/calliope-audio/stemforge/internal/core/ports"
)

// Zip bundles files from disk into a zip stream. Entries use the
// Deflate method; audio payloads barely compress but clients expect a
// standard archive.
type Zip struct{}

// NewZip returns the zip archiver.
func NewZip() *Zip {
	return &Zip{}
}

// Bundle streams each entry's file into the archive under its display
// name. The writer is not closed; the caller owns it.
func (z *Zip) Bundle(ctx context.Context, entries []ports.ArchiveEntry, w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}
		if err := addEntry(zw, entry); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("archive: finalize zip: %w", err)
	}
	return nil
}

func addEntry(zw *zip.Writer, entry ports.ArchiveEntry) error {
	f, err := os.Open(entry.Path)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", entry.Path, err)
	}
	defer f.Close()

	dst, err := zw.Create(entry.DisplayName)
	if err != nil {
		return fmt.Errorf("archive: add %s: %w", entry.DisplayName, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("archive: write %s: %w", entry.DisplayName, err)
	}
	return nil
}
