package ports

import (
	"context"
	"io"
)

// ArchiveEntry is one file to include in a bundle, with the name it
// should carry inside the archive.
type ArchiveEntry struct {
	Path        string
	DisplayName string
}

// Archiver packs a set of files into one compressed archive stream.
type Archiver interface {
	Bundle(ctx context.Context, entries []ArchiveEntry, w io.Writer) error
}
