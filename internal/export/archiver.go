package export

import (
	"context"
	"io"
	"time"
)

// Entry describes a single file added to an archive.
type Entry struct {
	// Name is the path of the entry inside the archive.
	Name string
	// Size is the content length in bytes, or -1 when unknown.
	Size int64
	// Modified is recorded in the entry header. Zero means now.
	Modified time.Time
}

// Archiver encodes files into an archive format, writing the encoded bytes
// to the io.Writer it was constructed with as each entry is added.
type Archiver interface {
	// AddFile appends an entry and copies data into it.
	AddFile(ctx context.Context, entry Entry, data io.Reader) error

	// Close finalizes the archive. It does not close the underlying writer.
	Close() error

	// Extension returns the file extension for this archive type (e.g., ".tar.gz").
	Extension() string

	// ContentType returns the media type of the encoded archive.
	ContentType() string
}
