package archivers

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/infracollect/reportd/internal/export"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// ZipArchiver writes a deflate-compressed ZIP archive as a stream. Each entry
// is flushed to the underlying writer once its content has been copied.
type ZipArchiver struct {
	zw     *zip.Writer
	closed bool
}

// NewZipArchiver creates a ZIP archiver compressing at the given flate level.
func NewZipArchiver(w io.Writer, level int) (export.Archiver, error) {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, fmt.Errorf("invalid zip compression level: %d", level)
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	return &ZipArchiver{zw: zw}, nil
}

// AddFile adds a deflated entry to the archive.
func (a *ZipArchiver) AddFile(ctx context.Context, entry export.Entry, data io.Reader) error {
	if a.closed {
		return fmt.Errorf("archiver is closed")
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	modified := entry.Modified
	if modified.IsZero() {
		modified = time.Now()
	}

	header := &zip.FileHeader{
		Name:     entry.Name,
		Method:   zip.Deflate,
		Modified: modified,
	}
	header.SetMode(0644)

	w, err := a.zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to write zip header for %s: %w", entry.Name, err)
	}

	if _, err := io.Copy(w, export.NewContextReader(ctx, data)); err != nil {
		return fmt.Errorf("failed to write zip content for %s: %w", entry.Name, err)
	}

	if err := a.zw.Flush(); err != nil {
		return fmt.Errorf("failed to flush zip writer: %w", err)
	}

	return nil
}

// Close writes the central directory.
func (a *ZipArchiver) Close() error {
	if a.closed {
		return fmt.Errorf("archiver already closed")
	}
	a.closed = true

	if err := a.zw.Close(); err != nil {
		return fmt.Errorf("failed to close zip writer: %w", err)
	}

	return nil
}

func (a *ZipArchiver) Extension() string {
	return ".zip"
}

func (a *ZipArchiver) ContentType() string {
	return "application/zip"
}
