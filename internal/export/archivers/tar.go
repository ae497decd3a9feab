package archivers

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/infracollect/reportd/internal/export"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// CompressionType defines supported compression algorithms.
type CompressionType string

const (
	CompressionGzip CompressionType = "gzip"
	CompressionZstd CompressionType = "zstd"
	CompressionNone CompressionType = "none"
)

// TarArchiver streams tar archives with optional compression.
type TarArchiver struct {
	compressor  io.WriteCloser
	tarWriter   *tar.Writer
	compression CompressionType
	closed      bool
}

// NewTarArchiver creates a new tar archiver with the specified compression.
// Supported compression types: "gzip", "zstd", "none".
// If compression is empty, defaults to "gzip". Level follows the gzip 1-9
// scale and is mapped onto the closest zstd level.
func NewTarArchiver(w io.Writer, compression string, level int) (export.Archiver, error) {
	ct := CompressionType(compression)
	if ct == "" {
		ct = CompressionGzip
	}

	var compressor io.WriteCloser
	var err error

	switch ct {
	case CompressionGzip:
		compressor, err = gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
	case CompressionZstd:
		compressor, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
	case CompressionNone:
		compressor = &nopWriteCloser{w}
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", compression)
	}

	return &TarArchiver{
		compressor:  compressor,
		tarWriter:   tar.NewWriter(compressor),
		compression: ct,
	}, nil
}

// AddFile adds a file to the tar archive. Entries with an unknown size are
// read fully into memory first since tar headers carry the length.
func (a *TarArchiver) AddFile(ctx context.Context, entry export.Entry, data io.Reader) error {
	if a.closed {
		return fmt.Errorf("archiver is closed")
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	data = export.NewContextReader(ctx, data)

	size := entry.Size
	if size < 0 {
		content, err := io.ReadAll(data)
		if err != nil {
			return fmt.Errorf("failed to read file data: %w", err)
		}
		size = int64(len(content))
		data = bytes.NewReader(content)
	}

	modified := entry.Modified
	if modified.IsZero() {
		modified = time.Now()
	}

	header := &tar.Header{
		Name:    entry.Name,
		Mode:    0644,
		Size:    size,
		ModTime: modified,
	}

	if err := a.tarWriter.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}

	if _, err := io.Copy(a.tarWriter, data); err != nil {
		return fmt.Errorf("failed to write tar content: %w", err)
	}

	if err := a.tarWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush tar writer: %w", err)
	}

	if f, ok := a.compressor.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("failed to flush compressor: %w", err)
		}
	}

	return nil
}

// Close finalizes the tar archive and the compression stream.
func (a *TarArchiver) Close() error {
	if a.closed {
		return fmt.Errorf("archiver already closed")
	}
	a.closed = true

	// Close tar writer first
	if err := a.tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to close tar writer: %w", err)
	}

	if err := a.compressor.Close(); err != nil {
		return fmt.Errorf("failed to close compressor: %w", err)
	}

	return nil
}

// Extension returns the file extension for this archive type.
func (a *TarArchiver) Extension() string {
	switch a.compression {
	case CompressionGzip:
		return ".tar.gz"
	case CompressionZstd:
		return ".tar.zst"
	default:
		return ".tar"
	}
}

func (a *TarArchiver) ContentType() string {
	switch a.compression {
	case CompressionGzip:
		return "application/gzip"
	case CompressionZstd:
		return "application/zstd"
	default:
		return "application/x-tar"
	}
}

// nopWriteCloser wraps a Writer to provide a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (n *nopWriteCloser) Close() error {
	return nil
}
