package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/infracollect/reportd/internal/export"
	"github.com/infracollect/reportd/internal/export/archivers"
)

// ArchiveSink wraps a sink and streams all writes into a single archive
// object on the inner sink. The archive is piped to the inner sink while it
// is being built; nothing is buffered beyond the encoder's own window.
type ArchiveSink struct {
	inner       export.Sink
	archiver    export.Archiver
	archiveName string
	pipe        *io.PipeWriter
	done        chan error
	err         error
	closed      bool
}

// NewArchiveSink creates an archive sink writing a single object named
// baseName plus the format's extension to inner. The inner write runs on its
// own goroutine until Close.
func NewArchiveSink(ctx context.Context, inner export.Sink, format string, level int, baseName string) (*ArchiveSink, error) {
	pr, pw := io.Pipe()

	archiver, err := archivers.New(format, pw, level)
	if err != nil {
		return nil, errors.Join(err, pw.Close(), pr.Close())
	}

	s := &ArchiveSink{
		inner:       inner,
		archiver:    archiver,
		archiveName: baseName + archiver.Extension(),
		pipe:        pw,
		done:        make(chan error, 1),
	}

	go func() {
		err := inner.Write(ctx, s.archiveName, pr)
		// Unblock the encoder if the inner sink stopped reading early.
		pr.CloseWithError(err)
		s.done <- err
	}()

	return s, nil
}

// ArchiveName returns the name of the object written to the inner sink.
func (s *ArchiveSink) ArchiveName() string {
	return s.archiveName
}

// Name returns the name of this sink.
func (s *ArchiveSink) Name() string {
	return fmt.Sprintf("archive(%s)->%s", s.archiveName, s.inner.Name())
}

// Kind returns the kind of this sink.
func (s *ArchiveSink) Kind() string {
	return "archive"
}

// Write adds a file to the archive. When data exposes Stat (as files do) the
// entry carries its size and modification time.
func (s *ArchiveSink) Write(ctx context.Context, path string, data io.Reader) error {
	if s.err != nil {
		return fmt.Errorf("archive sink failed earlier: %w", s.err)
	}

	entry := export.Entry{Name: path, Size: -1}
	if st, ok := data.(interface{ Stat() (os.FileInfo, error) }); ok {
		if info, err := st.Stat(); err == nil {
			entry.Size = info.Size()
			entry.Modified = info.ModTime()
		}
	}

	if err := s.archiver.AddFile(ctx, entry, data); err != nil {
		s.err = err
		return fmt.Errorf("failed to add file to archive: %w", err)
	}
	return nil
}

// Close finalizes the archive, waits for the inner sink to consume it and
// closes the inner sink. After a failed Write the archive is abandoned and the
// inner write is aborted with that error.
func (s *ArchiveSink) Close(ctx context.Context) error {
	if s.closed {
		return fmt.Errorf("archive sink already closed")
	}
	s.closed = true

	if s.err == nil {
		if err := s.archiver.Close(); err != nil {
			s.err = fmt.Errorf("failed to finalize archive: %w", err)
		}
	}

	// A nil error closes the pipe with io.EOF.
	s.pipe.CloseWithError(s.err)

	if err := <-s.done; err != nil && s.err == nil {
		s.err = fmt.Errorf("failed to write archive to sink: %w", err)
	}

	if err := s.inner.Close(ctx); err != nil {
		return errors.Join(s.err, fmt.Errorf("failed to close inner sink: %w", err))
	}

	return s.err
}

// Abort discards the archive: the inner write fails with cause instead of
// receiving a finalized archive, then the sink is closed.
func (s *ArchiveSink) Abort(ctx context.Context, cause error) error {
	if s.err == nil {
		s.err = fmt.Errorf("archive aborted: %w", cause)
	}
	return s.Close(ctx)
}
