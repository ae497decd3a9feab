// Package reports exposes the reports directory: listing eligible files,
// resolving untrusted names to safe paths, and streaming every report as a
// single archive.
package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/infracollect/reportd/internal/export"
	"github.com/infracollect/reportd/internal/export/archivers"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	DefaultExtension   = ".xlsx"
	DefaultArchiveName = "reports"
)

// ErrUnsupportedFormat is returned when an archive is requested in a format
// no archiver handles.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

// ResponseSink is the minimal surface needed to stream an archive: response
// headers and a byte stream. http.ResponseWriter satisfies it.
type ResponseSink interface {
	Header() http.Header
	io.Writer
}

type Config struct {
	// Directory is the flat directory holding report files.
	Directory string
	// Extensions lists the allowed file name suffixes, including the dot.
	Extensions []string
	// ArchiveName is the download base name; the format extension is appended.
	ArchiveName string
	// ArchiveFormat is the default archive format (see archivers.Formats).
	ArchiveFormat string
	// CompressionLevel is passed to the archiver, 0 selects the maximum.
	CompressionLevel int
}

// Store reads reports from a single directory. It keeps no mutable state and
// is safe for concurrent use.
type Store struct {
	logger        *zap.Logger
	fs            afero.Fs
	dir           string
	extensions    []string
	archiveName   string
	archiveFormat string
	level         int
}

type Option func(*Store)

// WithFs replaces the OS filesystem, mainly for tests.
func WithFs(fs afero.Fs) Option {
	return func(s *Store) {
		s.fs = fs
	}
}

func New(logger *zap.Logger, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Directory == "" {
		return nil, fmt.Errorf("reports directory is required")
	}

	dir, err := filepath.Abs(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reports directory %s: %w", cfg.Directory, err)
	}

	extensions := cfg.Extensions
	if len(extensions) == 0 {
		extensions = []string{DefaultExtension}
	}
	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 || strings.ContainsAny(ext, `/\`) {
			return nil, fmt.Errorf("invalid report extension %q", ext)
		}
	}

	format := cfg.ArchiveFormat
	if format == "" {
		format = string(archivers.FormatZip)
	}
	if !archivers.IsSupported(format) {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnsupportedFormat, format, archivers.Formats())
	}

	name := cfg.ArchiveName
	if name == "" {
		name = DefaultArchiveName
	}

	s := &Store{
		logger:        logger,
		fs:            afero.NewOsFs(),
		dir:           dir,
		extensions:    slices.Clone(extensions),
		archiveName:   name,
		archiveFormat: format,
		level:         cfg.CompressionLevel,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Directory returns the absolute reports directory.
func (s *Store) Directory() string {
	return s.dir
}

func (s *Store) hasAllowedExtension(name string) bool {
	return lo.SomeBy(s.extensions, func(ext string) bool {
		return strings.HasSuffix(name, ext)
	})
}

// List returns the names of the report files directly inside the reports
// directory. A missing directory yields an empty list.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read reports directory %s: %w", s.dir, err)
	}

	return lo.FilterMap(entries, func(info os.FileInfo, _ int) (string, bool) {
		return info.Name(), s.hasAllowedExtension(info.Name()) && s.isReportFile(info)
	}), nil
}

// isReportFile reports whether a directory entry is a regular file. Symlinks
// count only when their target is a regular file.
func (s *Store) isReportFile(info os.FileInfo) bool {
	mode := info.Mode()
	if mode.IsRegular() {
		return true
	}
	if mode&os.ModeSymlink == 0 {
		return false
	}

	target, err := s.fs.Stat(filepath.Join(s.dir, info.Name()))
	if err != nil {
		s.logger.Debug("skipping unreadable report link", zap.String("report", info.Name()), zap.Error(err))
		return false
	}
	return target.Mode().IsRegular()
}

// Resolve validates an untrusted report name and returns its absolute path.
// Only the final path segment of name is used, so the result is always a
// direct child of the reports directory.
func (s *Store) Resolve(name string) (string, error) {
	if !s.hasAllowedExtension(name) {
		return "", ErrInvalidFormat
	}

	safe := path.Base(strings.ReplaceAll(name, `\`, "/"))
	reportPath := filepath.Join(s.dir, safe)

	info, err := s.fs.Stat(reportPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	if !info.Mode().IsRegular() {
		return "", ErrNotFound
	}

	return reportPath, nil
}

// Open resolves name and opens the report for reading. The caller closes the file.
func (s *Store) Open(name string) (afero.File, os.FileInfo, error) {
	reportPath, err := s.Resolve(name)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.fs.Open(reportPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to open report %s: %w", filepath.Base(reportPath), err)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("failed to stat report %s: %w", filepath.Base(reportPath), err), f.Close())
	}

	return f, info, nil
}

// StreamAll writes every report into an archive of the configured format.
// See StreamAllAs.
func (s *Store) StreamAll(ctx context.Context, sink ResponseSink) error {
	return s.StreamAllAs(ctx, sink, "")
}

// StreamAllAs writes every report into an archive streamed to sink. The set
// of reports is captured once before anything is written; when it is empty
// ErrNoReportsAvailable is returned and sink is left untouched. Failures after
// the first header is set are returned as *EncodingError.
func (s *Store) StreamAllAs(ctx context.Context, sink ResponseSink, format string) error {
	if format == "" {
		format = s.archiveFormat
	}
	if !archivers.IsSupported(format) {
		return fmt.Errorf("%w %q (available: %v)", ErrUnsupportedFormat, format, archivers.Formats())
	}

	names, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return ErrNoReportsAvailable
	}

	out := &countingWriter{w: sink}
	archiver, err := archivers.New(format, out, s.level)
	if err != nil {
		return fmt.Errorf("failed to create archiver: %w", err)
	}

	header := sink.Header()
	header.Set("Content-Type", archiver.ContentType())
	header.Set("Content-Disposition", export.AttachmentDisposition(s.archiveName+archiver.Extension()))

	flush := func() {}
	if f, ok := sink.(http.Flusher); ok {
		flush = f.Flush
	}

	logger := s.logger.With(zap.String("format", format), zap.Int("reports", len(names)))
	logger.Debug("streaming reports archive")
	start := time.Now()

	if err := s.writeArchive(ctx, archiver, names, flush); err != nil {
		logger.Warn("reports archive aborted", zap.Int64("bytes", out.n), zap.Error(err))
		return err
	}

	logger.Info("reports archive streamed",
		zap.Int64("bytes", out.n),
		zap.Duration("elapsed", time.Since(start)),
	)

	return nil
}

func (s *Store) writeArchive(ctx context.Context, archiver export.Archiver, names []string, flush func()) error {
	for _, name := range names {
		if err := s.addReport(ctx, archiver, name); err != nil {
			return &EncodingError{Report: name, Err: err}
		}
		flush()
	}

	if err := archiver.Close(); err != nil {
		return &EncodingError{Err: err}
	}
	flush()

	return nil
}

func (s *Store) addReport(ctx context.Context, archiver export.Archiver, name string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := s.fs.Open(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat report: %w", err)
	}

	return archiver.AddFile(ctx, export.Entry{
		Name:     name,
		Size:     info.Size(),
		Modified: info.ModTime(),
	}, f)
}

// CopyTo writes each report as its own object into sink and returns how many
// were written. The sink is not closed.
func (s *Store) CopyTo(ctx context.Context, sink export.Sink) (int, error) {
	names, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return 0, ErrNoReportsAvailable
	}

	for i, name := range names {
		if err := s.copyReport(ctx, sink, name); err != nil {
			return i, fmt.Errorf("failed to export report %s to %s: %w", name, sink.Name(), err)
		}
		s.logger.Debug("exported report", zap.String("report", name), zap.String("sink", sink.Name()))
	}

	return len(names), nil
}

func (s *Store) copyReport(ctx context.Context, sink export.Sink, name string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := s.fs.Open(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	return sink.Write(ctx, name, f)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
