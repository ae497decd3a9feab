package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/infracollect/reportd/internal/export"
	"github.com/spf13/afero"
)

// FilesystemSink writes exported objects below the root of an afero.Fs.
type FilesystemSink struct {
	fs afero.Fs
}

func NewFilesystemSink(fs afero.Fs) export.Sink {
	return &FilesystemSink{fs: fs}
}

func NewFilesystemSinkFromPath(path string) (export.Sink, error) {
	cleanPath := filepath.Clean(path)

	// Ensure the base directory exists
	if err := os.MkdirAll(cleanPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", cleanPath, err)
	}

	return NewFilesystemSink(afero.NewBasePathFs(afero.NewOsFs(), cleanPath)), nil
}

func (s *FilesystemSink) Name() string {
	return fmt.Sprintf("filesystem(%s)", s.fs.Name())
}

func (s *FilesystemSink) Kind() string {
	return "filesystem"
}

// Write copies data into path. The file is written under a temporary name
// and renamed once complete so readers never observe a partial export.
func (s *FilesystemSink) Write(ctx context.Context, path string, data io.Reader) (err error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	tmpPath := path + ".partial"
	f, err := s.fs.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, s.fs.Remove(tmpPath))
		}
	}()

	if _, err = io.Copy(f, export.NewContextReader(ctx, data)); err != nil {
		return errors.Join(fmt.Errorf("failed to write to file: %w", err), f.Close())
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err = s.fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmpPath, err)
	}

	return nil
}

func (s *FilesystemSink) Close(ctx context.Context) error {
	return nil
}
