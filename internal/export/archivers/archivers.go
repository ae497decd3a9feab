// Package archivers provides streaming archive encoders for report exports.
package archivers

import (
	"fmt"
	"io"
	"slices"

	"github.com/infracollect/reportd/internal/export"
	"github.com/samber/lo"
)

// Format identifies an archive container and its compression.
type Format string

const (
	FormatZip     Format = "zip"
	FormatTar     Format = "tar"
	FormatTarGzip Format = "tar.gz"
	FormatTarZstd Format = "tar.zst"
)

const (
	// DefaultLevel is the maximum deflate compression level.
	DefaultLevel = 9
)

var formatCompression = map[Format]CompressionType{
	FormatTar:     CompressionNone,
	FormatTarGzip: CompressionGzip,
	FormatTarZstd: CompressionZstd,
}

// Formats returns the supported archive formats, sorted.
func Formats() []string {
	formats := append(lo.Map(lo.Keys(formatCompression), func(f Format, _ int) string {
		return string(f)
	}), string(FormatZip))
	slices.Sort(formats)
	return formats
}

// IsSupported reports whether format can be passed to New.
func IsSupported(format string) bool {
	return slices.Contains(Formats(), format)
}

// New creates an archiver for format writing to w.
// If format is empty, defaults to zip. A level of 0 selects DefaultLevel.
func New(format string, w io.Writer, level int) (export.Archiver, error) {
	if level == 0 {
		level = DefaultLevel
	}

	f := Format(format)
	if f == "" || f == FormatZip {
		return NewZipArchiver(w, level)
	}

	compression, ok := formatCompression[f]
	if !ok {
		return nil, fmt.Errorf("unsupported archive format %q (available: %v)", format, Formats())
	}

	return NewTarArchiver(w, string(compression), level)
}

type flusher interface {
	Flush() error
}
