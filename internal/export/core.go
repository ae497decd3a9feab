package export

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
)

type Named interface {
	Name() string
	Kind() string
}

type Closer interface {
	Close(context.Context) error
}

const (
	// ISO8601Basic is a URL-safe timestamp format without colons.
	// This is the recommended format for S3 keys and filesystem paths.
	ISO8601Basic = "20060102T150405Z"
)

// ContentType returns the media type of a report or archive file based on
// its extension, or "" when the extension is not known.
func ContentType(p string) string {
	ext := path.Ext(p)
	switch ext {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	case ".zip":
		return "application/zip"
	case ".tar":
		return "application/x-tar"
	case ".gz":
		return "application/gzip"
	case ".zst":
		return "application/zstd"
	default:
		return ""
	}
}

// AttachmentDisposition returns a Content-Disposition value offering name as
// a download. Printable ASCII names are quoted as is; other names use the
// RFC 2231 filename* form so non-Latin report names survive.
func AttachmentDisposition(name string) string {
	if isQuotableASCII(name) {
		return fmt.Sprintf("attachment; filename=%q", name)
	}
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func isQuotableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c > 0x7e || c == '"' || c == '\\' {
			return false
		}
	}
	return true
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

// NewContextReader returns a reader that fails once ctx is done, so a
// cancelled export stops copying mid-file.
func NewContextReader(ctx context.Context, r io.Reader) io.Reader {
	return &contextReader{ctx: ctx, r: r}
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
