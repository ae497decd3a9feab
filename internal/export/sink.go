package export

import (
	"context"
	"io"
)

// Sink is a destination for exported reports.
type Sink interface {
	Named
	Closer
	Write(ctx context.Context, path string, data io.Reader) error
}
