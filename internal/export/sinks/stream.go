package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/infracollect/reportd/internal/export"
)

// ErrStreamTaken is returned when a second object is written to a StreamSink.
var ErrStreamTaken = errors.New("stream already carries an object")

// StreamSink writes exactly one object, typically an archive, to a writer
// such as stdout. Concatenated objects would be unreadable on the other end,
// so any further Write fails.
type StreamSink struct {
	w io.Writer

	mu      sync.Mutex
	object  string
	written int64
}

func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: w}
}

func (s *StreamSink) Name() string {
	return "stream"
}

func (s *StreamSink) Kind() string {
	return "stream"
}

func (s *StreamSink) Write(ctx context.Context, objectPath string, data io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.object != "" {
		return fmt.Errorf("%w: cannot add %s after %s", ErrStreamTaken, objectPath, s.object)
	}
	s.object = objectPath

	n, err := io.Copy(s.w, export.NewContextReader(ctx, data))
	s.written = n
	if err != nil {
		return fmt.Errorf("failed to stream %s: %w", objectPath, err)
	}
	return nil
}

// Written returns the number of bytes copied to the writer.
func (s *StreamSink) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Close flushes the writer when it buffers output.
func (s *StreamSink) Close(ctx context.Context) error {
	if f, ok := s.w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("failed to flush stream: %w", err)
		}
	}
	return nil
}
