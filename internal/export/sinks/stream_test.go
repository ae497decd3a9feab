package sinks

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewStreamSink(&buf)

	assert.Equal(t, "stream", sink.Name())
	assert.Equal(t, "stream", sink.Kind())

	require.NoError(t, sink.Write(t.Context(), "reports.zip", strings.NewReader("archive bytes")))
	require.NoError(t, sink.Close(t.Context()))

	assert.Equal(t, "archive bytes", buf.String())
	assert.Equal(t, int64(len("archive bytes")), sink.Written())
}

func TestStreamSink_SecondWriteFails(t *testing.T) {
	var buf bytes.Buffer
	sink := NewStreamSink(&buf)

	require.NoError(t, sink.Write(t.Context(), "reports.zip", strings.NewReader("first")))

	err := sink.Write(t.Context(), "acme.xlsx", strings.NewReader("second"))
	require.ErrorIs(t, err, ErrStreamTaken)
	assert.ErrorContains(t, err, "acme.xlsx after reports.zip")
	assert.Equal(t, "first", buf.String())
}

func TestStreamSink_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	var buf bytes.Buffer
	sink := NewStreamSink(&buf)

	err := sink.Write(ctx, "reports.zip", strings.NewReader("never"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, buf.String())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestStreamSink_WriterError(t *testing.T) {
	sink := NewStreamSink(failingWriter{})

	err := sink.Write(t.Context(), "reports.zip", strings.NewReader("data"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to stream reports.zip: broken pipe")
}

func TestStreamSink_CloseFlushes(t *testing.T) {
	var buf bytes.Buffer
	// Hide bytes.Buffer.ReadFrom so bufio keeps the data until Flush.
	w := bufio.NewWriterSize(struct{ io.Writer }{&buf}, 4096)
	sink := NewStreamSink(w)

	require.NoError(t, sink.Write(t.Context(), "reports.zip", strings.NewReader("buffered")))
	assert.Empty(t, buf.String())

	require.NoError(t, sink.Close(t.Context()))
	assert.Equal(t, "buffered", buf.String())
}
