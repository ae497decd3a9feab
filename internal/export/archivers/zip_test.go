package archivers

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readZipEntries(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	found := make(map[string]string)
	for _, f := range zr.File {
		assert.Equal(t, zip.Deflate, f.Method, "entry %s", f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		found[f.Name] = string(content)
	}
	return found
}

func TestNewZipArchiver(t *testing.T) {
	tests := []struct {
		name    string
		level   int
		wantErr bool
	}{
		{name: "best compression", level: 9},
		{name: "fastest", level: 1},
		{name: "level too high", level: 10, wantErr: true},
		{name: "level too low", level: -3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archiver, err := NewZipArchiver(io.Discard, tt.level)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ".zip", archiver.Extension())
			assert.Equal(t, "application/zip", archiver.ContentType())
		})
	}
}

func TestZipArchiver_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	archiver, err := NewZipArchiver(&buf, DefaultLevel)
	require.NoError(t, err)

	files := map[string]string{
		"a.xlsx": "alpha",
		"b.xlsx": strings.Repeat("bravo", 10000),
	}
	for name, content := range files {
		require.NoError(t, archiver.AddFile(t.Context(), entry(name, content), strings.NewReader(content)))
	}
	require.NoError(t, archiver.Close())

	assert.Equal(t, files, readZipEntries(t, buf.Bytes()))
}

func TestZipArchiver_FlushesEachEntry(t *testing.T) {
	var buf bytes.Buffer
	archiver, err := NewZipArchiver(&buf, DefaultLevel)
	require.NoError(t, err)

	require.NoError(t, archiver.AddFile(t.Context(), entry("a.xlsx", "first"), strings.NewReader("first")))
	afterFirst := buf.Len()
	assert.NotZero(t, afterFirst, "entry should reach the writer before Close")

	require.NoError(t, archiver.AddFile(t.Context(), entry("b.xlsx", "second"), strings.NewReader("second")))
	assert.Greater(t, buf.Len(), afterFirst)
}

func TestZipArchiver_Lifecycle(t *testing.T) {
	t.Run("close twice", func(t *testing.T) {
		archiver, err := NewZipArchiver(io.Discard, DefaultLevel)
		require.NoError(t, err)
		require.NoError(t, archiver.Close())
		require.Error(t, archiver.Close())
	})

	t.Run("add after close", func(t *testing.T) {
		archiver, err := NewZipArchiver(io.Discard, DefaultLevel)
		require.NoError(t, err)
		require.NoError(t, archiver.Close())
		require.Error(t, archiver.AddFile(t.Context(), entry("a.xlsx", "x"), strings.NewReader("x")))
	})

	t.Run("cancelled context", func(t *testing.T) {
		archiver, err := NewZipArchiver(io.Discard, DefaultLevel)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		err = archiver.AddFile(ctx, entry("a.xlsx", "x"), strings.NewReader("x"))
		require.ErrorIs(t, err, context.Canceled)
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestZipArchiver_WriterFailure(t *testing.T) {
	archiver, err := NewZipArchiver(failingWriter{}, DefaultLevel)
	require.NoError(t, err)

	err = archiver.AddFile(t.Context(), entry("a.xlsx", "content"), strings.NewReader("content"))
	require.ErrorIs(t, err, io.ErrClosedPipe)
}
