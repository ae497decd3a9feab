package archivers

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormats(t *testing.T) {
	assert.Equal(t, []string{"tar", "tar.gz", "tar.zst", "zip"}, Formats())
	assert.True(t, IsSupported("tar.zst"))
	assert.False(t, IsSupported("rar"))
}

func TestNew(t *testing.T) {
	tests := []struct {
		format  string
		wantExt string
		wantErr bool
	}{
		{format: "", wantExt: ".zip"},
		{format: "zip", wantExt: ".zip"},
		{format: "tar", wantExt: ".tar"},
		{format: "tar.gz", wantExt: ".tar.gz"},
		{format: "tar.zst", wantExt: ".tar.zst"},
		{format: "7z", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			archiver, err := New(tt.format, io.Discard, 0)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorContains(t, err, "unsupported archive format")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, archiver.Extension())
		})
	}
}
