package main

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/infracollect/reportd/internal/config"
	"github.com/infracollect/reportd/internal/export/sinks"
	"github.com/infracollect/reportd/internal/reports"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFormatValidationError(t *testing.T) {
	cfg, err := config.Parse([]byte("archive:\n  format: rar\n  compression_level: 12\n"))
	require.NoError(t, err)

	err = formatValidationError(config.Validate(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config has 2 validation error(s):")
	assert.Contains(t, err.Error(), "ServerConfig.Archive.Format: failed 'oneof' validation (param: zip tar tar.gz tar.zst)")
	assert.Contains(t, err.Error(), "ServerConfig.Archive.CompressionLevel: failed 'max' validation (param: 9)")
}

func TestFormatValidationError_PassesThroughOtherErrors(t *testing.T) {
	err := formatValidationError(os.ErrNotExist)
	assert.Equal(t, os.ErrNotExist, err)
}

func TestCreateLogger(t *testing.T) {
	logger, err := createLogger(false, "warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	_, err = createLogger(true, "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level loud")
}

func TestLoggerContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, tryLogger(ctx))
	assert.Panics(t, func() { getLogger(ctx) })

	logger := zap.NewNop()
	ctx = withLogger(ctx, logger)
	assert.Same(t, logger, getLogger(ctx))

	assert.False(t, isInteractive(ctx))
	assert.True(t, isInteractive(withInteractive(ctx, true)))
}

func TestServerConfig(t *testing.T) {
	cfg, err := config.Parse([]byte("base_path: /api\narchive:\n  max_concurrent: 0\n"))
	require.NoError(t, err)

	sc := serverConfig(cfg)
	assert.Equal(t, ":8080", sc.Listen)
	assert.Equal(t, "/api", sc.BasePath)
	assert.Equal(t, 0, sc.MaxConcurrentArchives)
	assert.Equal(t, "10s", sc.ReadHeaderTimeout.String())
	assert.Equal(t, "2m0s", sc.IdleTimeout.String())
	assert.Equal(t, "15s", sc.ShutdownTimeout.String())
}

func newExportStore(t *testing.T, files map[string]string) *reports.Store {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	cfg.Reports.Directory = dir

	store, err := newStore(zap.NewNop(), cfg)
	require.NoError(t, err)
	return store
}

func TestExportReports_Archive(t *testing.T) {
	store := newExportStore(t, map[string]string{"acme.xlsx": "acme", "globex.xlsx": "globex"})
	out := t.TempDir()
	inner, err := sinks.NewFilesystemSinkFromPath(out)
	require.NoError(t, err)

	n, err := exportReports(t.Context(), zap.NewNop(), store, inner, exportOptions{
		format: "zip",
		level:  9,
		name:   "reports-20260101T000000Z",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(filepath.Join(out, "reports-20260101T000000Z.zip"))
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"acme.xlsx", "globex.xlsx"}, names)
}

func TestExportReports_Unarchived(t *testing.T) {
	store := newExportStore(t, map[string]string{"acme.xlsx": "acme", "notes.txt": "skip"})
	out := t.TempDir()
	inner, err := sinks.NewFilesystemSinkFromPath(out)
	require.NoError(t, err)

	n, err := exportReports(t.Context(), zap.NewNop(), store, inner, exportOptions{unarchived: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(filepath.Join(out, "acme.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "acme", string(data))

	_, err = os.Stat(filepath.Join(out, "notes.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestExportReports_NoReports(t *testing.T) {
	store := newExportStore(t, nil)
	out := t.TempDir()
	inner, err := sinks.NewFilesystemSinkFromPath(out)
	require.NoError(t, err)

	_, err = exportReports(t.Context(), zap.NewNop(), store, inner, exportOptions{format: "zip", name: "reports"})
	require.ErrorIs(t, err, reports.ErrNoReportsAvailable)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries, "no archive must be written")
}

// dirOpenCountingFs counts how many times a directory is opened, which is
// once per listing.
type dirOpenCountingFs struct {
	afero.Fs
	dir   string
	opens atomic.Int32
}

func (f *dirOpenCountingFs) Open(name string) (afero.File, error) {
	if filepath.Clean(name) == f.dir {
		f.opens.Add(1)
	}
	return f.Fs.Open(name)
}

func TestExportReports_ListsDirectoryOnce(t *testing.T) {
	const dir = "/srv/reports"

	tests := []struct {
		name       string
		files      map[string]string
		unarchived bool
		wantErr    error
		wantN      int
	}{
		{name: "archive", files: map[string]string{"acme.xlsx": "acme", "globex.xlsx": "globex"}, wantN: 2},
		{name: "unarchived", files: map[string]string{"acme.xlsx": "acme"}, unarchived: true, wantN: 1},
		{name: "archive empty", wantErr: reports.ErrNoReportsAvailable},
		{name: "unarchived empty", unarchived: true, wantErr: reports.ErrNoReportsAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &dirOpenCountingFs{Fs: afero.NewMemMapFs(), dir: dir}
			require.NoError(t, fs.MkdirAll(dir, 0o755))
			for name, content := range tt.files {
				require.NoError(t, afero.WriteFile(fs.Fs, filepath.Join(dir, name), []byte(content), 0o644))
			}

			store, err := reports.New(zap.NewNop(), reports.Config{Directory: dir}, reports.WithFs(fs))
			require.NoError(t, err)

			out := afero.NewMemMapFs()
			n, err := exportReports(t.Context(), zap.NewNop(), store, sinks.NewFilesystemSink(out), exportOptions{
				format:     "zip",
				name:       "reports",
				unarchived: tt.unarchived,
			})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				entries, err := afero.ReadDir(out, "/")
				require.NoError(t, err)
				assert.Empty(t, entries, "nothing must be left on the sink")
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantN, n)
			}

			assert.Equal(t, int32(1), fs.opens.Load(), "reports directory must be listed exactly once")
		})
	}
}

func TestApp_List(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme.xlsx"), []byte("acme"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ExitErrHandler = nil

	err := app.Run(t.Context(), []string{"reportd", "--log-level", "error", "list", "--reports-dir", dir})
	require.NoError(t, err)
	assert.Equal(t, "acme.xlsx", strings.TrimSpace(out.String()))
}

func TestApp_Validate(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "reportd.yaml")

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, os.WriteFile(cfgPath, []byte("reports:\n  directory: ${REPORTD_CWD}/reports\n"), 0o644))

		var out bytes.Buffer
		app := newApp()
		app.Writer = &out
		app.ExitErrHandler = nil

		err := app.Run(t.Context(), []string{"reportd", "-l", "error", "-c", cfgPath, "validate"})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "is valid")
	})

	t.Run("invalid", func(t *testing.T) {
		require.NoError(t, os.WriteFile(cfgPath, []byte("archive:\n  format: rar\n"), 0o644))

		var out bytes.Buffer
		app := newApp()
		app.Writer = &out
		app.ExitErrHandler = nil

		err := app.Run(t.Context(), []string{"reportd", "-l", "error", "-c", cfgPath, "validate"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is invalid")
		assert.Contains(t, out.String(), "ServerConfig.Archive.Format")
	})
}

func TestBuildInfoPrint(t *testing.T) {
	var out bytes.Buffer
	buildInfo{
		Version:   "v1.2.0",
		GoVersion: "go1.25.6",
		Commit:    "abc123",
		BuildTime: "2026-01-01T00:00:00Z",
		Modified:  true,
	}.print(&out)

	assert.Equal(t, "version: v1.2.0\ngo: go1.25.6\ncommit: abc123 (dirty)\nbuilt: 2026-01-01T00:00:00Z\n", out.String())

	out.Reset()
	buildInfo{Version: "(devel)", GoVersion: "go1.25.6"}.print(&out)
	assert.Equal(t, "version: (devel)\ngo: go1.25.6\n", out.String())
}
