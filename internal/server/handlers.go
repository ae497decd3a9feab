package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/infracollect/reportd/internal/export"
	"github.com/infracollect/reportd/internal/export/archivers"
	"github.com/infracollect/reportd/internal/reports"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	msgLoadFailed        = "Failed to load reports"
	msgNoReports         = "No reports available"
	msgReportNotFound    = "Report not found"
	msgUnsupportedFormat = "Unsupported archive format"
	msgArchiveBusy       = "Too many archive downloads in progress"

	retryAfterSeconds = 5
)

// ReportStore is the part of *reports.Store the handlers depend on.
type ReportStore interface {
	List(ctx context.Context) ([]string, error)
	Open(name string) (afero.File, os.FileInfo, error)
	StreamAllAs(ctx context.Context, sink reports.ResponseSink, format string) error
}

type errorResponse struct {
	Message string `json:"message"`
}

type handlers struct {
	logger *zap.Logger
	store  ReportStore
	// slots bounds concurrent archive streams; nil means unlimited.
	slots *semaphore.Weighted
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Message: message})
}

func (h *handlers) listReports(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.List(r.Context())
	if err != nil {
		loggerFor(r, h.logger).Error("failed to list reports", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, msgLoadFailed)
		return
	}

	render.JSON(w, r, names)
}

func (h *handlers) downloadReport(w http.ResponseWriter, r *http.Request) {
	// chi matches on the raw path when it carries escapes such as %2F.
	name, err := url.PathUnescape(chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, msgReportNotFound)
		return
	}
	logger := loggerFor(r, h.logger).With(zap.String("report", name))

	f, info, err := h.store.Open(name)
	if err != nil {
		if errors.Is(err, reports.ErrInvalidFormat) || errors.Is(err, reports.ErrNotFound) {
			logger.Debug("report not served", zap.Error(err))
			writeError(w, r, http.StatusNotFound, msgReportNotFound)
			return
		}
		logger.Error("failed to open report", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, msgLoadFailed)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("failed to close report", zap.Error(err))
		}
	}()

	contentType := export.ContentType(info.Name())
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", export.AttachmentDisposition(info.Name()))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *handlers) downloadAll(w http.ResponseWriter, r *http.Request) {
	logger := loggerFor(r, h.logger)

	format := r.URL.Query().Get("format")
	if format != "" && !archivers.IsSupported(format) {
		writeError(w, r, http.StatusBadRequest, msgUnsupportedFormat)
		return
	}

	if h.slots != nil {
		if !h.slots.TryAcquire(1) {
			logger.Warn("archive slots exhausted")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
			writeError(w, r, http.StatusServiceUnavailable, msgArchiveBusy)
			return
		}
		defer h.slots.Release(1)
	}

	err := h.store.StreamAllAs(r.Context(), w, format)
	if err == nil {
		return
	}

	var encodingErr *reports.EncodingError
	switch {
	case errors.Is(err, reports.ErrNoReportsAvailable):
		writeError(w, r, http.StatusNotFound, msgNoReports)
	case errors.Is(err, reports.ErrUnsupportedFormat):
		writeError(w, r, http.StatusBadRequest, msgUnsupportedFormat)
	case errors.As(err, &encodingErr):
		// Headers are committed, abort so the client sees a truncated transfer.
		if r.Context().Err() != nil {
			logger.Debug("client went away during archive download", zap.Error(err))
		} else {
			logger.Error("archive download failed", zap.Error(err))
		}
		panic(http.ErrAbortHandler)
	default:
		logger.Error("failed to stream reports archive", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, msgLoadFailed)
	}
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}
