package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// newRequestLogger logs one entry when a request starts and one when it
// completes, tagged with the chi request id.
func newRequestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return middleware.RequestLogger(&requestLogger{logger: logger})
}

type requestLogger struct {
	logger *zap.Logger
}

func (l *requestLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	fields := []zap.Field{
		zap.String("http_method", r.Method),
		zap.String("http_proto", r.Proto),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
	}
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		fields = append(fields, zap.String("req_id", reqID))
	}

	entry := &requestLogEntry{logger: l.logger.With(fields...)}
	entry.logger.Debug("request started")

	return entry
}

type requestLogEntry struct {
	logger *zap.Logger
}

func (e *requestLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	e.logger.Info("request complete",
		zap.Int("resp_status", status),
		zap.Int("resp_bytes_length", bytes),
		zap.Float64("resp_elapsed_ms", float64(elapsed.Nanoseconds())/1000000.0),
	)
}

func (e *requestLogEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error("request panicked", zap.Any("panic", v), zap.ByteString("stack", stack))
}

// loggerFor returns the request scoped logger, or fallback when the
// request logger middleware is not installed.
func loggerFor(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if entry, ok := middleware.GetLogEntry(r).(*requestLogEntry); ok {
		return entry.logger
	}
	return fallback
}
