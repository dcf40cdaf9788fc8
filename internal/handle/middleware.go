package handle

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmorgan81/unigen/internal/log"
	"github.com/google/uuid"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withLogger puts a request-scoped logger in the context and logs one line
// per completed request.
func withLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		reqLog := logger.With("request_id", id, "method", r.Method, "path", r.URL.Path)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(log.NewContext(r.Context(), reqLog)))

		reqLog.Info("handled request", "status", rec.status, "duration", time.Since(start))
	})
}
