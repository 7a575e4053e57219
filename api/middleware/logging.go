package middleware

import (
	"net/http"
	"time"

	"github.com/angelmondragon/crushlink-backend/pkg/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()

			logg.Debug(ctx, "request.start")
			next.ServeHTTP(rec, r.WithContext(ctx))

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			ctx = logg.WithFields(ctx, map[string]any{
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			logg.Info(ctx, "request.complete")
		})
	}
}
