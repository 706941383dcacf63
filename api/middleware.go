package api

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/omron-net/omron-node/log"
)

// DisabledLogging is a global flag to disable logging middleware
var DisabledLogging = false

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

func shouldSkipLogging(r *http.Request) bool {
	if DisabledLogging || log.Level() != log.LogLevelDebug {
		return true
	}
	for _, prefix := range LogExcludedPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// loggingMiddleware provides request/response logging for debugging.
// Request bodies are truncated at maxBodyLog bytes in the log output.
func loggingMiddleware(maxBodyLog int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkipLogging(r) {
				next.ServeHTTP(w, r)
				return
			}
			var body []byte
			if r.Body != nil {
				body, _ = io.ReadAll(io.LimitReader(r.Body, int64(maxBodyLog)))
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
			}
			rw := &responseWriter{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rw, r)
			log.Debugw("api request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"took", time.Since(start).String(),
				"body", string(body),
			)
		})
	}
}
