// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// staticMetricRoutes are paths recorded verbatim as metric labels.
var staticMetricRoutes = map[string]bool{
	"/":                    true,
	"/api/ranking":         true,
	"/api/ranking/batch":   true,
	"/api/ranking/reorder": true,
	"/api/match/scores":    true,
	"/health":              true,
	"/ready":               true,
	"/metrics":             true,
}

// normalizePath collapses dynamic path segments into placeholders so shop
// IDs don't blow up metric label cardinality. /api/ranking/123 becomes
// /api/ranking/{shop_id}.
func normalizePath(path string) string {
	if staticMetricRoutes[path] {
		return path
	}

	if strings.HasPrefix(path, "/api/ranking/") {
		if parts := strings.Split(path, "/"); len(parts) == 4 && parts[3] != "" {
			return "/api/ranking/{shop_id}"
		}
	}
	if strings.HasPrefix(path, "/api/match/stats/") {
		if parts := strings.Split(path, "/"); len(parts) == 5 && parts[4] != "" {
			return "/api/match/stats/{shop_id}"
		}
	}

	// Unknown routes pass through so new endpoints still get counted.
	return path
}

// metricsResponseWriter captures the status code and bytes written.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// HTTPMetrics records request counts, durations, and sizes per method,
// route, and status. Health probes are excluded since they fire constantly
// and would drown out real traffic.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			var requestSize int64
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
