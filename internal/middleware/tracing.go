// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// Tracing instruments requests with OpenTelemetry spans via otelhttp.
// W3C trace context (traceparent/tracestate) propagates automatically,
// and span names take the "METHOD /path" form. Place it outside the
// Logging middleware so log lines can carry the trace ID.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	nameSpan := func(_ string, r *http.Request) string {
		return r.Method + " " + r.URL.Path
	}
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName, otelhttp.WithSpanNameFormatter(nameSpan))
	}
}

func requestSpanContext(r *http.Request) (trace.SpanContext, bool) {
	spanCtx := trace.SpanContextFromContext(r.Context())
	return spanCtx, spanCtx.IsValid()
}

// GetTraceID returns the active trace ID for the request, or "" when no
// trace is recording.
func GetTraceID(r *http.Request) string {
	if spanCtx, ok := requestSpanContext(r); ok {
		return spanCtx.TraceID().String()
	}
	return ""
}

// GetSpanID returns the active span ID for the request, or "" when no
// span is recording.
func GetSpanID(r *http.Request) string {
	if spanCtx, ok := requestSpanContext(r); ok {
		return spanCtx.SpanID().String()
	}
	return ""
}
