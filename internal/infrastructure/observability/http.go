package observability

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// HTTPMiddleware instruments the local HTTP endpoints (metrics) with a server
// span and request metrics.
func HTTPMiddleware(serviceName string) func(http.Handler) http.Handler {
	tracer := otel.Tracer(serviceName + "/http")
	meter := otel.Meter(serviceName + "/http")

	requestDuration, _ := meter.Float64Histogram(
		"chatsync.http.server.duration",
		metric.WithDescription("Local HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	requestsTotal, _ := meter.Int64Counter(
		"chatsync.http.server.requests",
		metric.WithDescription("Total local HTTP requests"),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx, span := tracer.Start(r.Context(), r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("http.route", r.URL.Path),
				),
			)
			defer span.End()

			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(ctx))

			attrs := metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", r.URL.Path),
				attribute.Int("status", rw.statusCode),
			)
			if requestDuration != nil {
				requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if requestsTotal != nil {
				requestsTotal.Add(ctx, 1, attrs)
			}

			RecordStatus(span, rw.statusCode)
			if rw.statusCode >= 400 {
				span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", rw.statusCode))
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
