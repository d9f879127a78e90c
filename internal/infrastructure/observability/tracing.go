package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

const (
	tracerName = "jan-chat-sync/gateway"
	meterName  = "jan-chat-sync/gateway"
)

var (
	gatewayDuration     metric.Float64Histogram
	gatewayDurationOnce sync.Once
)

// GetTracer returns the tracer for backend calls.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// GatewayAttributes returns common attributes for backend request spans.
func GatewayAttributes(operation, method, path, requestID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("gateway.operation", operation),
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
		attribute.String("request.id", requestID),
	}
}

// StartGatewaySpan starts a client span for one backend request.
func StartGatewaySpan(ctx context.Context, operation, method, path, requestID string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "gateway."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(GatewayAttributes(operation, method, path, requestID)...),
	)
}

// RecordError records an error on a span, tagging its platform error type when known.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if pe := platformerrors.GetPlatformError(err); pe != nil {
		span.SetAttributes(
			attribute.String("error.type", string(pe.GetErrorType())),
			attribute.String("error.code", pe.GetUUID()),
		)
	}
}

// RecordStatus adds the response status code to a span.
func RecordStatus(span trace.Span, status int) {
	span.SetAttributes(attribute.Int("http.response.status_code", status))
}

// RecordGatewayCall exports one backend round trip through the OTLP meter.
func RecordGatewayCall(ctx context.Context, operation, outcome string, d time.Duration) {
	gatewayDurationOnce.Do(func() {
		h, err := otel.Meter(meterName).Float64Histogram(
			"chatsync.gateway.duration",
			metric.WithDescription("Duration of chat backend requests"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
			return
		}
		gatewayDuration = h
	})
	if gatewayDuration == nil {
		return
	}
	gatewayDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("gateway.operation", operation),
		attribute.String("outcome", outcome),
	))
}
