package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// JobInstrumenter traces and measures background jobs such as cache refresh cycles.
type JobInstrumenter struct {
	tracer      trace.Tracer
	jobsActive  metric.Int64UpDownCounter
	jobDuration metric.Float64Histogram
	jobsTotal   metric.Int64Counter
}

func NewJobInstrumenter(serviceName string) (*JobInstrumenter, error) {
	meter := otel.Meter(serviceName + "/jobs")

	jobsActive, err := meter.Int64UpDownCounter(
		"chatsync.jobs.active",
		metric.WithDescription("Number of background jobs running"),
	)
	if err != nil {
		return nil, err
	}

	jobDuration, err := meter.Float64Histogram(
		"chatsync.jobs.duration",
		metric.WithDescription("Background job duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	jobsTotal, err := meter.Int64Counter(
		"chatsync.jobs.total",
		metric.WithDescription("Total background jobs processed"),
	)
	if err != nil {
		return nil, err
	}

	return &JobInstrumenter{
		tracer:      otel.Tracer(serviceName + "/jobs"),
		jobsActive:  jobsActive,
		jobDuration: jobDuration,
		jobsTotal:   jobsTotal,
	}, nil
}

// Instrument runs fn inside a job span and records its duration and status.
func (j *JobInstrumenter) Instrument(ctx context.Context, jobType string, fn func(context.Context) error) error {
	j.jobsActive.Add(ctx, 1)
	defer j.jobsActive.Add(ctx, -1)

	ctx, span := j.tracer.Start(ctx, "job."+jobType,
		trace.WithAttributes(attribute.String("job.type", jobType)),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"
		RecordError(span, err)
	}
	attrs := metric.WithAttributes(
		attribute.String("job.type", jobType),
		attribute.String("status", status),
	)
	j.jobDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	j.jobsTotal.Add(ctx, 1, attrs)
	return err
}
