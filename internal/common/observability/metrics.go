package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability owns the otel meter provider exported through prometheus.
type Observability struct {
	meterProvider      *metric.MeterProvider
	meter              otelmetric.Meter
	jobCounter         otelmetric.Int64Counter
	jobDuration        otelmetric.Float64Histogram
	documentsPublished otelmetric.Int64Counter
	documentWarnings   otelmetric.Int64Counter
}

// New registers a prometheus-backed meter provider. On exporter failure the
// returned value records nothing.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	o := newWithReader(serviceName, exporter)
	otel.SetMeterProvider(o.meterProvider)
	return o, nil
}

func newWithReader(serviceName string, reader metric.Reader) *Observability {
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)

	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	documentsPublished, _ := meter.Int64Counter(
		"documents.published",
		otelmetric.WithDescription("Service descriptions written to storage"),
	)

	documentWarnings, _ := meter.Int64Counter(
		"documents.warnings",
		otelmetric.WithDescription("Side effects that failed after a document was stored"),
	)

	return &Observability{
		meterProvider:      provider,
		meter:              meter,
		jobCounter:         jobCounter,
		jobDuration:        jobDuration,
		documentsPublished: documentsPublished,
		documentWarnings:   documentWarnings,
	}
}

// RecordDocumentPublished counts one stored service description and the
// warnings its side effects produced.
func (o *Observability) RecordDocumentPublished(ctx context.Context, draft, newProposal bool, warnings int) {
	if o == nil || o.documentsPublished == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.Bool("draft", draft),
		attribute.Bool("new_proposal", newProposal),
	)
	o.documentsPublished.Add(ctx, 1, attrs)
	if warnings > 0 && o.documentWarnings != nil {
		o.documentWarnings.Add(ctx, int64(warnings), attrs)
	}
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o == nil || o.jobCounter == nil {
		return
	}
	o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string) {
	if o == nil || o.jobDuration == nil {
		return
	}
	o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return o.meterProvider.Shutdown(ctx)
}
