// Package telemetry exposes counters for analyzed uploads.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "vulndash"

// Metrics holds the pipeline counters.
type Metrics struct {
	uploads  metric.Int64Counter
	accepted metric.Int64Counter
	rejected metric.Int64Counter
	failures metric.Int64Counter
}

// NewMetrics registers the counters on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	uploads, err := meter.Int64Counter("vulndash.uploads",
		metric.WithDescription("Documents run through the pipeline"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("failed to create uploads counter: %w", err)
	}

	accepted, err := meter.Int64Counter("vulndash.records.accepted",
		metric.WithDescription("Entries that passed validation"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("failed to create accepted counter: %w", err)
	}

	rejected, err := meter.Int64Counter("vulndash.records.rejected",
		metric.WithDescription("Entries dropped by validation"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rejected counter: %w", err)
	}

	failures, err := meter.Int64Counter("vulndash.failures",
		metric.WithDescription("Uploads that produced no dashboard, by kind"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("failed to create failures counter: %w", err)
	}

	return &Metrics{
		uploads:  uploads,
		accepted: accepted,
		rejected: rejected,
		failures: failures,
	}, nil
}

// RecordUpload counts one processed document. Safe on a nil receiver.
func (m *Metrics) RecordUpload(ctx context.Context, accepted, rejected int) {
	if m == nil {
		return
	}

	m.uploads.Add(ctx, 1)
	m.accepted.Add(ctx, int64(accepted))
	m.rejected.Add(ctx, int64(rejected))
}

// RecordFailure counts a failed document under kind.
func (m *Metrics) RecordFailure(ctx context.Context, kind string) {
	if m == nil {
		return
	}

	m.uploads.Add(ctx, 1)
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
