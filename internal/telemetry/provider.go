package telemetry

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Provider owns an SDK meter provider whose counters are read on demand.
type Provider struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// Point is one counter series at collection time.
type Point struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Value      int64             `json:"value"`
}

// NewProvider builds a meter provider backed by a manual reader.
func NewProvider(ctx context.Context, service string) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(service)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	reader := sdkmetric.NewManualReader()

	return &Provider{
		reader: reader,
		provider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		),
	}, nil
}

// Meter returns the meter the pipeline counters register on.
func (p *Provider) Meter() metric.Meter {
	return p.provider.Meter(meterName)
}

// Metrics registers the pipeline counters on this provider.
func (p *Provider) Metrics() (*Metrics, error) {
	return NewMetrics(p.Meter())
}

// Collect reads the current value of every integer counter, sorted by name
// then attributes.
func (p *Provider) Collect(ctx context.Context) ([]Point, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("failed to collect metrics: %w", err)
	}

	return Points(rm), nil
}

// Shutdown flushes and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

// Points flattens the int64 sums of rm.
func Points(rm metricdata.ResourceMetrics) []Point {
	var points []Point

	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != meterName {
			continue
		}

		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}

			for _, dp := range sum.DataPoints {
				pt := Point{Name: m.Name, Value: dp.Value}

				for _, kv := range dp.Attributes.ToSlice() {
					if pt.Attributes == nil {
						pt.Attributes = make(map[string]string)
					}

					pt.Attributes[string(kv.Key)] = kv.Value.Emit()
				}

				points = append(points, pt)
			}
		}
	}

	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Name != points[j].Name {
			return points[i].Name < points[j].Name
		}

		return fmt.Sprint(points[i].Attributes) < fmt.Sprint(points[j].Attributes)
	})

	return points
}

// Value sums the series named name whose attributes include attrs, given as
// key, value pairs.
func Value(points []Point, name string, attrs ...string) int64 {
	var total int64

	for _, pt := range points {
		if pt.Name != name || !hasAttrs(pt.Attributes, attrs) {
			continue
		}

		total += pt.Value
	}

	return total
}

func hasAttrs(have map[string]string, attrs []string) bool {
	for i := 0; i+1 < len(attrs); i += 2 {
		if have[attrs[i]] != attrs[i+1] {
			return false
		}
	}

	return true
}
