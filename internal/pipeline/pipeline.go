// Package pipeline runs one uploaded document through decoding, normalization,
// aggregation and export.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"vulndash/internal/analysis"
	"vulndash/internal/export"
	"vulndash/internal/logger"
	"vulndash/internal/models"
	"vulndash/internal/normalizer"
	"vulndash/internal/telemetry"
)

// ErrMalformedJSON is returned when the upload is not a single JSON document.
var ErrMalformedJSON = errors.New("uploaded file is not valid JSON")

// Report is everything the dashboard renders for one upload.
type Report struct {
	Result   *normalizer.Result
	HighRisk *models.Table
	CSV      []byte
	Summary  analysis.Summary
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	processor *normalizer.Processor
	log       *logger.Logger
	metrics   *telemetry.Metrics
	opts      analysis.Options
}

// New creates a pipeline. metrics may be nil.
func New(opts analysis.Options, log *logger.Logger, metrics *telemetry.Metrics) *Pipeline {
	if log == nil {
		log = logger.Discard()
	}

	return &Pipeline{
		processor: normalizer.NewProcessor(),
		log:       log,
		metrics:   metrics,
		opts:      opts,
	}
}

// Run decodes r and builds the report. Failures wrap one of the normalizer
// sentinels or ErrMalformedJSON; see Describe. Log lines go to the logger
// carried by ctx (logger.WithContext) when there is one.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, p.log)

	rep, err := p.run(r)
	if err != nil {
		f := Describe(err)
		p.metrics.RecordFailure(ctx, f.Kind)
		log.Log(ctx, f.Level.slogLevel(), "upload rejected", "kind", f.Kind, "error", err)

		return nil, err
	}

	p.metrics.RecordUpload(ctx, rep.Result.Table.Len(), rep.Result.Rejected)
	log.Info("upload processed",
		"records", rep.Result.Table.Len(),
		"rejected", rep.Result.Rejected,
		"out_of_range", rep.Result.OutOfRange,
		"high_risk", rep.HighRisk.Len())

	for _, rej := range rep.Result.Rejections {
		log.Debug("entry rejected", "entry", rej.String())
	}

	return rep, nil
}

// RunBytes is Run over an in-memory document.
func (p *Pipeline) RunBytes(ctx context.Context, b []byte) (*Report, error) {
	return p.Run(ctx, bytes.NewReader(b))
}

func (p *Pipeline) run(r io.Reader) (*Report, error) {
	data, err := models.Decode(r)
	if err != nil {
		if errors.Is(err, models.ErrEmptyDocument) {
			return nil, normalizer.ErrEmptyInput
		}

		return nil, fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}

	res, err := p.processor.Process(data)
	if err != nil {
		return nil, err
	}

	summary := analysis.Summarize(res.Table, p.opts)
	highRisk := analysis.HighRisk(res.Table, summary.Threshold)

	csv, err := export.CSV(highRisk)
	if err != nil {
		return nil, fmt.Errorf("failed to export high-risk table: %w", err)
	}

	return &Report{
		Result:   res,
		Summary:  summary,
		HighRisk: highRisk,
		CSV:      csv,
	}, nil
}
