// Package normalizer turns an uploaded vulnerability document into a clean,
// analysis-ready table.
package normalizer

import (
	"errors"
	"fmt"

	"vulndash/internal/models"
)

// Pipeline outcome errors.
var (
	ErrEmptyInput     = errors.New("uploaded file is empty")
	ErrNoValidEntries = errors.New("no valid vulnerability entries")
	ErrConversion     = errors.New("failed to build vulnerability table")
	ErrMissingColumns = errors.New("missing required columns")
)

// CVSS scale bounds. Scores outside are kept but counted.
const (
	ScoreRangeMin = 0.0
	ScoreRangeMax = 10.0
)

// Result is the outcome of normalizing one upload.
type Result struct {
	Table      *models.Table
	Rejections []Rejection
	Rejected   int
	OutOfRange int
}

// Processor runs validation then table construction.
type Processor struct {
	validator   *Validator
	transformer *Transformer
}

// NewProcessor creates a new processor instance.
func NewProcessor() *Processor {
	return &Processor{
		validator:   NewValidator(),
		transformer: NewTransformer(),
	}
}

// Process validates every entry of data and builds the table from the accepted ones.
func (p *Processor) Process(data models.Value) (*Result, error) {
	entries := models.Entries(data)
	if len(entries) == 0 {
		return nil, ErrEmptyInput
	}

	// 1. Drop entries that are not objects or lack a required field
	accepted, rejections := p.validator.Validate(entries)
	if len(accepted) == 0 {
		return nil, fmt.Errorf("%w: all %d entries rejected", ErrNoValidEntries, len(entries))
	}

	// 2. Build the table
	table, err := p.transformer.Transform(accepted)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConversion, err)
	}

	// 3. Re-check the required columns survived construction
	var missing []string

	for _, col := range models.RequiredFields {
		if !table.HasColumn(col) {
			missing = append(missing, col)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingColumns, missing)
	}

	res := &Result{
		Table:      table,
		Rejections: rejections,
		Rejected:   len(rejections),
	}

	for _, rec := range table.Records {
		if rec.Score < ScoreRangeMin || rec.Score > ScoreRangeMax {
			res.OutOfRange++
		}
	}

	return res, nil
}
