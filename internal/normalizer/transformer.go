package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"vulndash/internal/models"
)

// Table construction errors.
var (
	ErrScoreNotNumeric = errors.New("cvss_score is not numeric")
	ErrUnhashableValue = errors.New("category value must be a scalar")
	ErrMixedColumn     = errors.New("column mixes scalar and nested values")
)

type shape int

const (
	shapeUnset shape = iota
	shapeScalar
	shapeNested
)

// Transformer builds the analysis table from accepted entries.
type Transformer struct{}

// NewTransformer creates a new transformer instance.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform converts accepted objects into a table. Columns are the union of
// field names in first-seen order. Rows keep their input order.
func (t *Transformer) Transform(objs []*models.Object) (*models.Table, error) {
	table := &models.Table{Records: make([]models.Record, 0, len(objs))}
	shapes := make(map[string]shape)

	for row, obj := range objs {
		for _, f := range obj.Fields() {
			prev, seen := shapes[f.Key]
			if !seen {
				table.Columns = append(table.Columns, f.Key)
			}

			cur := shapeOf(f.Value)
			if cur == shapeUnset {
				if !seen {
					shapes[f.Key] = shapeUnset
				}

				continue
			}

			if prev != shapeUnset && prev != cur {
				return nil, fmt.Errorf("%w: %q at row %d", ErrMixedColumn, f.Key, row)
			}

			shapes[f.Key] = cur
		}

		for _, key := range []string{models.FieldCWEID, models.FieldSeverity} {
			if v, _ := obj.Get(key); models.IsNested(v) {
				return nil, fmt.Errorf("%w: %s is %s at row %d", ErrUnhashableValue, key, models.KindOf(v), row)
			}
		}

		raw, _ := obj.Get(models.FieldCVSSScore)

		score, err := ParseScore(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		table.Records = append(table.Records, models.Record{Fields: obj, Score: score})
	}

	return table, nil
}

// ParseScore reads a CVSS score from a JSON number or a numeric string.
func ParseScore(v models.Value) (float64, error) {
	var (
		f   float64
		err error
	)

	switch s := v.(type) {
	case json.Number:
		f, err = s.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
	default:
		return 0, fmt.Errorf("%w: got %s", ErrScoreNotNumeric, models.KindOf(v))
	}

	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrScoreNotNumeric, models.FormatScalar(v))
	}

	return f, nil
}

func shapeOf(v models.Value) shape {
	switch {
	case v == nil:
		return shapeUnset
	case models.IsNested(v):
		return shapeNested
	default:
		return shapeScalar
	}
}
