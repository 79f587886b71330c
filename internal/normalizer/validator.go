package normalizer

import (
	"errors"
	"fmt"

	"vulndash/internal/models"
)

// Rejection reasons.
var (
	ErrNotAnObject  = errors.New("entry is not an object")
	ErrMissingField = errors.New("missing required field")
)

// Rejection records an entry dropped by the validator.
type Rejection struct {
	Reason error
	Key    string
	Index  int
}

func (r Rejection) String() string {
	if r.Key != "" {
		return fmt.Sprintf("entry %q: %v", r.Key, r.Reason)
	}

	return fmt.Sprintf("entry #%d: %v", r.Index, r.Reason)
}

// Validator checks that entries are objects carrying every required field.
type Validator struct {
	required []string
}

// NewValidator creates a validator for the vulnerability required fields.
func NewValidator() *Validator {
	return &Validator{required: models.RequiredFields}
}

// Check returns the entry as an object, or the reason it is rejected.
// A required field holding JSON null counts as missing.
func (v *Validator) Check(entry models.Value) (*models.Object, error) {
	obj, ok := entry.(*models.Object)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotAnObject, models.KindOf(entry))
	}

	for _, field := range v.required {
		val, present := obj.Get(field)
		if !present || val == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, field)
		}
	}

	return obj, nil
}

// Validate splits entries into accepted objects and rejections, both in input order.
func (v *Validator) Validate(entries []models.Entry) ([]*models.Object, []Rejection) {
	accepted := make([]*models.Object, 0, len(entries))

	var rejected []Rejection

	for _, e := range entries {
		obj, err := v.Check(e.Value)
		if err != nil {
			rejected = append(rejected, Rejection{Index: e.Index, Key: e.Key, Reason: err})

			continue
		}

		accepted = append(accepted, obj)
	}

	return accepted, rejected
}
