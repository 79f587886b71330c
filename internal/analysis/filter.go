package analysis

import "vulndash/internal/models"

// HighRisk returns the records with a score at or above threshold, in table
// order. A negative threshold returns every record.
func HighRisk(t *models.Table, threshold float64) *models.Table {
	if t == nil {
		return &models.Table{}
	}

	var out []models.Record

	for _, rec := range t.Records {
		if threshold < 0 || rec.Score >= threshold {
			out = append(out, rec)
		}
	}

	return t.Subset(out)
}
