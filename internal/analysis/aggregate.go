// Package analysis computes the dashboard statistics over a vulnerability table.
package analysis

import (
	"math"
	"sort"

	"vulndash/internal/models"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultRiskThreshold = 7.0
	DefaultHistogramBins = 10
	DefaultTopCWE        = 10
)

// AllRecords is a RiskThreshold that marks every record high-risk. Any
// negative threshold behaves the same, whatever the record scores are.
const AllRecords = -1.0

// Options tunes the aggregation. The zero value of each field selects its
// default, so RiskThreshold 0 means DefaultRiskThreshold, not "everything";
// use AllRecords for that.
type Options struct {
	RiskThreshold float64
	HistogramBins int
	TopCWE        int
}

func (o Options) withDefaults() Options {
	if o.RiskThreshold == 0 {
		o.RiskThreshold = DefaultRiskThreshold
	}

	if o.HistogramBins <= 0 {
		o.HistogramBins = DefaultHistogramBins
	}

	if o.TopCWE <= 0 {
		o.TopCWE = DefaultTopCWE
	}

	return o
}

// Count is a value and how often it occurs.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Bin is one histogram bucket covering [Lower, Upper). The last bin is closed.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram is the CVSS score distribution.
type Histogram struct {
	Scores []float64 `json:"scores"`
	Bins   []Bin     `json:"bins"`
}

// Stats summarizes the score column.
type Stats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// Summary bundles every statistic the dashboard shows.
type Summary struct {
	Severity  []Count   `json:"severity_counts"`
	TopCWE    []Count   `json:"top_cwe"`
	Histogram Histogram `json:"histogram"`
	Stats     Stats     `json:"stats"`
	Threshold float64   `json:"risk_threshold"`
	Total     int       `json:"total"`
	HighRisk  int       `json:"high_risk"`
}

// Summarize computes the full summary of t.
func Summarize(t *models.Table, opts Options) Summary {
	opts = opts.withDefaults()

	return Summary{
		Total:     t.Len(),
		HighRisk:  HighRisk(t, opts.RiskThreshold).Len(),
		Threshold: opts.RiskThreshold,
		Severity:  SeverityCounts(t),
		TopCWE:    TopCWEs(t, opts.TopCWE),
		Histogram: ScoreHistogram(t, opts.HistogramBins),
		Stats:     ScoreStats(t),
	}
}

// SeverityCounts counts records per severity label, most frequent first.
func SeverityCounts(t *models.Table) []Count {
	return countBy(t, models.Record.Severity)
}

// TopCWEs returns the n most frequent cwe_id values. Ties keep first-encountered order.
func TopCWEs(t *models.Table, n int) []Count {
	counts := countBy(t, models.Record.CWEID)
	if n >= 0 && len(counts) > n {
		counts = counts[:n]
	}

	return counts
}

// countBy tallies key(record) and sorts by descending count, stable on first appearance.
func countBy(t *models.Table, key func(models.Record) string) []Count {
	if t == nil {
		return nil
	}

	index := make(map[string]int)

	var counts []Count

	for _, rec := range t.Records {
		k := key(rec)
		if i, ok := index[k]; ok {
			counts[i].Count++

			continue
		}

		index[k] = len(counts)
		counts = append(counts, Count{Value: k, Count: 1})
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})

	return counts
}

// ScoreHistogram buckets scores into equal-width bins over the CVSS range.
// Scores outside the range land in the edge bins.
func ScoreHistogram(t *models.Table, bins int) Histogram {
	if bins <= 0 {
		bins = DefaultHistogramBins
	}

	const lo, hi = 0.0, 10.0

	width := (hi - lo) / float64(bins)

	h := Histogram{
		Scores: make([]float64, 0, t.Len()),
		Bins:   make([]Bin, bins),
	}

	for i := range h.Bins {
		h.Bins[i].Lower = lo + float64(i)*width
		h.Bins[i].Upper = lo + float64(i+1)*width
	}

	h.Bins[bins-1].Upper = hi

	if t == nil {
		return h
	}

	for _, rec := range t.Records {
		h.Scores = append(h.Scores, rec.Score)

		idx := int(math.Floor((rec.Score - lo) / width))
		if idx < 0 {
			idx = 0
		}

		if idx >= bins {
			idx = bins - 1
		}

		h.Bins[idx].Count++
	}

	return h
}

// ScoreStats returns count, min, max and mean of the scores.
func ScoreStats(t *models.Table) Stats {
	if t.Len() == 0 {
		return Stats{}
	}

	s := Stats{Count: t.Len(), Min: math.Inf(1), Max: math.Inf(-1)}

	var sum float64

	for _, rec := range t.Records {
		sum += rec.Score
		s.Min = math.Min(s.Min, rec.Score)
		s.Max = math.Max(s.Max, rec.Score)
	}

	s.Mean = sum / float64(s.Count)

	return s
}
