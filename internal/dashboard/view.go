package dashboard

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"strconv"

	"vulndash/internal/analysis"
	"vulndash/internal/export"
	"vulndash/internal/models"
	"vulndash/internal/pipeline"
)

// Chart geometry in SVG user units.
const (
	chartLabelWidth = 140
	chartBarSpan    = 380
	chartRowHeight  = 26
	chartBarHeight  = 18
)

type page struct {
	Banner   *pipeline.Failure
	Report   *reportView
	Title    string
	Filename string
}

type reportView struct {
	Severity     chart
	Histogram    chart
	TopCWE       chart
	Columns      []string
	Rows         [][]string
	DownloadURL  template.URL
	DownloadName string
	Stats        analysis.Stats
	Threshold    float64
	Records      int
	Rejected     int
	OutOfRange   int
}

type chart struct {
	Bars   []bar
	Width  int
	Height int
}

type bar struct {
	Label  string
	Count  int
	Y      int
	TextY  int
	Width  int
	CountX int
}

func (s *Server) newPage() page {
	return page{Title: s.cfg.Server.Title}
}

func buildReportView(rep *pipeline.Report, filename string) *reportView {
	v := &reportView{
		Records:      rep.Result.Table.Len(),
		Rejected:     rep.Result.Rejected,
		OutOfRange:   rep.Result.OutOfRange,
		Threshold:    rep.Summary.Threshold,
		Stats:        rep.Summary.Stats,
		Severity:     countChart(rep.Summary.Severity),
		TopCWE:       countChart(rep.Summary.TopCWE),
		Histogram:    histogramChart(rep.Summary.Histogram),
		Columns:      rep.HighRisk.Columns,
		DownloadURL:  dataURI(rep.CSV),
		DownloadName: filename,
	}

	for _, rec := range rep.HighRisk.Records {
		row := make([]string, len(v.Columns))

		for i, col := range v.Columns {
			val, _ := rec.Fields.Get(col)
			row[i] = models.FormatScalar(val)
		}

		v.Rows = append(v.Rows, row)
	}

	return v
}

func countChart(counts []analysis.Count) chart {
	labels := make([]string, len(counts))
	values := make([]int, len(counts))

	for i, c := range counts {
		labels[i] = c.Value
		values[i] = c.Count
	}

	return newChart(labels, values)
}

func histogramChart(h analysis.Histogram) chart {
	labels := make([]string, len(h.Bins))
	values := make([]int, len(h.Bins))

	for i, b := range h.Bins {
		labels[i] = fmt.Sprintf("%s – %s", formatScore(b.Lower), formatScore(b.Upper))
		values[i] = b.Count
	}

	return newChart(labels, values)
}

// newChart lays out a horizontal bar chart scaled to the largest value.
func newChart(labels []string, values []int) chart {
	peak := 0
	for _, v := range values {
		peak = max(peak, v)
	}

	c := chart{
		Width:  chartLabelWidth + chartBarSpan + 60,
		Height: max(1, len(values)) * chartRowHeight,
	}

	for i, v := range values {
		width := 0
		if peak > 0 {
			width = v * chartBarSpan / peak
		}

		if v > 0 {
			width = max(width, 2)
		}

		y := i * chartRowHeight

		c.Bars = append(c.Bars, bar{
			Label:  labels[i],
			Count:  v,
			Y:      y + (chartRowHeight-chartBarHeight)/2,
			TextY:  y + chartRowHeight/2 + 5,
			Width:  width,
			CountX: chartLabelWidth + width + 6,
		})
	}

	return c
}

func dataURI(csv []byte) template.URL {
	return template.URL("data:" + export.ContentType + ";charset=utf-8;base64," + base64.StdEncoding.EncodeToString(csv)) //nolint:gosec
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
