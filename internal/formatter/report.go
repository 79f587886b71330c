package formatter

import (
	"fmt"
	"strings"

	"vulndash/internal/analysis"
	"vulndash/internal/models"
)

// maxReportRows caps the high-risk table in text reports.
const maxReportRows = 50

// ReportInput is everything a text report shows.
type ReportInput struct {
	HighRisk *models.Table
	Title    string
	Source   string
	Summary  analysis.Summary
	Rejected int
}

// RenderReport builds an aligned Markdown report of an analyzed upload.
func RenderReport(in ReportInput) string {
	var sb strings.Builder

	title := in.Title
	if title == "" {
		title = "Vulnerability Report"
	}

	fmt.Fprintf(&sb, "# %s\n\n", title)

	if in.Source != "" {
		fmt.Fprintf(&sb, "**Source:** `%s`\n", in.Source)
	}

	fmt.Fprintf(&sb, "**Records:** %d (rejected: %d)\n", in.Summary.Total, in.Rejected)

	if in.Summary.Stats.Count > 0 {
		fmt.Fprintf(&sb, "**CVSS:** min %.1f / mean %.2f / max %.1f\n",
			in.Summary.Stats.Min, in.Summary.Stats.Mean, in.Summary.Stats.Max)
	}

	sb.WriteString("\n## Severity Count\n\n")
	writeCounts(&sb, "Severity", in.Summary.Severity)

	sb.WriteString("\n## CVSS Score Distribution\n\n")
	sb.WriteString("| Range | Count | |\n| --- | --- | --- |\n")

	peak := 0
	for _, b := range in.Summary.Histogram.Bins {
		peak = max(peak, b.Count)
	}

	for _, b := range in.Summary.Histogram.Bins {
		fmt.Fprintf(&sb, "| %.1f–%.1f | %d | %s |\n", b.Lower, b.Upper, b.Count, bar(b.Count, peak, 20))
	}

	sb.WriteString("\n## Top CWE IDs\n\n")
	writeCounts(&sb, "CWE", in.Summary.TopCWE)

	fmt.Fprintf(&sb, "\n## High-Risk Vulnerabilities (CVSS ≥ %g)\n\n", in.Summary.Threshold)
	writeRecords(&sb, in.HighRisk)

	return FormatMarkdown(sb.String()) + "\n"
}

func writeCounts(sb *strings.Builder, label string, counts []analysis.Count) {
	if len(counts) == 0 {
		sb.WriteString("_None._\n")

		return
	}

	fmt.Fprintf(sb, "| %s | Count |\n| --- | --- |\n", label)

	for _, c := range counts {
		fmt.Fprintf(sb, "| %s | %d |\n", EscapeCell(c.Value), c.Count)
	}
}

func writeRecords(sb *strings.Builder, t *models.Table) {
	if t.Len() == 0 {
		sb.WriteString("_No high-risk vulnerabilities._\n")

		return
	}

	sb.WriteString("|")

	for _, col := range t.Columns {
		fmt.Fprintf(sb, " %s |", EscapeCell(col))
	}

	sb.WriteString("\n|")

	for range t.Columns {
		sb.WriteString(" --- |")
	}

	sb.WriteString("\n")

	limit := min(len(t.Records), maxReportRows)

	for _, rec := range t.Records[:limit] {
		sb.WriteString("|")

		for _, col := range t.Columns {
			v, _ := rec.Fields.Get(col)
			fmt.Fprintf(sb, " %s |", EscapeCell(models.FormatScalar(v)))
		}

		sb.WriteString("\n")
	}

	if len(t.Records) > limit {
		fmt.Fprintf(sb, "\n*...and %d more in the CSV export*\n", len(t.Records)-limit)
	}
}

func bar(n, peak, width int) string {
	if peak == 0 || n == 0 {
		return ""
	}

	return strings.Repeat("█", max(1, n*width/peak))
}
