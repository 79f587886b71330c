package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vulndash/internal/formatter"
	"vulndash/internal/pipeline"
	"vulndash/internal/source"
	"vulndash/pkg/metadata"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		out  string
		sign bool
	)

	cmd := &cobra.Command{
		Use:     "report <file|url|->",
		Short:   "Print a Markdown summary of a vulnerability file",
		Example: "vulndash report vulnerabilities.json --sign --out report.md",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.report(cmd.Context(), args[0], out, sign)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().BoolVar(&sign, "sign", false, "Append a signed metadata block")
	cmd.Flags().Float64("threshold", 0, "High-risk CVSS threshold (default 7.0)")
	cmd.Flags().Int("bins", 0, "Histogram bin count (default 10)")
	cmd.Flags().Int("top", 0, "Number of CWE IDs to list (default 10)")

	return cmd
}

// analyze loads src and runs it through the pipeline.
func (a *app) analyze(ctx context.Context, src string) (*pipeline.Report, error) {
	data, err := source.NewLoader(a.cfg.Source, a.log).Load(ctx, src)
	if err != nil {
		return nil, err
	}

	rep, err := a.newPipeline(nil).RunBytes(ctx, data)
	if err != nil {
		return nil, describe(err)
	}

	return rep, nil
}

func (a *app) report(ctx context.Context, src, out string, sign bool) error {
	rep, err := a.analyze(ctx, src)
	if err != nil {
		return err
	}

	content := formatter.RenderReport(formatter.ReportInput{
		Title:    a.cfg.Server.Title,
		Source:   src,
		Summary:  rep.Summary,
		HighRisk: rep.HighRisk,
		Rejected: rep.Result.Rejected,
	})

	if sign {
		content = metadata.Sign(content, metadata.Metadata{
			Version:  Version,
			Source:   src,
			Records:  rep.Result.Table.Len(),
			Rejected: rep.Result.Rejected,
		}) + "\n"
	}

	if out == "" || out == "-" {
		_, err := fmt.Fprint(a.stdout, content)

		return err
	}

	if err := os.WriteFile(out, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	fmt.Fprintf(a.stderr, "✅ Report saved to: %s\n", out)

	return nil
}
