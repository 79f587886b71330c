package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:     "export <file|url|->",
		Short:   "Write the high-risk vulnerabilities as CSV",
		Example: "vulndash export vulnerabilities.json --threshold 9",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.export(cmd.Context(), args[0], out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, - for stdout (default export.filename)")
	cmd.Flags().Float64("threshold", 0, "High-risk CVSS threshold (default 7.0)")

	return cmd
}

func (a *app) export(ctx context.Context, src, out string) error {
	rep, err := a.analyze(ctx, src)
	if err != nil {
		return err
	}

	if out == "-" {
		_, err := a.stdout.Write(rep.CSV)

		return err
	}

	if out == "" {
		out = a.cfg.Export.Filename
	}

	if err := os.WriteFile(out, rep.CSV, 0644); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}

	fmt.Fprintf(a.stderr, "📥 %d high-risk vulnerabilities (CVSS ≥ %g) written to: %s\n",
		rep.HighRisk.Len(), rep.Summary.Threshold, out)

	return nil
}
