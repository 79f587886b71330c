package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vulndash/pkg/metadata"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <report.md>",
		Short: "Check the metadata hash of a signed report",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.verify(args[0])
		},
	}
}

func (a *app) verify(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}

	meta, err := metadata.Verify(string(content))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Fprintf(a.stdout, "✅ %s verified (records: %d, rejected: %d, generated: %s)\n",
		path, meta.Records, meta.Rejected, meta.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	return nil
}
