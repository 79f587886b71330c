package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"vulndash/internal/formatter"
)

// ErrUnformatted is returned by a dry run that found files needing changes.
var ErrUnformatted = errors.New("some reports are not formatted")

func newFmtCmd(a *app) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "fmt [path]",
		Short: "Align the tables of Markdown reports and re-sign them",
		Long: "Walks path (default .) and aligns every pipe table of each .md file by display width. " +
			"Signed reports get a fresh hash. Without --write, lists the files that would change.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}

			return a.formatReports(root, write)
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write changes to files (default: dry-run)")

	return cmd
}

func (a *app) formatReports(root string, write bool) error {
	var scanned, changed, failed int

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			fmt.Fprintf(a.stderr, "❌ Error accessing path %s: %v\n", path, err)

			failed++

			return nil
		}

		if d.IsDir() {
			// Skip .git and friends
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}

			return nil
		}

		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		scanned++

		wasChanged, procErr := formatFile(path, write)

		switch {
		case procErr != nil:
			fmt.Fprintf(a.stderr, "❌ Failed to process %s: %v\n", path, procErr)

			failed++
		case wasChanged && write:
			changed++

			fmt.Fprintf(a.stdout, "✅ Formatted: %s\n", path)
		case wasChanged:
			changed++

			fmt.Fprintf(a.stdout, "📝 Would format: %s\n", path)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", root, err)
	}

	fmt.Fprintf(a.stdout, "📈 Scanned: %d, changed: %d, errors: %d\n", scanned, changed, failed)

	if failed > 0 {
		return fmt.Errorf("%d files could not be formatted", failed)
	}

	if changed > 0 && !write {
		return ErrUnformatted
	}

	return nil
}

func formatFile(path string, write bool) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	original := string(content)

	formatted := formatter.FormatMarkdown(original)
	if !strings.HasSuffix(formatted, "\n") {
		formatted += "\n"
	}

	if formatted == original {
		return false, nil
	}

	if write {
		if err := os.WriteFile(path, []byte(formatted), 0644); err != nil {
			return false, err
		}
	}

	return true, nil
}
