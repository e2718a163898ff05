package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRunCmd creates the 'run' subcommand, which performs one full
// crawl, compress and merge pass.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl the docs site and build the merged PDF",
		Long: `Starts from <base-url><docs-path>, renders every in-scope page to its own PDF
in the output directory, compresses those files and merges them into one
document. Per-page failures are logged and skipped; the command only fails
when the run cannot be set up.`,
		Annotations: map[string]string{needsApp: "true"},
		RunE:        runRunCommand,
	}

	flags := cmd.Flags()
	flags.String("base-url", "", "site origin, e.g. https://docs.example.com")
	flags.String("docs-path", "/", "path appended to the base url to form the seed")
	flags.String("output", "pdfsite", "directory for per-page and merged PDFs")
	flags.Int("workers", 4, "number of pool workers")
	flags.String("quality", "medium", "compression quality: low, medium or high")
	flags.String("run-id", "", "fixed run id (uuid); generated when empty")
	return cmd
}

func runRunCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	// cobra skips post-run hooks when RunE errors.
	defer appInstance.Close()

	summary, err := appInstance.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	if summary.Merged {
		fmt.Fprintln(cmd.OutOrStdout(), summary.MergedPath)
	}
	appInstance.Logger().Info("run command finished", zap.String("status", summary.Status))
	return nil
}
