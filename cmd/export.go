package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/directory-crawler/internal/store/export"
)

// newExportCmd creates the 'export' subcommand.
func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Writes stored profiles to a delimited file",
		Long: `Reads every record from the sqlite or postgres store and writes them,
ordered by class year and name, to a tab- or comma-separated file with a
header row. The file is replaced atomically.`,
		RunE: runExportCommand,
	}
	cmd.Flags().String("export-path", "", "output file (.csv for commas, anything else for tabs)")
	cmd.Flags().Bool("include-phone", false, "add the phone column")
	return cmd
}

func runExportCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	ctx := cmd.Context()

	src, err := appInstance.OpenRecords(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			appInstance.Logger().Warn("store close failed", zap.Error(err))
		}
	}()

	n, err := export.Write(ctx, src, cfg.Export.Path, export.Options{
		Delimiter:    cfg.ExportDelimiter(),
		IncludePhone: cfg.Crawler.IncludePhone,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", n, cfg.Export.Path)
	return nil
}
