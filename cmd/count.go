package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCountCmd creates the 'count' subcommand.
func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Prints the number of stored profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			st, err := appInstance.OpenCounter(cmd.Context())
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() {
				if err := st.Close(); err != nil {
					appInstance.Logger().Warn("store close failed", zap.Error(err))
				}
			}()
			n, err := st.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}
