package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kustomzone/hyperbee/pkg/api"
)

// readyCmd represents the ready command
var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "Check that the log is reachable and the header entry exists",
	Long: `Ready calls through to the same readiness check the HTTP server
runs at startup, without requiring a running server.

Example:
  hyperbee ready`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := treeFromContext(cmd)
		if err != nil {
			return err
		}

		if err := api.ReadyCheck(cmd.Context(), tree); err != nil {
			return fmt.Errorf("not ready: %w", err)
		}

		fmt.Println("ready")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(readyCmd)
}
