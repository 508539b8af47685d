package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a value for a key",
	Long: `Get a value for a key from the hyperbee index.

Example:
  hyperbee get mykey`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := treeFromContext(cmd)
		if err != nil {
			return err
		}

		be, err := tree.Get(cmd.Context(), []byte(args[0]))
		if err != nil {
			return fmt.Errorf("error getting value: %w", err)
		}
		if be == nil {
			return fmt.Errorf("key not found: %s", args[0])
		}

		fmt.Printf("%s\n", be.Value())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
