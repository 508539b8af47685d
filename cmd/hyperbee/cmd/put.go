package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// putCmd represents the put command
var putCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Put a key-value pair",
	Long: `Put a key-value pair into the hyperbee index.

Example:
  hyperbee put mykey myvalue`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := treeFromContext(cmd)
		if err != nil {
			return err
		}

		if err := tree.Put(cmd.Context(), []byte(args[0]), []byte(args[1])); err != nil {
			return fmt.Errorf("error putting key-value: %w", err)
		}

		fmt.Printf("put %q = %q\n", args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
}
