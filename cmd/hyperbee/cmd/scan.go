package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Print every key-value pair in lexicographic key order",
	Long: `Scan walks the whole hyperbee index in ascending key order and
prints each key-value pair.

Example:
  hyperbee scan`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := treeFromContext(cmd)
		if err != nil {
			return err
		}

		stream, err := tree.CreateReadStream(cmd.Context())
		if err != nil {
			return fmt.Errorf("error starting scan: %w", err)
		}

		for {
			be, err := stream.Next(cmd.Context())
			if err != nil {
				return fmt.Errorf("error scanning: %w", err)
			}
			if be == nil {
				return nil
			}
			fmt.Printf("%s\t%s\n", be.Key(), be.Value())
		}
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
