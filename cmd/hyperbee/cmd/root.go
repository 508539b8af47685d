/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kustomzone/hyperbee/pkg/btree"
	"github.com/kustomzone/hyperbee/pkg/config"
	"github.com/kustomzone/hyperbee/pkg/logstore"
	"github.com/kustomzone/hyperbee/pkg/logstore/filelog"
	"github.com/kustomzone/hyperbee/pkg/logstore/memlog"
	"github.com/kustomzone/hyperbee/pkg/logstore/pebblelog"
)

type treeCtxKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hyperbee",
	Short: "hyperbee - an embedded ordered key-value index",
	Long: `hyperbee is a copy-on-write B-tree index whose nodes live inside
the entries of an append-only log.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		backend, _ := cmd.Flags().GetString("backend")
		maxChildren, _ := cmd.Flags().GetInt("max-children")

		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}

		log, err := openLog(config.Backend(backend), dataDir)
		if err != nil {
			return fmt.Errorf("failed to open log: %w", err)
		}

		tree := btree.New(log, btree.WithMaxChildren(maxChildren))
		if err := tree.Ready(cmd.Context()); err != nil {
			return fmt.Errorf("failed to ready tree: %w", err)
		}

		cmd.SetContext(context.WithValue(cmd.Context(), treeCtxKey{}, tree))
		return nil
	},
}

// openLog constructs the logstore.Log backend named by backend, rooted at
// dataDir.
func openLog(backend config.Backend, dataDir string) (logstore.Log, error) {
	switch backend {
	case config.BackendMemory:
		return memlog.New(), nil
	case config.BackendPebble:
		return pebblelog.New(filepath.Join(dataDir, "hyperbee.pebble")), nil
	case config.BackendFile, "":
		return filelog.New(filelog.Config{
			FilePath: filepath.Join(dataDir, "hyperbee.log"),
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func treeFromContext(cmd *cobra.Command) (*btree.Tree, error) {
	tree, ok := cmd.Context().Value(treeCtxKey{}).(*btree.Tree)
	if !ok {
		return nil, fmt.Errorf("tree not found in command context")
	}
	return tree, nil
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("data-dir", "d", "./data", "Data directory for the log")
	rootCmd.PersistentFlags().String("backend", "file", "Log backend: memory, file, or pebble")
	rootCmd.PersistentFlags().Int("max-children", btree.DefaultMaxChildren, "Maximum children per B-tree node (M)")
}
