// Package cmd provides the ragcored CLI commands: serve, config, and
// session.
package cmd

import (
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var configPath string

// NewRootCmd builds the ragcored root command and wires its subcommands.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "ragcored",
		Short:   "Hybrid retrieval-augmented answering core",
		Long:    "ragcored serves session-scoped, grounded question answering over a hybrid dense/lexical document index.",
		Version: version,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML configuration file (defaults applied if omitted)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newSessionCmd())

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
