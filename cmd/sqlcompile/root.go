package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "sqlcompile",
	Short:   "Compile whitelisted query documents into parameterized SQL",
	Long:    `sqlcompile compiles a JSON query document against a JSON config of whitelisted tables, fields, and relationships into parameterized SQL for PostgreSQL or a minimal SQLite dialect.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate("sqlcompile version {{.Version}}\n")
	rootCmd.PersistentFlags().String("log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Logging format (text, json)")
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
