package main

import (
	"encoding/json"
	"fmt"

	"github.com/markb/sqlcompile/internal/compiler"
	"github.com/spf13/cobra"
)

var explainRegistryCmd = &cobra.Command{
	Use:   "explain-registry",
	Short: "Dump the function and aggregation registries as JSON",
	Long: `explain-registry is a read-only projection of the compiler's function
and aggregation registries (name, argument types, variadic, dialect
support) -- useful for a consumer embedding the library that has no other
way to see what's registered.`,
	RunE: runExplainRegistry,
}

func init() {
	rootCmd.AddCommand(explainRegistryCmd)
}

func runExplainRegistry(cmd *cobra.Command, args []string) error {
	initLoggingFromFlags(cmd)

	out, err := json.MarshalIndent(struct {
		Functions    []compiler.FunctionInfo    `json:"functions"`
		Aggregations []compiler.AggregationInfo `json:"aggregations"`
	}{
		Functions:    compiler.ListFunctions(),
		Aggregations: compiler.ListAggregations(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
