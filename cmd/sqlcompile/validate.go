package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/markb/sqlcompile/internal/compiler"
	"github.com/markb/sqlcompile/internal/qconfig"
	"github.com/markb/sqlcompile/internal/qlog"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Compile a query document and report success or a structured error",
	Long: `Validate compiles a query document the same way "compile" does, but
prints only whether it succeeded and, on failure, the structured error
(kind, message, field, table) without printing SQL. Useful for CI checks since the
library has no execution step of its own.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("config", "", "Path to the Config JSON file (required)")
	validateCmd.Flags().String("query", "", "Path to the query-document JSON file (required)")
	validateCmd.MarkFlagRequired("config")
	validateCmd.MarkFlagRequired("query")
}

type validateReport struct {
	Valid   bool   `json:"valid"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
	Table   string `json:"table,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	initLoggingFromFlags(cmd)

	configPath, _ := cmd.Flags().GetString("config")
	queryPath, _ := cmd.Flags().GetString("query")

	cfg, err := qconfig.Load(configPath)
	if err != nil {
		return err
	}

	queryData, err := os.ReadFile(queryPath)
	if err != nil {
		return fmt.Errorf("reading query document %s: %w", queryPath, err)
	}

	_, compileErr := compileQueryDocument(cfg, queryData)

	report := validateReport{Valid: compileErr == nil}
	if compileErr != nil {
		report.Message = compileErr.Error()
		var ce *compiler.CompileError
		if errors.As(compileErr, &ce) {
			report.Field = ce.Field
			report.Table = ce.Table
			if ce.Kind != nil {
				report.Kind = ce.Kind.Error()
			}
		}
		qlog.Warn("validate found an invalid query document", "error", compileErr, "table", queryTableName(queryData))
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
