package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/markb/sqlcompile/internal/compiler"
	"github.com/markb/sqlcompile/internal/qconfig"
	"github.com/markb/sqlcompile/internal/qlog"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile a query document into parameterized SQL",
	Long: `Compile reads a Config file and a query-document file and prints the
resulting { "sql": ..., "params": [...] } as JSON.

The query document is auto-detected as a SELECT-style query (it has a
"fields" key) or an aggregation query (it has "groupBy" and/or
"aggregatedFields").`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().String("config", "", "Path to the Config JSON file (required)")
	compileCmd.Flags().String("query", "", "Path to the query-document JSON file (required)")
	compileCmd.Flags().String("dialect", "", "Override the config's dialect (postgresql, sqlite-minimal)")
	compileCmd.MarkFlagRequired("config")
	compileCmd.MarkFlagRequired("query")
}

func initLoggingFromFlags(cmd *cobra.Command) {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	qlog.Init(os.Stderr, &qlog.Config{Level: level, Format: format, Buffer: 0})
}

func runCompile(cmd *cobra.Command, args []string) error {
	initLoggingFromFlags(cmd)

	configPath, _ := cmd.Flags().GetString("config")
	queryPath, _ := cmd.Flags().GetString("query")
	dialectOverride, _ := cmd.Flags().GetString("dialect")

	cfg, err := qconfig.Load(configPath)
	if err != nil {
		return err
	}
	if dialectOverride != "" {
		cfg.Dialect = compiler.Dialect(dialectOverride)
	}

	queryData, err := os.ReadFile(queryPath)
	if err != nil {
		return fmt.Errorf("reading query document %s: %w", queryPath, err)
	}

	table := queryTableName(queryData)

	result, err := compileQueryDocument(cfg, queryData)
	if err != nil {
		qlog.Error("compile failed", "error", err, "table", table)
		return err
	}

	qlog.Debug("compile succeeded", "params", len(result.Params), "table", table)
	return printResult(result)
}

// queryTableName extracts the top-level "table" key every query document
// shape carries, for tagging log lines so qlog.RecentLinesForTable can
// filter recent activity down to one table without parsing the document
// twice at the call site.
func queryTableName(data []byte) string {
	var probe struct {
		Table string `json:"table"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ""
	}
	return probe.Table
}

// compileQueryDocument dispatches a raw query document to the select or
// aggregation compiler based on which shape it carries.
func compileQueryDocument(cfg *compiler.Config, data []byte) (compiler.CompileResult, error) {
	shape, err := sniffQueryShape(data)
	if err != nil {
		return compiler.CompileResult{}, err
	}

	if shape == "aggregation" {
		q, err := compiler.ParseAggregationQuery(data)
		if err != nil {
			return compiler.CompileResult{}, err
		}
		return compiler.CompileAggregation(cfg, q)
	}

	q, err := compiler.ParseSelectQuery(data)
	if err != nil {
		return compiler.CompileResult{}, err
	}
	return compiler.CompileSelect(cfg, q)
}

func sniffQueryShape(data []byte) (string, error) {
	var probe struct {
		GroupBy          json.RawMessage `json:"groupBy"`
		AggregatedFields json.RawMessage `json:"aggregatedFields"`
		Fields           json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("query document must be a JSON object: %w", err)
	}
	if probe.GroupBy != nil || probe.AggregatedFields != nil {
		return "aggregation", nil
	}
	if probe.Fields != nil {
		return "select", nil
	}
	return "", fmt.Errorf("query document must have either \"fields\" or \"groupBy\"/\"aggregatedFields\"")
}

func printResult(result compiler.CompileResult) error {
	out, err := json.MarshalIndent(struct {
		SQL    string               `json:"sql"`
		Params []compiler.AnyScalar `json:"params"`
	}{SQL: result.SQL, Params: result.Params}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
