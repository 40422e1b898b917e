package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCompileAggregation_DataTableGrouping codifies worked scenario S1:
// aggregation over a data-table-mode config groups and sums JSON fields.
func TestCompileAggregation_DataTableGrouping(t *testing.T) {
	cfg := dataTableSalesConfig(t)

	q, err := ParseAggregationQuery([]byte(`{
		"table": "sales",
		"groupBy": ["sales.region"],
		"aggregatedFields": {
			"total_sales": {"operator": "SUM", "field": "sales.amount"},
			"count": {"operator": "COUNT", "field": "*"}
		}
	}`))
	require.NoError(t, err)

	result, err := CompileAggregation(cfg, q)
	require.NoError(t, err)

	want := `SELECT sales.data->>'region' AS "region", SUM((sales.data->>'amount')::FLOAT) AS "total_sales", COUNT(*) AS "count" FROM raw_data AS "sales" GROUP BY sales.data->>'region'`
	require.Equal(t, want, result.SQL)
	require.Empty(t, result.Params)
}

// TestCompileAggregation_ConditionalArithmetic codifies worked scenario S2:
// an aggregated field whose expression is a function call over a $cond
// branch. The registry renders arithmetic functions as named SQL calls
// (MULTIPLY(a, b)), not infix operators, so the aggregated SQL nests a
// function call rather than "*" — the $cond -> single CASE WHEN shape and
// the premium-region parameter are what this test pins down.
func TestCompileAggregation_ConditionalArithmetic(t *testing.T) {
	cfg := dataTableSalesConfig(t)

	q, err := ParseAggregationQuery([]byte(`{
		"table": "sales",
		"aggregatedFields": {
			"adjusted_total": {
				"operator": "SUM",
				"field": {"$func": {"MULTIPLY": [
					{"$field": "sales.amount"},
					{"$cond": {"if": {"sales.region": "premium"}, "then": 1.2, "else": 1.0}}
				]}}
			}
		}
	}`))
	require.NoError(t, err)

	result, err := CompileAggregation(cfg, q)
	require.NoError(t, err)

	want := `SELECT SUM(MULTIPLY((sales.data->>'amount')::FLOAT, CASE WHEN sales.data->>'region' = $1 THEN 1.2 ELSE 1 END)) AS "adjusted_total" FROM raw_data AS "sales"`
	require.Equal(t, want, result.SQL)
	require.Equal(t, []AnyScalar{{Kind: ScalarString, Str: "premium"}}, result.Params)
}

// TestCompileAggregation_JSONPathGroupByAlias codifies worked scenario S3:
// grouping by a JSON-path field (non-data-table config) aliases the
// projection with the path rendered using "->" and forces ->> emission.
func TestCompileAggregation_JSONPathGroupByAlias(t *testing.T) {
	cfg := plainSalesConfig(t)

	q, err := ParseAggregationQuery([]byte(`{
		"table": "sales",
		"groupBy": ["sales.product_data->'category'"]
	}`))
	require.NoError(t, err)

	result, err := CompileAggregation(cfg, q)
	require.NoError(t, err)

	want := `SELECT sales.product_data->>'category' AS "product_data->category" FROM sales GROUP BY sales.product_data->>'category'`
	require.Equal(t, want, result.SQL)
}

func TestCompileAggregation_RequiresGroupByOrAggregatedField(t *testing.T) {
	cfg := plainSalesConfig(t)
	_, err := CompileAggregation(cfg, &AggregationQuery{Table: "sales"})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCompileAggregation_UnknownTable(t *testing.T) {
	cfg := plainSalesConfig(t)
	_, err := CompileAggregation(cfg, &AggregationQuery{Table: "ghost", GroupBy: []string{"ghost.x"}})
	require.ErrorIs(t, err, ErrTableNotAllowed)
}

func TestCompileAggregation_CountStarRequiresAllowStarOperator(t *testing.T) {
	cfg := plainSalesConfig(t)
	q := &AggregationQuery{
		Table:                "sales",
		AggregatedFields:     map[string]AggregatedFieldSpec{"total": {Operator: AggSum, FieldPath: "*"}},
		AggregatedFieldOrder: []string{"total"},
	}
	_, err := CompileAggregation(cfg, q)
	require.ErrorIs(t, err, ErrCountStarWithNonCount)
}

func TestCompileAggregation_SQLiteLowersStddevAndStringAgg(t *testing.T) {
	cfg := sqliteSalesConfig(t)
	q := &AggregationQuery{
		Table:                "sales",
		AggregatedFields:     map[string]AggregatedFieldSpec{"sd": {Operator: AggStddev, FieldPath: "sales.amount"}},
		AggregatedFieldOrder: []string{"sd"},
	}
	_, err := CompileAggregation(cfg, q)
	require.NoError(t, err, "STDDEV lowers to a closed-form expression under sqlite-minimal, it is not unsupported")

	q2 := &AggregationQuery{
		Table:                "sales",
		AggregatedFields:     map[string]AggregatedFieldSpec{"names": {Operator: AggStringAgg, FieldPath: "sales.region", Separator: strPtr("; ")}},
		AggregatedFieldOrder: []string{"names"},
	}
	result, err := CompileAggregation(cfg, q2)
	require.NoError(t, err)
	require.Contains(t, result.SQL, `STRING_AGG(sales.region, '; ')`)
}

func strPtr(s string) *string { return &s }
