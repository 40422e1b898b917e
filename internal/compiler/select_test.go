package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSelectQuery_Minimal(t *testing.T) {
	q, err := ParseSelectQuery([]byte(`{"table": "sales", "fields": ["id", "amount"]}`))
	require.NoError(t, err)
	require.Equal(t, "sales", q.Table)
	require.Equal(t, []string{"id", "amount"}, q.Fields)
	require.Nil(t, q.Joins)
	require.Nil(t, q.Where)
}

func TestParseSelectQuery_RequiresTableAndFields(t *testing.T) {
	_, err := ParseSelectQuery([]byte(`{"table": "sales"}`))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCompileSelect_PlainFieldsNoCast(t *testing.T) {
	cfg := plainSalesConfig(t)
	result, err := CompileSelect(cfg, &SelectQuery{Table: "sales", Fields: []string{"id", "amount"}})
	require.NoError(t, err)
	require.Equal(t, `SELECT sales.id AS "id", sales.amount AS "amount" FROM sales`, result.SQL)
}

func TestCompileSelect_WithJoinAndWhere(t *testing.T) {
	cfg := plainSalesConfig(t)
	cond, err := ParseCondition([]byte(`{"region": "north"}`))
	require.NoError(t, err)

	result, err := CompileSelect(cfg, &SelectQuery{
		Table:  "sales",
		Fields: []string{"id", "customer_id"},
		Joins:  []string{"customers"},
		Where:  cond,
	})
	require.NoError(t, err)
	require.Equal(t,
		`SELECT sales.id AS "id", sales.customer_id AS "customer_id" FROM sales LEFT JOIN customers ON (sales.customer_id)::FLOAT = (customers.id)::FLOAT WHERE sales.region = $1`,
		result.SQL)
	require.Equal(t, []AnyScalar{{Kind: ScalarString, Str: "north"}}, result.Params)
}

func TestCompileSelect_DataTableModeAliasesPhysicalTable(t *testing.T) {
	cfg := dataTableSalesConfig(t)
	result, err := CompileSelect(cfg, &SelectQuery{Table: "sales", Fields: []string{"region"}})
	require.NoError(t, err)
	require.Equal(t, `SELECT sales.data->>'region' AS "region" FROM raw_data AS "sales"`, result.SQL)
}

func TestCompileSelect_UnknownTableRejected(t *testing.T) {
	cfg := plainSalesConfig(t)
	_, err := CompileSelect(cfg, &SelectQuery{Table: "ghosts", Fields: []string{"id"}})
	require.Error(t, err)
}

func TestCompileSelect_EmptyFieldsRejected(t *testing.T) {
	cfg := plainSalesConfig(t)
	_, err := CompileSelect(cfg, &SelectQuery{Table: "sales", Fields: nil})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
