package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRegistry_SQLiteLowering codifies worked scenario S4: the same function
// registry lowers date/time functions to SQLite-minimal equivalents and
// rejects functions with no SQLite-minimal equivalent.
func TestRegistry_SQLiteLowering(t *testing.T) {
	cfg := sqliteSalesConfig(t)
	ps := newParserState(cfg, "sales")

	sql, typ, err := CompileExpression(ps, cfg.Dialect, &FuncExpression{Name: "NOW"})
	require.NoError(t, err)
	require.Equal(t, "DATETIME('now','subsec')", sql)
	require.Equal(t, ExpressionType(FieldTypeDatetime), typ)

	sql, _, err = CompileExpression(ps, cfg.Dialect, &FuncExpression{
		Name: "EXTRACT_YEAR",
		Args: []Expression{&FieldExpression{Path: "sales.order_date"}},
	})
	require.NoError(t, err)
	require.Equal(t, "CAST(STRFTIME('%Y', sales.order_date) AS INTEGER)", sql)

	_, _, err = CompileExpression(ps, cfg.Dialect, &FuncExpression{Name: "GEN_RANDOM_UUID"})
	require.ErrorIs(t, err, ErrDialectUnsupportedFunction)
}

func TestRegistry_PostgresDefaults(t *testing.T) {
	cfg := plainSalesConfig(t)
	ps := newParserState(cfg, "sales")

	sql, _, err := CompileExpression(ps, cfg.Dialect, &FuncExpression{Name: "NOW"})
	require.NoError(t, err)
	require.Equal(t, "NOW()", sql)

	sql, _, err = CompileExpression(ps, cfg.Dialect, &FuncExpression{
		Name: "EXTRACT_YEAR",
		Args: []Expression{&FieldExpression{Path: "sales.order_date"}},
	})
	require.NoError(t, err)
	require.Equal(t, "EXTRACT(YEAR FROM sales.order_date)", sql)

	sql, typ, err := CompileExpression(ps, cfg.Dialect, &FuncExpression{Name: "GEN_RANDOM_UUID"})
	require.NoError(t, err)
	require.Equal(t, "GEN_RANDOM_UUID()", sql)
	require.Equal(t, ExpressionType(FieldTypeUUID), typ)
}

func TestRegistry_UnknownFunction(t *testing.T) {
	cfg := plainSalesConfig(t)
	ps := newParserState(cfg, "sales")
	_, _, err := CompileExpression(ps, cfg.Dialect, &FuncExpression{Name: "NOT_A_FUNCTION"})
	require.ErrorIs(t, err, ErrUnknownFunction)
}

func TestRegistry_ArgumentCountMismatch(t *testing.T) {
	cfg := plainSalesConfig(t)
	ps := newParserState(cfg, "sales")
	_, _, err := CompileExpression(ps, cfg.Dialect, &FuncExpression{
		Name: "ADD",
		Args: []Expression{&ScalarExpression{Value: AnyScalar{Kind: ScalarNumber, Num: 1}}},
	})
	require.ErrorIs(t, err, ErrArgumentCount)
}

func TestRegistry_VariadicConcat(t *testing.T) {
	cfg := plainSalesConfig(t)
	ps := newParserState(cfg, "sales")
	sql, typ, err := CompileExpression(ps, cfg.Dialect, &FuncExpression{
		Name: "CONCAT",
		Args: []Expression{
			&ScalarExpression{Value: AnyScalar{Kind: ScalarString, Str: "a"}},
			&ScalarExpression{Value: AnyScalar{Kind: ScalarString, Str: "b"}},
			&ScalarExpression{Value: AnyScalar{Kind: ScalarString, Str: "c"}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "CONCAT('a', 'b', 'c')", sql)
	require.Equal(t, ExpressionType(FieldTypeString), typ)
}

func TestListFunctionsAndAggregations_Sorted(t *testing.T) {
	fns := ListFunctions()
	require.NotEmpty(t, fns)
	for i := 1; i < len(fns); i++ {
		require.LessOrEqual(t, fns[i-1].Name, fns[i].Name)
	}

	aggs := ListAggregations()
	require.NotEmpty(t, aggs)
	for i := 1; i < len(aggs); i++ {
		require.LessOrEqual(t, aggs[i-1].Operator, aggs[i].Operator)
	}
}
