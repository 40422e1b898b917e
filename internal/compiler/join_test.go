package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmitJoin_CastsBothSidesToNativeType(t *testing.T) {
	cfg := plainSalesConfig(t)
	clause, err := EmitJoin(cfg, cfg.Dialect, "sales", "customers")
	require.NoError(t, err)
	require.Equal(t, `LEFT JOIN customers ON (sales.customer_id)::FLOAT = (customers.id)::FLOAT`, clause)
}

func TestEmitJoin_ReverseDirectionResolvesSameRelationship(t *testing.T) {
	cfg := plainSalesConfig(t)
	_, ok := cfg.RelationshipBetween("customers", "sales")
	require.True(t, ok)

	clause, err := EmitJoin(cfg, cfg.Dialect, "customers", "sales")
	require.NoError(t, err)
	require.Contains(t, clause, "LEFT JOIN sales ON")
}

func TestEmitJoin_NoRelationshipErrors(t *testing.T) {
	cfg := plainSalesConfig(t)
	_, err := EmitJoin(cfg, cfg.Dialect, "sales", "users")
	require.Error(t, err)
}

func TestEmitJoin_DataTableModeAliasesJoinedTable(t *testing.T) {
	cfg := mustNormalize(t, `{
		"dialect": "postgresql",
		"dataTable": {"table": "raw_data", "dataField": "data", "tableField": "table_name"},
		"tables": {
			"sales": {"allowedFields": [
				{"name": "customer_id", "type": "number", "nullable": true, "foreignKey": {"table": "customers", "field": "id"}}
			]},
			"customers": {"allowedFields": [
				{"name": "id", "type": "number", "nullable": false}
			]}
		}
	}`)
	clause, err := EmitJoin(cfg, cfg.Dialect, "sales", "customers")
	require.NoError(t, err)
	require.Equal(t, `LEFT JOIN raw_data AS "customers" ON (sales.data->>'customer_id')::FLOAT = (customers.data->>'id')::FLOAT`, clause)
}

func TestEmitJoin_SQLiteCastSyntax(t *testing.T) {
	cfg := sqliteSalesConfig(t)
	clause, err := EmitJoin(cfg, cfg.Dialect, "sales", "customers")
	require.NoError(t, err)
	require.Equal(t, `LEFT JOIN customers ON CAST(sales.customer_id AS REAL) = CAST(customers.id AS REAL)`, clause)
}
