package compiler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeConfig_InlineForeignKeyFoldsIntoRelationships(t *testing.T) {
	cfg := plainSalesConfig(t)
	require.Len(t, cfg.Relationships, 1)
	rel := cfg.Relationships[0]
	require.Equal(t, "sales", rel.Table)
	require.Equal(t, "customer_id", rel.Field)
	require.Equal(t, "customers", rel.ToTable)
	require.Equal(t, "id", rel.ToField)

	salesCustomerID, ok := cfg.Tables["sales"].FieldByName("customer_id")
	require.True(t, ok)
	require.Nil(t, salesCustomerID.ForeignKey, "inline foreignKey is folded into Relationships, not kept on the field")
}

func TestNormalizeConfig_RejectsUnknownDialect(t *testing.T) {
	_, err := NormalizeConfig([]byte(`{"dialect": "mysql", "tables": {}}`))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNormalizeConfig_RejectsInvalidFieldName(t *testing.T) {
	_, err := NormalizeConfig([]byte(`{
		"dialect": "postgresql",
		"tables": {"sales": {"allowedFields": [{"name": "123field", "type": "number", "nullable": false}]}}
	}`))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNormalizeConfig_RejectsInvalidTableName(t *testing.T) {
	_, err := NormalizeConfig([]byte(`{
		"dialect": "postgresql",
		"tables": {"Sales": {"allowedFields": []}}
	}`))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNormalizeConfig_DecodesVariablesAndDataTable(t *testing.T) {
	cfg := mustNormalize(t, `{
		"dialect": "sqlite-minimal",
		"variables": {"active_status": "active", "uid": {"$uuid": "550e8400-e29b-41d4-a716-446655440000"}},
		"dataTable": {"table": "raw_data", "dataField": "data", "tableField": "table_name"},
		"tables": {"widgets": {"allowedFields": [{"name": "status", "type": "string", "nullable": false}]}}
	}`)
	require.Equal(t, AnyScalar{Kind: ScalarString, Str: "active"}, cfg.Variables["active_status"])
	require.Equal(t, ScalarUUID, cfg.Variables["uid"].Kind)
	require.NotNil(t, cfg.DataTable)
	require.Equal(t, "raw_data", cfg.DataTable.Table)
}

// TestNormalizeConfig_Idempotent is spec.md §8 quantified property 3:
// normalizing an already-normalized config (one that carries a top-level
// "relationships" key) is a no-op.
func TestNormalizeConfig_Idempotent(t *testing.T) {
	cfg := plainSalesConfig(t)

	encoded, err := json.Marshal(cfg)
	require.NoError(t, err)

	again, err := NormalizeConfig(encoded)
	require.NoError(t, err)

	require.Equal(t, cfg.Tables, again.Tables)
	require.Equal(t, cfg.Relationships, again.Relationships)
	require.Equal(t, cfg.Dialect, again.Dialect)
}

func TestNormalizeConfig_FieldDefaultParsedAsExpression(t *testing.T) {
	cfg := mustNormalize(t, `{
		"dialect": "postgresql",
		"tables": {"widgets": {"allowedFields": [
			{"name": "status", "type": "string", "nullable": false, "default": "pending"}
		]}}
	}`)
	f, ok := cfg.Tables["widgets"].FieldByName("status")
	require.True(t, ok)
	scalarExpr, ok := f.Default.(*ScalarExpression)
	require.True(t, ok)
	require.Equal(t, "pending", scalarExpr.Value.Str)
}
