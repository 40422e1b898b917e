package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpressionType_IsAbsent(t *testing.T) {
	require.True(t, ExpressionType("").IsAbsent())
	require.False(t, ExpressionType(FieldTypeNumber).IsAbsent())
	require.False(t, ExpressionTypeAny.IsAbsent())
}

func TestTableConfig_FieldByName(t *testing.T) {
	tc := TableConfig{AllowedFields: []Field{
		{Name: "id", Type: FieldTypeNumber},
		{Name: "region", Type: FieldTypeString},
	}}
	f, ok := tc.FieldByName("region")
	require.True(t, ok)
	require.Equal(t, FieldTypeString, f.Type)

	_, ok = tc.FieldByName("missing")
	require.False(t, ok)
}

func TestAnyScalar_FieldTypeOf(t *testing.T) {
	ft, ok := AnyScalar{Kind: ScalarString}.FieldTypeOf()
	require.True(t, ok)
	require.Equal(t, FieldTypeString, ft)

	ft, ok = AnyScalar{Kind: ScalarJSONB}.FieldTypeOf()
	require.True(t, ok)
	require.Equal(t, FieldTypeObject, ft)

	_, ok = AnyScalar{Kind: ScalarNull}.FieldTypeOf()
	require.False(t, ok)
}

func TestAnyScalar_IsNull(t *testing.T) {
	require.True(t, AnyScalar{Kind: ScalarNull}.IsNull())
	require.False(t, AnyScalar{Kind: ScalarNumber, Num: 0}.IsNull())
}

func TestParserState_AddParamNumbersSequentially(t *testing.T) {
	ps := newParserState(plainSalesConfig(t), "sales")
	require.Equal(t, 1, ps.addParam(numScalar(1)))
	require.Equal(t, 2, ps.addParam(numScalar(2)))
	require.Equal(t, 3, ps.addParam(numScalar(3)))
	require.Len(t, ps.Params, 3)
}

func TestConfig_RelationshipBetween_NotFound(t *testing.T) {
	cfg := plainSalesConfig(t)
	_, ok := cfg.RelationshipBetween("customers", "users")
	require.False(t, ok)
}
