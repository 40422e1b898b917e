package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveFieldPath_DefaultsToRootTable(t *testing.T) {
	cfg := plainSalesConfig(t)
	rf, err := ResolveFieldPath("amount", "sales", cfg)
	require.NoError(t, err)
	require.Equal(t, "sales", rf.Table)
	require.Equal(t, "amount", rf.Field)
	require.False(t, rf.HasJSONAccess)
}

func TestResolveFieldPath_QualifiedTable(t *testing.T) {
	cfg := plainSalesConfig(t)
	rf, err := ResolveFieldPath("customers.name", "sales", cfg)
	require.NoError(t, err)
	require.Equal(t, "customers", rf.Table)
	require.Equal(t, "name", rf.Field)
}

func TestResolveFieldPath_UnknownTable(t *testing.T) {
	cfg := plainSalesConfig(t)
	_, err := ResolveFieldPath("ghost.x", "sales", cfg)
	require.ErrorIs(t, err, ErrTableNotAllowed)
}

func TestResolveFieldPath_UnknownField(t *testing.T) {
	cfg := plainSalesConfig(t)
	_, err := ResolveFieldPath("sales.ghost_field", "sales", cfg)
	require.ErrorIs(t, err, ErrFieldNotAllowed)
}

// TestResolveFieldPath_InvalidPathRejection codifies worked scenario S6.
func TestResolveFieldPath_InvalidPathRejection(t *testing.T) {
	cfg := plainSalesConfig(t)

	t.Run("json access on non-object field", func(t *testing.T) {
		_, err := ResolveFieldPath("users.name->foo", "users", cfg)
		require.ErrorIs(t, err, ErrJSONAccessTypeError)
	})

	t.Run("field name starting with a digit", func(t *testing.T) {
		_, err := ResolveFieldPath("users.123field", "users", cfg)
		require.ErrorIs(t, err, ErrFieldNotAllowed)
	})

	t.Run("empty quoted json segment", func(t *testing.T) {
		_, err := ResolveFieldPath("users.metadata->''", "users", cfg)
		require.ErrorIs(t, err, ErrInvalidJSONAccessFormat)
	})
}

func TestResolveFieldPath_JSONAccessOnObjectField(t *testing.T) {
	cfg := plainSalesConfig(t)
	rf, err := ResolveFieldPath("sales.product_data->category", "sales", cfg)
	require.NoError(t, err)
	require.True(t, rf.HasJSONAccess)
	require.Equal(t, []string{"category"}, rf.JSONAccess)
	require.False(t, rf.JSONExtractText)
}

func TestConfig_RelationshipBetween_EitherDirection(t *testing.T) {
	cfg := plainSalesConfig(t)

	rel, ok := cfg.RelationshipBetween("sales", "customers")
	require.True(t, ok)
	require.Equal(t, "customer_id", rel.Field)
	require.Equal(t, "id", rel.ToField)

	relRev, ok := cfg.RelationshipBetween("customers", "sales")
	require.True(t, ok)
	require.Equal(t, "customers", relRev.Table)
	require.Equal(t, "id", relRev.Field)
	require.Equal(t, "sales", relRev.ToTable)
	require.Equal(t, "customer_id", relRev.ToField)
}
