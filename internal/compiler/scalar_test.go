package compiler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDateLiteral(t *testing.T) {
	require.NoError(t, validateDateLiteral("2024-01-31"))
	require.Error(t, validateDateLiteral("2024-02-30")) // no such calendar date
	require.Error(t, validateDateLiteral("2024-1-31"))
	require.Error(t, validateDateLiteral("not-a-date"))
}

func TestValidateTimestampLiteral(t *testing.T) {
	require.NoError(t, validateTimestampLiteral("2024-01-31T10:00:00"))
	require.NoError(t, validateTimestampLiteral("2024-01-31 10:00:00.123"))
	require.Error(t, validateTimestampLiteral("2024-01-31T25:00:00")) // hour out of range
	require.Error(t, validateTimestampLiteral("2024-01-31"))
}

func TestValidateUUIDLiteral(t *testing.T) {
	require.NoError(t, validateUUIDLiteral("550e8400-e29b-41d4-a716-446655440000"))
	require.Error(t, validateUUIDLiteral("not-a-uuid"))
	require.Error(t, validateUUIDLiteral("550e8400e29b41d4a716446655440000")) // missing dashes
}

func TestRenderScalarLiteral(t *testing.T) {
	require.Equal(t, "NULL", renderScalarLiteral(AnyScalar{Kind: ScalarNull}))
	require.Equal(t, "'it''s'", renderScalarLiteral(AnyScalar{Kind: ScalarString, Str: "it's"}))
	require.Equal(t, "1.5", renderScalarLiteral(AnyScalar{Kind: ScalarNumber, Num: 1.5}))
	require.Equal(t, "TRUE", renderScalarLiteral(AnyScalar{Kind: ScalarBoolean, Bool: true}))
	require.Equal(t, "FALSE", renderScalarLiteral(AnyScalar{Kind: ScalarBoolean, Bool: false}))
}

// TestAnyScalarMarshalJSON_RoundTrips verifies a CompileResult's Params
// round-trip through JSON in the same tagged-scalar shape ParseAnyScalar
// accepts.
func TestAnyScalarMarshalJSON_RoundTrips(t *testing.T) {
	cases := []AnyScalar{
		{Kind: ScalarNull},
		{Kind: ScalarString, Str: "hello"},
		{Kind: ScalarNumber, Num: 3.25},
		{Kind: ScalarBoolean, Bool: true},
		{Kind: ScalarDate, Str: "2024-01-31"},
		{Kind: ScalarTimestamp, Str: "2024-01-31T10:00:00"},
		{Kind: ScalarUUID, Str: "550e8400-e29b-41d4-a716-446655440000"},
		{Kind: ScalarJSONB, JSON: map[string]any{"k": "v"}},
	}

	for _, c := range cases {
		encoded, err := json.Marshal(c)
		require.NoError(t, err)

		back, err := ParseAnyScalar(encoded)
		require.NoError(t, err)
		require.Equal(t, c.Kind, back.Kind)
		switch c.Kind {
		case ScalarString, ScalarDate, ScalarTimestamp, ScalarUUID:
			require.Equal(t, c.Str, back.Str)
		case ScalarNumber:
			require.Equal(t, c.Num, back.Num)
		case ScalarBoolean:
			require.Equal(t, c.Bool, back.Bool)
		case ScalarJSONB:
			require.Equal(t, c.JSON, back.JSON)
		}
	}
}
