package compiler

import (
	"encoding/json"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// timestampRe accepts "YYYY-MM-DD[T ]HH:MM:SS[.ffffff]"; the regexp pins the
// lexical shape (separator, 1-6 fractional digits), and time.Parse plus a
// round-trip re-format below reject out-of-range or calendar-invalid values.
var timestampRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d{1,6})?$`)

var uuidDashedRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// validateDateLiteral checks s is a real calendar date in YYYY-MM-DD form.
func validateDateLiteral(s string) error {
	t, err := time.Parse("2006-01-02", s)
	if err != nil || t.Format("2006-01-02") != s {
		return &CompileError{Kind: ErrInvalidScalarDate, Message: "not a valid calendar date", Got: s}
	}
	return nil
}

// validateTimestampLiteral checks s is a real calendar timestamp, accepting
// either a 'T' or a space as the date/time separator and 0-6 fractional
// digits.
func validateTimestampLiteral(s string) error {
	m := timestampRe.FindStringSubmatch(s)
	if m == nil {
		return &CompileError{Kind: ErrInvalidScalarTimestamp, Message: "not a valid timestamp format", Got: s}
	}
	sep := byte('T')
	if s[10] == ' ' {
		sep = ' '
	}
	layout := "2006-01-02" + string(sep) + "15:04:05"
	if m[1] != "" {
		frac := "."
		for range m[1][1:] {
			frac += "0"
		}
		layout += frac
	}
	t, err := time.Parse(layout, s)
	if err != nil || t.Format(layout) != s {
		return &CompileError{Kind: ErrInvalidScalarTimestamp, Message: "not a valid calendar timestamp", Got: s}
	}
	return nil
}

// validateUUIDLiteral checks s is a dashed RFC 4122 UUID with version 1-5.
func validateUUIDLiteral(s string) error {
	if !uuidDashedRe.MatchString(s) {
		return &CompileError{Kind: ErrInvalidScalarUUID, Message: "not a dashed RFC 4122 UUID", Got: s}
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return &CompileError{Kind: ErrInvalidScalarUUID, Message: "not a valid UUID", Got: s}
	}
	if v := int(u.Version()); v < 1 || v > 5 {
		return &CompileError{Kind: ErrInvalidScalarUUID, Message: "UUID version must be 1-5", Got: s}
	}
	return nil
}

// validateScalarLiteral re-runs the tagged-scalar format checks (§4.1/§4.4):
// NormalizeConfig and ParseAnyScalar only check JSON shape, so the format
// itself is validated once, here, at the point a scalar is actually compiled.
func validateScalarLiteral(s AnyScalar) error {
	switch s.Kind {
	case ScalarDate:
		return validateDateLiteral(s.Str)
	case ScalarTimestamp:
		return validateTimestampLiteral(s.Str)
	case ScalarUUID:
		return validateUUIDLiteral(s.Str)
	}
	return nil
}

// renderScalarLiteral renders a validated AnyScalar as an inline SQL literal
// (§4.4 "Scalar primitive"): null, single-quoted string/date/timestamp/uuid,
// decimal number, or TRUE/FALSE.
func renderScalarLiteral(s AnyScalar) string {
	switch s.Kind {
	case ScalarNull:
		return "NULL"
	case ScalarString, ScalarDate, ScalarTimestamp, ScalarUUID:
		return quoteStringLiteral(s.Str)
	case ScalarNumber:
		return formatNumber(s.Num)
	case ScalarBoolean:
		if s.Bool {
			return "TRUE"
		}
		return "FALSE"
	case ScalarJSONB:
		return quoteStringLiteral(jsonbToText(s.JSON))
	}
	return "NULL"
}

// formatNumber renders a float64 the way the spec's worked examples do: the
// shortest decimal that round-trips, with no trailing ".0" (1 -> "1", 1.2 ->
// "1.2").
func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// jsonbToText re-serializes a decoded JSONB payload for inline SQL literal
// emission; the error path is unreachable because the payload came from
// encoding/json in the first place.
func jsonbToText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// MarshalJSON re-emits an AnyScalar in the same tagged-scalar shape
// ParseAnyScalar accepts, so a CompileResult's Params round-trip through
// JSON the way a caller would have written them.
func (s AnyScalar) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case ScalarNull:
		return []byte("null"), nil
	case ScalarString:
		return json.Marshal(s.Str)
	case ScalarNumber:
		return json.Marshal(s.Num)
	case ScalarBoolean:
		return json.Marshal(s.Bool)
	case ScalarDate:
		return json.Marshal(map[string]string{"$date": s.Str})
	case ScalarTimestamp:
		return json.Marshal(map[string]string{"$timestamp": s.Str})
	case ScalarUUID:
		return json.Marshal(map[string]string{"$uuid": s.Str})
	case ScalarJSONB:
		return json.Marshal(map[string]any{"$jsonb": s.JSON})
	}
	return []byte("null"), nil
}

func scalarExpressionType(s AnyScalar) ExpressionType {
	if s.IsNull() {
		return ExpressionTypeAny
	}
	ft, _ := s.FieldTypeOf()
	return ExpressionType(ft)
}
