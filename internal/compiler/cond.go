package compiler

import (
	"fmt"
	"strings"
)

var comparisonSymbol = map[string]string{
	"$eq": "=", "$ne": "<>", "$gt": ">", "$gte": ">=", "$lt": "<", "$lte": "<=",
}

var stringOpKeyword = map[string]string{
	"$like": "LIKE", "$ilike": "ILIKE", "$regex": "~",
}

// CompileCondition is the public entry point for the Condition Compiler
// (§4.5).
func CompileCondition(ps *ParserState, dialect Dialect, cond Condition) (string, error) {
	return compileCondition(ps, dialect, cond)
}

func compileCondition(ps *ParserState, dialect Dialect, cond Condition) (string, error) {
	if err := ps.enterDepth(); err != nil {
		return "", err
	}
	defer ps.leaveDepth()

	switch c := cond.(type) {
	case *BoolCondition:
		if c.Value {
			return "TRUE", nil
		}
		return "FALSE", nil

	case *NotCondition:
		sub, err := compileCondition(ps, dialect, c.Child)
		if err != nil {
			return "", err
		}
		return "NOT (" + sub + ")", nil

	case *AndCondition:
		return compileLogical(ps, dialect, c.Children, "AND")

	case *OrCondition:
		return compileLogical(ps, dialect, c.Children, "OR")

	case *ExistsCondition:
		sub, err := compileCondition(ps, dialect, c.Condition)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s)", c.Table, sub), nil

	case *ExprCondition:
		if _, isScalar := c.Expr.(*ScalarExpression); isScalar {
			return "", newErr(ErrConditionNotBoolean, "a scalar expression cannot be used directly as a condition")
		}
		sql, t, err := compileExpression(ps, dialect, c.Expr, ExpressionType(FieldTypeBoolean))
		if err != nil {
			return "", err
		}
		if !t.IsAbsent() && t != ExpressionType(FieldTypeBoolean) {
			return "", newErr(ErrConditionNotBoolean, "expression type %s is not boolean", t)
		}
		return sql, nil

	case *FieldConditionMap:
		return compileFieldConditionMap(ps, dialect, c)
	}

	return "", newErr(ErrInvalidConfig, "unrecognized condition node")
}

func compileLogical(ps *ParserState, dialect Dialect, children []Condition, keyword string) (string, error) {
	if len(children) == 0 {
		return "", newErr(ErrEmptyLogicalArray, "empty $%s", strings.ToLower(keyword))
	}
	parts := make([]string, len(children))
	for i, child := range children {
		sql, err := compileCondition(ps, dialect, child)
		if err != nil {
			return "", err
		}
		parts[i] = sql
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " "+keyword+" ") + ")", nil
}

// compileFieldConditionMap implements §4.5 bullet 5 in terms of the
// field-condition sub-parser (§4.6): each map entry resolves its field once,
// compiles every operator against it, then joins all fragments (across every
// entry) with AND.
func compileFieldConditionMap(ps *ParserState, dialect Dialect, m *FieldConditionMap) (string, error) {
	var fragments []string

	for _, entry := range m.Entries {
		rf, err := ResolveFieldPath(entry.Field, ps.RootTable, ps.Config)
		if err != nil {
			return "", err
		}

		var unified ExpressionType
		var opFragments []string
		for _, op := range entry.Cond.Ops {
			frag, t, err := compileFieldOp(ps, dialect, entry.Field, rf.FieldConfig.Type, op)
			if err != nil {
				return "", err
			}
			if !t.IsAbsent() {
				if unified.IsAbsent() {
					unified = t
				} else if unified != t {
					return "", newErr(ErrMixedFieldConditionTypes, "field %s: mixed types across operators", entry.Field)
				}
			}
			opFragments = append(opFragments, frag)
		}

		fieldSQL := emitFieldWithCastTextMode(ps.Config, rf, dialect, unified)
		for _, frag := range opFragments {
			fragments = append(fragments, fieldSQL+" "+frag)
		}
	}

	if len(fragments) == 1 {
		return fragments[0], nil
	}
	for i, frag := range fragments {
		fragments[i] = "(" + frag + ")"
	}
	return strings.Join(fragments, " AND "), nil
}

// compileFieldOp implements §4.6 for one operator of one field-condition
// entry: it returns the fragment to append after the (already-cast) field
// SQL, e.g. "= $1" or "IS NULL" or "IN ($1, $2)".
func compileFieldOp(ps *ParserState, dialect Dialect, field string, fieldType FieldType, op FieldOp) (string, ExpressionType, error) {
	switch op.Op {
	case "$eq", "$ne", "$gt", "$gte", "$lt", "$lte":
		return compileComparisonOp(ps, dialect, field, fieldType, op)
	case "$in", "$nin":
		return compileArrayOp(ps, dialect, op)
	case "$like", "$ilike", "$regex":
		return compileStringOp(ps, dialect, field, fieldType, op)
	}
	return "", "", newErr(ErrInvalidConfig, "unrecognized field-condition operator %q", op.Op)
}

func compileComparisonOp(ps *ParserState, dialect Dialect, field string, fieldType FieldType, op FieldOp) (string, ExpressionType, error) {
	symbol := comparisonSymbol[op.Op]

	if se, ok := op.Value.(*ScalarExpression); ok {
		if se.Value.IsNull() {
			if op.Op != "$eq" && op.Op != "$ne" {
				return "", "", newErr(ErrOperatorNullMisuse, "operator %s does not accept null", op.Op)
			}
			if op.Op == "$eq" {
				return "IS NULL", ExpressionTypeAny, nil
			}
			return "IS NOT NULL", ExpressionTypeAny, nil
		}

		valType, _ := se.Value.FieldTypeOf()
		if fieldType != FieldTypeObject && valType != fieldType {
			return "", "", errComparisonTypeMismatch(op.Op, field, ExpressionType(fieldType), ExpressionType(valType))
		}
		valSQL, err := compileScalarValue(ps, dialect, se.Value)
		if err != nil {
			return "", "", err
		}
		return symbol + " " + valSQL, ExpressionType(valType), nil
	}

	sql, t, err := compileExpression(ps, dialect, op.Value, ExpressionType(fieldType))
	if err != nil {
		return "", "", err
	}
	return symbol + " " + sql, t, nil
}

func compileArrayOp(ps *ParserState, dialect Dialect, op FieldOp) (string, ExpressionType, error) {
	keyword := "IN"
	if op.Op == "$nin" {
		keyword = "NOT IN"
	}

	var unified ExpressionType
	parts := make([]string, len(op.Values))
	for i, item := range op.Values {
		sql, t, err := compileExpression(ps, dialect, item, ExpressionTypeAny)
		if err != nil {
			return "", "", err
		}
		if !t.IsAbsent() {
			if unified.IsAbsent() {
				unified = t
			} else if unified != t {
				return "", "", newErr(ErrMixedTypeArray, "array operator %s: mixed item types", op.Op)
			}
		}
		parts[i] = sql
	}
	return keyword + " (" + strings.Join(parts, ", ") + ")", unified, nil
}

func compileStringOp(ps *ParserState, dialect Dialect, field string, fieldType FieldType, op FieldOp) (string, ExpressionType, error) {
	if op.Op == "$regex" && dialect == DialectSQLiteMinimal {
		return "", "", newErr(ErrRegexUnsupported, "$regex is unsupported under dialect %s", dialect)
	}
	if fieldType != FieldTypeString && fieldType != FieldTypeObject {
		return "", "", errComparisonTypeMismatch(op.Op, field, ExpressionType(FieldTypeString), ExpressionType(fieldType))
	}
	keyword := stringOpKeyword[op.Op]

	if se, ok := op.Value.(*ScalarExpression); ok {
		if se.Value.IsNull() {
			return "", "", newErr(ErrOperatorNullMisuse, "operator %s does not accept null", op.Op)
		}
		if se.Value.Kind != ScalarString {
			return "", "", errComparisonTypeMismatch(op.Op, field, ExpressionType(FieldTypeString), scalarExpressionType(se.Value))
		}
		valSQL, err := compileScalarValue(ps, dialect, se.Value)
		if err != nil {
			return "", "", err
		}
		return keyword + " " + valSQL, ExpressionType(FieldTypeString), nil
	}

	sql, t, err := compileExpression(ps, dialect, op.Value, ExpressionType(FieldTypeString))
	if err != nil {
		return "", "", err
	}
	if !t.IsAbsent() && t != ExpressionType(FieldTypeString) {
		sql = emitCast(dialect, sql, FieldTypeString)
	}
	return keyword + " " + sql, ExpressionType(FieldTypeString), nil
}

// compileScalarValue renders a non-null scalar as a value: a numbered
// PostgreSQL parameter, or an inline quoted literal under SQLite-minimal
// (§4.6, §6).
func compileScalarValue(ps *ParserState, dialect Dialect, s AnyScalar) (string, error) {
	if err := validateScalarLiteral(s); err != nil {
		return "", err
	}
	if dialect == DialectPostgreSQL {
		n := ps.addParam(s)
		return fmt.Sprintf("$%d", n), nil
	}
	return renderScalarLiteral(s), nil
}
