package compiler

import (
	"regexp"
	"strings"
)

// MutationType distinguishes INSERT from UPDATE for default resolution
// (§4.11: "a field referencing the existing row is forbidden on insert").
type MutationType string

const (
	MutationInsert MutationType = "insert"
	MutationUpdate MutationType = "update"
)

// NewRowSentinel is the special table name a default expression uses to
// refer to the row currently being built, per §4.11.
const NewRowSentinel = "NEW_ROW"

// evalContext is the partial evaluator's per-call workspace (§4.11's
// "{ newRow, table, rootTable, fields, config, mutationType }").
type evalContext struct {
	Config    *Config
	Table     string
	RootTable string
	Mutation  MutationType
	Row       map[string]AnyScalar
}

// evalResult is either a concrete AnyScalar or a residual Expression — the
// glossary's "residual expression" that a later pass may still resolve.
type evalResult struct {
	Scalar AnyScalar
	Expr   Expression
}

func concreteResult(s AnyScalar) evalResult  { return evalResult{Scalar: s} }
func residualResult(e Expression) evalResult { return evalResult{Expr: e} }
func (r evalResult) isConcrete() bool        { return r.Expr == nil }

// condEvalResult mirrors evalResult for Condition evaluation: either a
// resolved boolean or a residual Condition.
type condEvalResult struct {
	Resolved bool
	Value    bool
	Residual Condition
}

// ResolveDefaults runs the fixed-point default resolver (§4.11) over one
// table's configured fields, given the values already supplied by the
// caller. It returns a fully concrete row or a CircularDefault error.
func ResolveDefaults(cfg *Config, table string, mutation MutationType, input map[string]AnyScalar) (map[string]AnyScalar, error) {
	tableConfig, ok := cfg.Tables[table]
	if !ok {
		return nil, errTableNotAllowed(table)
	}

	row := make(map[string]AnyScalar, len(input))
	for k, v := range input {
		row[k] = v
	}

	type pendingEntry struct {
		name string
		expr Expression
	}
	var pending []pendingEntry

	for _, f := range tableConfig.AllowedFields {
		if _, ok := row[f.Name]; ok {
			continue
		}
		if f.Default == nil {
			if f.Nullable {
				row[f.Name] = AnyScalar{Kind: ScalarNull}
				continue
			}
			return nil, newErr(ErrMissingDefault, "field %q has no default and is not nullable", f.Name)
		}
		pending = append(pending, pendingEntry{f.Name, f.Default})
	}

	ctx := &evalContext{Config: cfg, Table: table, RootTable: table, Mutation: mutation, Row: row}

	for len(pending) > 0 {
		var next []pendingEntry
		shrank := false
		for _, pe := range pending {
			result, err := evaluateExpression(ctx, pe.expr)
			if err != nil {
				return nil, err
			}
			if result.isConcrete() {
				row[pe.name] = result.Scalar
				shrank = true
			} else {
				next = append(next, pendingEntry{pe.name, result.Expr})
			}
		}
		pending = next
		if !shrank && len(pending) > 0 {
			names := make([]string, len(pending))
			for i, pe := range pending {
				names[i] = pe.name
			}
			return nil, errCircularDefault(names)
		}
	}

	return row, nil
}

// evaluateExpression implements the evaluateExpression contract of §4.11.
func evaluateExpression(ctx *evalContext, expr Expression) (evalResult, error) {
	switch e := expr.(type) {
	case *ScalarExpression:
		if err := validateScalarLiteral(e.Value); err != nil {
			return evalResult{}, err
		}
		return concreteResult(e.Value), nil

	case *VarExpression:
		val, ok := ctx.Config.Variables[e.Name]
		if !ok {
			return evalResult{}, errUnknownVariable(e.Name)
		}
		return concreteResult(val), nil

	case *FieldExpression:
		return evaluateFieldExpression(ctx, e)

	case *FuncExpression:
		return evaluateFuncExpression(ctx, e)

	case *CondExpression:
		return evaluateCondExpression(ctx, e)
	}
	return evalResult{}, newErr(ErrInvalidConfig, "unrecognized expression node")
}

func evaluateFieldExpression(ctx *evalContext, e *FieldExpression) (evalResult, error) {
	table, rest, hasDot := strings.Cut(e.Path, ".")
	if !hasDot {
		table, rest = ctx.RootTable, e.Path
	}

	base, segments, err := splitEvalFieldPath(rest)
	if err != nil {
		return evalResult{}, err
	}

	usesRow := table == NewRowSentinel || table == ctx.RootTable
	if table == ctx.RootTable && ctx.Mutation == MutationInsert {
		return evalResult{}, newErr(ErrForbiddenExistingRowOnInsert, "default for %s cannot reference the existing row on insert; use %s", e.Path, NewRowSentinel)
	}

	if !usesRow {
		if _, err := ResolveFieldPath(e.Path, ctx.RootTable, ctx.Config); err != nil {
			return evalResult{}, err
		}
		// No data source for another table's row at this layer; stays
		// residual until a later pass (or forever, surfacing CircularDefault).
		return residualResult(e), nil
	}

	rootConfig, ok := ctx.Config.Tables[ctx.RootTable]
	if !ok {
		return evalResult{}, errTableNotAllowed(ctx.RootTable)
	}
	fieldConfig, ok := rootConfig.FieldByName(base)
	if !ok {
		return evalResult{}, errFieldNotAllowed(ctx.RootTable, base)
	}
	if len(segments) > 0 && fieldConfig.Type != FieldTypeObject {
		return evalResult{}, newErr(ErrJSONAccessTypeError, "JSON access on non-object field %q", base)
	}

	val, ok := ctx.Row[base]
	if !ok {
		return residualResult(e), nil
	}
	if len(segments) == 0 {
		return concreteResult(val), nil
	}
	if val.Kind != ScalarJSONB {
		return evalResult{}, newErr(ErrJSONAccessTypeError, "JSON access into non-object field %q", base)
	}
	return concreteResult(evaluateJSONTraversal(val.JSON, segments)), nil
}

// splitEvalFieldPath splits the table-relative remainder of a field path
// into its base field name and JSON-access segments, reusing the JSON
// micro-parser grammar without requiring a configured object-typed field
// (NEW_ROW has no TableConfig to validate against).
func splitEvalFieldPath(rest string) (string, []string, error) {
	base, tail, hasArrow := strings.Cut(rest, "->")
	if !fieldNameRe.MatchString(base) {
		return "", nil, &CompileError{Kind: ErrFieldNotAllowed, Message: "invalid field name", Field: base}
	}
	if !hasArrow {
		return base, nil, nil
	}
	access, err := ParseJSONAccess("->" + tail)
	if err != nil {
		return "", nil, err
	}
	return base, access.Segments, nil
}

// evaluateJSONTraversal walks a decoded $jsonb payload by key, per §4.11:
// missing intermediate keys yield null; a primitive leaf returns itself; a
// nested object/array returns a fresh $jsonb wrapper.
func evaluateJSONTraversal(root any, segments []string) AnyScalar {
	cur := root
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return AnyScalar{Kind: ScalarNull}
		}
		next, present := m[seg]
		if !present {
			return AnyScalar{Kind: ScalarNull}
		}
		cur = next
	}
	switch v := cur.(type) {
	case nil:
		return AnyScalar{Kind: ScalarNull}
	case string:
		return AnyScalar{Kind: ScalarString, Str: v}
	case float64:
		return AnyScalar{Kind: ScalarNumber, Num: v}
	case bool:
		return AnyScalar{Kind: ScalarBoolean, Bool: v}
	case map[string]any, []any:
		return AnyScalar{Kind: ScalarJSONB, JSON: v}
	}
	return AnyScalar{Kind: ScalarNull}
}

func evaluateFuncExpression(ctx *evalContext, e *FuncExpression) (evalResult, error) {
	entry, ok := lookupFunction(e.Name)
	if !ok {
		return evalResult{}, errUnknownFunction(e.Name)
	}

	argResults := make([]evalResult, len(e.Args))
	anyResidual := false
	for i, arg := range e.Args {
		r, err := evaluateExpression(ctx, arg)
		if err != nil {
			return evalResult{}, err
		}
		argResults[i] = r
		if !r.isConcrete() {
			anyResidual = true
		}
	}

	if anyResidual {
		newArgs := make([]Expression, len(argResults))
		for i, r := range argResults {
			if r.isConcrete() {
				newArgs[i] = &ScalarExpression{Value: r.Scalar}
			} else {
				newArgs[i] = r.Expr
			}
		}
		return residualResult(&FuncExpression{Name: e.Name, Args: newArgs}), nil
	}

	if entry.JSEval == nil {
		return evalResult{}, newErr(ErrUnknownFunction, "function %s has no JS evaluator", e.Name)
	}
	scalars := make([]AnyScalar, len(argResults))
	for i, r := range argResults {
		scalars[i] = r.Scalar
	}
	out, err := entry.JSEval(scalars)
	if err != nil {
		return evalResult{}, err
	}
	return concreteResult(out), nil
}

func evaluateCondExpression(ctx *evalContext, e *CondExpression) (evalResult, error) {
	condResult, err := evaluateCondition(ctx, e.If)
	if err != nil {
		return evalResult{}, err
	}
	if condResult.Resolved {
		if condResult.Value {
			return evaluateExpression(ctx, e.Then)
		}
		return evaluateExpression(ctx, e.Else)
	}

	thenResult, err := evaluateExpression(ctx, e.Then)
	if err != nil {
		return evalResult{}, err
	}
	elseResult, err := evaluateExpression(ctx, e.Else)
	if err != nil {
		return evalResult{}, err
	}
	return residualResult(&CondExpression{
		If:   condResult.Residual,
		Then: exprOf(thenResult),
		Else: exprOf(elseResult),
	}), nil
}

func exprOf(r evalResult) Expression {
	if r.isConcrete() {
		return &ScalarExpression{Value: r.Scalar}
	}
	return r.Expr
}

// evaluateCondition implements the evaluateCondition contract of §4.11.
func evaluateCondition(ctx *evalContext, cond Condition) (condEvalResult, error) {
	switch c := cond.(type) {
	case *BoolCondition:
		return condEvalResult{Resolved: true, Value: c.Value}, nil

	case *NotCondition:
		sub, err := evaluateCondition(ctx, c.Child)
		if err != nil {
			return condEvalResult{}, err
		}
		if sub.Resolved {
			return condEvalResult{Resolved: true, Value: !sub.Value}, nil
		}
		return condEvalResult{Residual: &NotCondition{Child: sub.Residual}}, nil

	case *AndCondition:
		return evaluateLogical(ctx, c.Children, false)

	case *OrCondition:
		return evaluateLogical(ctx, c.Children, true)

	case *ExistsCondition:
		// No row/database access at this layer: always residual.
		return condEvalResult{Residual: c}, nil

	case *ExprCondition:
		r, err := evaluateExpression(ctx, c.Expr)
		if err != nil {
			return condEvalResult{}, err
		}
		if r.isConcrete() {
			if r.Scalar.Kind != ScalarBoolean {
				return condEvalResult{}, newErr(ErrConditionNotBoolean, "expression did not evaluate to a boolean")
			}
			return condEvalResult{Resolved: true, Value: r.Scalar.Bool}, nil
		}
		return condEvalResult{Residual: &ExprCondition{Expr: r.Expr}}, nil

	case *FieldConditionMap:
		return evaluateFieldConditionMap(ctx, c)
	}
	return condEvalResult{}, newErr(ErrInvalidConfig, "unrecognized condition node")
}

// evaluateLogical folds $and ($and: shortCircuitOn=false) and $or
// (shortCircuitOn=true) per §4.11: a child resolving to shortCircuitOn
// immediately decides the whole group; fully-resolved-but-neutral children
// are dropped; anything left over becomes a residual of the same shape.
func evaluateLogical(ctx *evalContext, children []Condition, shortCircuitOn bool) (condEvalResult, error) {
	var residual []Condition
	for _, child := range children {
		r, err := evaluateCondition(ctx, child)
		if err != nil {
			return condEvalResult{}, err
		}
		if r.Resolved {
			if r.Value == shortCircuitOn {
				return condEvalResult{Resolved: true, Value: shortCircuitOn}, nil
			}
			continue
		}
		residual = append(residual, r.Residual)
	}
	if len(residual) == 0 {
		return condEvalResult{Resolved: true, Value: !shortCircuitOn}, nil
	}
	if len(residual) == 1 {
		return condEvalResult{Residual: residual[0]}, nil
	}
	if shortCircuitOn {
		return condEvalResult{Residual: &OrCondition{Children: residual}}, nil
	}
	return condEvalResult{Residual: &AndCondition{Children: residual}}, nil
}

// evaluateFieldConditionMap implements the final paragraph of §4.11: each
// sub-operator is evaluated against the field's current (possibly still
// unresolved) value; any definite false aborts the whole map to false
// without evaluating the remaining entries — an ordinary early return, not
// a distinct control-flow channel (see DESIGN.md).
func evaluateFieldConditionMap(ctx *evalContext, m *FieldConditionMap) (condEvalResult, error) {
	var residualEntries []FieldConditionEntry
	for _, entry := range m.Entries {
		fieldResult, err := evaluateExpression(ctx, &FieldExpression{Path: entry.Field})
		if err != nil {
			return condEvalResult{}, err
		}
		if !fieldResult.isConcrete() {
			residualEntries = append(residualEntries, entry)
			continue
		}

		var residualOps []FieldOp
		for _, op := range entry.Cond.Ops {
			resolved, value, err := evaluateFieldOp(ctx, entry.Field, fieldResult.Scalar, op)
			if err != nil {
				return condEvalResult{}, err
			}
			if resolved && !value {
				return condEvalResult{Resolved: true, Value: false}, nil
			}
			if !resolved {
				residualOps = append(residualOps, op)
			}
		}
		if len(residualOps) > 0 {
			residualEntries = append(residualEntries, FieldConditionEntry{Field: entry.Field, Cond: FieldCondition{Ops: residualOps}})
		}
	}

	if len(residualEntries) == 0 {
		return condEvalResult{Resolved: true, Value: true}, nil
	}
	return condEvalResult{Residual: &FieldConditionMap{Entries: residualEntries}}, nil
}

func evaluateFieldOp(ctx *evalContext, field string, fieldVal AnyScalar, op FieldOp) (resolved bool, value bool, err error) {
	switch op.Op {
	case "$eq", "$ne":
		r, err := evaluateExpression(ctx, op.Value)
		if err != nil {
			return false, false, err
		}
		if !r.isConcrete() {
			return false, false, nil
		}
		if !fieldVal.IsNull() && !r.Scalar.IsNull() {
			fieldType, _ := fieldVal.FieldTypeOf()
			valType, _ := r.Scalar.FieldTypeOf()
			if fieldType != valType {
				return false, false, errComparisonTypeMismatch(op.Op, field, ExpressionType(fieldType), ExpressionType(valType))
			}
		}
		eq := scalarEquals(fieldVal, r.Scalar)
		if op.Op == "$ne" {
			eq = !eq
		}
		return true, eq, nil

	case "$gt", "$gte", "$lt", "$lte":
		r, err := evaluateExpression(ctx, op.Value)
		if err != nil {
			return false, false, err
		}
		if !r.isConcrete() {
			return false, false, nil
		}
		if fieldVal.IsNull() || r.Scalar.IsNull() {
			return true, false, nil
		}
		cmp := compareScalars(fieldVal, r.Scalar)
		switch op.Op {
		case "$gt":
			return true, cmp > 0, nil
		case "$gte":
			return true, cmp >= 0, nil
		case "$lt":
			return true, cmp < 0, nil
		default:
			return true, cmp <= 0, nil
		}

	case "$in", "$nin":
		allConcrete := true
		found := false
		for _, item := range op.Values {
			r, err := evaluateExpression(ctx, item)
			if err != nil {
				return false, false, err
			}
			if !r.isConcrete() {
				allConcrete = false
				continue
			}
			if scalarEquals(fieldVal, r.Scalar) {
				found = true
			}
		}
		if !allConcrete {
			return false, false, nil
		}
		if op.Op == "$nin" {
			found = !found
		}
		return true, found, nil

	case "$like", "$ilike", "$regex":
		r, err := evaluateExpression(ctx, op.Value)
		if err != nil {
			return false, false, err
		}
		if !r.isConcrete() {
			return false, false, nil
		}
		if fieldVal.IsNull() {
			return true, false, nil
		}
		re, err := compilePatternOp(op.Op, r.Scalar.Str)
		if err != nil {
			return false, false, err
		}
		return true, re.MatchString(fieldVal.Str), nil
	}
	return false, false, newErr(ErrInvalidConfig, "unrecognized field-condition operator %q", op.Op)
}

// compilePatternOp turns a $like/$ilike/$regex pattern into a Go regexp:
// SQL wildcards %/_ become .*/. for the LIKE family; $ilike is
// case-insensitive; $regex is used as-is.
func compilePatternOp(op, pattern string) (*regexp.Regexp, error) {
	if op == "$regex" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, newErr(ErrInvalidConfig, "invalid $regex pattern: %v", err)
		}
		return re, nil
	}
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	prefix := ""
	if op == "$ilike" {
		prefix = "(?i)"
	}
	re, err := regexp.Compile(prefix + sb.String())
	if err != nil {
		return nil, newErr(ErrInvalidConfig, "invalid %s pattern: %v", op, err)
	}
	return re, nil
}

func scalarEquals(a, b AnyScalar) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	switch a.Kind {
	case ScalarNumber:
		return a.Num == b.Num
	case ScalarBoolean:
		return a.Bool == b.Bool
	case ScalarJSONB:
		return jsonbToText(a.JSON) == jsonbToText(b.JSON)
	default:
		return a.Str == b.Str
	}
}

func compareScalars(a, b AnyScalar) int {
	if a.Kind == ScalarNumber {
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a.Str, b.Str)
}
