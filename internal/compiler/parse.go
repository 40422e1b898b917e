package compiler

import (
	"encoding/json"
	"fmt"
)

// ParseAnyScalar decodes a JSON value into an AnyScalar: null, string,
// number, boolean, or a single-key tagged scalar ({$date}/{$timestamp}/
// {$uuid}/{$jsonb}).
func ParseAnyScalar(data []byte) (AnyScalar, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return AnyScalar{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch v := raw.(type) {
	case nil:
		return AnyScalar{Kind: ScalarNull}, nil
	case string:
		return AnyScalar{Kind: ScalarString, Str: v}, nil
	case float64:
		return AnyScalar{Kind: ScalarNumber, Num: v}, nil
	case bool:
		return AnyScalar{Kind: ScalarBoolean, Bool: v}, nil
	case map[string]any:
		obj, ok := decodeOrderedObject(data)
		if !ok || len(obj.keys) != 1 {
			return AnyScalar{}, &CompileError{Kind: ErrInvalidConfig, Message: "tagged scalar must be a single-key object"}
		}
		key := obj.keys[0]
		switch key {
		case "$date":
			s, err := decodeTagString(obj.get(key))
			if err != nil {
				return AnyScalar{}, err
			}
			return AnyScalar{Kind: ScalarDate, Str: s}, nil
		case "$timestamp":
			s, err := decodeTagString(obj.get(key))
			if err != nil {
				return AnyScalar{}, err
			}
			return AnyScalar{Kind: ScalarTimestamp, Str: s}, nil
		case "$uuid":
			s, err := decodeTagString(obj.get(key))
			if err != nil {
				return AnyScalar{}, err
			}
			return AnyScalar{Kind: ScalarUUID, Str: s}, nil
		case "$jsonb":
			var payload any
			if err := json.Unmarshal(obj.get(key), &payload); err != nil {
				return AnyScalar{}, fmt.Errorf("%w: %v", ErrInvalidScalarJSONB, err)
			}
			switch payload.(type) {
			case map[string]any, []any:
			default:
				return AnyScalar{}, &CompileError{Kind: ErrInvalidScalarJSONB, Message: "$jsonb payload must be a non-null JSON object or array"}
			}
			return AnyScalar{Kind: ScalarJSONB, JSON: payload}, nil
		default:
			return AnyScalar{}, &CompileError{Kind: ErrInvalidConfig, Message: fmt.Sprintf("unknown tagged scalar %q", key)}
		}
	default:
		return AnyScalar{}, &CompileError{Kind: ErrInvalidConfig, Message: "unsupported scalar shape"}
	}
}

func decodeTagString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &CompileError{Kind: ErrInvalidConfig, Message: "tagged scalar payload must be a string"}
	}
	return s, nil
}

// ParseExpression decodes the Expression grammar from spec.md §3:
// AnyScalar | {$field} | {$var} | {$func: {NAME: [args]}} |
// {$cond: {if, then, else}}.
func ParseExpression(data []byte) (Expression, error) {
	obj, isObject := decodeOrderedObject(data)
	if !isObject {
		scalar, err := ParseAnyScalar(data)
		if err != nil {
			return nil, err
		}
		return &ScalarExpression{Value: scalar}, nil
	}

	// A tagged scalar is itself expressed as a single-key object, handled by
	// ParseAnyScalar; dispatch to it when the key isn't one of the other
	// expression tags.
	if len(obj.keys) == 1 {
		key := obj.keys[0]
		switch key {
		case "$date", "$timestamp", "$uuid", "$jsonb":
			scalar, err := ParseAnyScalar(data)
			if err != nil {
				return nil, err
			}
			return &ScalarExpression{Value: scalar}, nil
		case "$field":
			path, err := decodeTagString(obj.get(key))
			if err != nil {
				return nil, err
			}
			return &FieldExpression{Path: path}, nil
		case "$var":
			name, err := decodeTagString(obj.get(key))
			if err != nil {
				return nil, err
			}
			return &VarExpression{Name: name}, nil
		case "$func":
			return parseFuncExpression(obj.get(key))
		case "$cond":
			return parseCondExpression(obj.get(key))
		}
	}
	return nil, invalidExpressionShape(data)
}

func parseFuncExpression(data json.RawMessage) (Expression, error) {
	obj, ok := decodeOrderedObject(data)
	if !ok || len(obj.keys) != 1 {
		return nil, &CompileError{Kind: ErrInvalidConfig, Message: "$func must contain exactly one function entry"}
	}
	name := obj.keys[0]
	var rawArgs []json.RawMessage
	if err := json.Unmarshal(obj.get(name), &rawArgs); err != nil {
		return nil, &CompileError{Kind: ErrInvalidConfig, Message: fmt.Sprintf("$func %s arguments must be an array", name)}
	}
	args := make([]Expression, 0, len(rawArgs))
	for _, raw := range rawArgs {
		arg, err := ParseExpression(raw)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return &FuncExpression{Name: name, Args: args}, nil
}

func parseCondExpression(data json.RawMessage) (Expression, error) {
	obj, ok := decodeOrderedObject(data)
	if !ok || !obj.has("if") || !obj.has("then") || !obj.has("else") {
		return nil, &CompileError{Kind: ErrInvalidConfig, Message: "$cond requires if, then, and else"}
	}
	ifCond, err := ParseCondition(obj.get("if"))
	if err != nil {
		return nil, err
	}
	thenExpr, err := ParseExpression(obj.get("then"))
	if err != nil {
		return nil, err
	}
	elseExpr, err := ParseExpression(obj.get("else"))
	if err != nil {
		return nil, err
	}
	return &CondExpression{If: ifCond, Then: thenExpr, Else: elseExpr}, nil
}

// fieldConditionOps is the closed set of operators accepted inside an
// explicit FieldCondition object (§3, §4.6).
var fieldConditionOps = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true,
	"$in": true, "$nin": true, "$like": true, "$ilike": true, "$regex": true,
}

// ParseCondition decodes the Condition grammar from spec.md §3: boolean |
// {$and} | {$or} | {$not} | {$exists} | an Expression yielding boolean |
// a field-name -> FieldCondition mapping.
func ParseCondition(data []byte) (Condition, error) {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		return &BoolCondition{Value: b}, nil
	}

	obj, ok := decodeOrderedObject(data)
	if !ok {
		return nil, &CompileError{Kind: ErrInvalidConfig, Message: "condition must be boolean or an object"}
	}

	if len(obj.keys) == 1 {
		switch obj.keys[0] {
		case "$not":
			child, err := ParseCondition(obj.get("$not"))
			if err != nil {
				return nil, err
			}
			return &NotCondition{Child: child}, nil
		case "$and":
			children, err := parseConditionArray(obj.get("$and"), "$and")
			if err != nil {
				return nil, err
			}
			return &AndCondition{Children: children}, nil
		case "$or":
			children, err := parseConditionArray(obj.get("$or"), "$or")
			if err != nil {
				return nil, err
			}
			return &OrCondition{Children: children}, nil
		case "$exists":
			return parseExistsCondition(obj.get("$exists"))
		}
		if exprTagKeys[obj.keys[0]] {
			expr, err := ParseExpression(data)
			if err != nil {
				return nil, err
			}
			return &ExprCondition{Expr: expr}, nil
		}
	}

	// Otherwise: a field-conditions map, each value parsed by the
	// field-condition sub-parser (§4.6), in declaration order.
	entries := make([]FieldConditionEntry, 0, len(obj.keys))
	for _, key := range obj.keys {
		fc, err := parseFieldCondition(obj.get(key))
		if err != nil {
			return nil, err
		}
		entries = append(entries, FieldConditionEntry{Field: key, Cond: *fc})
	}
	return &FieldConditionMap{Entries: entries}, nil
}

func parseConditionArray(data json.RawMessage, name string) ([]Condition, error) {
	var rawItems []json.RawMessage
	if err := json.Unmarshal(data, &rawItems); err != nil {
		return nil, &CompileError{Kind: ErrInvalidConfig, Message: fmt.Sprintf("%s must be an array", name)}
	}
	if len(rawItems) == 0 {
		return nil, &CompileError{Kind: ErrEmptyLogicalArray, Message: fmt.Sprintf("%s must be non-empty", name), Operator: name}
	}
	out := make([]Condition, 0, len(rawItems))
	for _, raw := range rawItems {
		c, err := ParseCondition(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func parseExistsCondition(data json.RawMessage) (Condition, error) {
	obj, ok := decodeOrderedObject(data)
	if !ok || !obj.has("table") || !obj.has("condition") {
		return nil, &CompileError{Kind: ErrInvalidConfig, Message: "$exists requires table and condition"}
	}
	var table string
	if err := json.Unmarshal(obj.get("table"), &table); err != nil {
		return nil, &CompileError{Kind: ErrInvalidConfig, Message: "$exists.table must be a string"}
	}
	sub, err := ParseCondition(obj.get("condition"))
	if err != nil {
		return nil, err
	}
	return &ExistsCondition{Table: table, Condition: sub}, nil
}

func parseFieldCondition(data json.RawMessage) (*FieldCondition, error) {
	obj, isObject := decodeOrderedObject(data)
	if isObject {
		anyOpKey := false
		for _, k := range obj.keys {
			if fieldConditionOps[k] {
				anyOpKey = true
				break
			}
		}
		if anyOpKey {
			ops := make([]FieldOp, 0, len(obj.keys))
			for _, key := range obj.keys {
				if !fieldConditionOps[key] {
					return nil, &CompileError{Kind: ErrInvalidConfig, Message: fmt.Sprintf("unknown field condition operator %q", key)}
				}
				if key == "$in" || key == "$nin" {
					var rawItems []json.RawMessage
					if err := json.Unmarshal(obj.get(key), &rawItems); err != nil {
						return nil, &CompileError{Kind: ErrInvalidConfig, Message: fmt.Sprintf("%s must be an array", key)}
					}
					if len(rawItems) == 0 {
						return nil, &CompileError{Kind: ErrEmptyArrayOperator, Message: fmt.Sprintf("%s must be non-empty", key), Operator: key}
					}
					values := make([]Expression, 0, len(rawItems))
					for _, raw := range rawItems {
						v, err := ParseExpression(raw)
						if err != nil {
							return nil, err
						}
						values = append(values, v)
					}
					ops = append(ops, FieldOp{Op: key, Values: values})
					continue
				}
				v, err := ParseExpression(obj.get(key))
				if err != nil {
					return nil, err
				}
				ops = append(ops, FieldOp{Op: key, Value: v})
			}
			return &FieldCondition{Ops: ops}, nil
		}
	}
	// Implicit equality: bare scalar/tagged scalar/expression.
	expr, err := ParseExpression(data)
	if err != nil {
		return nil, err
	}
	return &FieldCondition{Ops: []FieldOp{{Op: "$eq", Value: expr}}}, nil
}

// ParseAggregatedFieldSpec decodes one { operator, field[, separator] }
// entry of AggregationQuery.AggregatedFields. field may be the string "*" or
// any other plain field path (string), or an Expression object.
func ParseAggregatedFieldSpec(data []byte) (AggregatedFieldSpec, error) {
	obj, ok := decodeOrderedObject(data)
	if !ok || !obj.has("operator") || !obj.has("field") {
		return AggregatedFieldSpec{}, &CompileError{Kind: ErrInvalidConfig, Message: "aggregated field requires operator and field"}
	}
	var op string
	if err := json.Unmarshal(obj.get("operator"), &op); err != nil {
		return AggregatedFieldSpec{}, &CompileError{Kind: ErrInvalidConfig, Message: "operator must be a string"}
	}

	spec := AggregatedFieldSpec{Operator: AggregationOp(op)}

	var asPath string
	if err := json.Unmarshal(obj.get("field"), &asPath); err == nil {
		spec.FieldPath = asPath
	} else {
		expr, err := ParseExpression(obj.get("field"))
		if err != nil {
			return AggregatedFieldSpec{}, err
		}
		spec.FieldExpr = expr
	}

	if obj.has("separator") {
		var sep string
		if err := json.Unmarshal(obj.get("separator"), &sep); err != nil {
			return AggregatedFieldSpec{}, &CompileError{Kind: ErrInvalidConfig, Message: "separator must be a string"}
		}
		spec.Separator = &sep
	}
	return spec, nil
}

// ParseAggregationQuery decodes a whole AggregationQuery document.
func ParseAggregationQuery(data []byte) (*AggregationQuery, error) {
	obj, ok := decodeOrderedObject(data)
	if !ok || !obj.has("table") {
		return nil, &CompileError{Kind: ErrInvalidConfig, Message: "aggregation query requires table"}
	}
	var table string
	if err := json.Unmarshal(obj.get("table"), &table); err != nil {
		return nil, &CompileError{Kind: ErrInvalidConfig, Message: "table must be a string"}
	}

	var groupBy []string
	if obj.has("groupBy") {
		if err := json.Unmarshal(obj.get("groupBy"), &groupBy); err != nil {
			return nil, &CompileError{Kind: ErrInvalidConfig, Message: "groupBy must be an array of strings"}
		}
	}

	aggregated := make(map[string]AggregatedFieldSpec)
	var order []string
	if obj.has("aggregatedFields") {
		fieldsObj, ok := decodeOrderedObject(obj.get("aggregatedFields"))
		if !ok {
			return nil, &CompileError{Kind: ErrInvalidConfig, Message: "aggregatedFields must be an object"}
		}
		for _, alias := range fieldsObj.keys {
			spec, err := ParseAggregatedFieldSpec(fieldsObj.get(alias))
			if err != nil {
				return nil, err
			}
			aggregated[alias] = spec
			order = append(order, alias)
		}
	}

	if len(groupBy) == 0 && len(aggregated) == 0 {
		return nil, &CompileError{Kind: ErrInvalidConfig, Message: "aggregation query needs at least one groupBy entry or aggregated field"}
	}

	return &AggregationQuery{Table: table, GroupBy: groupBy, AggregatedFields: aggregated, AggregatedFieldOrder: order}, nil
}
