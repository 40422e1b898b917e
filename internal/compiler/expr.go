package compiler

import "fmt"

// CompileExpression is the public entry point for the Expression Compiler
// (§4.4): it walks expr and renders the SQL fragment for dialect, with no
// expected type constraint from the caller.
func CompileExpression(ps *ParserState, dialect Dialect, expr Expression) (string, ExpressionType, error) {
	return compileExpression(ps, dialect, expr, ExpressionTypeAny)
}

// compileExpression is the internal, type-directed walk. targetType is the
// type the caller expects (ExpressionTypeAny/absent means "no constraint");
// it drives the field auto-cast rule (§4.4, §4.8): a {$field} used where a
// specific type is expected gets cast to that type when the field's raw SQL
// emission wouldn't already carry it (JSON access, or data-table mode).
func compileExpression(ps *ParserState, dialect Dialect, expr Expression, targetType ExpressionType) (string, ExpressionType, error) {
	if err := ps.enterDepth(); err != nil {
		return "", "", err
	}
	defer ps.leaveDepth()

	switch e := expr.(type) {
	case *ScalarExpression:
		if err := validateScalarLiteral(e.Value); err != nil {
			return "", "", err
		}
		t := scalarExpressionType(e.Value)
		ps.Expressions[expr] = t
		return renderScalarLiteral(e.Value), t, nil

	case *VarExpression:
		val, ok := ps.Config.Variables[e.Name]
		if !ok {
			return "", "", errUnknownVariable(e.Name)
		}
		if err := validateScalarLiteral(val); err != nil {
			return "", "", err
		}
		t := scalarExpressionType(val)
		ps.Expressions[expr] = t
		return renderScalarLiteral(val), t, nil

	case *FieldExpression:
		rf, err := ResolveFieldPath(e.Path, ps.RootTable, ps.Config)
		if err != nil {
			return "", "", err
		}
		sql := emitFieldSQL(ps.Config, rf)
		resultType := ExpressionType(rf.FieldConfig.Type)
		if castTo, casted := resolveCast(ps.Config, rf, targetType); casted {
			sql = emitCast(dialect, sql, castTo)
			resultType = ExpressionType(castTo)
		}
		ps.Expressions[expr] = resultType
		return sql, resultType, nil

	case *FuncExpression:
		return compileFuncExpression(ps, dialect, e)

	case *CondExpression:
		return compileCondExpression(ps, dialect, e, targetType)
	}

	return "", "", newErr(ErrInvalidConfig, "unrecognized expression node")
}

func compileFuncExpression(ps *ParserState, dialect Dialect, e *FuncExpression) (string, ExpressionType, error) {
	entry, ok := lookupFunction(e.Name)
	if !ok {
		return "", "", errUnknownFunction(e.Name)
	}
	if !entry.supportsDialect(dialect) {
		return "", "", errDialectUnsupportedFunction(e.Name, dialect)
	}
	if e.Name == "DIVIDE" && len(e.Args) == 2 {
		if se, ok := e.Args[1].(*ScalarExpression); ok && se.Value.Kind == ScalarNumber && se.Value.Num == 0 {
			return "", "", newErr(ErrDivisionByZero, "DIVIDE by literal zero")
		}
	}

	min := len(entry.ArgTypes)
	if entry.Variadic {
		if len(e.Args) < min {
			return "", "", errArgumentCount(e.Name, min, len(e.Args), true)
		}
	} else if len(e.Args) != min {
		return "", "", errArgumentCount(e.Name, min, len(e.Args), false)
	}

	argSQL := make([]string, len(e.Args))
	for i, arg := range e.Args {
		var want ExpressionType
		if i < len(entry.ArgTypes) {
			want = entry.ArgTypes[i]
		} else {
			want = entry.ArgTypes[len(entry.ArgTypes)-1]
		}
		sql, got, err := compileExpression(ps, dialect, arg, want)
		if err != nil {
			return "", "", err
		}
		if !want.IsAbsent() && want != ExpressionTypeAny && !got.IsAbsent() && got != ExpressionTypeAny && got != want {
			if want == ExpressionType(FieldTypeString) {
				sql = emitCast(dialect, sql, FieldTypeString)
			} else {
				return "", "", errFunctionTypeMismatch(e.Name, i+1, want, got)
			}
		}
		argSQL[i] = sql
	}

	var sql string
	if entry.ToSQL != nil {
		sql = entry.ToSQL(dialect, argSQL)
	} else {
		sql = fmt.Sprintf("%s(%s)", e.Name, joinArgs(argSQL))
	}

	ps.Expressions[e] = entry.ReturnType
	return sql, entry.ReturnType, nil
}

func compileCondExpression(ps *ParserState, dialect Dialect, e *CondExpression, targetType ExpressionType) (string, ExpressionType, error) {
	condSQL, err := compileCondition(ps, dialect, e.If)
	if err != nil {
		return "", "", err
	}

	thenSQL, thenType, err := compileExpression(ps, dialect, e.Then, targetType)
	if err != nil {
		return "", "", err
	}
	elseSQL, elseType, err := compileExpression(ps, dialect, e.Else, targetType)
	if err != nil {
		return "", "", err
	}

	resultType := thenType
	if resultType.IsAbsent() {
		resultType = elseType
	}
	if !thenType.IsAbsent() && !elseType.IsAbsent() && thenType != elseType {
		return "", "", newErr(ErrConditionalTypeMismatch, "$cond then/else types differ: %s vs %s", thenType, elseType)
	}

	sql := fmt.Sprintf("(CASE WHEN %s THEN %s ELSE %s END)", condSQL, thenSQL, elseSQL)
	ps.Expressions[e] = resultType
	return sql, resultType, nil
}
