package compiler

import (
	"fmt"
	"strings"
)

// CompileAggregation implements the Aggregation Compiler (§4.10): it
// coordinates the field-path resolver, expression compiler, and registries
// into a single GROUP BY / aggregated-field SELECT.
func CompileAggregation(cfg *Config, q *AggregationQuery) (CompileResult, error) {
	if len(q.GroupBy) == 0 && len(q.AggregatedFields) == 0 {
		return CompileResult{}, newErr(ErrInvalidConfig, "aggregation query needs at least one groupBy entry or aggregated field")
	}
	if _, ok := cfg.Tables[q.Table]; !ok {
		return CompileResult{}, errTableNotAllowed(q.Table)
	}

	ps := newParserState(cfg, q.Table)
	dialect := cfg.Dialect

	var projections []string
	var groupBys []string

	for _, path := range q.GroupBy {
		rf, err := ResolveFieldPath(path, q.Table, cfg)
		if err != nil {
			return CompileResult{}, err
		}
		sql := emitFieldSQLExtractText(cfg, rf)
		alias := fieldAlias(rf, q.Table)
		projections = append(projections, fmt.Sprintf(`%s AS "%s"`, sql, alias))
		groupBys = append(groupBys, sql)
	}

	for _, alias := range q.AggregatedFieldOrder {
		spec := q.AggregatedFields[alias]
		entry, ok := lookupAggregation(spec.Operator)
		if !ok {
			return CompileResult{}, newErr(ErrInvalidAggregationOperator, "unknown aggregation operator %q", spec.Operator)
		}
		if entry.UnsupportedIn[dialect] {
			return CompileResult{}, errDialectUnsupportedFunction(string(spec.Operator), dialect)
		}

		var exprSQL string
		switch {
		case spec.FieldPath == "*":
			if !entry.AllowStar {
				return CompileResult{}, newErr(ErrCountStarWithNonCount, "field \"*\" requires an operator that allows it, got %s", spec.Operator)
			}
			exprSQL = "*"
		case spec.FieldPath != "":
			rf, err := ResolveFieldPath(spec.FieldPath, q.Table, cfg)
			if err != nil {
				return CompileResult{}, err
			}
			exprSQL = emitFieldWithCast(cfg, rf, dialect, entry.ArgType)
		case spec.FieldExpr != nil:
			sql, _, err := compileExpression(ps, dialect, spec.FieldExpr, entry.ArgType)
			if err != nil {
				return CompileResult{}, err
			}
			exprSQL = sql
		default:
			return CompileResult{}, newErr(ErrMissingAggregationField, "aggregated field %q has no field", alias)
		}

		emitted := entry.Emit(dialect, exprSQL, spec.Separator)
		projections = append(projections, fmt.Sprintf(`%s AS "%s"`, emitted, alias))
	}

	from := q.Table
	if cfg.DataTable != nil {
		from = fmt.Sprintf(`%s AS "%s"`, cfg.DataTable.Table, q.Table)
	}

	sql := fmt.Sprintf("SELECT %s FROM %s", strings.Join(projections, ", "), from)
	if len(groupBys) > 0 {
		sql += " GROUP BY " + strings.Join(groupBys, ", ")
	}

	return CompileResult{SQL: sql, Params: ps.Params}, nil
}
