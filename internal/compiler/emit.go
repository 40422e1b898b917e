package compiler

import "strings"

// emitJSONAccess renders zero or more JSON path segments against a base SQL
// column expression, per §4.7: zero segments leaves col unchanged; the final
// segment uses ->> when extractText, else -> ; earlier segments always use
// ->.
func emitJSONAccess(col string, segments []string, extractText bool) string {
	if len(segments) == 0 {
		return col
	}
	var sb strings.Builder
	sb.WriteString(col)
	for i, seg := range segments {
		op := "->"
		if extractText && i == len(segments)-1 {
			op = "->>"
		}
		sb.WriteString(op)
		sb.WriteString(quoteIdentifier(seg))
	}
	return sb.String()
}

// dataTableExtractText decides the last-arrow op for a data-table-mode field
// with no further JSON tail: object-typed fields stay JSON (->), every other
// type is text-extracted (->>) because the cast resolver (§4.8) then casts
// the extracted text to the field's natural type.
func dataTableExtractText(rf ResolvedField) bool {
	if rf.HasJSONAccess {
		return rf.JSONExtractText
	}
	return rf.FieldConfig.Type != FieldTypeObject
}

// emitFieldSQL renders the SQL-level reference for a resolved field, outside
// any group-by context. In data-table mode the physical column is always
// <table>.<dataField>, with the logical field name becoming the first JSON
// segment (§4.7).
func emitFieldSQL(cfg *Config, rf ResolvedField) string {
	if cfg.DataTable != nil {
		col := rf.Table + "." + cfg.DataTable.DataField
		segments := append([]string{rf.Field}, rf.JSONAccess...)
		return emitJSONAccess(col, segments, dataTableExtractText(rf))
	}
	col := rf.Table + "." + rf.Field
	if !rf.HasJSONAccess {
		return col
	}
	return emitJSONAccess(col, rf.JSONAccess, rf.JSONExtractText)
}

// emitFieldSQLExtractText is the text-forcing variant of emitFieldSQL, used
// by GROUP BY keys (§4.10) and by the field-conditions map (§4.5, which
// always compares with jsonExtractText=true): the final JSON arrow is always
// coerced to ->> regardless of how the path was authored or the field's
// declared type (see DESIGN.md, "groupBy / field-conditions forced
// jsonExtractText=true").
func emitFieldSQLExtractText(cfg *Config, rf ResolvedField) string {
	if cfg.DataTable != nil {
		col := rf.Table + "." + cfg.DataTable.DataField
		segments := append([]string{rf.Field}, rf.JSONAccess...)
		return emitJSONAccess(col, segments, true)
	}
	col := rf.Table + "." + rf.Field
	if !rf.HasJSONAccess {
		return col
	}
	return emitJSONAccess(col, rf.JSONAccess, true)
}

// fieldAlias computes the SELECT-projection alias for a resolved field
// (§4.7): the logical path, with any JSON segments appended using -> and
// single quotes stripped.
func fieldAlias(rf ResolvedField, rootTable string) string {
	logical := rf.Field
	if rf.Table != rootTable {
		logical = rf.Table + "." + rf.Field
	}
	for _, seg := range rf.JSONAccess {
		logical += "->" + seg
	}
	return logical
}

// resolveCast implements §4.8 Cast Resolution: decides whether the SQL
// emitted for rf needs wrapping in a cast to reach targetType, and if so,
// which FieldType to cast to.
func resolveCast(cfg *Config, rf ResolvedField, targetType ExpressionType) (FieldType, bool) {
	dataTableMode := cfg.DataTable != nil
	jsonMode := dataTableMode || rf.HasJSONAccess

	if targetType.IsAbsent() || targetType == ExpressionTypeAny {
		if dataTableMode && rf.FieldConfig.Type != FieldTypeString && rf.FieldConfig.Type != FieldTypeObject {
			return rf.FieldConfig.Type, true
		}
		return "", false
	}

	ft := FieldType(targetType)
	if jsonMode {
		if ft == FieldTypeString || ft == FieldTypeObject {
			return "", false
		}
		return ft, true
	}

	if ft == rf.FieldConfig.Type {
		return "", false
	}
	return ft, true
}

// emitFieldWithCast renders rf's SQL reference and applies the cast
// resolveCast decides is necessary.
func emitFieldWithCast(cfg *Config, rf ResolvedField, dialect Dialect, targetType ExpressionType) string {
	expr := emitFieldSQL(cfg, rf)
	if castTo, ok := resolveCast(cfg, rf, targetType); ok {
		return emitCast(dialect, expr, castTo)
	}
	return expr
}

// emitFieldWithCastTextMode is emitFieldWithCast over the extract-text-forced
// emission, used wherever a field must be text-comparable (§4.5, §4.10).
func emitFieldWithCastTextMode(cfg *Config, rf ResolvedField, dialect Dialect, targetType ExpressionType) string {
	expr := emitFieldSQLExtractText(cfg, rf)
	if castTo, ok := resolveCast(cfg, rf, targetType); ok {
		return emitCast(dialect, expr, castTo)
	}
	return expr
}
