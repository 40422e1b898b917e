package compiler

import "strings"

// ResolveFieldPath maps a dotted, possibly JSON-augmented identifier to a
// typed, qualified field reference (§4.3).
func ResolveFieldPath(path, rootTable string, cfg *Config) (ResolvedField, error) {
	table, rest, hasDot := strings.Cut(path, ".")
	if !hasDot {
		table, rest = rootTable, path
	}
	if table == "" || rest == "" {
		return ResolvedField{}, &CompileError{Kind: ErrInvalidConfig, Message: "field path must be table.field or field", Field: path}
	}

	tableConfig, ok := cfg.Tables[table]
	if !ok {
		return ResolvedField{}, errTableNotAllowed(table)
	}

	fieldName, jsonTail, hasJSON := strings.Cut(rest, "->")
	if !fieldNameRe.MatchString(fieldName) {
		return ResolvedField{}, &CompileError{Kind: ErrFieldNotAllowed, Message: "invalid field name", Table: table, Field: fieldName}
	}

	fieldConfig, ok := tableConfig.FieldByName(fieldName)
	if !ok {
		return ResolvedField{}, errFieldNotAllowed(table, fieldName)
	}

	resolved := ResolvedField{Table: table, Field: fieldName, FieldConfig: fieldConfig}

	if !hasJSON {
		return resolved, nil
	}

	if fieldConfig.Type != FieldTypeObject {
		return ResolvedField{}, &CompileError{Kind: ErrJSONAccessTypeError, Message: "JSON access on non-object field", Table: table, Field: fieldName}
	}

	access, err := ParseJSONAccess("->" + jsonTail)
	if err != nil {
		return ResolvedField{}, err
	}

	resolved.HasJSONAccess = true
	resolved.JSONAccess = access.Segments
	resolved.JSONExtractText = access.ExtractText
	return resolved, nil
}
