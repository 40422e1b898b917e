package compiler

import "fmt"

// EmitJoin implements the JOIN Emitter (§4.9): given a known relationship
// between table and toTable, emits a LEFT JOIN clause with both sides cast
// to their fields' native SQL types.
func EmitJoin(cfg *Config, dialect Dialect, table, toTable string) (string, error) {
	rel, ok := cfg.RelationshipBetween(table, toTable)
	if !ok {
		return "", newErr(ErrInvalidConfig, "no relationship between %s and %s", table, toTable)
	}

	leftTableCfg, ok := cfg.Tables[table]
	if !ok {
		return "", errTableNotAllowed(table)
	}
	rightTableCfg, ok := cfg.Tables[toTable]
	if !ok {
		return "", errTableNotAllowed(toTable)
	}

	leftField, ok := leftTableCfg.FieldByName(rel.Field)
	if !ok {
		return "", errFieldNotAllowed(table, rel.Field)
	}
	rightField, ok := rightTableCfg.FieldByName(rel.ToField)
	if !ok {
		return "", errFieldNotAllowed(toTable, rel.ToField)
	}

	leftSQL := emitFieldSQL(cfg, ResolvedField{Table: table, Field: rel.Field, FieldConfig: leftField})
	rightSQL := emitFieldSQL(cfg, ResolvedField{Table: toTable, Field: rel.ToField, FieldConfig: rightField})

	leftCast := emitCast(dialect, leftSQL, leftField.Type)
	rightCast := emitCast(dialect, rightSQL, rightField.Type)

	toTableSQL := toTable
	if cfg.DataTable != nil {
		toTableSQL = fmt.Sprintf(`%s AS "%s"`, cfg.DataTable.Table, toTable)
	}

	return fmt.Sprintf("LEFT JOIN %s ON %s = %s", toTableSQL, leftCast, rightCast), nil
}
