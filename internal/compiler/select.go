package compiler

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SelectQuery is the supplemented SELECT-style retrieval compiler's input
// (SPEC_FULL.md §1: spec.md's overview names "SELECT-style retrieval with
// nested/relational projection and conditions" but never gives it its own
// numbered §4 component — this wires the field resolver, JOIN emitter, and
// condition compiler together the way §4.10 wires them for aggregation).
type SelectQuery struct {
	Table  string
	Fields []string
	// Joins lists related tables to LEFT JOIN in, via the configured
	// relationship between Table and each entry.
	Joins []string
	Where Condition
}

// ParseSelectQuery decodes a whole SelectQuery document: { table, fields,
// joins?, where? }, mirroring ParseAggregationQuery's decoding style.
func ParseSelectQuery(data []byte) (*SelectQuery, error) {
	obj, ok := decodeOrderedObject(data)
	if !ok || !obj.has("table") || !obj.has("fields") {
		return nil, &CompileError{Kind: ErrInvalidConfig, Message: "select query requires table and fields"}
	}

	var table string
	if err := json.Unmarshal(obj.get("table"), &table); err != nil {
		return nil, &CompileError{Kind: ErrInvalidConfig, Message: "table must be a string"}
	}

	var fields []string
	if err := json.Unmarshal(obj.get("fields"), &fields); err != nil {
		return nil, &CompileError{Kind: ErrInvalidConfig, Message: "fields must be an array of strings"}
	}

	var joins []string
	if obj.has("joins") {
		if err := json.Unmarshal(obj.get("joins"), &joins); err != nil {
			return nil, &CompileError{Kind: ErrInvalidConfig, Message: "joins must be an array of table names"}
		}
	}

	var where Condition
	if obj.has("where") {
		w, err := ParseCondition(obj.get("where"))
		if err != nil {
			return nil, err
		}
		where = w
	}

	return &SelectQuery{Table: table, Fields: fields, Joins: joins, Where: where}, nil
}

// CompileSelect compiles a SelectQuery into parameterized SQL, reusing the
// same field-path resolver, JOIN emitter, and condition compiler the other
// top-level Compile* entry points share.
func CompileSelect(cfg *Config, q *SelectQuery) (CompileResult, error) {
	if len(q.Fields) == 0 {
		return CompileResult{}, newErr(ErrInvalidConfig, "select query needs at least one field")
	}
	if _, ok := cfg.Tables[q.Table]; !ok {
		return CompileResult{}, errTableNotAllowed(q.Table)
	}

	ps := newParserState(cfg, q.Table)
	dialect := cfg.Dialect

	var projections []string
	for _, path := range q.Fields {
		rf, err := ResolveFieldPath(path, q.Table, cfg)
		if err != nil {
			return CompileResult{}, err
		}
		sql := emitFieldWithCast(cfg, rf, dialect, ExpressionTypeAny)
		alias := fieldAlias(rf, q.Table)
		projections = append(projections, fmt.Sprintf(`%s AS "%s"`, sql, alias))
	}

	from := q.Table
	if cfg.DataTable != nil {
		from = fmt.Sprintf(`%s AS "%s"`, cfg.DataTable.Table, q.Table)
	}

	var joinClauses []string
	for _, toTable := range q.Joins {
		clause, err := EmitJoin(cfg, dialect, q.Table, toTable)
		if err != nil {
			return CompileResult{}, err
		}
		joinClauses = append(joinClauses, clause)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(projections, ", "), from)
	for _, clause := range joinClauses {
		sb.WriteString(" ")
		sb.WriteString(clause)
	}

	if q.Where != nil {
		whereSQL, err := compileCondition(ps, dialect, q.Where)
		if err != nil {
			return CompileResult{}, err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(whereSQL)
	}

	return CompileResult{SQL: sb.String(), Params: ps.Params}, nil
}
