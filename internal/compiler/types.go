// Package compiler implements the core of sqlcompile: it compiles a
// whitelisted, JSON-like query document into a parameterized SQL string for
// PostgreSQL or a minimal SQLite dialect.
//
// Compilation is purely synchronous and CPU-bound. Every exported Compile*
// entry point allocates a fresh ParserState and shares no mutable state with
// any other call, so independent compiles may run concurrently.
package compiler

import (
	"regexp"
)

// Dialect selects the target SQL dialect.
type Dialect string

const (
	DialectPostgreSQL   Dialect = "postgresql"
	DialectSQLiteMinimal Dialect = "sqlite-minimal"
)

// FieldType is the closed set of scalar types a configured Field may carry.
type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeNumber   FieldType = "number"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeObject   FieldType = "object"
	FieldTypeDate     FieldType = "date"
	FieldTypeDatetime FieldType = "datetime"
	FieldTypeUUID     FieldType = "uuid"
)

// ExpressionType is FieldType union {any, absent}. The zero value ("") means
// absent/unknown and is treated as a wildcard by the type checker.
type ExpressionType string

const (
	ExpressionTypeAny ExpressionType = "any"
)

// IsAbsent reports whether the type is unknown (wildcard behavior).
func (t ExpressionType) IsAbsent() bool { return t == "" }

// fieldNameRe matches allowed plain field identifiers.
var fieldNameRe = regexp.MustCompile(`^[a-z][a-z_0-9]*$`)

// tableNameRe matches allowed table identifiers.
var tableNameRe = regexp.MustCompile(`^[a-z][a-z_]+$`)

// ForeignKeyRef is the inline shape accepted by the user-facing config before
// normalization folds it into Config.Relationships.
type ForeignKeyRef struct {
	Table string `json:"table"`
	Field string `json:"field"`
}

// Field describes one whitelisted column.
type Field struct {
	Name       string         `json:"name"`
	Type       FieldType      `json:"type"`
	Nullable   bool           `json:"nullable"`
	Default    Expression     `json:"default,omitempty"`
	ForeignKey *ForeignKeyRef `json:"foreignKey,omitempty"`
}

// TableConfig is the whitelist of fields allowed for one table.
type TableConfig struct {
	AllowedFields []Field `json:"allowedFields"`
}

// FieldByName finds an allowed field by name, or returns (Field{}, false).
func (tc TableConfig) FieldByName(name string) (Field, bool) {
	for _, f := range tc.AllowedFields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Relationship is a flat foreign-key edge between two whitelisted tables.
type Relationship struct {
	Table   string `json:"table"`
	Field   string `json:"field"`
	ToTable string `json:"toTable"`
	ToField string `json:"toField"`
}

// DataTable switches every configured table to be read as a JSON-valued view
// over one physical table.
type DataTable struct {
	Table      string `json:"table"`
	DataField  string `json:"dataField"`
	TableField string `json:"tableField"`
}

// Config is the fully-normalized, internal configuration shared by every
// compiler component. Construct it via NormalizeConfig, not by hand.
type Config struct {
	Tables        map[string]TableConfig `json:"tables"`
	Variables     map[string]AnyScalar   `json:"variables"`
	Relationships []Relationship         `json:"relationships"`
	Dialect       Dialect                `json:"dialect"`
	DataTable     *DataTable             `json:"dataTable,omitempty"`
}

// RelationshipBetween finds the (possibly either-direction) relationship
// connecting two tables, as used by the JOIN emitter.
func (c *Config) RelationshipBetween(table, toTable string) (Relationship, bool) {
	for _, r := range c.Relationships {
		if r.Table == table && r.ToTable == toTable {
			return r, true
		}
		if r.Table == toTable && r.ToTable == table {
			return Relationship{Table: r.ToTable, Field: r.ToField, ToTable: r.Table, ToField: r.Field}, true
		}
	}
	return Relationship{}, false
}

// ScalarKind discriminates the AnyScalar sum.
type ScalarKind int

const (
	ScalarNull ScalarKind = iota
	ScalarString
	ScalarNumber
	ScalarBoolean
	ScalarDate
	ScalarTimestamp
	ScalarUUID
	ScalarJSONB
)

// AnyScalar is a JSON literal or a single-key tagged scalar
// ({$date}/{$timestamp}/{$uuid}/{$jsonb}).
type AnyScalar struct {
	Kind ScalarKind
	Str  string // raw string payload for String/Date/Timestamp/UUID
	Num  float64
	Bool bool
	JSON any // decoded payload for JSONB (must be a non-nil object/array)
}

// FieldTypeOf returns the FieldType a non-null scalar maps to, used for
// implicit-equality JS-type comparisons in the field-condition sub-parser.
func (s AnyScalar) FieldTypeOf() (FieldType, bool) {
	switch s.Kind {
	case ScalarString:
		return FieldTypeString, true
	case ScalarNumber:
		return FieldTypeNumber, true
	case ScalarBoolean:
		return FieldTypeBoolean, true
	case ScalarDate:
		return FieldTypeDate, true
	case ScalarTimestamp:
		return FieldTypeDatetime, true
	case ScalarUUID:
		return FieldTypeUUID, true
	case ScalarJSONB:
		return FieldTypeObject, true
	}
	return "", false
}

// IsNull reports whether the scalar represents JSON null.
func (s AnyScalar) IsNull() bool { return s.Kind == ScalarNull }

// Expression is the sum type walked by the Expression Compiler (§4.4).
// Concrete implementations are always pointers so that ExpressionTypeMap can
// key on node identity, per the design note in spec.md §9.
type Expression interface {
	exprNode()
}

// ScalarExpression is a bare or tagged scalar literal.
type ScalarExpression struct {
	Value AnyScalar
}

func (*ScalarExpression) exprNode() {}

// FieldExpression is {$field: "table.name[->...]"}, unresolved until the
// field-path resolver runs over it.
type FieldExpression struct {
	Path string
}

func (*FieldExpression) exprNode() {}

// VarExpression is {$var: name}.
type VarExpression struct {
	Name string
}

func (*VarExpression) exprNode() {}

// FuncExpression is {$func: {NAME: [args...]}}.
type FuncExpression struct {
	Name string
	Args []Expression
}

func (*FuncExpression) exprNode() {}

// CondExpression is {$cond: {if, then, else}}.
type CondExpression struct {
	If   Condition
	Then Expression
	Else Expression
}

func (*CondExpression) exprNode() {}

// ExpressionTypeMap records the inferred type of every Expression node the
// compiler has walked, keyed by node identity (pointer equality through the
// Expression interface).
type ExpressionTypeMap map[Expression]ExpressionType

// Condition is the sum type walked by the Condition Compiler (§4.5).
type Condition interface {
	condNode()
}

// BoolCondition is a bare boolean literal condition.
type BoolCondition struct {
	Value bool
}

func (*BoolCondition) condNode() {}

// AndCondition is {$and: [...]}, non-empty.
type AndCondition struct {
	Children []Condition
}

func (*AndCondition) condNode() {}

// OrCondition is {$or: [...]}, non-empty.
type OrCondition struct {
	Children []Condition
}

func (*OrCondition) condNode() {}

// NotCondition is {$not: cond}.
type NotCondition struct {
	Child Condition
}

func (*NotCondition) condNode() {}

// ExistsCondition is {$exists: {table, condition}}.
type ExistsCondition struct {
	Table     string
	Condition Condition
}

func (*ExistsCondition) condNode() {}

// ExprCondition wraps an Expression that must evaluate to boolean.
type ExprCondition struct {
	Expr Expression
}

func (*ExprCondition) condNode() {}

// FieldOp is one operator applied within a FieldCondition
// ($eq,$ne,$gt,$gte,$lt,$lte,$like,$ilike,$regex use Value;
// $in,$nin use Values).
type FieldOp struct {
	Op     string
	Value  Expression
	Values []Expression
}

// FieldCondition is the value side of one field-name -> condition mapping
// entry: either an implicit-equality expression (Ops has exactly one $eq
// entry) or an explicit operator object.
type FieldCondition struct {
	Ops []FieldOp
}

// FieldConditionEntry preserves declaration order for a field-conditions map.
type FieldConditionEntry struct {
	Field string
	Cond  FieldCondition
}

// FieldConditionMap is a Condition whose keys are field names.
type FieldConditionMap struct {
	Entries []FieldConditionEntry
}

func (*FieldConditionMap) condNode() {}

// AggregationOp is one of the fixed aggregation registry entries.
type AggregationOp string

const (
	AggCount         AggregationOp = "COUNT"
	AggSum           AggregationOp = "SUM"
	AggAvg           AggregationOp = "AVG"
	AggMin           AggregationOp = "MIN"
	AggMax           AggregationOp = "MAX"
	AggCountDistinct AggregationOp = "COUNT_DISTINCT"
	AggStringAgg     AggregationOp = "STRING_AGG"
	AggStddev        AggregationOp = "STDDEV"
	AggVariance      AggregationOp = "VARIANCE"
)

// AggregatedFieldSpec is one entry of AggregationQuery.AggregatedFields.
// Exactly one of FieldPath ("*" included) or FieldExpr is populated.
type AggregatedFieldSpec struct {
	Operator  AggregationOp
	FieldPath string
	FieldExpr Expression
	// Separator is the supplemented explicit-separator form of STRING_AGG
	// (SPEC_FULL.md §5); nil selects the default ','.
	Separator *string
}

// AggregationQuery is the input to the Aggregation Compiler (§4.10).
type AggregationQuery struct {
	Table            string
	GroupBy          []string
	AggregatedFields map[string]AggregatedFieldSpec
	// AggregatedFieldOrder preserves the declaration order of
	// AggregatedFields, since emission order is observable in the final SQL
	// (maps do not preserve order in Go).
	AggregatedFieldOrder []string
}

// ParserState is the per-compile mutable workspace threaded by reference
// through a single compile call. Never share one across calls.
type ParserState struct {
	Config      *Config
	RootTable   string
	Params      []AnyScalar
	Expressions ExpressionTypeMap
	depth       int
}

// newParserState allocates a fresh, empty ParserState rooted at rootTable.
func newParserState(cfg *Config, rootTable string) *ParserState {
	return &ParserState{
		Config:      cfg,
		RootTable:   rootTable,
		Params:      nil,
		Expressions: make(ExpressionTypeMap),
	}
}

// addParam appends a parameter and returns its 1-based ordinal (PostgreSQL
// placeholder number). Only the PostgreSQL path calls it: SQLite-minimal
// inlines comparison values as quoted literals, so its `params` stays empty.
func (ps *ParserState) addParam(v AnyScalar) int {
	ps.Params = append(ps.Params, v)
	return len(ps.Params)
}

// ResolvedField is the output of the field-path resolver (§4.3).
type ResolvedField struct {
	Table           string
	Field           string
	FieldConfig     Field
	JSONAccess      []string
	JSONExtractText bool
	HasJSONAccess   bool
}

// CompileResult is the return shape of every top-level Compile* call.
type CompileResult struct {
	SQL    string
	Params []AnyScalar
}
