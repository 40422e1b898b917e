package compiler

import (
	"encoding/json"
	"fmt"
	"sort"
)

// rawFieldDef mirrors Field's JSON shape but keeps Default as a raw message
// so we can parse it through ParseExpression after establishing field type.
type rawFieldDef struct {
	Name       string          `json:"name"`
	Type       FieldType       `json:"type"`
	Nullable   bool            `json:"nullable"`
	Default    json.RawMessage `json:"default,omitempty"`
	ForeignKey *ForeignKeyRef  `json:"foreignKey,omitempty"`
}

type rawTableConfig struct {
	AllowedFields []rawFieldDef `json:"allowedFields"`
}

// NormalizeConfig accepts a Config document in either the user-facing shape
// (inline `foreignKey` per field, no top-level `relationships`) or the
// already-normalized shape, and returns the internal Config (§4.1).
//
// Idempotence (spec.md §8 property 3): if the document already carries a
// top-level `relationships` key, it is treated as normalized and decoded
// as-is, without re-stripping any inline foreignKey that might remain.
func NormalizeConfig(data []byte) (*Config, error) {
	presence, ok := decodeOrderedObject(data)
	if !ok {
		return nil, fmt.Errorf("%w: config must be a JSON object", ErrInvalidConfig)
	}

	alreadyNormalized := presence.has("relationships")

	var dialect Dialect
	if presence.has("dialect") {
		if err := json.Unmarshal(presence.get("dialect"), &dialect); err != nil {
			return nil, fmt.Errorf("%w: dialect must be a string", ErrInvalidConfig)
		}
	}
	if dialect != DialectPostgreSQL && dialect != DialectSQLiteMinimal {
		return nil, fmt.Errorf("%w: unknown dialect %q", ErrInvalidConfig, dialect)
	}

	variables := make(map[string]AnyScalar)
	if presence.has("variables") {
		varsObj, ok := decodeOrderedObject(presence.get("variables"))
		if !ok {
			return nil, fmt.Errorf("%w: variables must be an object", ErrInvalidConfig)
		}
		for _, name := range varsObj.keys {
			v, err := ParseAnyScalar(varsObj.get(name))
			if err != nil {
				return nil, err
			}
			variables[name] = v
		}
	}

	var dataTable *DataTable
	if presence.has("dataTable") {
		var dt DataTable
		if err := json.Unmarshal(presence.get("dataTable"), &dt); err != nil {
			return nil, fmt.Errorf("%w: invalid dataTable", ErrInvalidConfig)
		}
		dataTable = &dt
	}

	tablesObj, ok := decodeOrderedObject(presence.get("tables"))
	if !ok {
		return nil, fmt.Errorf("%w: tables must be an object", ErrInvalidConfig)
	}

	tables := make(map[string]TableConfig, len(tablesObj.keys))
	var relationships []Relationship
	if alreadyNormalized {
		if err := json.Unmarshal(presence.get("relationships"), &relationships); err != nil {
			return nil, fmt.Errorf("%w: relationships must be an array", ErrInvalidConfig)
		}
	}

	for _, tableName := range tablesObj.keys {
		if !tableNameRe.MatchString(tableName) {
			return nil, fmt.Errorf("%w: table name %q", ErrInvalidConfig, tableName)
		}
		rawTable, ok := decodeOrderedObject(tablesObj.get(tableName))
		if !ok || !rawTable.has("allowedFields") {
			return nil, fmt.Errorf("%w: table %q requires allowedFields", ErrInvalidConfig, tableName)
		}
		var rawFields []rawFieldDef
		if err := json.Unmarshal(rawTable.get("allowedFields"), &rawFields); err != nil {
			return nil, fmt.Errorf("%w: table %q allowedFields must be an array", ErrInvalidConfig, tableName)
		}

		fields := make([]Field, 0, len(rawFields))
		for _, rf := range rawFields {
			if !fieldNameRe.MatchString(rf.Name) {
				return nil, fmt.Errorf("%w: field name %q on table %q", ErrInvalidConfig, rf.Name, tableName)
			}
			f := Field{Name: rf.Name, Type: rf.Type, Nullable: rf.Nullable}
			if len(rf.Default) > 0 {
				def, err := ParseExpression(rf.Default)
				if err != nil {
					return nil, err
				}
				f.Default = def
			}

			if !alreadyNormalized && rf.ForeignKey != nil {
				relationships = append(relationships, Relationship{
					Table:   tableName,
					Field:   rf.Name,
					ToTable: rf.ForeignKey.Table,
					ToField: rf.ForeignKey.Field,
				})
			} else if alreadyNormalized {
				f.ForeignKey = rf.ForeignKey
			}
			fields = append(fields, f)
		}
		tables[tableName] = TableConfig{AllowedFields: fields}
	}

	// Sorting by (table, field) makes relationship lookups reproducible across
	// normalizations of the same user config, independent of the order in
	// which tables and fields are declared in the document.
	if !alreadyNormalized {
		sort.Slice(relationships, func(i, j int) bool {
			if relationships[i].Table != relationships[j].Table {
				return relationships[i].Table < relationships[j].Table
			}
			return relationships[i].Field < relationships[j].Field
		})
	}

	return &Config{
		Tables:        tables,
		Variables:     variables,
		Relationships: relationships,
		Dialect:       dialect,
		DataTable:     dataTable,
	}, nil
}
