package compiler

import "testing"

// mustNormalize parses a Config document via NormalizeConfig, failing the
// test immediately on error.
func mustNormalize(t *testing.T, doc string) *Config {
	t.Helper()
	cfg, err := NormalizeConfig([]byte(doc))
	if err != nil {
		t.Fatalf("NormalizeConfig: %v", err)
	}
	return cfg
}

// dataTableSalesConfig is the spec's S1/S2 worked-scenario config: a single
// physical raw_data table holding every logical table's rows as JSON.
func dataTableSalesConfig(t *testing.T) *Config {
	t.Helper()
	return mustNormalize(t, `{
		"dialect": "postgresql",
		"dataTable": {"table": "raw_data", "dataField": "data", "tableField": "table_name"},
		"tables": {
			"sales": {
				"allowedFields": [
					{"name": "id", "type": "number", "nullable": false},
					{"name": "amount", "type": "number", "nullable": false},
					{"name": "region", "type": "string", "nullable": false},
					{"name": "customer_id", "type": "number", "nullable": true},
					{"name": "product_data", "type": "object", "nullable": true}
				]
			}
		}
	}`)
}

// plainSalesConfig is the non-data-table equivalent, plus a customers table
// joined on customer_id and a users table for path-resolution tests.
func plainSalesConfig(t *testing.T) *Config {
	t.Helper()
	return mustNormalize(t, `{
		"dialect": "postgresql",
		"tables": {
			"sales": {
				"allowedFields": [
					{"name": "id", "type": "number", "nullable": false},
					{"name": "amount", "type": "number", "nullable": false},
					{"name": "region", "type": "string", "nullable": false},
					{"name": "order_date", "type": "datetime", "nullable": true},
					{"name": "product_data", "type": "object", "nullable": true},
					{"name": "customer_id", "type": "number", "nullable": true, "foreignKey": {"table": "customers", "field": "id"}}
				]
			},
			"customers": {
				"allowedFields": [
					{"name": "id", "type": "number", "nullable": false},
					{"name": "name", "type": "string", "nullable": false}
				]
			},
			"users": {
				"allowedFields": [
					{"name": "id", "type": "number", "nullable": false},
					{"name": "name", "type": "string", "nullable": false},
					{"name": "metadata", "type": "object", "nullable": true}
				]
			}
		}
	}`)
}

func sqliteSalesConfig(t *testing.T) *Config {
	t.Helper()
	cfg := plainSalesConfig(t)
	cfg.Dialect = DialectSQLiteMinimal
	return cfg
}
