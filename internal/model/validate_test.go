package model

import (
	"errors"
	"testing"

	"github.com/divbloxjs/dx-db-sync/internal/syncerr"
)

func wantConfigError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	var cfgErr *syncerr.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %T (%v), want *syncerr.ConfigError", err, err)
	}
}

func TestLoadDataModelRejectsUnknownEntityKey(t *testing.T) {
	_, err := LoadDataModel([]byte(`{
		"exampleEntity": {"module": "main", "attributes": {"f": {"type": "int", "lengthOrValues": null, "default": null, "allowNull": true}}, "unexpected": true}
	}`))
	wantConfigError(t, err)
}

func TestLoadDataModelRejectsUnknownAttributeKey(t *testing.T) {
	_, err := LoadDataModel([]byte(`{
		"exampleEntity": {"module": "main", "attributes": {"f": {"type": "int", "lengthOrValues": null, "default": null, "allowNull": true, "unexpected": 1}}}
	}`))
	wantConfigError(t, err)
}

func TestLoadDataModelRejectsUnknownIndexKey(t *testing.T) {
	_, err := LoadDataModel([]byte(`{
		"exampleEntity": {
			"module": "main",
			"attributes": {"f": {"type": "int", "lengthOrValues": null, "default": null, "allowNull": true}},
			"indexes": [{"attribute": "f", "indexName": "idx_f", "indexChoice": "index", "type": "BTREE", "unexpected": true}]
		}
	}`))
	wantConfigError(t, err)
}

func TestLoadDataModelRejectsIndexOnUnknownAttribute(t *testing.T) {
	_, err := LoadDataModel([]byte(`{
		"exampleEntity": {
			"module": "main",
			"attributes": {"f": {"type": "int", "lengthOrValues": null, "default": null, "allowNull": true}},
			"indexes": [{"attribute": "doesNotExist", "indexName": "idx_f", "indexChoice": "index", "type": "BTREE"}]
		}
	}`))
	wantConfigError(t, err)
}

func TestLoadDataModelRejectsInvalidIndexChoice(t *testing.T) {
	_, err := LoadDataModel([]byte(`{
		"exampleEntity": {
			"module": "main",
			"attributes": {"f": {"type": "int", "lengthOrValues": null, "default": null, "allowNull": true}},
			"indexes": [{"attribute": "f", "indexName": "idx_f", "indexChoice": "bogus", "type": "BTREE"}]
		}
	}`))
	wantConfigError(t, err)
}

func TestLoadDataModelRejectsInvalidIndexAlgorithm(t *testing.T) {
	_, err := LoadDataModel([]byte(`{
		"exampleEntity": {
			"module": "main",
			"attributes": {"f": {"type": "int", "lengthOrValues": null, "default": null, "allowNull": true}},
			"indexes": [{"attribute": "f", "indexName": "idx_f", "indexChoice": "index", "type": "bogus"}]
		}
	}`))
	wantConfigError(t, err)
}

func TestLoadDataModelRejectsDuplicateIndexName(t *testing.T) {
	_, err := LoadDataModel([]byte(`{
		"exampleEntity": {
			"module": "main",
			"attributes": {
				"f": {"type": "int", "lengthOrValues": null, "default": null, "allowNull": true},
				"g": {"type": "int", "lengthOrValues": null, "default": null, "allowNull": true}
			},
			"indexes": [
				{"attribute": "f", "indexName": "idx_dup", "indexChoice": "index", "type": "BTREE"},
				{"attribute": "g", "indexName": "idx_dup", "indexChoice": "index", "type": "BTREE"}
			]
		}
	}`))
	wantConfigError(t, err)
}

func TestLoadDataModelRejectsDanglingRelationshipTarget(t *testing.T) {
	_, err := LoadDataModel([]byte(`{
		"exampleEntity": {
			"module": "main",
			"attributes": {"f": {"type": "int", "lengthOrValues": null, "default": null, "allowNull": true}},
			"relationships": {"entityThatDoesNotExist": ["someRole"]}
		}
	}`))
	wantConfigError(t, err)
}

func TestLoadDataModelRejectsMissingRequiredEntityKey(t *testing.T) {
	_, err := LoadDataModel([]byte(`{"exampleEntity": {"attributes": {"f": {"type": "int", "lengthOrValues": null, "default": null, "allowNull": true}}}}`))
	wantConfigError(t, err)
}

func TestLoadDataModelRejectsEmptyAttributes(t *testing.T) {
	_, err := LoadDataModel([]byte(`{"exampleEntity": {"module": "main", "attributes": {}}}`))
	wantConfigError(t, err)
}

func TestLoadDataModelRejectsUnknownOptionKey(t *testing.T) {
	_, err := LoadDataModel([]byte(`{
		"exampleEntity": {
			"module": "main",
			"attributes": {"f": {"type": "int", "lengthOrValues": null, "default": null, "allowNull": true}},
			"options": {"bogusOption": true}
		}
	}`))
	wantConfigError(t, err)
}

func TestLoadDataModelAcceptsWellFormedEntity(t *testing.T) {
	dm, err := LoadDataModel([]byte(`{
		"exampleEntity": {
			"module": "main",
			"attributes": {"f": {"type": "int", "lengthOrValues": null, "default": null, "allowNull": true}},
			"indexes": [{"attribute": "f", "indexName": "idx_f", "indexChoice": "unique", "type": "HASH"}]
		}
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entity, ok := dm.Entity("exampleEntity")
	if !ok {
		t.Fatal("expected exampleEntity to be present")
	}
	if entity.Indexes[0].IndexChoice != IndexChoiceUnique || entity.Indexes[0].Algorithm != IndexAlgorithmHash {
		t.Errorf("index not parsed as expected, got %+v", entity.Indexes[0])
	}
}

func TestLoadConnectionConfigRejectsMissingKey(t *testing.T) {
	_, err := LoadConnectionConfig([]byte(`{
		"host": "localhost", "user": "root", "password": "", "database": "x", "port": 3306
	}`), nil)
	wantConfigError(t, err)
}

func TestLoadConnectionConfigRejectsUnknownKey(t *testing.T) {
	_, err := LoadConnectionConfig([]byte(`{
		"host": "localhost", "user": "root", "password": "", "database": "x", "port": 3306,
		"moduleSchemaMapping": [{"moduleName": "main", "schemaName": "main_schema"}],
		"unexpectedKey": true
	}`), nil)
	wantConfigError(t, err)
}

func TestLoadConnectionConfigRejectsDuplicateModuleName(t *testing.T) {
	_, err := LoadConnectionConfig([]byte(`{
		"host": "localhost", "user": "root", "password": "", "database": "x", "port": 3306, "ssl": null,
		"moduleSchemaMapping": [
			{"moduleName": "main", "schemaName": "main_schema"},
			{"moduleName": "main", "schemaName": "other_schema"}
		]
	}`), nil)
	wantConfigError(t, err)
}

func TestLoadConnectionConfigRejectsEntityReferencingUnconfiguredModule(t *testing.T) {
	dm, err := LoadDataModel([]byte(`{
		"exampleEntity": {"module": "billing", "attributes": {"f": {"type": "int", "lengthOrValues": null, "default": null, "allowNull": true}}}
	}`))
	if err != nil {
		t.Fatalf("unexpected data model error: %v", err)
	}
	_, err = LoadConnectionConfig([]byte(`{
		"host": "localhost", "user": "root", "password": "", "database": "x", "port": 3306, "ssl": null,
		"moduleSchemaMapping": [{"moduleName": "main", "schemaName": "main_schema"}]
	}`), dm)
	wantConfigError(t, err)
}

func TestLoadConnectionConfigAcceptsWellFormedConfig(t *testing.T) {
	cfg, err := LoadConnectionConfig([]byte(`{
		"host": "localhost", "user": "root", "password": "secret", "database": "x", "port": 3306, "ssl": null,
		"moduleSchemaMapping": [{"moduleName": "main", "schemaName": "main_schema"}]
	}`), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	schema, ok := cfg.SchemaForModule("main")
	if !ok || schema != "main_schema" {
		t.Errorf("got schema %q, ok=%v, want main_schema, true", schema, ok)
	}
}
