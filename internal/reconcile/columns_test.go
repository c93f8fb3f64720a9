package reconcile

import (
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/divbloxjs/dx-db-sync/internal/casing"
	"github.com/divbloxjs/dx-db-sync/internal/gateway"
	"github.com/divbloxjs/dx-db-sync/internal/model"
)

func TestReconcileColumnsPlan(t *testing.T) {
	entity := &model.EntityDefinition{
		Name:   "exampleEntityOne",
		Module: "main",
		Attributes: attrs(
			"exampleOneBigInt", model.AttributeDefinition{Type: "bigint", LengthOrValues: model.NewScalar("20"), Default: model.NullScalar, AllowNull: true},
			"exampleOneStringWithNull", model.AttributeDefinition{Type: "varchar", LengthOrValues: model.NewScalar("50"), Default: model.NullScalar, AllowNull: true},
		),
		Options: model.Options{EnforceLockingConstraints: false},
	}
	existing := []gateway.ColumnRow{
		{Field: "id"},
		{Field: "example_one_string_with_null", Type: "varchar(15)", Null: "YES", Default: sql.NullString{}},
		{Field: "stale_column", Type: "int(11)", Null: "YES"},
	}

	result := reconcileColumns("example_entity_one", entity, casing.Snake, existing)

	want := []string{
		"ALTER TABLE `example_entity_one` MODIFY COLUMN `example_one_string_with_null` varchar(50) DEFAULT NULL",
		"ALTER TABLE `example_entity_one` DROP COLUMN `stale_column`",
		"ALTER TABLE `example_entity_one` ADD COLUMN `example_one_big_int` bigint(20) DEFAULT NULL",
	}
	if diff := cmp.Diff(want, result.Statements); diff != "" {
		t.Errorf("reconcileColumns statement plan mismatch (-want +got):\n%s", diff)
	}
	if result.Added != 1 || result.Modified != 1 || result.Dropped != 1 {
		t.Errorf("got added=%d modified=%d dropped=%d, want 1/1/1", result.Added, result.Modified, result.Dropped)
	}
}

func TestReconcileColumnsNoOpWhenAlreadyConverged(t *testing.T) {
	entity := &model.EntityDefinition{
		Name:       "exampleEntityOne",
		Module:     "main",
		Attributes: attrs("exampleOneBigInt", model.AttributeDefinition{Type: "bigint", LengthOrValues: model.NewScalar("20"), Default: model.NullScalar, AllowNull: true}),
		Options:    model.Options{EnforceLockingConstraints: false},
	}
	existing := []gateway.ColumnRow{
		{Field: "id"},
		{Field: "example_one_big_int", Type: "bigint(20)", Null: "YES"},
	}

	result := reconcileColumns("example_entity_one", entity, casing.Snake, existing)

	if diff := cmp.Diff([]string(nil), result.Statements); diff != "" {
		t.Errorf("expected no statements (-want +got):\n%s", diff)
	}
	if result.Added != 0 || result.Modified != 0 || result.Dropped != 0 {
		t.Errorf("got added=%d modified=%d dropped=%d, want all zero", result.Added, result.Modified, result.Dropped)
	}
}
