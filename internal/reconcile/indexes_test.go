package reconcile

import (
	"testing"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/divbloxjs/dx-db-sync/internal/casing"
	"github.com/divbloxjs/dx-db-sync/internal/gateway"
	"github.com/divbloxjs/dx-db-sync/internal/model"
)

func entityWithIndex() *model.EntityDefinition {
	return &model.EntityDefinition{
		Name:       "exampleEntityOne",
		Module:     "main",
		Attributes: orderedmap.New[string, model.AttributeDefinition](),
		Indexes: []model.IndexDefinition{
			{Attribute: "exampleOneBigInt", IndexName: "exampleEntityOne_exampleOneBigInt", IndexChoice: model.IndexChoiceIndex, Algorithm: model.IndexAlgorithmBTree},
		},
	}
}

func TestReconcileIndexesAddsMissing(t *testing.T) {
	entity := entityWithIndex()
	statements, added, dropped := reconcileIndexes("example_entity_one", entity, casing.Snake, nil, nil)
	if added != 1 || dropped != 0 {
		t.Fatalf("got added=%d dropped=%d, want added=1 dropped=0", added, dropped)
	}
	want := "ALTER TABLE `example_entity_one` ADD INDEX `example_entity_one_example_one_big_int` (`example_one_big_int`) USING BTREE"
	if len(statements) != 1 || statements[0] != want {
		t.Errorf("got %v, want [%q]", statements, want)
	}
}

func TestReconcileIndexesPreservesForeignKeyBackingIndex(t *testing.T) {
	entity := entityWithIndex()
	fkSpecs := []ForeignKeySpec{{Column: "related_entity", RelatedEntity: "relatedEntity", ConstraintName: "fk_abc123"}}
	existing := []gateway.IndexRow{
		{Name: "PRIMARY", Column: "id"},
		{Name: "example_entity_one_example_one_big_int", Column: "example_one_big_int"},
		{Name: "fk_abc123", Column: "related_entity"},
	}
	statements, added, dropped := reconcileIndexes("example_entity_one", entity, casing.Snake, existing, fkSpecs)
	if added != 0 {
		t.Errorf("got added=%d, want 0 (both indexes already exist)", added)
	}
	if dropped != 0 {
		t.Errorf("got dropped=%d statements=%v, want 0: PRIMARY and the FK-backing index must survive", dropped, statements)
	}
}

func TestReconcileIndexesDropsExtra(t *testing.T) {
	entity := &model.EntityDefinition{Name: "exampleEntityOne", Attributes: orderedmap.New[string, model.AttributeDefinition]()}
	existing := []gateway.IndexRow{
		{Name: "PRIMARY", Column: "id"},
		{Name: "stale_index", Column: "some_column"},
	}
	statements, added, dropped := reconcileIndexes("example_entity_one", entity, casing.Snake, existing, nil)
	if added != 0 || dropped != 1 {
		t.Fatalf("got added=%d dropped=%d, want added=0 dropped=1", added, dropped)
	}
	want := "ALTER TABLE `example_entity_one` DROP INDEX `stale_index`"
	if statements[0] != want {
		t.Errorf("got %q, want %q", statements[0], want)
	}
}
