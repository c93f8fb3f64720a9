package reconcile

import (
	"context"
	"strings"
	"testing"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/divbloxjs/dx-db-sync/internal/casing"
	"github.com/divbloxjs/dx-db-sync/internal/gateway/gatewaytest"
	"github.com/divbloxjs/dx-db-sync/internal/interact"
	"github.com/divbloxjs/dx-db-sync/internal/interact/interacttest"
	"github.com/divbloxjs/dx-db-sync/internal/model"
)

func attrs(pairs ...interface{}) *orderedmap.OrderedMap[string, model.AttributeDefinition] {
	m := orderedmap.New[string, model.AttributeDefinition]()
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1].(model.AttributeDefinition))
	}
	return m
}

func relationships(pairs ...interface{}) *orderedmap.OrderedMap[string, []string] {
	m := orderedmap.New[string, []string]()
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1].([]string))
	}
	return m
}

func singleModel(entities ...*model.EntityDefinition) *model.DataModel {
	m := orderedmap.New[string, *model.EntityDefinition]()
	for _, e := range entities {
		m.Set(e.Name, e)
	}
	return &model.DataModel{Entities: m}
}

func newAllYesEngine(policy casing.Policy) *Engine {
	shim := &interacttest.Shim{DefaultAnswer: interact.DecisionYes}
	return New(policy, Options{NonInteractive: true, TableDropMode: DropAll}, shim)
}

func TestGreenfieldSnakeCase(t *testing.T) {
	entity := &model.EntityDefinition{
		Name:   "exampleEntityOne",
		Module: "main",
		Attributes: attrs(
			"exampleOneBigInt", model.AttributeDefinition{Type: "bigint", LengthOrValues: model.NewScalar("20"), Default: model.NullScalar, AllowNull: true},
		),
		Indexes: []model.IndexDefinition{
			{Attribute: "exampleOneBigInt", IndexName: "exampleEntityOne_exampleOneBigInt", IndexChoice: model.IndexChoiceIndex, Algorithm: model.IndexAlgorithmBTree},
		},
		Options: model.DefaultOptions(),
	}
	dataModel := singleModel(entity)
	gw := gatewaytest.New("main", "main_schema")

	engine := newAllYesEngine(casing.Snake)
	_, err := engine.Run(context.Background(), dataModel, []ModuleConnection{{Name: "main", Gateway: gw}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statements := gw.Statements()
	wantSubstrings := []string{
		"CREATE TABLE `example_entity_one` (`id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY) ENGINE=InnoDB",
		"ALTER TABLE `example_entity_one` ADD COLUMN `example_one_big_int` bigint(20) DEFAULT NULL",
		"ALTER TABLE `example_entity_one` ADD COLUMN `last_updated` datetime NOT NULL DEFAULT CURRENT_TIMESTAMP",
		"ALTER TABLE `example_entity_one` ADD INDEX `example_entity_one_example_one_big_int` (`example_one_big_int`) USING BTREE",
	}
	for _, want := range wantSubstrings {
		if !containsStatement(statements, want) {
			t.Errorf("missing expected statement %q in trace %v", want, statements)
		}
	}
	if !gw.FKChecksEnabled() {
		t.Error("FOREIGN_KEY_CHECKS must be restored to enabled after a successful run")
	}
	if engine.State() != StateDone {
		t.Errorf("got engine state %s, want %s", engine.State(), StateDone)
	}
}

func containsStatement(statements []string, want string) bool {
	for _, s := range statements {
		if s == want {
			return true
		}
	}
	return false
}

func TestOrphanRemovalAllMode(t *testing.T) {
	dataModel := singleModel()
	gw := gatewaytest.New("main", "main_schema")
	gw.SeedTable("legacy_thing", "id")

	engine := newAllYesEngine(casing.Snake)
	summary, err := engine.Run(context.Background(), dataModel, []ModuleConnection{{Name: "main", Gateway: gw}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TablesDropped != 1 {
		t.Errorf("got %d tables dropped, want 1", summary.TablesDropped)
	}
	if len(gw.TableNames()) != 0 {
		t.Errorf("expected legacy_thing dropped, tables remaining: %v", gw.TableNames())
	}
}

func TestOrphanRemovalNoneMode(t *testing.T) {
	dataModel := singleModel()
	gw := gatewaytest.New("main", "main_schema")
	gw.SeedTable("legacy_thing", "id")

	shim := &interacttest.Shim{DefaultAnswer: interact.DecisionYes}
	engine := New(casing.Snake, Options{NonInteractive: true, TableDropMode: DropNone}, shim)
	summary, err := engine.Run(context.Background(), dataModel, []ModuleConnection{{Name: "main", Gateway: gw}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TablesDropped != 0 {
		t.Errorf("got %d tables dropped, want 0", summary.TablesDropped)
	}
	if len(gw.TableNames()) != 1 {
		t.Errorf("expected legacy_thing preserved, tables: %v", gw.TableNames())
	}
}

func TestTypeDrift(t *testing.T) {
	entity := &model.EntityDefinition{
		Name:   "exampleEntityOne",
		Module: "main",
		Attributes: attrs(
			"exampleOneStringWithNull", model.AttributeDefinition{Type: "varchar", LengthOrValues: model.NewScalar("50"), Default: model.NullScalar, AllowNull: true},
		),
		Options: model.Options{EnforceLockingConstraints: false, IsAuditEnabled: true},
	}
	dataModel := singleModel(entity)
	gw := gatewaytest.New("main", "main_schema")
	gw.SeedTable("example_entity_one", "id")
	gw.SeedColumn("example_entity_one", "example_one_string_with_null", "varchar", "15", false, "")

	engine := newAllYesEngine(casing.Snake)
	summary, err := engine.Run(context.Background(), dataModel, []ModuleConnection{{Name: "main", Gateway: gw}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.ColumnsModified != 1 {
		t.Errorf("got %d columns modified, want 1", summary.ColumnsModified)
	}
	if !containsStatement(gw.Statements(), "ALTER TABLE `example_entity_one` MODIFY COLUMN `example_one_string_with_null` varchar(50) DEFAULT NULL") {
		t.Errorf("missing expected MODIFY COLUMN statement in trace %v", gw.Statements())
	}
}

func TestRelationshipAdd(t *testing.T) {
	one := &model.EntityDefinition{
		Name:       "exampleEntityOne",
		Module:     "main",
		Attributes: attrs("exampleOneBigInt", model.AttributeDefinition{Type: "bigint", LengthOrValues: model.NewScalar("20"), Default: model.NullScalar, AllowNull: true}),
		Options:    model.Options{EnforceLockingConstraints: false},
	}
	two := &model.EntityDefinition{
		Name:          "exampleEntityTwo",
		Module:        "main",
		Attributes:    attrs("exampleOneBigInt", model.AttributeDefinition{Type: "bigint", LengthOrValues: model.NewScalar("20"), Default: model.NullScalar, AllowNull: true}),
		Relationships: relationships("exampleEntityOne", []string{"relationshipOne", "relationshipTwo"}),
		Options:       model.Options{EnforceLockingConstraints: false},
	}
	dataModel := singleModel(one, two)
	gw := gatewaytest.New("main", "main_schema")

	engine := newAllYesEngine(casing.Snake)
	summary, err := engine.Run(context.Background(), dataModel, []ModuleConnection{{Name: "main", Gateway: gw}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.ForeignKeysAdded != 2 {
		t.Errorf("got %d foreign keys added, want 2", summary.ForeignKeysAdded)
	}
	wantColumns := []string{
		"ALTER TABLE `example_entity_two` ADD COLUMN `example_entity_one_relationship_one` bigint(20) DEFAULT NULL",
		"ALTER TABLE `example_entity_two` ADD COLUMN `example_entity_one_relationship_two` bigint(20) DEFAULT NULL",
	}
	for _, want := range wantColumns {
		if !containsStatement(gw.Statements(), want) {
			t.Errorf("missing expected statement %q", want)
		}
	}
	foundFK := 0
	for _, s := range gw.Statements() {
		if strings.Contains(s, "ADD CONSTRAINT") && strings.Contains(s, "REFERENCES `example_entity_one` (`id`) ON DELETE SET NULL ON UPDATE CASCADE") {
			foundFK++
		}
	}
	if foundFK != 2 {
		t.Errorf("got %d ADD CONSTRAINT statements, want 2", foundFK)
	}
}

func TestIdempotentSecondRun(t *testing.T) {
	one := &model.EntityDefinition{
		Name:       "exampleEntityOne",
		Module:     "main",
		Attributes: attrs("exampleOneBigInt", model.AttributeDefinition{Type: "bigint", LengthOrValues: model.NewScalar("20"), Default: model.NullScalar, AllowNull: true}),
		Options:    model.Options{EnforceLockingConstraints: false},
	}
	two := &model.EntityDefinition{
		Name:          "exampleEntityTwo",
		Module:        "main",
		Attributes:    attrs("exampleOneBigInt", model.AttributeDefinition{Type: "bigint", LengthOrValues: model.NewScalar("20"), Default: model.NullScalar, AllowNull: true}),
		Relationships: relationships("exampleEntityOne", []string{"relationshipOne"}),
		Options:       model.Options{EnforceLockingConstraints: false},
	}
	dataModel := singleModel(one, two)
	gw := gatewaytest.New("main", "main_schema")

	first := newAllYesEngine(casing.Snake)
	if _, err := first.Run(context.Background(), dataModel, []ModuleConnection{{Name: "main", Gateway: gw}}); err != nil {
		t.Fatalf("first run: unexpected error: %v", err)
	}

	second := newAllYesEngine(casing.Snake)
	summary, err := second.Run(context.Background(), dataModel, []ModuleConnection{{Name: "main", Gateway: gw}})
	if err != nil {
		t.Fatalf("second run: unexpected error: %v", err)
	}
	if !summary.IsNoOp() {
		t.Errorf("second run should be a column/index no-op, got %+v", summary)
	}
	if summary.ForeignKeysDropped != 1 || summary.ForeignKeysAdded != 1 {
		t.Errorf("second run should still rebuild the one expected FK, got dropped=%d added=%d", summary.ForeignKeysDropped, summary.ForeignKeysAdded)
	}
}

func TestNonInnoDBAbort(t *testing.T) {
	dataModel := singleModel()
	gw := gatewaytest.New("main", "main_schema")
	gw.SetInnoDBSupported(false)

	engine := newAllYesEngine(casing.Snake)
	_, err := engine.Run(context.Background(), dataModel, []ModuleConnection{{Name: "main", Gateway: gw}})
	if err == nil {
		t.Fatal("expected an IntegrityError, got nil")
	}
	if len(gw.Statements()) != 0 {
		t.Errorf("no DDL should run when the integrity probe fails, got %v", gw.Statements())
	}
	if engine.State() != StateFailed {
		t.Errorf("got engine state %s, want %s", engine.State(), StateFailed)
	}
}
