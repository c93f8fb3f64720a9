package reconcile

import (
	"strings"

	"github.com/divbloxjs/dx-db-sync/internal/casing"
	"github.com/divbloxjs/dx-db-sync/internal/ddl"
	"github.com/divbloxjs/dx-db-sync/internal/gateway"
	"github.com/divbloxjs/dx-db-sync/internal/model"
)

// expectedIndexNames computes the union §4.5.4 requires: every model index
// name (normalized) plus every expected foreign key's constraint name — the
// latter survive because MySQL auto-creates a supporting index alongside
// each foreign key, and that index must not be dropped as an "extra" one
// (§4.5.5 "name reuse in indexes").
func expectedIndexNames(entity *model.EntityDefinition, policy casing.Policy, fkSpecs []ForeignKeySpec) map[string]bool {
	names := map[string]bool{}
	for _, idx := range entity.Indexes {
		names[casing.Normalize(idx.IndexName, policy)] = true
	}
	for _, spec := range fkSpecs {
		names[spec.ConstraintName] = true
	}
	return names
}

// reconcileIndexes implements §4.5.4 for one entity.
func reconcileIndexes(table string, entity *model.EntityDefinition, policy casing.Policy, existingRows []gateway.IndexRow, fkSpecs []ForeignKeySpec) ([]string, int, int) {
	existingNames := map[string]bool{}
	for _, row := range existingRows {
		existingNames[row.Name] = true
	}
	expected := expectedIndexNames(entity, policy, fkSpecs)

	var statements []string
	added, dropped := 0, 0

	for _, idx := range entity.Indexes {
		name := casing.Normalize(idx.IndexName, policy)
		if existingNames[name] {
			continue
		}
		column := model.AttributeColumnName(idx.Attribute, policy)
		statements = append(statements, ddl.AddIndex(table, name, idx.IndexChoice, column, idx.Algorithm))
		added++
	}

	dropSeen := map[string]bool{}
	for _, row := range existingRows {
		name := row.Name
		if dropSeen[name] || strings.EqualFold(name, "PRIMARY") || expected[name] {
			continue
		}
		dropSeen[name] = true
		statements = append(statements, ddl.DropIndex(table, name))
		dropped++
	}

	return statements, added, dropped
}
