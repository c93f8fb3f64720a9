package reconcile

import (
	"fmt"
	"strings"

	"github.com/divbloxjs/dx-db-sync/internal/casing"
	"github.com/divbloxjs/dx-db-sync/internal/ddl"
	"github.com/divbloxjs/dx-db-sync/internal/gateway"
	"github.com/divbloxjs/dx-db-sync/internal/interact"
	"github.com/divbloxjs/dx-db-sync/internal/model"
)

// expectedTableNames returns every table name this module's entities
// materialize to, in model (insertion) order.
func expectedTableNames(entities []*model.EntityDefinition, policy casing.Policy) []string {
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = casing.Normalize(e.Name, policy)
	}
	return names
}

// diffTables computes tablesCreate and tablesRemove (§4.5.1 phase 4).
// tablesCreate preserves model order; tablesRemove preserves the order
// tables were introspected in.
func diffTables(expected []string, existing []gateway.TableRow) (toCreate, toRemove []string) {
	expectedSet := map[string]bool{}
	for _, n := range expected {
		expectedSet[n] = true
	}
	existingSet := map[string]bool{}
	for _, row := range existing {
		existingSet[row.Name] = true
	}
	for _, n := range expected {
		if !existingSet[n] {
			toCreate = append(toCreate, n)
		}
	}
	for _, row := range existing {
		if !expectedSet[row.Name] {
			toRemove = append(toRemove, row.Name)
		}
	}
	return toCreate, toRemove
}

// resolveOrphanDrops decides which of orphans actually get dropped, given
// the run's TableDropMode (§4.5.2). DropInteractive walks the Interaction
// Shim's yes/no/all/none/list menu per table.
func resolveOrphanDrops(shim interact.Shim, mode TableDropMode, module string, orphans []string) []string {
	switch mode {
	case DropAll:
		return orphans
	case DropNone:
		return nil
	default:
		var toDrop []string
		for i := 0; i < len(orphans); i++ {
			table := orphans[i]
			for {
				prompt := fmt.Sprintf("Drop orphan table %q in module %q?", table, module)
				decision, err := shim.Confirm(prompt, true)
				if err != nil {
					return toDrop
				}
				if decision == interact.DecisionList {
					shim.Report("Existing table clean up", "remaining orphan tables: "+strings.Join(orphans[i:], ", "), interact.LevelInfo)
					continue
				}
				switch decision {
				case interact.DecisionYes:
					toDrop = append(toDrop, table)
				case interact.DecisionAll:
					return append(toDrop, orphans[i:]...)
				case interact.DecisionNone:
					return toDrop
				}
				break
			}
		}
		return toDrop
	}
}

// dropTablesStatement builds the single-statement DROP TABLE for every
// table in toDrop. Per the decision recorded in DESIGN.md resolving the
// source's inverted filter (§9 open question), toDrop is exactly the set of
// this module's own orphan tables selected for removal — nothing is
// excluded, so property 2 (no stray tables survive a successful run) holds.
func dropTablesStatement(toDrop []string) string {
	return ddl.DropTable(toDrop)
}

// createSkeletonTables builds one CREATE TABLE statement per entity in
// toCreate, each with only its primary key column (§4.5.1 phase 6).
func createSkeletonTables(toCreate []string, pkColumn string) []string {
	statements := make([]string, len(toCreate))
	for i, table := range toCreate {
		statements[i] = ddl.CreateTable(table, pkColumn)
	}
	return statements
}
