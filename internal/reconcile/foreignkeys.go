package reconcile

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/divbloxjs/dx-db-sync/internal/casing"
	"github.com/divbloxjs/dx-db-sync/internal/ddl"
	"github.com/divbloxjs/dx-db-sync/internal/gateway"
	"github.com/divbloxjs/dx-db-sync/internal/model"
)

// ForeignKeySpec is one expected foreign key constraint for an entity
// (§4.5.5): the column it lives on, the entity it references, and the fresh
// constraint name it will be created under this run.
type ForeignKeySpec struct {
	Column         string
	RelatedEntity  string
	ConstraintName string
}

// freshConstraintName mints a collision-resistant constraint name: a SHA-256
// digest of a high-resolution timestamp plus a random component, hex
// encoded and truncated (§4.5.5 — constraint names are never derived
// deterministically from the owning column, by design).
func freshConstraintName() string {
	var stamp [8]byte
	binary.BigEndian.PutUint64(stamp[:], uint64(time.Now().UnixNano()))
	entropy := make([]byte, 16)
	_, _ = rand.Read(entropy)
	sum := sha256.Sum256(append(stamp[:], entropy...))
	return "fk_" + hex.EncodeToString(sum[:])[:20]
}

// expectedForeignKeys computes expectedForeignKeys(E) (§3, §4.5.5): one spec
// per (relatedEntity, role) pair, each minted a fresh constraint name.
func expectedForeignKeys(entity *model.EntityDefinition, policy casing.Policy) []ForeignKeySpec {
	cols := entity.RelationshipColumns(policy)
	specs := make([]ForeignKeySpec, len(cols))
	for i, rc := range cols {
		specs[i] = ForeignKeySpec{
			Column:         rc.Column,
			RelatedEntity:  rc.RelatedEntity,
			ConstraintName: freshConstraintName(),
		}
	}
	return specs
}

// dropAllForeignKeys implements phase 7, the drop-only pass: because
// constraint names are regenerated every run, no currently stored name can
// ever match an expected one, so every foreign key on table is dropped
// unconditionally (§4.5.5). expectedNames is still consulted, preserving
// the name-equality matching rule the specification requires implementers
// to keep rather than special-casing "drop everything".
func dropAllForeignKeys(table string, current []gateway.ForeignKeyRow, expectedNames map[string]bool) ([]string, int) {
	var statements []string
	dropped := 0
	for _, fk := range current {
		if expectedNames[fk.ConstraintName] {
			continue
		}
		statements = append(statements, ddl.DropForeignKey("", table, fk.ConstraintName))
		dropped++
	}
	return statements, dropped
}

// addForeignKeys implements phase 10, the add pass: create every expected
// foreign key, referencing the related entity's primary key column under
// the same case policy.
func addForeignKeys(table string, specs []ForeignKeySpec, policy casing.Policy) ([]string, int) {
	statements := make([]string, len(specs))
	for i, spec := range specs {
		refTable := casing.Normalize(spec.RelatedEntity, policy)
		refCol := casing.PrimaryKeyColumn(policy)
		statements[i] = ddl.AddForeignKey(table, spec.ConstraintName, spec.Column, refTable, refCol)
	}
	return statements, len(specs)
}
