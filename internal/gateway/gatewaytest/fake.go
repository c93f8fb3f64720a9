// Package gatewaytest provides an in-memory Gateway double for exercising
// the Reconciliation Engine headlessly, without a real MySQL server. It
// applies the effect of every statement the engine's own SQL Fragment
// Builder can produce, so property tests (e.g. "a second run is a no-op")
// can run against real engine code with no network dependency.
package gatewaytest

import (
	"context"
	"database/sql"
	"regexp"
	"sort"
	"strings"

	"github.com/divbloxjs/dx-db-sync/internal/gateway"
	"github.com/divbloxjs/dx-db-sync/internal/syncerr"
)

type fakeColumn struct {
	null string
	typ  string
	def  sql.NullString
}

type fakeTable struct {
	columns map[string]*fakeColumn
	colOrd  []string
	indexes map[string]string // indexName -> column
	idxOrd  []string
	fks     map[string]gateway.ForeignKeyRow
	fkOrd   []string
}

// Gateway is the in-memory fake. Statements() returns every statement
// executed, in order, for assertions.
type Gateway struct {
	module string
	schema string

	innoDB         bool
	fkChecksOn     bool
	tables         map[string]*fakeTable
	tableOrd       []string
	statements     []string
	inTx           bool
	ExecuteErrorOn string // if non-empty, Execute fails when the statement contains this substring
}

// New returns an empty fake Gateway for the given module/schema, with the
// default InnoDB engine and FK checks enabled, as a fresh MySQL server would
// report.
func New(module, schema string) *Gateway {
	return &Gateway{
		module:     module,
		schema:     schema,
		innoDB:     true,
		fkChecksOn: true,
		tables:     make(map[string]*fakeTable),
	}
}

// SetInnoDBSupported lets tests simulate a non-InnoDB-default module (S6).
func (g *Gateway) SetInnoDBSupported(v bool) { g.innoDB = v }

// Statements returns every statement executed so far, in order.
func (g *Gateway) Statements() []string { return append([]string(nil), g.statements...) }

func (g *Gateway) Module() string { return g.module }
func (g *Gateway) Schema() string { return g.schema }

func (g *Gateway) EngineSupportsInnoDB(ctx context.Context) (bool, error) { return g.innoDB, nil }

func (g *Gateway) SetForeignKeyChecks(ctx context.Context, enabled bool) error {
	g.fkChecksOn = enabled
	g.statements = append(g.statements, boolToFKStmt(enabled))
	return nil
}

func boolToFKStmt(enabled bool) string {
	if enabled {
		return "SET FOREIGN_KEY_CHECKS=1"
	}
	return "SET FOREIGN_KEY_CHECKS=0"
}

func (g *Gateway) IntrospectTables(ctx context.Context) ([]gateway.TableRow, error) {
	rows := make([]gateway.TableRow, 0, len(g.tableOrd))
	for _, name := range g.tableOrd {
		rows = append(rows, gateway.TableRow{Name: name, Type: "BASE TABLE"})
	}
	return rows, nil
}

func (g *Gateway) IntrospectColumns(ctx context.Context, table string) ([]gateway.ColumnRow, error) {
	t, ok := g.tables[table]
	if !ok {
		return nil, &syncerr.IntrospectionError{Module: g.module, Schema: g.schema, Statement: "SHOW FULL COLUMNS FROM " + table}
	}
	rows := make([]gateway.ColumnRow, 0, len(t.colOrd))
	for _, name := range t.colOrd {
		c := t.columns[name]
		rows = append(rows, gateway.ColumnRow{Field: name, Null: c.null, Type: c.typ, Default: c.def})
	}
	return rows, nil
}

func (g *Gateway) IntrospectIndexes(ctx context.Context, table string) ([]gateway.IndexRow, error) {
	t, ok := g.tables[table]
	if !ok {
		return nil, nil
	}
	rows := make([]gateway.IndexRow, 0, len(t.idxOrd))
	for _, name := range t.idxOrd {
		rows = append(rows, gateway.IndexRow{Name: name, Column: t.indexes[name]})
	}
	return rows, nil
}

func (g *Gateway) IntrospectForeignKeys(ctx context.Context, table string) ([]gateway.ForeignKeyRow, error) {
	t, ok := g.tables[table]
	if !ok {
		return nil, nil
	}
	rows := make([]gateway.ForeignKeyRow, 0, len(t.fkOrd))
	for _, name := range t.fkOrd {
		rows = append(rows, t.fks[name])
	}
	return rows, nil
}

func (g *Gateway) BeginTx(ctx context.Context) error { g.inTx = true; return nil }
func (g *Gateway) Commit(ctx context.Context) error  { g.inTx = false; return nil }
func (g *Gateway) Rollback(ctx context.Context) error { g.inTx = false; return nil }
func (g *Gateway) Close() error                       { return nil }

var (
	reCreateTable  = regexp.MustCompile("^CREATE TABLE `([^`]+)` \\(`([^`]+)` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY\\) ENGINE=InnoDB$")
	reDropTable    = regexp.MustCompile("^DROP TABLE (.+)$")
	reAddColumn    = regexp.MustCompile("^ALTER TABLE `([^`]+)` ADD COLUMN `([^`]+)` (\\S+)(\\([^)]*\\))?( NOT NULL)?( DEFAULT (.+))?$")
	reModifyColumn = regexp.MustCompile("^ALTER TABLE `([^`]+)` MODIFY COLUMN `([^`]+)` (\\S+)(\\([^)]*\\))?( NOT NULL)?( DEFAULT (.+))?$")
	reDropColumn   = regexp.MustCompile("^ALTER TABLE `([^`]+)` DROP COLUMN `([^`]+)`$")
	reAddIndex     = regexp.MustCompile("^ALTER TABLE `([^`]+)` ADD (INDEX|UNIQUE INDEX|SPATIAL INDEX|FULLTEXT INDEX) `([^`]+)` \\(`([^`]+)`\\)( USING \\w+)?$")
	reDropIndex    = regexp.MustCompile("^ALTER TABLE `([^`]+)` DROP INDEX `([^`]+)`$")
	reAddFK        = regexp.MustCompile("^ALTER TABLE `([^`]+)` ADD CONSTRAINT `([^`]+)` FOREIGN KEY \\(`([^`]+)`\\) REFERENCES `([^`]+)` \\(`([^`]+)`\\) ON DELETE (SET NULL|\\w+) ON UPDATE (SET NULL|\\w+)$")
	reDropFK       = regexp.MustCompile("^ALTER TABLE `([^`]+)` DROP FOREIGN KEY `([^`]+)`$")
)

// Execute applies the effect of a DDL statement produced by
// internal/ddl to this fake's in-memory state.
func (g *Gateway) Execute(ctx context.Context, statement string) error {
	g.statements = append(g.statements, statement)
	if g.ExecuteErrorOn != "" && strings.Contains(statement, g.ExecuteErrorOn) {
		return &syncerr.DdlError{Module: g.module, Schema: g.schema, Statement: statement, Err: errDeliberate}
	}

	switch {
	case statement == "SET FOREIGN_KEY_CHECKS=0":
		g.fkChecksOn = false
	case statement == "SET FOREIGN_KEY_CHECKS=1":
		g.fkChecksOn = true
	case reCreateTable.MatchString(statement):
		m := reCreateTable.FindStringSubmatch(statement)
		g.createTable(m[1], m[2])
	case reDropTable.MatchString(statement):
		m := reDropTable.FindStringSubmatch(statement)
		for _, name := range strings.Split(m[1], ", ") {
			g.dropTable(strings.Trim(name, "`"))
		}
	case reAddColumn.MatchString(statement):
		m := reAddColumn.FindStringSubmatch(statement)
		g.addColumn(m[1], m[2], m[3], strings.Trim(m[4], "()"), m[5] != "", m[7])
	case reModifyColumn.MatchString(statement):
		m := reModifyColumn.FindStringSubmatch(statement)
		g.modifyColumn(m[1], m[2], m[3], strings.Trim(m[4], "()"), m[5] != "", m[7])
	case reDropColumn.MatchString(statement):
		m := reDropColumn.FindStringSubmatch(statement)
		g.dropColumn(m[1], m[2])
	case reAddIndex.MatchString(statement):
		m := reAddIndex.FindStringSubmatch(statement)
		g.addIndex(m[1], m[3], m[4])
	case reDropIndex.MatchString(statement):
		m := reDropIndex.FindStringSubmatch(statement)
		g.dropIndex(m[1], m[2])
	case reAddFK.MatchString(statement):
		m := reAddFK.FindStringSubmatch(statement)
		g.addFK(m[1], m[2], m[3], m[4], m[5], m[6], m[7])
	case reDropFK.MatchString(statement):
		m := reDropFK.FindStringSubmatch(statement)
		g.dropFK(m[1], m[2])
	}
	return nil
}

var errDeliberate = &fakeErr{"deliberate fake gateway execute error"}

type fakeErr struct{ s string }

func (e *fakeErr) Error() string { return e.s }

func (g *Gateway) createTable(name, pk string) {
	t := &fakeTable{columns: map[string]*fakeColumn{}, indexes: map[string]string{}, fks: map[string]gateway.ForeignKeyRow{}}
	t.columns[pk] = &fakeColumn{null: "NO", typ: "bigint(20)"}
	t.colOrd = []string{pk}
	t.indexes["PRIMARY"] = pk
	t.idxOrd = []string{"PRIMARY"}
	g.tables[name] = t
	g.tableOrd = append(g.tableOrd, name)
}

func (g *Gateway) dropTable(name string) {
	delete(g.tables, name)
	for i, n := range g.tableOrd {
		if n == name {
			g.tableOrd = append(g.tableOrd[:i], g.tableOrd[i+1:]...)
			break
		}
	}
}

func (g *Gateway) addColumn(table, col, typ, lov string, notNull bool, def string) {
	t := g.tables[table]
	if t == nil {
		return
	}
	if _, exists := t.columns[col]; !exists {
		t.colOrd = append(t.colOrd, col)
	}
	t.columns[col] = columnFrom(typ, lov, notNull, def)
}

func (g *Gateway) modifyColumn(table, col, typ, lov string, notNull bool, def string) {
	g.addColumn(table, col, typ, lov, notNull, def)
}

func columnFrom(typ, lov string, notNull bool, def string) *fakeColumn {
	full := typ
	if lov != "" {
		full += "(" + lov + ")"
	}
	c := &fakeColumn{typ: full, null: "YES"}
	if notNull {
		c.null = "NO"
	}
	def = strings.TrimPrefix(def, "DEFAULT ")
	def = strings.Trim(def, "'")
	// "DEFAULT NULL" (as emitted by internal/ddl for a nullable column with
	// no default) means no default value, not the literal string "NULL".
	if def != "" && !strings.EqualFold(def, "NULL") {
		c.def = sql.NullString{String: def, Valid: true}
	}
	return c
}

func (g *Gateway) dropColumn(table, col string) {
	t := g.tables[table]
	if t == nil {
		return
	}
	delete(t.columns, col)
	for i, n := range t.colOrd {
		if n == col {
			t.colOrd = append(t.colOrd[:i], t.colOrd[i+1:]...)
			break
		}
	}
}

func (g *Gateway) addIndex(table, name, col string) {
	t := g.tables[table]
	if t == nil {
		return
	}
	if _, exists := t.indexes[name]; !exists {
		t.idxOrd = append(t.idxOrd, name)
	}
	t.indexes[name] = col
}

func (g *Gateway) dropIndex(table, name string) {
	t := g.tables[table]
	if t == nil {
		return
	}
	delete(t.indexes, name)
	for i, n := range t.idxOrd {
		if n == name {
			t.idxOrd = append(t.idxOrd[:i], t.idxOrd[i+1:]...)
			break
		}
	}
}

func (g *Gateway) addFK(table, name, col, refTable, refCol, deleteRule, updateRule string) {
	t := g.tables[table]
	if t == nil {
		return
	}
	if _, exists := t.fks[name]; !exists {
		t.fkOrd = append(t.fkOrd, name)
	}
	t.fks[name] = gateway.ForeignKeyRow{
		ConstraintName: name, Column: col, ReferencedTable: refTable, ReferencedColumn: refCol,
		DeleteRule: deleteRule, UpdateRule: updateRule,
	}
}

func (g *Gateway) dropFK(table, name string) {
	t := g.tables[table]
	if t == nil {
		return
	}
	delete(t.fks, name)
	for i, n := range t.fkOrd {
		if n == name {
			t.fkOrd = append(t.fkOrd[:i], t.fkOrd[i+1:]...)
			break
		}
	}
}

// SeedTable pre-populates a table as if it already existed in the database,
// for tests that start from a non-empty state (e.g. S3 type drift, S2
// orphan removal).
func (g *Gateway) SeedTable(name, pkColumn string) {
	g.createTable(name, pkColumn)
}

// SeedColumn overrides/adds a column on an already-seeded table.
func (g *Gateway) SeedColumn(table, col, typ, lengthOrValues string, notNull bool, def string) {
	g.addColumn(table, col, typ, lengthOrValues, notNull, def)
}

// SeedIndex pre-populates an index on an already-seeded table.
func (g *Gateway) SeedIndex(table, name, column string) {
	g.addIndex(table, name, column)
}

// SeedForeignKey pre-populates a foreign key constraint on an already-seeded
// table.
func (g *Gateway) SeedForeignKey(table, name, column, refTable, refCol string) {
	g.addFK(table, name, column, refTable, refCol, "SET NULL", "CASCADE")
}

// TableNames returns current table names, sorted, for assertions.
func (g *Gateway) TableNames() []string {
	names := append([]string(nil), g.tableOrd...)
	sort.Strings(names)
	return names
}

// FKChecksEnabled reports the fake's current FOREIGN_KEY_CHECKS state, for
// asserting the scope guard restores it on every exit path.
func (g *Gateway) FKChecksEnabled() bool { return g.fkChecksOn }
