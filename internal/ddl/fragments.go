// Package ddl is the SQL Fragment Builder (§4.3): pure functions that
// produce column-definition SQL, ALTER ... ADD/MODIFY/DROP COLUMN, index
// creation SQL per index kind, and foreign-key creation/drop SQL. No I/O
// happens in this package.
package ddl

import (
	"fmt"
	"strings"

	"github.com/divbloxjs/dx-db-sync/internal/model"
)

// EscapeIdentifier backtick-quotes a MySQL identifier, doubling any
// embedded backtick per MySQL's escaping rules.
func EscapeIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// escapeLiteral single-quotes a SQL string literal, doubling any embedded
// single quote.
func escapeLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func isEnumOrSet(sqlType string) bool {
	t := strings.ToLower(sqlType)
	return t == "enum" || t == "set"
}

// lengthOrValuesClause renders the parenthesized suffix of a column type,
// e.g. "(50)" for varchar(50) or "('a','b','c')" for an enum/set.
func lengthOrValuesClause(def model.AttributeDefinition) string {
	if !def.LengthOrValues.Valid {
		return ""
	}
	if isEnumOrSet(def.Type) {
		values := strings.Split(def.LengthOrValues.Raw, ",")
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = escapeLiteral(strings.TrimSpace(v))
		}
		return "(" + strings.Join(quoted, ",") + ")"
	}
	return "(" + def.LengthOrValues.Raw + ")"
}

// defaultClause renders the column's DEFAULT clause, or "" if none applies.
func defaultClause(def model.AttributeDefinition) string {
	if !def.Default.Valid {
		if def.AllowNull {
			return " DEFAULT NULL"
		}
		return ""
	}
	if def.Default.IsCurrentTimestamp() {
		return " DEFAULT " + model.CurrentTimestampSentinel
	}
	return " DEFAULT " + escapeLiteral(def.Default.Raw)
}

// ColumnClause returns a column's definition clause, for use in CREATE TABLE
// or ALTER TABLE ... ADD/MODIFY COLUMN.
func ColumnClause(column string, def model.AttributeDefinition) string {
	var nullability string
	if !def.AllowNull {
		nullability = " NOT NULL"
	}
	return fmt.Sprintf("%s %s%s%s%s",
		EscapeIdentifier(column), def.Type, lengthOrValuesClause(def), nullability, defaultClause(def))
}

// AddColumn returns an ALTER TABLE ... ADD COLUMN statement.
func AddColumn(table, column string, def model.AttributeDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", EscapeIdentifier(table), ColumnClause(column, def))
}

// ModifyColumn returns an ALTER TABLE ... MODIFY COLUMN statement.
func ModifyColumn(table, column string, def model.AttributeDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", EscapeIdentifier(table), ColumnClause(column, def))
}

// DropColumn returns an ALTER TABLE ... DROP COLUMN statement.
func DropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", EscapeIdentifier(table), EscapeIdentifier(column))
}

// AlterPrimaryKey returns a statement that (re)establishes pkCol as the
// table's single BIGINT AUTO_INCREMENT primary key.
func AlterPrimaryKey(table, pkCol string) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s BIGINT NOT NULL AUTO_INCREMENT FIRST, ADD PRIMARY KEY (%s)",
		EscapeIdentifier(table), EscapeIdentifier(pkCol), EscapeIdentifier(pkCol))
}

// CreateTable returns a CREATE TABLE statement for a new table skeleton:
// just the primary key column (§4.5.1 phase 6 creates tables with the
// primary key only; all other columns arrive during column reconciliation).
func CreateTable(table, pkCol string) string {
	return fmt.Sprintf("CREATE TABLE %s (%s BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY) ENGINE=InnoDB",
		EscapeIdentifier(table), EscapeIdentifier(pkCol))
}

// DropTable returns a statement dropping every named table from one schema
// in a single DDL call (§4.5.2 "all" mode).
func DropTable(tables []string) string {
	quoted := make([]string, len(tables))
	for i, t := range tables {
		quoted[i] = EscapeIdentifier(t)
	}
	return "DROP TABLE " + strings.Join(quoted, ", ")
}

func indexTypeAndUsing(kind model.IndexChoice, alg model.IndexAlgorithm) (kindKeyword string, usingClause string) {
	switch kind {
	case model.IndexChoiceUnique:
		kindKeyword = "UNIQUE INDEX"
	case model.IndexChoiceSpatial:
		kindKeyword = "SPATIAL INDEX"
	case model.IndexChoiceFulltext:
		kindKeyword = "FULLTEXT INDEX"
	default:
		kindKeyword = "INDEX"
	}
	// §4.3: for kind in {index, unique} the USING clause is emitted; for
	// {spatial, fulltext} it is omitted (those kinds don't support BTREE/HASH).
	if kind == model.IndexChoiceIndex || kind == model.IndexChoiceUnique {
		usingClause = fmt.Sprintf(" USING %s", alg)
	}
	return kindKeyword, usingClause
}

// AddIndex returns an ALTER TABLE ... ADD <kind> statement for a
// single-column index.
func AddIndex(table, indexName string, kind model.IndexChoice, column string, alg model.IndexAlgorithm) string {
	kindKeyword, usingClause := indexTypeAndUsing(kind, alg)
	return fmt.Sprintf("ALTER TABLE %s ADD %s %s (%s)%s",
		EscapeIdentifier(table), kindKeyword, EscapeIdentifier(indexName), EscapeIdentifier(column), usingClause)
}

// DropIndex returns an ALTER TABLE ... DROP INDEX statement.
func DropIndex(table, indexName string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", EscapeIdentifier(table), EscapeIdentifier(indexName))
}

// AddForeignKey returns an ALTER TABLE ... ADD CONSTRAINT ... FOREIGN KEY
// statement. Every foreign key in this system references the primary key of
// refTable, with ON DELETE SET NULL ON UPDATE CASCADE (§3 invariant).
func AddForeignKey(table, constraintName, column, refTable, refCol string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE SET NULL ON UPDATE CASCADE",
		EscapeIdentifier(table), EscapeIdentifier(constraintName), EscapeIdentifier(column),
		EscapeIdentifier(refTable), EscapeIdentifier(refCol))
}

// DropForeignKey returns an ALTER TABLE ... DROP FOREIGN KEY statement.
// schema is accepted for symmetry with the other gateway-facing builders
// (constraint names are unique per-schema in information_schema) but MySQL's
// DROP FOREIGN KEY syntax itself only needs the table and constraint name.
func DropForeignKey(schema, table, constraintName string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", EscapeIdentifier(table), EscapeIdentifier(constraintName))
}

// SetForeignKeyChecks returns the session-scoped statement toggling
// referential integrity enforcement.
func SetForeignKeyChecks(enabled bool) string {
	if enabled {
		return "SET FOREIGN_KEY_CHECKS=1"
	}
	return "SET FOREIGN_KEY_CHECKS=0"
}
