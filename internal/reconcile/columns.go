package reconcile

import (
	"regexp"
	"strings"

	"github.com/divbloxjs/dx-db-sync/internal/casing"
	"github.com/divbloxjs/dx-db-sync/internal/ddl"
	"github.com/divbloxjs/dx-db-sync/internal/gateway"
	"github.com/divbloxjs/dx-db-sync/internal/model"
)

// existingColumn is a SHOW FULL COLUMNS row normalised into the same shape
// as an AttributeDefinition, per §4.5.3.
type existingColumn struct {
	Type           string
	LengthOrValues string // "" means no parenthesized suffix
	Default        model.Scalar
	AllowNull      bool
}

var enumSetValue = regexp.MustCompile(`'([^']*)'`)

// parseColumnRow normalises one gateway.ColumnRow the way §4.5.3 specifies:
// the Type is split at the first '(' with the trailing ')' stripped.
func parseColumnRow(row gateway.ColumnRow) existingColumn {
	base, paren := splitType(row.Type)
	ec := existingColumn{
		Type:      base,
		AllowNull: strings.EqualFold(row.Null, "YES"),
	}
	if paren != "" {
		if isEnumOrSetType(base) {
			ec.LengthOrValues = enumValueList(paren)
		} else {
			ec.LengthOrValues = paren
		}
	}
	if row.Default.Valid {
		ec.Default = model.NewScalar(row.Default.String)
	}
	return ec
}

func splitType(raw string) (base, paren string) {
	i := strings.IndexByte(raw, '(')
	if i < 0 {
		return raw, ""
	}
	return raw[:i], strings.TrimSuffix(raw[i+1:], ")")
}

func isEnumOrSetType(base string) bool {
	b := strings.ToLower(base)
	return b == "enum" || b == "set"
}

func enumValueList(paren string) string {
	matches := enumSetValue.FindAllStringSubmatch(paren, -1)
	values := make([]string, len(matches))
	for i, m := range matches {
		values[i] = m[1]
	}
	return strings.Join(values, ",")
}

// attributeMatches compares an existing column against an AttributeDefinition
// in the fixed key order §4.5.3 requires: type, lengthOrValues, default,
// allowNull. Comparison stops at the first mismatching key.
func attributeMatches(existing existingColumn, def model.AttributeDefinition) bool {
	if !strings.EqualFold(existing.Type, def.Type) {
		return false
	}
	if !lengthOrValuesMatch(existing, def) {
		return false
	}
	if !defaultMatch(existing.Default, def.Default) {
		return false
	}
	return existing.AllowNull == def.AllowNull
}

func lengthOrValuesMatch(existing existingColumn, def model.AttributeDefinition) bool {
	if !def.LengthOrValues.Valid {
		return existing.LengthOrValues == ""
	}
	// The model integer/value-list is coerced to its string form for
	// comparison against the introspected, already-string value.
	return existing.LengthOrValues == def.LengthOrValues.Raw
}

func defaultMatch(existing, def model.Scalar) bool {
	if def.IsCurrentTimestamp() {
		return existing.Valid && strings.EqualFold(existing.Raw, model.CurrentTimestampSentinel)
	}
	if !def.Valid {
		return !existing.Valid
	}
	return existing.Valid && existing.Raw == def.Raw
}

// foreignKeyColumnDefinition is the synthetic definition expected for every
// relationship-materialized column: BIGINT(20), nullable (ON DELETE SET
// NULL requires it) (§3 invariant).
func foreignKeyColumnDefinition() model.AttributeDefinition {
	return model.AttributeDefinition{
		Type:           "bigint",
		LengthOrValues: model.NewScalar("20"),
		Default:        model.NullScalar,
		AllowNull:      true,
	}
}

// columnReconcileResult is the outcome of reconciling one entity's columns.
type columnReconcileResult struct {
	Statements           []string
	Added, Modified, Dropped int
	// RelationshipProcessed records every expected relationship column this
	// pass handled, whether it already existed (and was retyped if needed)
	// or was added, so that no relationship column is added twice.
	RelationshipProcessed map[string]bool
}

// reconcileColumns implements §4.5.3 for one entity.
func reconcileColumns(table string, entity *model.EntityDefinition, policy casing.Policy, existingRows []gateway.ColumnRow) columnReconcileResult {
	result := columnReconcileResult{RelationshipProcessed: map[string]bool{}}

	primaryKey := entity.PrimaryKeyColumn(policy)
	expected := entity.ExpectedColumnSet(policy)
	lockingCol, lockingEnabled := entity.LockingColumn(policy)

	attributeColumns := map[string]string{} // column name -> attribute name
	for pair := entity.Attributes.Oldest(); pair != nil; pair = pair.Next() {
		attributeColumns[model.AttributeColumnName(pair.Key, policy)] = pair.Key
	}
	relationshipColumns := map[string]bool{}
	for _, rc := range entity.RelationshipColumns(policy) {
		relationshipColumns[rc.Column] = true
	}

	processed := map[string]bool{}

	for _, row := range existingRows {
		name := row.Field
		if name == primaryKey {
			processed[name] = true
			continue
		}
		if !expected[name] {
			result.Statements = append(result.Statements, ddl.DropColumn(table, name))
			result.Dropped++
			continue
		}
		existing := parseColumnRow(row)
		switch {
		case attributeColumns[name] != "":
			attrName := attributeColumns[name]
			def, _ := entity.Attributes.Get(attrName)
			if !attributeMatches(existing, def) {
				result.Statements = append(result.Statements, ddl.ModifyColumn(table, name, def))
				result.Modified++
			}
			processed[name] = true
		case lockingEnabled && name == lockingCol:
			def := model.LockingColumnDefinition()
			if !attributeMatches(existing, def) {
				result.Statements = append(result.Statements, ddl.ModifyColumn(table, name, def))
				result.Modified++
			}
			processed[name] = true
		case relationshipColumns[name]:
			def := foreignKeyColumnDefinition()
			if !strings.EqualFold(existing.Type, def.Type) {
				result.Statements = append(result.Statements, ddl.ModifyColumn(table, name, def))
				result.Modified++
			}
			processed[name] = true
			result.RelationshipProcessed[name] = true
		}
	}

	if !processed[primaryKey] {
		// Skeleton creation (phase 6) always adds the primary key; this is
		// only reachable if introspection raced a concurrent DDL elsewhere.
		processed[primaryKey] = true
	}

	for pair := entity.Attributes.Oldest(); pair != nil; pair = pair.Next() {
		colName := model.AttributeColumnName(pair.Key, policy)
		if processed[colName] {
			continue
		}
		result.Statements = append(result.Statements, ddl.AddColumn(table, colName, pair.Value))
		result.Added++
	}
	if lockingEnabled && !processed[lockingCol] {
		result.Statements = append(result.Statements, ddl.AddColumn(table, lockingCol, model.LockingColumnDefinition()))
		result.Added++
	}

	for _, rc := range entity.RelationshipColumns(policy) {
		if result.RelationshipProcessed[rc.Column] {
			continue
		}
		result.Statements = append(result.Statements, ddl.AddColumn(table, rc.Column, foreignKeyColumnDefinition()))
		result.Added++
		result.RelationshipProcessed[rc.Column] = true
	}

	return result
}
