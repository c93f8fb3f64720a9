package model

import "github.com/divbloxjs/dx-db-sync/internal/casing"

// RelationshipColumnSpec is one materialized foreign-key column implied by
// an entity's relationships.
type RelationshipColumnSpec struct {
	Column        string
	RelatedEntity string
	Role          string
}

// RelationshipColumns returns every relationship-derived column for this
// entity, in relationship/role declaration order (§5 ordering guarantee).
func (e *EntityDefinition) RelationshipColumns(policy casing.Policy) []RelationshipColumnSpec {
	if e.Relationships == nil {
		return nil
	}
	var cols []RelationshipColumnSpec
	for pair := e.Relationships.Oldest(); pair != nil; pair = pair.Next() {
		related := pair.Key
		for _, role := range pair.Value {
			cols = append(cols, RelationshipColumnSpec{
				Column:        casing.RelationshipColumn(related, role, policy),
				RelatedEntity: related,
				Role:          role,
			})
		}
	}
	return cols
}

// RelationshipFromColumn is the reverse lookup of RelationshipColumns (§4.5.6):
// given a column name on this entity, find which related entity it
// references. Returns ok=false if no relationship materializes that column,
// which indicates a bug upstream (the FK is then skipped by the caller).
func (e *EntityDefinition) RelationshipFromColumn(column string, policy casing.Policy) (relatedEntity string, ok bool) {
	for _, rc := range e.RelationshipColumns(policy) {
		if rc.Column == column {
			return rc.RelatedEntity, true
		}
	}
	return "", false
}

// PrimaryKeyColumn returns this entity's primary key column name under the
// given case policy. It is always a single BIGINT AUTO_INCREMENT column.
func (e *EntityDefinition) PrimaryKeyColumn(policy casing.Policy) string {
	return casing.PrimaryKeyColumn(policy)
}

// LockingColumn returns the entity's optimistic-locking column name, and
// whether one is expected at all (Options.EnforceLockingConstraints).
func (e *EntityDefinition) LockingColumn(policy casing.Policy) (string, bool) {
	if !e.Options.EnforceLockingConstraints {
		return "", false
	}
	return casing.LockingColumn(policy), true
}

// ExpectedColumnSet returns the full set of database column names expected
// to exist for this entity (§3: primary key, attributes, relationship
// columns, and the locking column if enabled), keyed by column name.
func (e *EntityDefinition) ExpectedColumnSet(policy casing.Policy) map[string]bool {
	set := map[string]bool{e.PrimaryKeyColumn(policy): true}
	for pair := e.Attributes.Oldest(); pair != nil; pair = pair.Next() {
		set[casing.Normalize(pair.Key, policy)] = true
	}
	for _, rc := range e.RelationshipColumns(policy) {
		set[rc.Column] = true
	}
	if col, ok := e.LockingColumn(policy); ok {
		set[col] = true
	}
	return set
}

// AttributeColumnName returns the normalized column name for a model
// attribute.
func AttributeColumnName(attributeName string, policy casing.Policy) string {
	return casing.Normalize(attributeName, policy)
}

// LockingColumnDefinition is the synthetic AttributeDefinition used when
// materializing/validating the locking column (§4.5.3).
func LockingColumnDefinition() AttributeDefinition {
	return AttributeDefinition{
		Type:           "datetime",
		LengthOrValues: NullScalar,
		Default:        NewScalar(CurrentTimestampSentinel),
		AllowNull:      false,
	}
}
