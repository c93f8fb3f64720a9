// Package model defines the declarative data model (§3 of the
// specification): entities, their attributes, indexes and relationships, the
// connection configuration that maps modules to schemas, and the structural
// validator that turns raw JSON into a trusted, defaulted DataModel.
package model

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// IndexChoice is the kind of index an IndexDefinition describes.
type IndexChoice int

// Supported index kinds.
const (
	IndexChoiceIndex IndexChoice = iota
	IndexChoiceUnique
	IndexChoiceSpatial
	IndexChoiceFulltext
)

func (c IndexChoice) String() string {
	switch c {
	case IndexChoiceUnique:
		return "unique"
	case IndexChoiceSpatial:
		return "spatial"
	case IndexChoiceFulltext:
		return "fulltext"
	default:
		return "index"
	}
}

// IndexAlgorithm is the storage algorithm used by an index (BTREE or HASH).
type IndexAlgorithm int

// Supported index algorithms.
const (
	IndexAlgorithmBTree IndexAlgorithm = iota
	IndexAlgorithmHash
)

func (a IndexAlgorithm) String() string {
	if a == IndexAlgorithmHash {
		return "HASH"
	}
	return "BTREE"
}

// Scalar is a JSON value that may be null, a number, or a string. It backs
// AttributeDefinition.LengthOrValues and AttributeDefinition.Default, both of
// which the data model allows to be the JSON null literal, an integer, or a
// (possibly comma-separated) string.
type Scalar struct {
	Valid bool
	Raw   string // exact textual form as supplied, e.g. "50" or "CURRENT_TIMESTAMP"
}

// NullScalar is the zero Scalar, representing JSON null.
var NullScalar = Scalar{}

// NewScalar wraps a literal string value as a present Scalar.
func NewScalar(s string) Scalar {
	return Scalar{Valid: true, Raw: s}
}

// CurrentTimestampSentinel is the well-known default value token meaning the
// column should default to CURRENT_TIMESTAMP, emitted unquoted.
const CurrentTimestampSentinel = "CURRENT_TIMESTAMP"

// IsCurrentTimestamp reports whether this Scalar is the CURRENT_TIMESTAMP
// sentinel.
func (s Scalar) IsCurrentTimestamp() bool {
	return s.Valid && s.Raw == CurrentTimestampSentinel
}

// AttributeDefinition describes one scalar column of an entity.
type AttributeDefinition struct {
	Type           string // SQL type token, e.g. "varchar", "bigint", "datetime"
	LengthOrValues Scalar // null, an integer, or comma-separated enum/set values
	Default        Scalar // null, a literal value, or CurrentTimestampSentinel
	AllowNull      bool
}

// IndexDefinition describes one index on an entity.
type IndexDefinition struct {
	Attribute   string
	IndexName   string
	IndexChoice IndexChoice
	Algorithm   IndexAlgorithm
}

// Options are per-entity behavioral toggles.
type Options struct {
	EnforceLockingConstraints bool
	IsAuditEnabled            bool
}

// DefaultOptions returns the default Options record (§3: both default true).
func DefaultOptions() Options {
	return Options{EnforceLockingConstraints: true, IsAuditEnabled: true}
}

// EntityDefinition is one entity (table) in the data model.
type EntityDefinition struct {
	Name          string // camelCase entity name, the DataModel key
	Module        string
	Attributes    *orderedmap.OrderedMap[string, AttributeDefinition]
	Indexes       []IndexDefinition
	Relationships *orderedmap.OrderedMap[string, []string] // relatedEntityName -> ordered role names
	Options       Options
}

// DataModel is the full set of entities, keyed by entity name, in the order
// they appeared in the source JSON document. Iteration order drives the
// deterministic statement ordering required by §5.
type DataModel struct {
	Entities *orderedmap.OrderedMap[string, *EntityDefinition]
}

// EntityNames returns entity names in model (JSON insertion) order.
func (m *DataModel) EntityNames() []string {
	names := make([]string, 0, m.Entities.Len())
	for pair := m.Entities.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Entity looks up an entity by name.
func (m *DataModel) Entity(name string) (*EntityDefinition, bool) {
	return m.Entities.Get(name)
}

// TLSConfig is an optional client TLS bundle for connecting to a module's
// MySQL/MariaDB server.
type TLSConfig struct {
	CAPath   string
	KeyPath  string
	CertPath string
}

// ModuleSchema maps one logical module name to the schema (database) name
// that owns it.
type ModuleSchema struct {
	ModuleName string
	SchemaName string
}

// ConnectionConfig describes how to reach every module's database.
type ConnectionConfig struct {
	Host                string
	User                string
	Password            string
	Database            string
	Port                int
	SSL                 *TLSConfig
	ModuleSchemaMapping []ModuleSchema
}

// SchemaForModule returns the schema name configured for moduleName, and
// whether it was found.
func (c *ConnectionConfig) SchemaForModule(moduleName string) (string, bool) {
	for _, ms := range c.ModuleSchemaMapping {
		if ms.ModuleName == moduleName {
			return ms.SchemaName, true
		}
	}
	return "", false
}

// Modules returns the configured module names in configuration order.
func (c *ConnectionConfig) Modules() []string {
	names := make([]string, len(c.ModuleSchemaMapping))
	for i, ms := range c.ModuleSchemaMapping {
		names[i] = ms.ModuleName
	}
	return names
}
