package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jellydator/validation"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/divbloxjs/dx-db-sync/internal/syncerr"
)

var entityKeys = []string{"module", "attributes", "indexes", "relationships", "options"}
var attributeKeys = []string{"type", "lengthOrValues", "default", "allowNull"}
var indexKeys = []string{"attribute", "indexName", "indexChoice", "type"}
var connectionKeys = []string{"host", "user", "password", "database", "port", "ssl", "moduleSchemaMapping"}

// LoadDataModel parses and structurally/semantically validates a data model
// JSON document (§3, §4.2), returning a validated, defaulted DataModel or a
// *syncerr.ConfigError naming the offending entity/attribute.
func LoadDataModel(raw []byte) (*DataModel, error) {
	entitiesRaw := orderedmap.New[string, json.RawMessage]()
	if err := strictUnmarshal(raw, entitiesRaw); err != nil {
		return nil, &syncerr.ConfigError{Reason: fmt.Sprintf("data model is not a JSON object: %s", err)}
	}

	dm := &DataModel{Entities: orderedmap.New[string, *EntityDefinition]()}
	for pair := entitiesRaw.Oldest(); pair != nil; pair = pair.Next() {
		entityName := pair.Key
		entity, err := parseEntity(entityName, pair.Value)
		if err != nil {
			return nil, err
		}
		dm.Entities.Set(entityName, entity)
	}

	// Cross-entity reference validation: every relationship target must be a
	// top-level entity name in this same model.
	for pair := dm.Entities.Oldest(); pair != nil; pair = pair.Next() {
		entity := pair.Value
		if entity.Relationships == nil {
			continue
		}
		for relPair := entity.Relationships.Oldest(); relPair != nil; relPair = relPair.Next() {
			if _, ok := dm.Entities.Get(relPair.Key); !ok {
				return nil, &syncerr.ConfigError{Reason: fmt.Sprintf(
					"entity %q has a relationship to unknown entity %q", pair.Key, relPair.Key)}
			}
		}
	}

	return dm, nil
}

func parseEntity(name string, raw json.RawMessage) (*EntityDefinition, error) {
	fields, err := exactKeysSubset(raw, entityKeys, []string{"module", "attributes"})
	if err != nil {
		return nil, &syncerr.ConfigError{Reason: fmt.Sprintf("entity %q: %s", name, err)}
	}

	var moduleName string
	if err := json.Unmarshal(fields["module"], &moduleName); err != nil || moduleName == "" {
		return nil, &syncerr.ConfigError{Reason: fmt.Sprintf("entity %q: missing or invalid \"module\"", name)}
	}

	attrsRaw := orderedmap.New[string, json.RawMessage]()
	if err := strictUnmarshal(fields["attributes"], attrsRaw); err != nil || attrsRaw.Len() == 0 {
		return nil, &syncerr.ConfigError{Reason: fmt.Sprintf("entity %q: \"attributes\" must be a non-empty object", name)}
	}

	attributes := orderedmap.New[string, AttributeDefinition]()
	for pair := attrsRaw.Oldest(); pair != nil; pair = pair.Next() {
		attr, err := parseAttribute(pair.Value)
		if err != nil {
			return nil, &syncerr.ConfigError{Reason: fmt.Sprintf("entity %q, attribute %q: %s", name, pair.Key, err)}
		}
		attributes.Set(pair.Key, *attr)
	}

	indexes, err := parseIndexes(fields["indexes"], attributes)
	if err != nil {
		return nil, &syncerr.ConfigError{Reason: fmt.Sprintf("entity %q: %s", name, err)}
	}

	relationships, err := parseRelationships(fields["relationships"])
	if err != nil {
		return nil, &syncerr.ConfigError{Reason: fmt.Sprintf("entity %q: %s", name, err)}
	}

	opts, err := parseOptions(fields["options"])
	if err != nil {
		return nil, &syncerr.ConfigError{Reason: fmt.Sprintf("entity %q: %s", name, err)}
	}

	return &EntityDefinition{
		Name:          name,
		Module:        moduleName,
		Attributes:    attributes,
		Indexes:       indexes,
		Relationships: relationships,
		Options:       opts,
	}, nil
}

func parseAttribute(raw json.RawMessage) (*AttributeDefinition, error) {
	fields, err := exactKeys(raw, attributeKeys)
	if err != nil {
		return nil, err
	}
	var typ string
	if err := json.Unmarshal(fields["type"], &typ); err != nil {
		return nil, fmt.Errorf("\"type\" must be a string: %w", err)
	}
	if err := validation.Validate(typ, validation.Required); err != nil {
		return nil, fmt.Errorf("\"type\" is required")
	}
	lengthOrValues, err := parseScalar(fields["lengthOrValues"])
	if err != nil {
		return nil, fmt.Errorf("\"lengthOrValues\": %w", err)
	}
	def, err := parseScalar(fields["default"])
	if err != nil {
		return nil, fmt.Errorf("\"default\": %w", err)
	}
	var allowNull bool
	if err := json.Unmarshal(fields["allowNull"], &allowNull); err != nil {
		return nil, fmt.Errorf("\"allowNull\" must be a boolean: %w", err)
	}
	return &AttributeDefinition{Type: typ, LengthOrValues: lengthOrValues, Default: def, AllowNull: allowNull}, nil
}

func parseScalar(raw json.RawMessage) (Scalar, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return NullScalar, nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return NewScalar(asString), nil
	}
	var asNumber json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&asNumber); err == nil {
		return NewScalar(asNumber.String()), nil
	}
	return Scalar{}, fmt.Errorf("must be null, a number, or a string, got %s", raw)
}

var indexChoices = map[string]IndexChoice{
	"index":    IndexChoiceIndex,
	"unique":   IndexChoiceUnique,
	"spatial":  IndexChoiceSpatial,
	"fulltext": IndexChoiceFulltext,
}

var indexAlgorithms = map[string]IndexAlgorithm{
	"btree": IndexAlgorithmBTree,
	"hash":  IndexAlgorithmHash,
}

func parseIndexes(raw json.RawMessage, attributes *orderedmap.OrderedMap[string, AttributeDefinition]) ([]IndexDefinition, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	var rawList []json.RawMessage
	if err := json.Unmarshal(raw, &rawList); err != nil {
		return nil, fmt.Errorf("\"indexes\" must be an array: %w", err)
	}
	seenNames := map[string]bool{}
	indexes := make([]IndexDefinition, 0, len(rawList))
	for _, item := range rawList {
		fields, err := exactKeys(item, indexKeys)
		if err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
		var attr, indexName, choiceStr, algStr string
		_ = json.Unmarshal(fields["attribute"], &attr)
		_ = json.Unmarshal(fields["indexName"], &indexName)
		_ = json.Unmarshal(fields["indexChoice"], &choiceStr)
		_ = json.Unmarshal(fields["type"], &algStr)

		if _, ok := attributes.Get(attr); !ok {
			return nil, fmt.Errorf("index %q references unknown attribute %q", indexName, attr)
		}
		if seenNames[indexName] {
			return nil, fmt.Errorf("duplicate index name %q", indexName)
		}
		seenNames[indexName] = true
		choice, ok := indexChoices[strings.ToLower(choiceStr)]
		if !ok {
			return nil, fmt.Errorf("index %q has invalid indexChoice %q", indexName, choiceStr)
		}
		alg, ok := indexAlgorithms[strings.ToLower(algStr)]
		if !ok {
			return nil, fmt.Errorf("index %q has invalid type %q", indexName, algStr)
		}
		indexes = append(indexes, IndexDefinition{Attribute: attr, IndexName: indexName, IndexChoice: choice, Algorithm: alg})
	}
	return indexes, nil
}

func parseRelationships(raw json.RawMessage) (*orderedmap.OrderedMap[string, []string], error) {
	rels := orderedmap.New[string, []string]()
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return rels, nil
	}
	relsRaw := orderedmap.New[string, json.RawMessage]()
	if err := strictUnmarshal(raw, relsRaw); err != nil {
		return nil, fmt.Errorf("\"relationships\" must be an object: %w", err)
	}
	for pair := relsRaw.Oldest(); pair != nil; pair = pair.Next() {
		var roles []string
		if err := json.Unmarshal(pair.Value, &roles); err != nil {
			return nil, fmt.Errorf("relationship %q must be an array of role names: %w", pair.Key, err)
		}
		rels.Set(pair.Key, roles)
	}
	return rels, nil
}

func parseOptions(raw json.RawMessage) (Options, error) {
	opts := DefaultOptions()
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return opts, nil
	}
	var partial map[string]json.RawMessage
	if err := json.Unmarshal(raw, &partial); err != nil {
		return Options{}, fmt.Errorf("\"options\" must be an object: %w", err)
	}
	for k := range partial {
		if k != "enforceLockingConstraints" && k != "isAuditEnabled" {
			return Options{}, fmt.Errorf("\"options\" has unknown key %q", k)
		}
	}
	if raw, ok := partial["enforceLockingConstraints"]; ok {
		if err := json.Unmarshal(raw, &opts.EnforceLockingConstraints); err != nil {
			return Options{}, fmt.Errorf("\"options.enforceLockingConstraints\" must be a boolean")
		}
	}
	if raw, ok := partial["isAuditEnabled"]; ok {
		if err := json.Unmarshal(raw, &opts.IsAuditEnabled); err != nil {
			return Options{}, fmt.Errorf("\"options.isAuditEnabled\" must be a boolean")
		}
	}
	return opts, nil
}

// LoadConnectionConfig parses and validates a connection configuration JSON
// document (§3, §4.2).
func LoadConnectionConfig(raw []byte, model *DataModel) (*ConnectionConfig, error) {
	fields, err := exactKeys(raw, connectionKeys)
	if err != nil {
		return nil, &syncerr.ConfigError{Reason: err.Error()}
	}

	cfg := &ConnectionConfig{}
	if err := json.Unmarshal(fields["host"], &cfg.Host); err != nil {
		return nil, &syncerr.ConfigError{Reason: "\"host\" must be a string"}
	}
	if err := json.Unmarshal(fields["user"], &cfg.User); err != nil {
		return nil, &syncerr.ConfigError{Reason: "\"user\" must be a string"}
	}
	if err := json.Unmarshal(fields["password"], &cfg.Password); err != nil {
		return nil, &syncerr.ConfigError{Reason: "\"password\" must be a string"}
	}
	if err := json.Unmarshal(fields["database"], &cfg.Database); err != nil {
		return nil, &syncerr.ConfigError{Reason: "\"database\" must be a string"}
	}
	if err := json.Unmarshal(fields["port"], &cfg.Port); err != nil {
		return nil, &syncerr.ConfigError{Reason: "\"port\" must be a number"}
	}

	if raw := fields["ssl"]; len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		var tls struct {
			CA   string `json:"ca"`
			Key  string `json:"key"`
			Cert string `json:"cert"`
		}
		if err := strictUnmarshalStruct(raw, &tls); err != nil {
			return nil, &syncerr.ConfigError{Reason: fmt.Sprintf("\"ssl\": %s", err)}
		}
		cfg.SSL = &TLSConfig{CAPath: tls.CA, KeyPath: tls.Key, CertPath: tls.Cert}
	}

	var mapping []struct {
		ModuleName string `json:"moduleName"`
		SchemaName string `json:"schemaName"`
	}
	if err := json.Unmarshal(fields["moduleSchemaMapping"], &mapping); err != nil {
		return nil, &syncerr.ConfigError{Reason: "\"moduleSchemaMapping\" must be an array of {moduleName, schemaName}"}
	}
	seen := map[string]bool{}
	for _, m := range mapping {
		if m.ModuleName == "" || m.SchemaName == "" {
			return nil, &syncerr.ConfigError{Reason: "moduleSchemaMapping entries require both moduleName and schemaName"}
		}
		if seen[m.ModuleName] {
			return nil, &syncerr.ConfigError{Reason: fmt.Sprintf("moduleSchemaMapping has duplicate moduleName %q", m.ModuleName)}
		}
		seen[m.ModuleName] = true
		cfg.ModuleSchemaMapping = append(cfg.ModuleSchemaMapping, ModuleSchema{ModuleName: m.ModuleName, SchemaName: m.SchemaName})
	}

	if model != nil {
		for pair := model.Entities.Oldest(); pair != nil; pair = pair.Next() {
			if !seen[pair.Value.Module] {
				return nil, &syncerr.ConfigError{Reason: fmt.Sprintf(
					"entity %q references module %q, which is not present in moduleSchemaMapping", pair.Key, pair.Value.Module)}
			}
		}
	}

	return cfg, nil
}

// strictUnmarshal decodes raw into an *orderedmap.OrderedMap, rejecting
// documents that aren't JSON objects.
func strictUnmarshal(raw json.RawMessage, into interface{ UnmarshalJSON([]byte) error }) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	return into.UnmarshalJSON(raw)
}

func strictUnmarshalStruct(raw json.RawMessage, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// exactKeys decodes raw into a map and requires its key set to equal
// wanted exactly (no extras, none missing).
func exactKeys(raw json.RawMessage, wanted []string) (map[string]json.RawMessage, error) {
	return exactKeysSubset(raw, wanted, wanted)
}

// exactKeysSubset decodes raw into a map, allows only keys in `allowed`, and
// requires every key in `required` to be present. This models entity records,
// whose `indexes`/`relationships`/`options` keys may be omitted (defaulted)
// but `module`/`attributes` must be present, while no unknown key is ever
// permitted.
func exactKeysSubset(raw json.RawMessage, allowed, required []string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("must be a JSON object: %w", err)
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = true
	}
	var extra []string
	for k := range fields {
		if !allowedSet[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, fmt.Errorf("unexpected key(s): %s", strings.Join(extra, ", "))
	}
	var missing []string
	for _, k := range required {
		if _, ok := fields[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required key(s): %s", strings.Join(missing, ", "))
	}
	for _, k := range allowed {
		if _, ok := fields[k]; !ok {
			fields[k] = nil
		}
	}
	return fields, nil
}
