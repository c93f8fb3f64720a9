// Package casing implements the identifier-case translation layer that sits
// at every model-to-database boundary: the data model is always expressed in
// camelCase, while the database identifiers it describes may be snake_case,
// PascalCase, or camelCase depending on the configured policy.
package casing

import (
	"strings"
	"unicode"
)

// Policy is the identifier case convention used for database identifiers.
type Policy int

// Supported identifier case policies.
const (
	Snake Policy = iota
	Pascal
	Camel
)

// ParsePolicy parses a policy name as accepted on the command line
// (--case snake|pascal|camel), case-insensitively.
func ParsePolicy(s string) (Policy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "snake", "snakecase":
		return Snake, true
	case "pascal", "pascalcase":
		return Pascal, true
	case "camel", "camelcase":
		return Camel, true
	default:
		return 0, false
	}
}

// String renders the policy's long name (snakecase, pascalcase, camelcase),
// one of the spellings ParsePolicy accepts.
func (p Policy) String() string {
	switch p {
	case Snake:
		return "snakecase"
	case Pascal:
		return "pascalcase"
	case Camel:
		return "camelcase"
	default:
		return "unknown"
	}
}

// words splits a camelCase (or already-normalized) identifier into its
// constituent lowercase word segments, at lower->upper boundaries.
func words(camel string) []string {
	if camel == "" {
		return nil
	}
	var words []string
	var cur []rune
	runes := []rune(camel)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(runes[i-1]) {
			words = append(words, string(cur))
			cur = nil
		}
		cur = append(cur, unicode.ToLower(r))
	}
	if len(cur) > 0 {
		words = append(words, string(cur))
	}
	return words
}

// Normalize converts a camelCase model identifier into a database identifier
// under the given policy.
func Normalize(camel string, policy Policy) string {
	ws := words(camel)
	switch policy {
	case Snake:
		return strings.Join(ws, "_")
	case Pascal:
		return capitalizeJoin(ws, true)
	case Camel:
		return capitalizeJoin(ws, false)
	default:
		return camel
	}
}

// Denormalize converts a database identifier back into camelCase under the
// given policy.
func Denormalize(dbID string, policy Policy) string {
	switch policy {
	case Snake:
		parts := strings.Split(dbID, "_")
		return capitalizeJoin(parts, false)
	default:
		// Pascal/camel identifiers are already boundary-delimited by case; treat
		// the boundaries the same way we would split a camelCase model name, then
		// rejoin as camelCase.
		return capitalizeJoin(words(dbID), false)
	}
}

func capitalizeJoin(words []string, firstUpper bool) string {
	var b strings.Builder
	for i, w := range words {
		if w == "" {
			continue
		}
		runes := []rune(w)
		upperFirst := firstUpper || i > 0
		if upperFirst {
			runes[0] = unicode.ToUpper(runes[0])
		} else {
			runes[0] = unicode.ToLower(runes[0])
		}
		b.WriteString(string(runes))
	}
	return b.String()
}

// Sep returns the separator inserted between the two halves of a
// relationship column name (relationshipColumn = normalize(rel) + sep +
// normalize(role)).
func Sep(policy Policy) string {
	if policy == Snake {
		return "_"
	}
	return ""
}

// PrimaryKeyColumn returns the case-policy-appropriate primary key column
// name ("id" for snake/camel, "Id" for pascal).
func PrimaryKeyColumn(policy Policy) string {
	return Normalize("id", policy)
}

// LockingColumn returns the case-policy-appropriate optimistic-locking
// column name ("last_updated" / "lastUpdated" / "LastUpdated").
func LockingColumn(policy Policy) string {
	return Normalize("lastUpdated", policy)
}

// RelationshipColumn builds the column name materializing one role of a
// relationship to relatedEntity.
func RelationshipColumn(relatedEntity, role string, policy Policy) string {
	return Normalize(relatedEntity, policy) + Sep(policy) + Normalize(role, policy)
}
