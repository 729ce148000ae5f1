// File: internal/mapping/suggest.go
package mapping

import (
	"github.com/formweaver/formweaver/api/schemas"
)

// SuggestMappings proposes a target mapping for every field. For each field,
// rules are evaluated in slice order and the first match wins; later rules
// are not consulted. A field with no matching rule yields a suggestion with
// a nil mapping rather than being omitted: the result is total over the
// input, one entry per field, in input order.
func SuggestMappings(fields []schemas.FieldDescriptor, rules []schemas.MappingRule) []schemas.MappingSuggestion {
	suggestions := make([]schemas.MappingSuggestion, 0, len(fields))
	for _, field := range fields {
		suggestions = append(suggestions, suggestOne(field, rules))
	}
	return suggestions
}

func suggestOne(field schemas.FieldDescriptor, rules []schemas.MappingRule) schemas.MappingSuggestion {
	for _, rule := range rules {
		if rule.Matches(field) {
			suggest := rule.Suggest
			return schemas.MappingSuggestion{Field: field, Mapping: &suggest}
		}
	}
	return schemas.MappingSuggestion{Field: field, Mapping: nil}
}
