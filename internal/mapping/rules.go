// File: internal/mapping/rules.go
package mapping

import (
	"fmt"
	"regexp"

	jsoniter "github.com/json-iterator/go"

	"github.com/formweaver/formweaver/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RuleSpec is the serialized form of a mapping rule, as supplied by profile
// configuration. Only pattern rules are expressible in configuration;
// predicate rules are constructed in code.
type RuleSpec struct {
	FieldPattern string   `json:"field_pattern"`
	Types        []string `json:"types,omitempty"`
	Suggest      string   `json:"suggest"`
}

// ParseRules decodes a JSON array of rule specs into evaluable rules,
// preserving order. Patterns are compiled case-insensitively, matching the
// usual intent of field-name rules.
func ParseRules(data []byte) ([]schemas.MappingRule, error) {
	var specs []RuleSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to decode mapping rules: %w", err)
	}
	return CompileRules(specs)
}

// CompileRules turns rule specs into evaluable rules, preserving order.
func CompileRules(specs []RuleSpec) ([]schemas.MappingRule, error) {
	rules := make([]schemas.MappingRule, 0, len(specs))
	for i, spec := range specs {
		if spec.Suggest == "" {
			return nil, fmt.Errorf("rule %d: suggest must not be empty", i)
		}
		re, err := regexp.Compile("(?i)" + spec.FieldPattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d: invalid field pattern %q: %w", i, spec.FieldPattern, err)
		}
		rules = append(rules, schemas.MappingRule{
			Field:   schemas.PatternMatcher(re),
			Types:   spec.Types,
			Suggest: spec.Suggest,
		})
	}
	return rules, nil
}
