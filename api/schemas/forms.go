package schemas

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// -- Form Detection Schemas --

// FieldDescriptor describes a single addressable control inside a form.
// Every descriptor carries a non-empty Name or ID; controls with neither are
// dropped during extraction because they cannot be targeted later.
type FieldDescriptor struct {
	Name         string `json:"name"`
	ID           string `json:"id"`
	Type         string `json:"type"`
	Label        string `json:"label"`
	Placeholder  string `json:"placeholder"`
	Required     bool   `json:"required"`
	Autocomplete string `json:"autocomplete,omitempty"`

	// ElementRef is a non-owning reference into the scanned document tree.
	// It is only valid for the lifetime of that tree and is never persisted.
	ElementRef *html.Node `json:"-"`
}

// Addressable reports whether the field can be targeted for mapping.
func (f FieldDescriptor) Addressable() bool {
	return f.Name != "" || f.ID != ""
}

// FormDescriptor is the structured result of one detected (or synthesized)
// form. Descriptors are rebuilt on every scan and never persisted.
type FormDescriptor struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Action    string            `json:"action"`
	Method    string            `json:"method"`
	Fields    []FieldDescriptor `json:"fields"`
	Synthetic bool              `json:"synthetic"`

	// ContainerRef points at the underlying container node, or nil for
	// synthetic descriptors produced by the visual fallback.
	ContainerRef *html.Node `json:"-"`
}

// -- Mapping Schemas --

// MatcherKind discriminates the two supported field-match variants.
type MatcherKind string

const (
	// MatcherPattern matches the field's identifying text against a regexp.
	MatcherPattern MatcherKind = "pattern"
	// MatcherPredicate matches via an arbitrary caller-supplied function.
	MatcherPredicate MatcherKind = "predicate"
)

// FieldMatcher is a tagged variant: exactly one of Pattern or Predicate is
// set, selected by Kind. This replaces runtime type-sniffing of
// function-or-regex rule inputs with a single dispatch point.
type FieldMatcher struct {
	Kind      MatcherKind
	Pattern   *regexp.Regexp
	Predicate func(FieldDescriptor) bool
}

// PatternMatcher builds a pattern-variant matcher.
func PatternMatcher(re *regexp.Regexp) FieldMatcher {
	return FieldMatcher{Kind: MatcherPattern, Pattern: re}
}

// PredicateMatcher builds a predicate-variant matcher.
func PredicateMatcher(fn func(FieldDescriptor) bool) FieldMatcher {
	return FieldMatcher{Kind: MatcherPredicate, Predicate: fn}
}

// Match evaluates the matcher against a field. Pattern matchers test the
// field's name, id, label and placeholder.
func (m FieldMatcher) Match(field FieldDescriptor) bool {
	switch m.Kind {
	case MatcherPattern:
		if m.Pattern == nil {
			return false
		}
		haystack := strings.Join([]string{field.Name, field.ID, field.Label, field.Placeholder}, " ")
		return m.Pattern.MatchString(haystack)
	case MatcherPredicate:
		return m.Predicate != nil && m.Predicate(field)
	default:
		return false
	}
}

// MappingRule binds a field matcher to a suggested data-source column.
// Rules are evaluated in slice order; the list is a priority order, not a
// scored ranking.
type MappingRule struct {
	Field FieldMatcher
	// Types restricts the rule to fields whose type is in the list. An empty
	// list matches any type.
	Types   []string
	Suggest string
}

// Matches reports whether the rule applies to the given field.
func (r MappingRule) Matches(field FieldDescriptor) bool {
	if !r.Field.Match(field) {
		return false
	}
	if len(r.Types) == 0 {
		return true
	}
	for _, t := range r.Types {
		if strings.EqualFold(t, field.Type) {
			return true
		}
	}
	return false
}

// MappingSuggestion pairs a field with its chosen mapping. A nil Mapping is
// an explicit "unmapped" marker; suggestion lists are total over their input
// fields and are never sparse.
type MappingSuggestion struct {
	Field   FieldDescriptor `json:"field"`
	Mapping *string         `json:"mapping"`
}

// Mapped reports whether the suggestion carries a mapping.
func (s MappingSuggestion) Mapped() bool { return s.Mapping != nil }

// -- Visual Snapshot Schemas --

// Rect is a viewport-relative bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom returns the y coordinate of the lower edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// SnapshotControl is one visible, enabled, interactive control together with
// its rendered geometry.
type SnapshotControl struct {
	Field FieldDescriptor `json:"field"`
	Box   Rect            `json:"box"`
}

// Snapshot captures the interactive controls of a rendered page for the
// visual fallback clusterer. It is used only when structural detection found
// no usable container.
type Snapshot struct {
	Controls []SnapshotControl `json:"controls"`
}
