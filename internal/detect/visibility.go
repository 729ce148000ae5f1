// File: internal/detect/visibility.go
package detect

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// defaultHiddenClasses are class markers commonly used by CSS frameworks to
// remove an element from view without touching inline style.
var defaultHiddenClasses = []string{"hidden", "invisible", "d-none", "sr-only", "visually-hidden"}

// VisibilityFilter decides whether a node is meaningfully interactable.
// It is a pure function of current DOM state and must be re-evaluated on
// every scan; visibility is dynamic and never cached here.
type VisibilityFilter struct {
	hiddenClasses map[string]bool
}

// NewVisibilityFilter builds a filter with the given hidden-class markers.
// A nil or empty list selects the defaults.
func NewVisibilityFilter(hiddenClasses []string) *VisibilityFilter {
	if len(hiddenClasses) == 0 {
		hiddenClasses = defaultHiddenClasses
	}
	set := make(map[string]bool, len(hiddenClasses))
	for _, c := range hiddenClasses {
		set[strings.ToLower(c)] = true
	}
	return &VisibilityFilter{hiddenClasses: set}
}

// IsHidden walks from the node up through its ancestors and returns true if
// any of them (including the node itself) is hidden. Detached nodes are
// hidden by definition.
func (v *VisibilityFilter) IsHidden(node *html.Node) bool {
	if node == nil || isDetached(node) {
		return true
	}
	for n := node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if v.nodeHidden(n) {
			return true
		}
	}
	return false
}

// nodeHidden checks a single element without ancestor traversal.
func (v *VisibilityFilter) nodeHidden(n *html.Node) bool {
	if hasAttr(n, "hidden") {
		return true
	}
	// aria-hidden counts as hidden for any value other than "false".
	if aria := getAttr(n, "aria-hidden"); hasAttr(n, "aria-hidden") && !strings.EqualFold(aria, "false") {
		return true
	}
	for _, class := range classList(n) {
		if v.hiddenClasses[class] {
			return true
		}
	}
	style := parseInlineStyle(n)
	if style["display"] == "none" {
		return true
	}
	if vis := style["visibility"]; vis == "hidden" || vis == "collapse" {
		return true
	}
	if opacityStr, ok := style["opacity"]; ok {
		if opacity, err := strconv.ParseFloat(opacityStr, 64); err == nil && opacity <= 0.0 {
			return true
		}
	}
	return false
}
