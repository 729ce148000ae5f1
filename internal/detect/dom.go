// File: internal/detect/dom.go
package detect

import (
	"strings"

	"golang.org/x/net/html"
)

// Helpers over golang.org/x/net/html trees. Shadow content follows the
// declarative convention: a host element carries a direct child
// <template shadowrootmode="open|closed"> whose subtree is the shadow tree,
// unreachable by ordinary top-level queries.

// getAttr returns the value of the named attribute, matching the key
// case-insensitively. Returns "" when absent or when n is nil.
func getAttr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, name) {
			return attr.Val
		}
	}
	return ""
}

// hasAttr reports whether the named attribute is present at all, regardless
// of its value. Boolean HTML attributes (disabled, required, hidden) are
// meaningful by presence alone.
func hasAttr(n *html.Node, name string) bool {
	if n == nil {
		return false
	}
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, name) {
			return true
		}
	}
	return false
}

// isElement reports whether n is an element with the given tag name.
func isElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && strings.EqualFold(n.Data, tag)
}

// isShadowTemplate reports whether n is a declarative shadow-root template.
func isShadowTemplate(n *html.Node) bool {
	return isElement(n, "template") && getAttr(n, "shadowrootmode") != ""
}

// shadowTemplateOf returns the direct-child shadow template of a host
// element, or nil when the element hosts no shadow tree.
func shadowTemplateOf(n *html.Node) *html.Node {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isShadowTemplate(c) {
			return c
		}
	}
	return nil
}

// parseInlineStyle splits a style attribute into a property map. Malformed
// declarations are skipped rather than failing the node.
func parseInlineStyle(n *html.Node) map[string]string {
	raw := getAttr(n, "style")
	if raw == "" {
		return nil
	}
	props := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		parts := strings.SplitN(decl, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		val := strings.ToLower(strings.TrimSpace(parts[1]))
		if key != "" && val != "" {
			props[key] = val
		}
	}
	return props
}

// classList returns the element's classes, lowercased.
func classList(n *html.Node) []string {
	raw := getAttr(n, "class")
	if raw == "" {
		return nil
	}
	fields := strings.Fields(strings.ToLower(raw))
	return fields
}

// innerText collects the concatenated text content of a subtree, trimmed.
func innerText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node == nil {
			return
		}
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// treeRoot ascends to the topmost node of n's tree.
func treeRoot(n *html.Node) *html.Node {
	for n != nil && n.Parent != nil {
		n = n.Parent
	}
	return n
}

// isDetached reports whether the node does not belong to a parsed document.
// Detached nodes are conservatively treated as not interactable.
func isDetached(n *html.Node) bool {
	root := treeRoot(n)
	return root == nil || root.Type != html.DocumentNode
}
