// File: internal/detect/extractor.go
package detect

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/formweaver/formweaver/api/schemas"
)

// collectControls gathers the candidate controls of a container in document
// order: input, textarea and select elements, including those nested in
// arbitrary wrappers.
func collectControls(container *html.Node) []*html.Node {
	var controls []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		if isElement(n, "input") || isElement(n, "textarea") || isElement(n, "select") {
			controls = append(controls, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return controls
}

// Extractor turns a form container into a structured FormDescriptor.
type Extractor struct {
	logger *zap.Logger
	filter *VisibilityFilter
}

// NewExtractor creates an extractor sharing the detector's visibility filter.
func NewExtractor(logger *zap.Logger, filter *VisibilityFilter) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if filter == nil {
		filter = NewVisibilityFilter(nil)
	}
	return &Extractor{logger: logger.Named("extractor"), filter: filter}
}

// ExtractFormMetadata produces the descriptor for one container. Controls
// lacking both name and id are dropped (they cannot be addressed for
// mapping), as are hidden, disabled, and already-seen controls. Field order
// follows document order. A failure on a single control is isolated: the
// control is skipped and extraction continues.
func (e *Extractor) ExtractFormMetadata(container *html.Node) schemas.FormDescriptor {
	desc := schemas.FormDescriptor{
		ID:           getAttr(container, "id"),
		Name:         getAttr(container, "name"),
		Action:       getAttr(container, "action"),
		Method:       normalizeMethod(getAttr(container, "method")),
		ContainerRef: container,
	}
	if container == nil {
		return desc
	}

	seen := make(map[*html.Node]bool)
	for _, node := range collectControls(container) {
		if seen[node] {
			continue
		}
		seen[node] = true

		field, ok := e.extractField(node)
		if !ok {
			continue
		}
		desc.Fields = append(desc.Fields, field)
	}
	return desc
}

// extractField builds a FieldDescriptor for one control, reporting ok=false
// when the control must be skipped. A panic while reading a malformed node
// is contained here so one broken control cannot blank out the whole form.
func (e *Extractor) extractField(node *html.Node) (field schemas.FieldDescriptor, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("skipping malformed control", zap.Any("panic", r))
			ok = false
		}
	}()

	name := getAttr(node, "name")
	id := getAttr(node, "id")
	if name == "" && id == "" {
		return field, false
	}
	if hasAttr(node, "disabled") {
		return field, false
	}
	fieldType := controlType(node)
	if fieldType == "hidden" {
		return field, false
	}
	if e.filter.IsHidden(node) {
		return field, false
	}

	field = schemas.FieldDescriptor{
		Name:         name,
		ID:           id,
		Type:         fieldType,
		Label:        e.resolveLabel(node, id),
		Placeholder:  getAttr(node, "placeholder"),
		Required:     hasAttr(node, "required"),
		Autocomplete: getAttr(node, "autocomplete"),
		ElementRef:   node,
	}
	return field, true
}

// resolveLabel finds the human-readable label for a control. Resolution
// order: an explicit <label for=...> association, then an ancestor label
// wrapping the control, then the aria-label attribute, then empty.
func (e *Extractor) resolveLabel(node *html.Node, id string) string {
	if id != "" {
		root := treeRoot(node)
		if root != nil {
			for _, label := range htmlquery.Find(root, `//label[@for]`) {
				if getAttr(label, "for") == id {
					return innerText(label)
				}
			}
		}
	}
	for n := node.Parent; n != nil; n = n.Parent {
		if isElement(n, "label") {
			return innerText(n)
		}
	}
	if aria := getAttr(node, "aria-label"); aria != "" {
		return aria
	}
	return ""
}

// controlType normalizes the control's type: the lowercased type attribute
// for inputs (defaulting to "text"), or the tag name for textarea/select.
func controlType(node *html.Node) string {
	switch {
	case isElement(node, "textarea"):
		return "textarea"
	case isElement(node, "select"):
		return "select"
	default:
		t := strings.ToLower(strings.TrimSpace(getAttr(node, "type")))
		if t == "" {
			return "text"
		}
		return t
	}
}

func normalizeMethod(method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return "GET"
	}
	return method
}
