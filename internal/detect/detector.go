// File: internal/detect/detector.go
package detect

import (
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// DefaultMaxShadowDepth bounds recursion into nested shadow trees. A
// pathological document cannot push the scan past this depth; exceeding it
// stops descent rather than raising an error.
const DefaultMaxShadowDepth = 8

// Detector walks a document tree and any nested shadow trees to produce a
// deduplicated list of candidate form containers.
type Detector struct {
	logger         *zap.Logger
	filter         *VisibilityFilter
	maxShadowDepth int
}

// NewDetector creates a detector. A nil logger falls back to a no-op logger;
// a non-positive maxShadowDepth selects DefaultMaxShadowDepth.
func NewDetector(logger *zap.Logger, filter *VisibilityFilter, maxShadowDepth int) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if filter == nil {
		filter = NewVisibilityFilter(nil)
	}
	if maxShadowDepth <= 0 {
		maxShadowDepth = DefaultMaxShadowDepth
	}
	return &Detector{
		logger:         logger.Named("detector"),
		filter:         filter,
		maxShadowDepth: maxShadowDepth,
	}
}

// Filter exposes the visibility filter so the extractor can share it.
func (d *Detector) Filter() *VisibilityFilter { return d.filter }

// DetectForms returns all visible form containers reachable from the given
// context, including those inside declarative shadow trees. The same
// underlying container reached via two paths is reported once. A nil context
// yields an empty result, not an error. Ordering carries no semantic meaning
// beyond document order within one scan.
func (d *Detector) DetectForms(root *html.Node) []*html.Node {
	if root == nil {
		return nil
	}
	seen := make(map[*html.Node]bool)
	var out []*html.Node
	d.scanContext(root, 0, seen, &out)
	d.logger.Debug("form scan finished", zap.Int("forms", len(out)))
	return out
}

// scanContext collects forms at one tree level, then recurses into every
// shadow tree hosted at this level. Shadow content is skipped by the
// level-local walk so that it is only ever visited through its host.
func (d *Detector) scanContext(ctx *html.Node, depth int, seen map[*html.Node]bool, out *[]*html.Node) {
	var hosts []*html.Node

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		if isShadowTemplate(n) {
			// Belongs to the shadow scan of its host, not this level.
			return
		}
		if isElement(n, "form") && !seen[n] && !d.filter.IsHidden(n) {
			seen[n] = true
			*out = append(*out, n)
		}
		if n.Type == html.ElementNode && shadowTemplateOf(n) != nil {
			hosts = append(hosts, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if isShadowTemplate(ctx) {
		// The recursion enters through the template node itself; start the
		// level-local walk at its children.
		for c := ctx.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	} else {
		walk(ctx)
	}

	if len(hosts) == 0 {
		return
	}
	if depth >= d.maxShadowDepth {
		d.logger.Warn("shadow recursion bound reached, not descending",
			zap.Int("depth", depth), zap.Int("hosts", len(hosts)))
		return
	}
	for _, host := range hosts {
		d.scanContext(shadowTemplateOf(host), depth+1, seen, out)
	}
}
