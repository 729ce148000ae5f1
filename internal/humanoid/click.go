package humanoid

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

// ClickSelector clicks the center of the element matched by selector,
// pressing and releasing the button as two separate events with a held
// interval between them. Synthetic zero-duration clicks are a common
// automation tell.
func (p *Pacer) ClickSelector(ctx context.Context, selector string) error {
	var nodes []*cdp.Node
	if err := chromedp.Run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Nodes(selector, &nodes, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to resolve %q: %w", selector, err)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("selector %q matched no nodes", selector)
	}

	var box *dom.BoxModel
	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		box, err = dom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
		return err
	})); err != nil {
		return fmt.Errorf("failed to get geometry for %q: %w", selector, err)
	}

	x, y, ok := boxCenter(box)
	if !ok {
		// No usable geometry; fall back to the plain click action.
		return chromedp.Run(ctx, chromedp.Click(selector, chromedp.ByQuery))
	}
	return p.ClickAt(ctx, x, y)
}

// ClickAt presses and releases the left button at a viewport coordinate,
// holding for the pacer's click-hold interval.
func (p *Pacer) ClickAt(ctx context.Context, x, y float64) error {
	return chromedp.Run(ctx,
		chromedp.MouseEvent(input.MousePressed, x, y, chromedp.Button("left"), chromedp.ClickCount(1)),
		chromedp.Sleep(p.ClickHold()),
		chromedp.MouseEvent(input.MouseReleased, x, y, chromedp.Button("left"), chromedp.ClickCount(1)),
	)
}

// boxCenter returns the centroid of a box model's content quad.
// Content is laid out as [x0, y0, x1, y1, x2, y2, x3, y3].
func boxCenter(box *dom.BoxModel) (x, y float64, ok bool) {
	if box == nil || len(box.Content) < 8 {
		return 0, 0, false
	}
	x = (box.Content[0] + box.Content[2] + box.Content[4] + box.Content[6]) / 4
	y = (box.Content[1] + box.Content[3] + box.Content[5] + box.Content[7]) / 4
	return x, y, true
}
