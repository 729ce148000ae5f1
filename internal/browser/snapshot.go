package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/formweaver/formweaver/api/schemas"
)

// controlsScript collects every visible, enabled, interactive control on the
// rendered page together with its bounding box. It runs in the page context
// and returns plain data, so the result survives the protocol round trip.
const controlsScript = `
(() => {
	const out = [];
	document.querySelectorAll('input, textarea, select').forEach(el => {
		if (el.disabled) return;
		const type = (el.getAttribute('type') || '').toLowerCase();
		if (type === 'hidden') return;

		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		const visible = rect.width > 0 && rect.height > 0 &&
			style.display !== 'none' &&
			style.visibility !== 'hidden' &&
			style.opacity !== '0';
		if (!visible) return;

		out.push({
			name: el.getAttribute('name') || '',
			id: el.id || '',
			type: el.tagName === 'INPUT' ? (type || 'text') : el.tagName.toLowerCase(),
			placeholder: el.getAttribute('placeholder') || '',
			label: el.getAttribute('aria-label') || '',
			required: el.required === true,
			autocomplete: el.getAttribute('autocomplete') || '',
			x: rect.x, y: rect.y, w: rect.width, h: rect.height
		});
	});
	return out;
})()
`

// controlEntry mirrors the objects produced by controlsScript.
type controlEntry struct {
	Name         string  `json:"name"`
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Placeholder  string  `json:"placeholder"`
	Label        string  `json:"label"`
	Required     bool    `json:"required"`
	Autocomplete string  `json:"autocomplete"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	W            float64 `json:"w"`
	H            float64 `json:"h"`
}

// CaptureSnapshot evaluates the control-collection script in the given tab.
func CaptureSnapshot(ctx context.Context) (schemas.Snapshot, error) {
	var entries []controlEntry
	if err := chromedp.Run(ctx, chromedp.Evaluate(controlsScript, &entries)); err != nil {
		return schemas.Snapshot{}, fmt.Errorf("failed to capture control snapshot: %w", err)
	}
	return toSnapshot(entries), nil
}

// toSnapshot converts raw script output into the snapshot schema, dropping
// controls that cannot be addressed later.
func toSnapshot(entries []controlEntry) schemas.Snapshot {
	var snap schemas.Snapshot
	for _, e := range entries {
		field := schemas.FieldDescriptor{
			Name:         e.Name,
			ID:           e.ID,
			Type:         e.Type,
			Label:        e.Label,
			Placeholder:  e.Placeholder,
			Required:     e.Required,
			Autocomplete: e.Autocomplete,
		}
		if !field.Addressable() {
			continue
		}
		snap.Controls = append(snap.Controls, schemas.SnapshotControl{
			Field: field,
			Box:   schemas.Rect{X: e.X, Y: e.Y, Width: e.W, Height: e.H},
		})
	}
	return snap
}
