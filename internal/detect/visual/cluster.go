// File: internal/detect/visual/cluster.go
package visual

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/formweaver/formweaver/api/schemas"
)

// DefaultClusterGap is the vertical proximity threshold, in CSS pixels,
// within which two controls are considered part of the same visual group.
const DefaultClusterGap = 60.0

// MinClusterSize is the smallest control group treated as a form. A single
// stray control is not a form.
const MinClusterSize = 2

// Clusterer groups visually proximate interactive controls into synthetic
// forms. It is the fallback used when structural detection found no usable
// <form> container.
type Clusterer struct {
	logger *zap.Logger
	gap    float64
}

// NewClusterer builds a clusterer. A non-positive gap selects
// DefaultClusterGap.
func NewClusterer(logger *zap.Logger, gap float64) *Clusterer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gap <= 0 {
		gap = DefaultClusterGap
	}
	return &Clusterer{logger: logger.Named("visual"), gap: gap}
}

// FallbackDetection clusters the snapshot's controls by vertical proximity:
// controls are sorted by top position, then greedily grouped while each
// successive control starts within the gap of the previous control's bottom
// edge. Groups smaller than MinClusterSize are discarded. Each surviving
// group becomes one synthetic FormDescriptor with a generated unique
// id/name, so it can be distinguished in mapping persistence despite having
// no structural identity.
func (c *Clusterer) FallbackDetection(snapshot schemas.Snapshot) []schemas.FormDescriptor {
	controls := make([]schemas.SnapshotControl, len(snapshot.Controls))
	copy(controls, snapshot.Controls)
	sort.SliceStable(controls, func(i, j int) bool {
		return controls[i].Box.Y < controls[j].Box.Y
	})

	var groups [][]schemas.SnapshotControl
	var current []schemas.SnapshotControl
	for _, ctl := range controls {
		if len(current) > 0 {
			prev := current[len(current)-1]
			if ctl.Box.Y-prev.Box.Bottom() > c.gap {
				groups = append(groups, current)
				current = nil
			}
		}
		current = append(current, ctl)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	var forms []schemas.FormDescriptor
	for _, group := range groups {
		if len(group) < MinClusterSize {
			continue
		}
		forms = append(forms, c.synthesize(group))
	}
	c.logger.Debug("visual fallback clustering finished",
		zap.Int("controls", len(controls)), zap.Int("synthetic_forms", len(forms)))
	return forms
}

// synthesize turns one cluster into a synthetic descriptor. Label resolution
// is best effort: with no structural form there is no reliable <label>
// association, so the snapshot's field labels are taken as-is.
func (c *Clusterer) synthesize(group []schemas.SnapshotControl) schemas.FormDescriptor {
	id := fmt.Sprintf("synthetic-%s", uuid.NewString()[:8])
	desc := schemas.FormDescriptor{
		ID:        id,
		Name:      id,
		Synthetic: true,
	}
	for _, ctl := range group {
		desc.Fields = append(desc.Fields, ctl.Field)
	}
	return desc
}
