package visual

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formweaver/formweaver/api/schemas"
)

func ctl(name string, y, height float64) schemas.SnapshotControl {
	return schemas.SnapshotControl{
		Field: schemas.FieldDescriptor{Name: name, Type: "text"},
		Box:   schemas.Rect{X: 10, Y: y, Width: 200, Height: height},
	}
}

func TestFallbackDetectionGroupsByProximity(t *testing.T) {
	snapshot := schemas.Snapshot{Controls: []schemas.SnapshotControl{
		ctl("email", 100, 30),
		ctl("name", 150, 30),
		ctl("message", 200, 60),
		// Big vertical jump: a separate group.
		ctl("search", 600, 30),
		ctl("filter", 650, 30),
	}}

	forms := NewClusterer(nil, 0).FallbackDetection(snapshot)
	require.Len(t, forms, 2)

	require.Len(t, forms[0].Fields, 3)
	assert.Equal(t, "email", forms[0].Fields[0].Name)
	assert.Equal(t, "message", forms[0].Fields[2].Name)

	require.Len(t, forms[1].Fields, 2)
	assert.Equal(t, "search", forms[1].Fields[0].Name)
}

func TestFallbackDetectionDiscardsSingletons(t *testing.T) {
	snapshot := schemas.Snapshot{Controls: []schemas.SnapshotControl{
		ctl("lonely", 100, 30),
		ctl("pair-a", 500, 30),
		ctl("pair-b", 540, 30),
	}}

	forms := NewClusterer(nil, 0).FallbackDetection(snapshot)
	require.Len(t, forms, 1)
	for _, f := range forms {
		assert.GreaterOrEqual(t, len(f.Fields), MinClusterSize)
	}
	assert.Equal(t, "pair-a", forms[0].Fields[0].Name)
}

func TestFallbackDetectionSortsByVerticalPosition(t *testing.T) {
	snapshot := schemas.Snapshot{Controls: []schemas.SnapshotControl{
		ctl("second", 160, 30),
		ctl("first", 100, 30),
	}}

	forms := NewClusterer(nil, 0).FallbackDetection(snapshot)
	require.Len(t, forms, 1)
	assert.Equal(t, "first", forms[0].Fields[0].Name)
	assert.Equal(t, "second", forms[0].Fields[1].Name)
}

func TestFallbackDetectionGapBoundary(t *testing.T) {
	// Control bottom at 130; next top at exactly 190 is within a 60px gap,
	// at 191 it is not.
	within := schemas.Snapshot{Controls: []schemas.SnapshotControl{
		ctl("a", 100, 30), ctl("b", 190, 30), ctl("c", 220, 30),
	}}
	forms := NewClusterer(nil, 60).FallbackDetection(within)
	require.Len(t, forms, 1)
	assert.Len(t, forms[0].Fields, 3)

	beyond := schemas.Snapshot{Controls: []schemas.SnapshotControl{
		ctl("a", 100, 30), ctl("b", 191, 30), ctl("c", 220, 30),
	}}
	forms = NewClusterer(nil, 60).FallbackDetection(beyond)
	require.Len(t, forms, 1, "the singleton 'a' is discarded")
	assert.Len(t, forms[0].Fields, 2)
}

func TestSyntheticDescriptorsCarryUniqueIdentity(t *testing.T) {
	snapshot := schemas.Snapshot{Controls: []schemas.SnapshotControl{
		ctl("a", 0, 20), ctl("b", 30, 20),
		ctl("c", 500, 20), ctl("d", 530, 20),
	}}

	forms := NewClusterer(nil, 0).FallbackDetection(snapshot)
	require.Len(t, forms, 2)

	for _, f := range forms {
		assert.True(t, f.Synthetic)
		assert.Nil(t, f.ContainerRef)
		assert.NotEmpty(t, f.ID)
		assert.Equal(t, f.ID, f.Name)
	}
	assert.NotEqual(t, forms[0].ID, forms[1].ID)
}

func TestFallbackDetectionEmptySnapshot(t *testing.T) {
	assert.Empty(t, NewClusterer(nil, 0).FallbackDetection(schemas.Snapshot{}))
}
