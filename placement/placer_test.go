package placement

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-arlocalize/common"
	"github.com/nvr-ai/go-arlocalize/images"
)

// fakeRaycaster records every query and answers from a script.
type fakeRaycaster struct {
	points []images.Point
	miss   map[int]bool
	err    error
}

func (f *fakeRaycaster) Raycast(_ context.Context, p images.Point) (Hit, bool, error) {
	f.points = append(f.points, p)
	if f.err != nil {
		return Hit{}, false, f.err
	}
	if f.miss[len(f.points)-1] {
		return Hit{}, false, nil
	}
	return Hit{Pose: Pose{X: p.X, Y: p.Y, Z: 1}, Distance: 1}, true, nil
}

func detection(label string, conf float32, box images.Box) common.Detection {
	return common.Detection{ID: uuid.New(), Label: label, Confidence: conf, Box: box}
}

func TestPlacer_RaycastsCentreWithFlippedY(t *testing.T) {
	rc := &fakeRaycaster{}
	store := NewMemoryStore()
	transform := images.NewScreenTransform(1000, 2000, 500)
	p := NewPlacer(rc, store, transform, 2000, zap.NewNop())

	d := detection("chair", 0.876, images.Box{X: 100, Y: 100, Width: 50, Height: 100})
	out, err := p.Place(context.Background(), []common.Detection{d})
	require.NoError(t, err)

	// Screen box: x 200..300, y 700..900; centre (250, 800); flipped y = 2000-800.
	require.Len(t, rc.points, 1)
	assert.Equal(t, images.Point{X: 250, Y: 1200}, rc.points[0])

	require.Len(t, out, 1)
	assert.True(t, out[0].Used)
	assert.False(t, d.Used, "input is not modified")

	anchors := store.List()
	require.Len(t, anchors, 1)
	assert.Equal(t, d.ID, anchors[0].DetectionID)
	assert.Equal(t, "chair: 87%", anchors[0].Text)
}

func TestPlacer_MissIsRetried(t *testing.T) {
	rc := &fakeRaycaster{miss: map[int]bool{0: true}}
	store := NewMemoryStore()
	p := NewPlacer(rc, store, images.NewScreenTransform(416, 416, 416), 416, zap.NewNop())

	stable := []common.Detection{detection("lamp", 0.5, images.Box{X: 10, Y: 10, Width: 20, Height: 20})}

	out, err := p.Place(context.Background(), stable)
	require.NoError(t, err)
	assert.False(t, out[0].Used)
	assert.Empty(t, store.List())

	out, err = p.Place(context.Background(), stable)
	require.NoError(t, err)
	assert.True(t, out[0].Used)
	assert.Len(t, store.List(), 1)
	assert.Len(t, rc.points, 2)
}

func TestPlacer_PlacedDetectionsAreNotRaycastAgain(t *testing.T) {
	rc := &fakeRaycaster{}
	p := NewPlacer(rc, NewMemoryStore(), images.NewScreenTransform(416, 416, 416), 416, zap.NewNop())
	stable := []common.Detection{detection("lamp", 0.5, images.Box{X: 10, Y: 10, Width: 20, Height: 20})}

	_, err := p.Place(context.Background(), stable)
	require.NoError(t, err)
	// The caller did not persist Used; the placer still remembers the anchor.
	out, err := p.Place(context.Background(), stable)
	require.NoError(t, err)
	assert.True(t, out[0].Used)
	assert.Len(t, rc.points, 1)
	assert.Equal(t, 1, p.Anchors())
}

func TestPlacer_RemovesAnchorsOfReplacedDetections(t *testing.T) {
	rc := &fakeRaycaster{}
	store := NewMemoryStore()
	p := NewPlacer(rc, store, images.NewScreenTransform(416, 416, 416), 416, zap.NewNop())

	a := detection("cup", 0.5, images.Box{X: 10, Y: 10, Width: 20, Height: 20})
	b := detection("mug", 0.6, images.Box{X: 100, Y: 100, Width: 20, Height: 20})
	_, err := p.Place(context.Background(), []common.Detection{a, b})
	require.NoError(t, err)
	require.Len(t, store.List(), 2)

	replacement := detection("cup", 0.9, a.Box)
	_, err = p.Place(context.Background(), []common.Detection{replacement, b})
	require.NoError(t, err)

	anchors := store.List()
	require.Len(t, anchors, 2)
	ids := []uuid.UUID{anchors[0].DetectionID, anchors[1].DetectionID}
	assert.ElementsMatch(t, []uuid.UUID{replacement.ID, b.ID}, ids)
}

func TestPlacer_RaycastError(t *testing.T) {
	rc := &fakeRaycaster{err: errors.New("tracking lost")}
	p := NewPlacer(rc, NewMemoryStore(), images.NewScreenTransform(416, 416, 416), 416, zap.NewNop())

	_, err := p.Place(context.Background(), []common.Detection{detection("cup", 0.5, images.Box{Width: 4, Height: 4})})
	assert.ErrorContains(t, err, "tracking lost")
}

func TestMemoryStore_RemoveUnknown(t *testing.T) {
	s := NewMemoryStore()
	err := s.Remove(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrAnchorNotFound))
}

func TestPlaneRaycaster(t *testing.T) {
	r := PlaneRaycaster{Width: 400, Height: 800, Depth: 2}

	hit, ok, err := r.Raycast(context.Background(), images.Point{X: 200, Y: 400})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Pose{X: 0, Y: 0, Z: 2}, hit.Pose)
	assert.InDelta(t, 2, hit.Distance, 1e-6)

	_, ok, err = r.Raycast(context.Background(), images.Point{X: -1, Y: 10})
	require.NoError(t, err)
	assert.False(t, ok)
}
