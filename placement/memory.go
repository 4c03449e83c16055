package placement

import (
	"context"
	"sync"

	"github.com/chewxy/math32"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-arlocalize/images"
)

// ErrAnchorNotFound is returned when removing an unknown anchor.
var ErrAnchorNotFound = errors.New("anchor not found")

// MemoryStore is an AnchorStore that keeps anchors in a map.
type MemoryStore struct {
	mu      sync.RWMutex
	anchors map[uuid.UUID]Anchor
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{anchors: make(map[uuid.UUID]Anchor)}
}

// Add stores anchor.
func (s *MemoryStore) Add(_ context.Context, anchor Anchor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors[anchor.ID] = anchor
	return nil
}

// Remove deletes the anchor with the given ID.
func (s *MemoryStore) Remove(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.anchors[id]; !ok {
		return errors.Wrapf(ErrAnchorNotFound, "%s", id)
	}
	delete(s.anchors, id)
	return nil
}

// List returns the stored anchors in no particular order.
func (s *MemoryStore) List() []Anchor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Anchor, 0, len(s.anchors))
	for _, a := range s.anchors {
		out = append(out, a)
	}
	return out
}

// PlaneRaycaster intersects screen rays with a plane facing the camera at a
// fixed depth. Points outside the screen miss.
type PlaneRaycaster struct {
	Width, Height float32
	Depth         float32
}

// Raycast maps the screen point onto the plane, centred on the optical axis.
func (r PlaneRaycaster) Raycast(_ context.Context, p images.Point) (Hit, bool, error) {
	if p.X < 0 || p.Y < 0 || p.X > r.Width || p.Y > r.Height {
		return Hit{}, false, nil
	}
	pose := Pose{
		X: (p.X - r.Width/2) / r.Width * r.Depth,
		Y: (p.Y - r.Height/2) / r.Width * r.Depth,
		Z: r.Depth,
	}
	distance := math32.Sqrt(pose.X*pose.X + pose.Y*pose.Y + pose.Z*pose.Z)
	return Hit{Pose: pose, Distance: distance}, true, nil
}
