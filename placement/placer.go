// Package placement - turns a stable detection set into world anchors.
package placement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-arlocalize/common"
	"github.com/nvr-ai/go-arlocalize/images"
	"github.com/nvr-ai/go-arlocalize/logger"
)

// Pose is a position in world space.
type Pose struct {
	X, Y, Z float32
}

// Hit is the closest surface found by a raycast.
type Hit struct {
	Pose     Pose
	Distance float32
}

// Raycaster finds the surface behind a screen point. Screen points use a
// bottom-left origin.
type Raycaster interface {
	Raycast(ctx context.Context, screen images.Point) (Hit, bool, error)
}

// Anchor pins a detection to a world pose.
type Anchor struct {
	ID          uuid.UUID
	DetectionID uuid.UUID
	Text        string
	Pose        Pose
}

// AnchorStore owns the anchors placed in the world.
type AnchorStore interface {
	Add(ctx context.Context, anchor Anchor) error
	Remove(ctx context.Context, id uuid.UUID) error
}

// Placer creates one anchor per detection and removes anchors whose detection
// left the set. It is not safe for concurrent use.
type Placer struct {
	raycaster    Raycaster
	store        AnchorStore
	transform    images.ScreenTransform
	screenHeight float32
	anchors      map[uuid.UUID]Anchor
	logger       *zap.Logger
}

// NewPlacer creates a placer.
//
// Arguments:
//   - raycaster: Finds surfaces behind screen points.
//   - store: Receives created and removed anchors.
//   - transform: Maps model input boxes to screen pixels.
//   - screenHeight: Screen height in pixels, used to flip Y for the raycaster.
//   - log: The logger; nil uses the process logger.
//
// Returns:
//   - The placer.
func NewPlacer(raycaster Raycaster, store AnchorStore, transform images.ScreenTransform, screenHeight int, log *zap.Logger) *Placer {
	return &Placer{
		raycaster:    raycaster,
		store:        store,
		transform:    transform,
		screenHeight: float32(screenHeight),
		anchors:      make(map[uuid.UUID]Anchor),
		logger:       logger.Or(log),
	}
}

// AnchorText is the caption attached to an anchor.
func AnchorText(d common.Detection) string {
	return fmt.Sprintf("%s: %d%%", d.Label, int(d.Confidence*100))
}

// RaycastPoint returns the screen point behind the centre of a detection,
// with a bottom-left origin.
func (p *Placer) RaycastPoint(d common.Detection) images.Point {
	c := p.transform.Apply(d.Box).Center()
	return images.Point{X: c.X, Y: p.screenHeight - c.Y}
}

// Place reconciles anchors with the stable set.
//
// Anchors whose detection is no longer in stable are removed first. Then every
// detection without an anchor is raycast at its centre; a hit creates an
// anchor and marks the detection used, a miss leaves it for the next call.
//
// Arguments:
//   - ctx: Passed to the raycaster and the store.
//   - stable: The aggregated detection set.
//
// Returns:
//   - A copy of stable with Used updated.
//   - The first raycaster or store error.
func (p *Placer) Place(ctx context.Context, stable []common.Detection) ([]common.Detection, error) {
	present := make(map[uuid.UUID]struct{}, len(stable))
	for _, d := range stable {
		present[d.ID] = struct{}{}
	}

	for detectionID, anchor := range p.anchors {
		if _, ok := present[detectionID]; ok {
			continue
		}
		if err := p.store.Remove(ctx, anchor.ID); err != nil {
			return nil, errors.Wrapf(err, "removing anchor %s", anchor.ID)
		}
		delete(p.anchors, detectionID)
		p.logger.Debug("anchor removed", zap.String("text", anchor.Text))
	}

	out := common.Clone(stable)
	for i := range out {
		d := &out[i]
		if _, ok := p.anchors[d.ID]; ok {
			d.Used = true
		}
		if d.Used {
			continue
		}

		point := p.RaycastPoint(*d)
		hit, ok, err := p.raycaster.Raycast(ctx, point)
		if err != nil {
			return nil, errors.Wrapf(err, "raycasting %s", d.Label)
		}
		if !ok {
			p.logger.Debug("raycast missed", zap.String("label", d.Label),
				zap.Float32("x", point.X), zap.Float32("y", point.Y))
			continue
		}

		anchor := Anchor{
			ID:          uuid.New(),
			DetectionID: d.ID,
			Text:        AnchorText(*d),
			Pose:        hit.Pose,
		}
		if err := p.store.Add(ctx, anchor); err != nil {
			return nil, errors.Wrapf(err, "adding anchor for %s", d.Label)
		}
		p.anchors[d.ID] = anchor
		d.Used = true
		p.logger.Info("anchor created", zap.String("text", anchor.Text), zap.Float32("distance", hit.Distance))
	}

	return out, nil
}

// Anchors returns the number of anchors currently placed.
func (p *Placer) Anchors() int {
	return len(p.anchors)
}
