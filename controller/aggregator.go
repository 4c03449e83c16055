package controller

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-arlocalize/common"
	"github.com/nvr-ai/go-arlocalize/images"
	"github.com/nvr-ai/go-arlocalize/logger"
)

// State is the lifecycle state of an Aggregator.
type State int

const (
	// StateEmpty means no detection has been seen yet.
	StateEmpty State = iota
	// StateAccumulating means the set is still changing.
	StateAccumulating
	// StateStable means the set stopped changing and is frozen.
	StateStable
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAccumulating:
		return "accumulating"
	case StateStable:
		return "stable"
	default:
		return "unknown"
	}
}

// DefaultStableThreshold is the number of unchanged frames after which the
// aggregated set is considered stable.
const DefaultStableThreshold = 150

// AggregatorConfig is a configuration for the aggregator.
type AggregatorConfig struct {
	// StableThreshold is how many consecutive unchanged frames are tolerated;
	// one more makes the set stable.
	StableThreshold int `json:"stable_threshold" yaml:"stable_threshold"`
}

// Aggregator merges per-frame detections into one set of distinct objects and
// reports when that set has settled. It is not safe for concurrent use.
type Aggregator struct {
	config     AggregatorConfig
	state      State
	stale      int
	detections []common.Detection
	logger     *zap.Logger
}

// NewAggregator creates an empty aggregator.
//
// Arguments:
//   - config: The aggregator configuration. A non-positive threshold uses DefaultStableThreshold.
//   - log: The logger; nil uses the process logger.
//
// Returns:
//   - The aggregator.
func NewAggregator(config AggregatorConfig, log *zap.Logger) *Aggregator {
	if config.StableThreshold <= 0 {
		config.StableThreshold = DefaultStableThreshold
	}
	return &Aggregator{
		config: config,
		logger: logger.Or(log),
	}
}

// Update merges one frame of detections.
//
// A detection that is the same object as an entry (see images.IsSameObject)
// replaces it in place when its confidence is strictly higher, otherwise it is
// ignored. A detection that matches nothing is appended. Either change resets
// the stale counter; a frame with no change increments it, and once it passes
// the threshold the set becomes stable and later updates are ignored.
//
// Arguments:
//   - frame: The detections of one frame, possibly empty.
//
// Returns:
//   - true if the aggregated set changed.
func (a *Aggregator) Update(frame []common.Detection) bool {
	switch a.state {
	case StateStable:
		return false
	case StateEmpty:
		if len(frame) == 0 {
			return false
		}
		a.detections = make([]common.Detection, 0, len(frame))
		for _, d := range frame {
			a.detections = append(a.detections, a.admit(d))
		}
		a.state = StateAccumulating
		a.stale = 0
		a.logger.Debug("aggregating first detections", zap.Int("count", len(frame)))
		return true
	}

	changed := false
	for _, incoming := range frame {
		unique := true
		for i := range a.detections {
			existing := a.detections[i]
			if !images.IsSameObject(incoming.Box, existing.Box) {
				continue
			}
			unique = false
			if incoming.Confidence > existing.Confidence {
				a.logger.Debug("replacing detection",
					zap.String("label", incoming.Label),
					zap.Float32("confidence", incoming.Confidence),
					zap.String("replaced_label", existing.Label),
					zap.Float32("replaced_confidence", existing.Confidence))
				a.detections[i] = a.admit(incoming)
				changed = true
				break
			}
		}
		if unique {
			a.logger.Debug("adding detection",
				zap.String("label", incoming.Label),
				zap.Float32("confidence", incoming.Confidence))
			a.detections = append(a.detections, a.admit(incoming))
			changed = true
		}
	}

	if changed {
		a.stale = 0
		return true
	}

	a.stale++
	if a.stale > a.config.StableThreshold {
		a.state = StateStable
		a.logger.Info("detections are stable",
			zap.Int("count", len(a.detections)),
			zap.Int("stale_frames", a.stale))
	}
	return false
}

// admit prepares an incoming detection for the set. Used is carried as given.
func (a *Aggregator) admit(d common.Detection) common.Detection {
	d.ID = uuid.New()
	return d
}

// Detections returns a copy of the aggregated set.
func (a *Aggregator) Detections() []common.Detection {
	return common.Clone(a.detections)
}

// MarkUsed records that the placement collaborator consumed the detection
// with the given ID.
//
// Returns:
//   - false if no entry has that ID.
func (a *Aggregator) MarkUsed(id uuid.UUID) bool {
	for i := range a.detections {
		if a.detections[i].ID == id {
			a.detections[i].Used = true
			return true
		}
	}
	return false
}

// State returns the current state.
func (a *Aggregator) State() State {
	return a.state
}

// Stale returns the number of consecutive frames without a change.
func (a *Aggregator) Stale() int {
	return a.stale
}

// Reset returns the aggregator to the empty state.
func (a *Aggregator) Reset() {
	a.state = StateEmpty
	a.stale = 0
	a.detections = nil
}
