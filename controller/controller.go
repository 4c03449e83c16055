// Package controller - This file contains the frame loop that feeds camera frames through inference
// into the aggregator.
package controller

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-arlocalize/common"
	"github.com/nvr-ai/go-arlocalize/logger"
)

// Engine runs the network on a prepared input tensor.
type Engine interface {
	Infer(ctx context.Context, input []float32) ([]tensor.Tensor, error)
}

// PostProcessor turns raw engine outputs into detections.
type PostProcessor interface {
	PostProcess(outputs []tensor.Tensor) ([]common.Detection, error)
}

// FrameResult is what the controller reports for one camera frame.
type FrameResult struct {
	// Detections is a copy of the aggregated set after this frame.
	Detections []common.Detection
	// State is the aggregator state after this frame.
	State State
	// Changed is true when this frame changed the aggregated set.
	Changed bool
	// Started is true when an inference was started for this frame.
	Started bool
	// Merged is true when a finished inference result was merged on this frame.
	Merged bool
}

// Stats counts what happened to frames handed to the controller.
type Stats struct {
	Frames    uint64
	Started   uint64
	Skipped   uint64
	Completed uint64
	Failed    uint64
}

// Controller runs at most one inference at a time. A frame that arrives while
// an inference is in flight is not queued: the frame is skipped and only the
// aggregator is ticked. OnFrame, Reset and Detections must be called from one
// goroutine.
type Controller struct {
	engine     Engine
	model      PostProcessor
	aggregator *Aggregator
	logger     *zap.Logger

	busy    atomic.Bool
	results chan []common.Detection
	wg      sync.WaitGroup

	frames    atomic.Uint64
	started   atomic.Uint64
	skipped   atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
}

// New creates a controller.
//
// Arguments:
//   - engine: The inference engine.
//   - model: Converts engine outputs into detections.
//   - config: The aggregator configuration.
//   - log: The logger; nil uses the process logger.
//
// Returns:
//   - The controller.
func New(engine Engine, model PostProcessor, config AggregatorConfig, log *zap.Logger) *Controller {
	log = logger.Or(log)
	return &Controller{
		engine:     engine,
		model:      model,
		aggregator: NewAggregator(config, log),
		logger:     log,
		results:    make(chan []common.Detection, 1),
	}
}

// OnFrame handles one camera frame.
//
// Once the aggregated set is stable the frame is ignored. Otherwise an
// inference is started on a copy of input unless one is already running, and
// the most recent finished result, if any, is merged into the aggregator.
// Without a new result the aggregator still ticks, so staleness is measured in
// camera frames.
//
// Arguments:
//   - ctx: Passed to the engine for the inference started by this frame.
//   - input: The prepared model input.
//
// Returns:
//   - The frame result.
func (c *Controller) OnFrame(ctx context.Context, input []float32) FrameResult {
	c.frames.Add(1)

	if c.aggregator.State() == StateStable {
		return FrameResult{Detections: c.aggregator.Detections(), State: StateStable}
	}

	result := FrameResult{}
	if c.busy.CompareAndSwap(false, true) {
		c.started.Add(1)
		result.Started = true
		c.wg.Add(1)
		go c.infer(ctx, append([]float32(nil), input...))
	} else {
		c.skipped.Add(1)
		c.logger.Debug("inference in flight, skipping frame")
	}

	var frame []common.Detection
	select {
	case frame = <-c.results:
		result.Merged = true
	default:
	}

	result.Changed = c.aggregator.Update(frame)
	result.State = c.aggregator.State()
	result.Detections = c.aggregator.Detections()
	return result
}

func (c *Controller) infer(ctx context.Context, input []float32) {
	defer c.wg.Done()
	defer c.busy.Store(false)

	outputs, err := c.engine.Infer(ctx, input)
	if err != nil {
		c.failed.Add(1)
		c.logger.Warn("inference failed, dropping frame", zap.Error(err))
		return
	}

	detections, err := c.model.PostProcess(outputs)
	if err != nil {
		c.failed.Add(1)
		c.logger.Warn("post-processing failed, dropping frame", zap.Error(err))
		return
	}

	c.completed.Add(1)
	c.publish(detections)
}

// publish replaces any unread result with detections.
func (c *Controller) publish(detections []common.Detection) {
	select {
	case <-c.results:
	default:
	}
	c.results <- detections
}

// Wait blocks until the in-flight inference, if any, has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Reset waits for the in-flight inference, discards its result and empties
// the aggregator.
func (c *Controller) Reset() {
	c.Wait()
	select {
	case <-c.results:
	default:
	}
	c.aggregator.Reset()
}

// Aggregator returns the aggregator fed by the controller.
func (c *Controller) Aggregator() *Aggregator {
	return c.aggregator
}

// Stats returns the frame counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Frames:    c.frames.Load(),
		Started:   c.started.Load(),
		Skipped:   c.skipped.Load(),
		Completed: c.completed.Load(),
		Failed:    c.failed.Load(),
	}
}

// CollectMetrics reports the frame counters as profiler gauges.
func (c *Controller) CollectMetrics() map[string]float64 {
	s := c.Stats()
	return map[string]float64{
		"frames":             float64(s.Frames),
		"inferences_started": float64(s.Started),
		"frames_skipped":     float64(s.Skipped),
		"inferences_done":    float64(s.Completed),
		"inferences_failed":  float64(s.Failed),
	}
}
