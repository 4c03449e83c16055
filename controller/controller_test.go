// Package controller - tests for the frame loop and its single in-flight inference.
package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-arlocalize/common"
)

// gatedEngine blocks every Infer until the test lets it through.
type gatedEngine struct {
	gate   chan struct{}
	calls  atomic.Int32
	inputs [][]float32
	mu     sync.Mutex
	err    error
}

func newGatedEngine() *gatedEngine {
	return &gatedEngine{gate: make(chan struct{})}
}

func (e *gatedEngine) Infer(ctx context.Context, input []float32) ([]tensor.Tensor, error) {
	e.calls.Add(1)
	e.mu.Lock()
	e.inputs = append(e.inputs, input)
	e.mu.Unlock()

	select {
	case <-e.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	return []tensor.Tensor{tensor.New(tensor.WithShape(1), tensor.WithBacking([]float32{0}))}, nil
}

// release lets exactly one pending inference finish and waits for its result.
func release(t *testing.T, e *gatedEngine, c *Controller) {
	t.Helper()
	e.gate <- struct{}{}
	c.Wait()
}

// scriptedModel returns one scripted response per call, repeating the last.
type scriptedModel struct {
	mu        sync.Mutex
	responses []response
	calls     int
}

type response struct {
	detections []common.Detection
	err        error
}

func (m *scriptedModel) PostProcess(_ []tensor.Tensor) ([]common.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.responses[min(m.calls, len(m.responses)-1)]
	m.calls++
	return common.Clone(r.detections), r.err
}

func TestController_SkipsFramesWhileBusy(t *testing.T) {
	engine := newGatedEngine()
	model := &scriptedModel{responses: []response{{detections: []common.Detection{det("cup", 0.9, 0, 0, 10, 10)}}}}
	c := New(engine, model, AggregatorConfig{StableThreshold: 10}, zap.NewNop())
	ctx := context.Background()

	first := c.OnFrame(ctx, []float32{1})
	assert.True(t, first.Started)
	assert.False(t, first.Merged)
	assert.Equal(t, StateEmpty, first.State)

	for i := 0; i < 5; i++ {
		r := c.OnFrame(ctx, []float32{2})
		assert.False(t, r.Started, "frame %d must be skipped", i)
		assert.False(t, r.Merged)
	}

	release(t, engine, c)
	assert.Equal(t, int32(1), engine.calls.Load())

	next := c.OnFrame(ctx, []float32{3})
	assert.True(t, next.Merged)
	assert.True(t, next.Started)
	assert.True(t, next.Changed)
	assert.Equal(t, StateAccumulating, next.State)
	require.Len(t, next.Detections, 1)
	assert.Equal(t, "cup", next.Detections[0].Label)

	release(t, engine, c)

	stats := c.Stats()
	assert.Equal(t, uint64(7), stats.Frames)
	assert.Equal(t, uint64(2), stats.Started)
	assert.Equal(t, uint64(5), stats.Skipped)
	assert.Equal(t, uint64(2), stats.Completed)

	metrics := c.CollectMetrics()
	assert.Equal(t, 7.0, metrics["frames"])
	assert.Equal(t, 5.0, metrics["frames_skipped"])
	assert.Equal(t, 0.0, metrics["inferences_failed"])
}

func TestController_InputIsCopied(t *testing.T) {
	engine := newGatedEngine()
	model := &scriptedModel{responses: []response{{}}}
	c := New(engine, model, AggregatorConfig{}, zap.NewNop())

	input := []float32{1, 2, 3}
	c.OnFrame(context.Background(), input)
	input[0] = 99
	release(t, engine, c)

	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.Equal(t, []float32{1, 2, 3}, engine.inputs[0])
}

func TestController_BecomesStableAndStopsInferring(t *testing.T) {
	engine := newGatedEngine()
	model := &scriptedModel{responses: []response{{detections: []common.Detection{det("plant", 0.8, 0, 0, 10, 10)}}}}
	c := New(engine, model, AggregatorConfig{StableThreshold: 2}, zap.NewNop())
	ctx := context.Background()

	c.OnFrame(ctx, nil)
	states := []State{}
	for i := 0; i < 4; i++ {
		release(t, engine, c)
		states = append(states, c.OnFrame(ctx, nil).State)
	}
	assert.Equal(t, []State{StateAccumulating, StateAccumulating, StateAccumulating, StateStable}, states)

	// The inference started by the last frame is still pending.
	release(t, engine, c)
	calls := engine.calls.Load()

	frozen := c.OnFrame(ctx, nil)
	assert.Equal(t, StateStable, frozen.State)
	assert.False(t, frozen.Started)
	assert.False(t, frozen.Merged)
	require.Len(t, frozen.Detections, 1)
	assert.Equal(t, calls, engine.calls.Load())
}

func TestController_PostProcessErrorDropsFrame(t *testing.T) {
	engine := newGatedEngine()
	model := &scriptedModel{responses: []response{
		{detections: []common.Detection{det("cup", 0.5, 0, 0, 10, 10)}},
		{err: errors.Wrap(common.ErrShapeMismatch, "output 0")},
		{detections: []common.Detection{det("cup", 0.5, 0, 0, 10, 10)}},
	}}
	c := New(engine, model, AggregatorConfig{StableThreshold: 50}, zap.NewNop())
	ctx := context.Background()

	c.OnFrame(ctx, nil)
	release(t, engine, c)
	merged := c.OnFrame(ctx, nil)
	require.True(t, merged.Merged)
	before := merged.Detections

	release(t, engine, c)
	dropped := c.OnFrame(ctx, nil)
	assert.False(t, dropped.Merged)
	assert.False(t, dropped.Changed)
	assert.Equal(t, before, dropped.Detections)
	assert.Equal(t, uint64(1), c.Stats().Failed)

	release(t, engine, c)
}

func TestController_EngineErrorDropsFrame(t *testing.T) {
	engine := newGatedEngine()
	engine.err = errors.New("session closed")
	model := &scriptedModel{responses: []response{{}}}
	c := New(engine, model, AggregatorConfig{}, zap.NewNop())
	ctx := context.Background()

	c.OnFrame(ctx, nil)
	release(t, engine, c)

	r := c.OnFrame(ctx, nil)
	assert.False(t, r.Merged)
	assert.Equal(t, StateEmpty, r.State)
	assert.Equal(t, 0, model.calls)

	release(t, engine, c)
}

func TestController_Reset(t *testing.T) {
	engine := newGatedEngine()
	model := &scriptedModel{responses: []response{{detections: []common.Detection{det("cup", 0.5, 0, 0, 10, 10)}}}}
	c := New(engine, model, AggregatorConfig{}, zap.NewNop())
	ctx := context.Background()

	c.OnFrame(ctx, nil)
	release(t, engine, c)
	c.OnFrame(ctx, nil)
	require.Len(t, c.Aggregator().Detections(), 1)

	// Finish the pending inference; its result is discarded by Reset.
	go func() { engine.gate <- struct{}{} }()
	c.Reset()
	assert.Equal(t, StateEmpty, c.Aggregator().State())

	r := c.OnFrame(ctx, nil)
	assert.False(t, r.Merged)
	assert.Empty(t, r.Detections)

	release(t, engine, c)
}
