package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-arlocalize/common"
	"github.com/nvr-ai/go-arlocalize/images"
)

func det(label string, confidence float32, x, y, w, h float32) common.Detection {
	return common.Detection{
		Label:      label,
		Confidence: confidence,
		Box:        images.Box{X: x, Y: y, Width: w, Height: h},
	}
}

func newTestAggregator(threshold int) *Aggregator {
	return NewAggregator(AggregatorConfig{StableThreshold: threshold}, zap.NewNop())
}

func TestAggregator_EmptyFramesKeepEmpty(t *testing.T) {
	a := newTestAggregator(3)
	for i := 0; i < 10; i++ {
		assert.False(t, a.Update(nil))
	}
	assert.Equal(t, StateEmpty, a.State())
	assert.Equal(t, 0, a.Stale())
	assert.Empty(t, a.Detections())
}

func TestAggregator_FirstFrameIsCopied(t *testing.T) {
	a := newTestAggregator(3)
	frame := []common.Detection{
		det("cup", 0.5, 0, 0, 10, 10),
		det("cup", 0.4, 2, 2, 10, 10),
	}

	assert.True(t, a.Update(frame))
	assert.Equal(t, StateAccumulating, a.State())

	got := a.Detections()
	require.Len(t, got, 2)
	for i := range got {
		assert.NotEqual(t, got[i].ID.String(), "00000000-0000-0000-0000-000000000000")
		assert.Equal(t, frame[i].Box, got[i].Box)
	}

	// The returned slice is a copy.
	got[0].Label = "changed"
	assert.Equal(t, "cup", a.Detections()[0].Label)
}

func TestAggregator_ReplacesHigherConfidence(t *testing.T) {
	a := newTestAggregator(DefaultStableThreshold)
	a.Update([]common.Detection{det("chair", 0.5, 100, 100, 50, 50)})
	a.Update(nil)
	a.Update(nil)
	require.Equal(t, 2, a.Stale())

	b := det("sofa", 0.7, 105, 102, 50, 50)
	assert.True(t, a.Update([]common.Detection{b}))

	got := a.Detections()
	require.Len(t, got, 1)
	assert.Equal(t, "sofa", got[0].Label)
	assert.Equal(t, float32(0.7), got[0].Confidence)
	assert.Equal(t, b.Box, got[0].Box)
	assert.Equal(t, 0, a.Stale())
}

func TestAggregator_LowerConfidenceIsIgnored(t *testing.T) {
	a := newTestAggregator(DefaultStableThreshold)
	a.Update([]common.Detection{det("chair", 0.8, 100, 100, 50, 50)})
	before := a.Detections()

	assert.False(t, a.Update([]common.Detection{det("chair", 0.6, 104, 104, 50, 50)}))
	assert.Equal(t, before, a.Detections())
	assert.Equal(t, 1, a.Stale())
}

func TestAggregator_ReplacementKeepsPositionAndOthers(t *testing.T) {
	a := newTestAggregator(DefaultStableThreshold)
	a.Update([]common.Detection{
		det("a", 0.5, 0, 0, 10, 10),
		det("b", 0.5, 100, 100, 10, 10),
		det("c", 0.5, 200, 200, 10, 10),
	})
	before := a.Detections()
	before[0].Used = true
	require.True(t, a.MarkUsed(before[0].ID))

	assert.True(t, a.Update([]common.Detection{det("b2", 0.9, 101, 101, 10, 10)}))

	got := a.Detections()
	require.Len(t, got, 3)
	assert.Equal(t, before[0], got[0], "untouched entries keep ID and Used")
	assert.Equal(t, "b2", got[1].Label)
	assert.NotEqual(t, before[1].ID, got[1].ID)
	assert.False(t, got[1].Used)
	assert.Equal(t, before[2], got[2])
}

func TestAggregator_UnmatchedIsAppended(t *testing.T) {
	a := newTestAggregator(DefaultStableThreshold)
	a.Update([]common.Detection{det("a", 0.5, 0, 0, 10, 10)})
	a.Update(nil)

	assert.True(t, a.Update([]common.Detection{det("b", 0.3, 50, 50, 10, 10)}))
	got := a.Detections()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Label)
	assert.Equal(t, "b", got[1].Label)
	assert.Equal(t, 0, a.Stale())
}

func TestAggregator_StableAfterThresholdPlusOne(t *testing.T) {
	a := newTestAggregator(DefaultStableThreshold)
	a.Update([]common.Detection{det("lamp", 0.9, 10, 10, 20, 20)})

	for tick := 1; tick <= DefaultStableThreshold; tick++ {
		a.Update(nil)
		require.Equal(t, StateAccumulating, a.State(), "tick %d", tick)
	}
	a.Update(nil)
	assert.Equal(t, StateStable, a.State())
	assert.Equal(t, DefaultStableThreshold+1, a.Stale())
}

func TestAggregator_StableIsFrozen(t *testing.T) {
	a := newTestAggregator(1)
	a.Update([]common.Detection{det("lamp", 0.2, 10, 10, 20, 20)})
	a.Update(nil)
	a.Update(nil)
	require.Equal(t, StateStable, a.State())
	before := a.Detections()

	assert.False(t, a.Update([]common.Detection{
		det("lamp", 0.99, 12, 12, 20, 20),
		det("rug", 0.99, 300, 300, 20, 20),
	}))
	assert.Equal(t, before, a.Detections())
	assert.Equal(t, StateStable, a.State())
}

func TestAggregator_Reset(t *testing.T) {
	a := newTestAggregator(1)
	a.Update([]common.Detection{det("lamp", 0.2, 10, 10, 20, 20)})
	a.Update(nil)
	a.Update(nil)
	require.Equal(t, StateStable, a.State())

	a.Reset()
	assert.Equal(t, StateEmpty, a.State())
	assert.Equal(t, 0, a.Stale())
	assert.Empty(t, a.Detections())
	assert.False(t, a.MarkUsed([16]byte{1}))
}

func TestAggregator_DefaultThreshold(t *testing.T) {
	a := NewAggregator(AggregatorConfig{}, nil)
	assert.Equal(t, DefaultStableThreshold, a.config.StableThreshold)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "empty", StateEmpty.String())
	assert.Equal(t, "accumulating", StateAccumulating.String())
	assert.Equal(t, "stable", StateStable.String())
}
