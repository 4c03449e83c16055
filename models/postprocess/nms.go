// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"
	"strconv"

	"github.com/nvr-ai/go-arlocalize/common"
	"github.com/nvr-ai/go-arlocalize/images"
)

// Strategy selects the greedy suppression variant.
type Strategy string

const (
	// StrategyPerClass repeatedly takes the highest remaining (candidate, class)
	// probability and clears only that class on overlapping candidates.
	StrategyPerClass Strategy = "per_class"
	// StrategyPerBox ranks candidates by their best class and removes whole
	// candidates that overlap a kept one.
	StrategyPerBox Strategy = "per_box"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	Strategy             Strategy `json:"strategy" yaml:"strategy"`
	IoUThreshold         float32  `json:"iou_threshold" yaml:"iou_threshold"`                 // Overlap threshold for suppression.
	ProbabilityThreshold float32  `json:"probability_threshold" yaml:"probability_threshold"` // Per-class stop condition.
	Limit                int      `json:"limit" yaml:"limit"`                                 // Maximum number of detections returned.
}

// Suppress filters overlapping candidates with the configured strategy.
//
// Arguments:
//   - candidates: Decoded candidates, in decoder order.
//   - labels: The label table; class i is labels[i].
//   - config: NMS configuration.
//
// Returns:
//   - At most config.Limit detections. An empty input returns nil.
func Suppress(candidates []Candidate, labels []string, config *NMSConfig) []common.Detection {
	if config.Strategy == StrategyPerClass {
		return SuppressPerClass(candidates, labels, config)
	}
	return SuppressPerBox(candidates, labels, config)
}

// SuppressPerClass performs greedy per-class Non-Maximum Suppression.
//
// Each round emits the single highest probability over every candidate and
// every class, then zeroes that class on the winner and on every candidate
// whose IoU with the winner exceeds the threshold. Other classes of those
// candidates stay eligible. Candidates are not modified.
//
// Arguments:
//   - candidates: Decoded candidates.
//   - labels: The label table.
//   - config: NMS configuration; ProbabilityThreshold stops the loop.
//
// Returns:
//   - Detections in emission order (descending probability).
func SuppressPerClass(candidates []Candidate, labels []string, config *NMSConfig) []common.Detection {
	n := len(candidates)
	if n == 0 || config.Limit <= 0 {
		return nil
	}

	probs := make([][]float32, n)
	maxProbs := make([]float32, n)
	for i, c := range candidates {
		probs[i] = append([]float32(nil), c.Probabilities...)
		_, maxProbs[i] = ArgMax(probs[i])
	}

	filtered := make([]common.Detection, 0, min(n, config.Limit))
	for len(filtered) < config.Limit {
		winner, best := ArgMax(maxProbs)
		if best <= 0 || best < config.ProbabilityThreshold {
			break
		}
		class, _ := ArgMax(probs[winner])
		anchor := candidates[winner].Box

		filtered = append(filtered, common.Detection{
			Box:        anchor,
			Label:      labelFor(labels, class),
			Confidence: best,
		})

		for i := range candidates {
			if i != winner && images.CalculateIoU(anchor, candidates[i].Box) <= config.IoUThreshold {
				continue
			}
			probs[i][class] = 0
			_, maxProbs[i] = ArgMax(probs[i])
		}
	}

	return filtered
}

// SuppressPerBox performs standard greedy Non-Maximum Suppression.
//
// Arguments:
//   - candidates: Decoded candidates in any order; ties keep input order.
//   - labels: The label table.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered detections, highest confidence first.
func SuppressPerBox(candidates []Candidate, labels []string, config *NMSConfig) []common.Detection {
	n := len(candidates)
	if n == 0 || config.Limit <= 0 {
		return nil
	}

	detections := make([]common.Detection, n)
	for i, c := range candidates {
		class, score := c.Best()
		detections[i] = common.Detection{
			Box:        c.Box,
			Label:      labelFor(labels, class),
			Confidence: score,
		}
	}
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	filtered := make([]common.Detection, 0, min(n, config.Limit))
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true
		if len(filtered) >= config.Limit {
			break
		}

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			// Suppress if IoU exceeds threshold
			if images.CalculateIoU(anchor.Box, detections[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}

func labelFor(labels []string, class int) string {
	if class >= 0 && class < len(labels) {
		return labels[class]
	}
	return "class_" + strconv.Itoa(class)
}
