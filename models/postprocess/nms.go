// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import "sort"

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// Overlap threshold for suppression: a candidate whose IoU with a kept box is greater
	// than or equal to it is dropped.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// If true, suppress only within the same class. The default suppresses across classes.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Candidates are visited by descending confidence, ties keeping their emission order. A
// candidate is kept unless it overlaps an already kept box by at least the IoU threshold.
// The input slice is left untouched.
//
// Arguments:
//   - detections: Candidates in emission order.
//   - config: NMS configuration.
//
// Returns:
//   - The kept candidates in the order they were kept. Never nil.
func ApplyGreedyNMS(detections Results, config *NMSConfig) Results {
	n := len(detections)
	filtered := make(Results, 0, n)
	if n == 0 {
		return filtered
	}

	sorted := make(Results, n)
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	for _, candidate := range sorted {
		if !overlapsKept(candidate, filtered, config) {
			filtered = append(filtered, candidate)
		}
	}

	return filtered
}

func overlapsKept(candidate Result, kept Results, config *NMSConfig) bool {
	for _, anchor := range kept {
		if config.ClassAware && anchor.Class != candidate.Class {
			continue
		}
		if anchor.Box.IoU(candidate.Box) >= config.IoUThreshold {
			return true
		}
	}
	return false
}
