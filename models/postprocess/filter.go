package postprocess

// AboveThreshold is the confidence cut every decoder applies: a score equal to the
// threshold is rejected.
func AboveThreshold(score, threshold float32) bool {
	return score > threshold
}

// FilterByScore returns the results whose score passes AboveThreshold, preserving order.
func FilterByScore(results Results, threshold float32) Results {
	filtered := make(Results, 0, len(results))
	for _, r := range results {
		if AboveThreshold(r.Score, threshold) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
