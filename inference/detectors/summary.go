package detectors

import (
	"image"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/nvr-ai/go-detect/models/postprocess"
)

// ConfidenceStats describes the confidence distribution of a detection list.
type ConfidenceStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// Summary aggregates one frame's detections for logs and API responses.
type Summary struct {
	// TotalObjects is the number of detections.
	TotalObjects int `json:"total_objects"`

	// PerClass counts detections by class id.
	PerClass map[int]int `json:"per_class"`

	// AverageObjectSize is the mean box area in pixels.
	AverageObjectSize float64 `json:"average_object_size"`

	// BoundingRegion contains every detection.
	BoundingRegion image.Rectangle `json:"bounding_region"`

	// ConfidenceDistribution summarizes detection confidences.
	ConfidenceDistribution ConfidenceStats `json:"confidence_distribution"`
}

// Summarize aggregates a detection list. An empty list yields a zero Summary with an
// empty PerClass map.
func Summarize(results postprocess.Results) Summary {
	summary := Summary{
		TotalObjects: len(results),
		PerClass:     make(map[int]int),
	}
	if len(results) == 0 {
		return summary
	}

	confidences := make([]float64, len(results))
	areas := make([]float64, len(results))
	region := results[0].Box.Rectangle()

	for i, r := range results {
		summary.PerClass[r.Class]++
		confidences[i] = float64(r.Score)
		areas[i] = r.Box.Area()
		region = region.Union(r.Box.Rectangle())
	}

	sort.Float64s(confidences)
	mean, std := stat.PopMeanStdDev(confidences, nil)

	summary.AverageObjectSize = stat.Mean(areas, nil)
	summary.BoundingRegion = region
	summary.ConfidenceDistribution = ConfidenceStats{
		Mean:   mean,
		Median: median(confidences),
		Min:    confidences[0],
		Max:    confidences[len(confidences)-1],
		StdDev: std,
	}
	return summary
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
