// Package benchmark - Measures end-to-end detection latency over a set of frames.
package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Processor runs detection on one frame. *inference.Pipeline satisfies it.
type Processor interface {
	Process(ctx context.Context, img gocv.Mat) (postprocess.Results, images.Frame, error)
}

// Options configures a run.
type Options struct {
	// Name labels the run in reports.
	Name string
	// Warmup is the number of untimed frames processed first.
	Warmup int
	// Iterations is the number of timed frames. Frames are reused round robin; zero
	// processes each frame once.
	Iterations int
	// Logger receives per-frame errors. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Latency summarizes per-frame processing times in milliseconds.
type Latency struct {
	Mean float64 `json:"mean_ms"`
	P50  float64 `json:"p50_ms"`
	P95  float64 `json:"p95_ms"`
	P99  float64 `json:"p99_ms"`
	Min  float64 `json:"min_ms"`
	Max  float64 `json:"max_ms"`
}

// MemoryMetrics captures memory usage across the timed frames.
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	NumGC           uint32 `json:"num_gc"`
}

// Report is the outcome of a run.
type Report struct {
	Name            string        `json:"name"`
	Timestamp       time.Time     `json:"timestamp"`
	Frames          int           `json:"frames"`
	Errors          int           `json:"errors"`
	Detections      int           `json:"detections"`
	TotalDuration   time.Duration `json:"total_duration"`
	FramesPerSecond float64       `json:"frames_per_second"`
	ErrorRate       float64       `json:"error_rate"`
	Latency         Latency       `json:"latency"`
	Memory          MemoryMetrics `json:"memory"`
	NumCPU          int           `json:"num_cpu"`
}

// Run decodes the frames and pushes them through the processor.
//
// Frames that fail processing count as errors and do not stop the run. Cancelling ctx
// stops it early with the context error.
//
// Arguments:
//   - ctx: The context of the run.
//   - processor: The detection pipeline.
//   - frames: The encoded frames.
//   - opts: The run options.
//
// Returns:
//   - *Report: The measurements.
//   - error: An error if a frame cannot be decoded or the context is cancelled.
func Run(ctx context.Context, processor Processor, frames []FrameFile, opts Options) (*Report, error) {
	if len(frames) == 0 {
		return nil, errors.New("no frames to process")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	mats := make([]gocv.Mat, 0, len(frames))
	defer func() {
		for _, m := range mats {
			m.Close()
		}
	}()
	for _, f := range frames {
		m, err := gocv.IMDecode(f.Data, gocv.IMReadColor)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s", f.Path)
		}
		if m.Empty() {
			m.Close()
			return nil, errors.Errorf("decode %s: not an image", f.Path)
		}
		mats = append(mats, m)
	}

	for i := 0; i < opts.Warmup; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, _, _ = processor.Process(ctx, mats[i%len(mats)])
	}

	iterations := opts.Iterations
	if iterations <= 0 {
		iterations = len(mats)
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	report := &Report{
		Name:      opts.Name,
		Timestamp: time.Now(),
		NumCPU:    runtime.NumCPU(),
	}
	durations := make([]float64, 0, iterations)

	start := time.Now()
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frameStart := time.Now()
		results, _, err := processor.Process(ctx, mats[i%len(mats)])
		elapsed := time.Since(frameStart)
		report.Frames++
		if err != nil {
			report.Errors++
			log.Debug("frame failed", zap.String("path", frames[i%len(frames)].Path), zap.Error(err))
			continue
		}
		report.Detections += len(results)
		durations = append(durations, float64(elapsed.Microseconds())/1000)
	}
	report.TotalDuration = time.Since(start)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	if secs := report.TotalDuration.Seconds(); secs > 0 {
		report.FramesPerSecond = float64(report.Frames) / secs
	}
	report.ErrorRate = float64(report.Errors) / float64(report.Frames)
	report.Latency = summarizeLatency(durations)
	report.Memory = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		HeapAllocBytes:  endMem.HeapAlloc,
		NumGC:           endMem.NumGC - startMem.NumGC,
	}
	return report, nil
}

func summarizeLatency(ms []float64) Latency {
	if len(ms) == 0 {
		return Latency{}
	}
	sorted := append([]float64(nil), ms...)
	sort.Float64s(sorted)
	return Latency{
		Mean: stat.Mean(sorted, nil),
		P50:  stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P95:  stat.Quantile(0.95, stat.Empirical, sorted, nil),
		P99:  stat.Quantile(0.99, stat.Empirical, sorted, nil),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
	}
}

// WriteJSON writes reports as an indented JSON array.
func WriteJSON(w io.Writer, reports ...*Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(reports), "encode reports")
}

// csvHeader is the column layout of WriteCSV.
var csvHeader = []string{"name", "frames", "fps", "total_ms", "mean_ms", "p50_ms", "p95_ms", "p99_ms", "detections", "error_rate", "alloc_mb"}

// WriteCSV writes one summary row per report.
func WriteCSV(w io.Writer, reports ...*Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, r := range reports {
		row := []string{
			r.Name,
			strconv.Itoa(r.Frames),
			formatFloat(r.FramesPerSecond),
			formatFloat(float64(r.TotalDuration.Microseconds()) / 1000),
			formatFloat(r.Latency.Mean),
			formatFloat(r.Latency.P50),
			formatFloat(r.Latency.P95),
			formatFloat(r.Latency.P99),
			strconv.Itoa(r.Detections),
			strconv.FormatFloat(r.ErrorRate, 'f', 4, 64),
			formatFloat(float64(r.Memory.AllocBytes) / (1024 * 1024)),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
