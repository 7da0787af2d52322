// Command detect-bench measures detection latency of the configured engine over a
// directory of frames and writes JSON and CSV reports.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/benchmark"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/detectors"
	"github.com/nvr-ai/go-detect/logger"
)

func main() {
	var (
		configPath string
		framesDir  string
		outputDir  string
		name       string
		warmup     int
		iterations int
	)
	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration")
	flag.StringVar(&framesDir, "frames", "", "Directory of frames to process")
	flag.StringVar(&outputDir, "out", "benchmark-results", "Directory for the reports")
	flag.StringVar(&name, "name", "", "Run name (defaults to the engine type)")
	flag.IntVar(&warmup, "warmup", 5, "Untimed frames processed first")
	flag.IntVar(&iterations, "iterations", 0, "Timed frames; 0 processes each frame once")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.S().Fatalw("loading configuration", "error", err)
	}
	if err := cfg.InitLogger(); err != nil {
		logger.S().Fatalw("initializing logger", "error", err)
	}
	defer logger.Sync()

	if framesDir == "" {
		logger.S().Fatal("-frames is required")
	}
	if name == "" {
		name = string(cfg.Engine)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := benchmark.Options{Name: name, Warmup: warmup, Iterations: iterations}
	if err := run(ctx, cfg, framesDir, outputDir, opts); err != nil {
		logger.Log().Fatal("benchmark failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, framesDir, outputDir string, opts benchmark.Options) error {
	log := logger.Named("bench")
	opts.Logger = log

	frames, err := benchmark.LoadFrames(framesDir)
	if err != nil {
		return err
	}

	engine, err := cfg.NewEngine()
	if err != nil {
		return errors.Wrap(err, "loading engine")
	}
	detector, err := detectors.New(cfg.Detector, detectors.WithLogger(log.Named("detector")))
	if err != nil {
		engine.Close()
		return err
	}
	pipeline := inference.NewPipeline(engine, detector)
	defer pipeline.Close()

	log.Info("running", zap.String("name", opts.Name), zap.Int("frames", len(frames)))
	report, err := benchmark.Run(ctx, pipeline, frames, opts)
	if err != nil {
		return err
	}
	log.Info("completed",
		zap.Float64("fps", report.FramesPerSecond),
		zap.Float64("p50_ms", report.Latency.P50),
		zap.Float64("p95_ms", report.Latency.P95),
		zap.Int("errors", report.Errors),
	)
	return save(outputDir, report, log)
}

func save(dir string, report *benchmark.Report, log *zap.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	stamp := time.Now().Format("2006-01-02_15-04-05")

	writers := map[string]func(*os.File) error{
		"json": func(f *os.File) error { return benchmark.WriteJSON(f, report) },
		"csv":  func(f *os.File) error { return benchmark.WriteCSV(f, report) },
	}
	for ext, write := range writers {
		path := filepath.Join(dir, "benchmark_"+report.Name+"_"+stamp+"."+ext)
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "create report")
		}
		err = write(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
		log.Info("report saved", zap.String("path", path))
	}
	return nil
}
