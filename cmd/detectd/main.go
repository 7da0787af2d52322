// Command detectd serves the detector over HTTP.
//
// Without an engine it only decodes tensors posted to /v1/decode; with -engine it also
// runs inference for /v1/detect and /v1/stream.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/detectors"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/nvr-ai/go-detect/server"
)

func main() {
	var (
		configPath string
		addr       string
		withEngine bool
	)
	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	flag.BoolVar(&withEngine, "engine", false, "Load the configured inference engine")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.S().Fatalw("loading configuration", "error", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if err := cfg.InitLogger(); err != nil {
		logger.S().Fatalw("initializing logger", "error", err)
	}
	defer logger.Sync()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, withEngine); err != nil {
		logger.Log().Fatal("detectd failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, withEngine bool) error {
	log := logger.Named("detectd")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics, err := detectors.NewMetrics(registry)
	if err != nil {
		return err
	}
	detector, err := detectors.New(cfg.Detector,
		detectors.WithLogger(log.Named("detector")),
		detectors.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	opts := server.Options{
		Decoder:           detector,
		Gatherer:          registry,
		Logger:            log,
		StreamIdleTimeout: cfg.Server.StreamIdleTimeout,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
	}
	if withEngine {
		engine, err := cfg.NewEngine()
		if err != nil {
			return errors.Wrap(err, "loading engine")
		}
		pipeline := inference.NewPipeline(engine, detector)
		defer pipeline.Close()
		opts.Processor = pipeline
		log.Info("engine loaded", zap.String("engine", string(cfg.Engine)))
	}

	srv, err := server.New(opts)
	if err != nil {
		return err
	}

	log.Info("starting",
		zap.String("addr", cfg.Server.Addr),
		zap.Int("labels", len(detector.Labels())),
		zap.Float32("confidence_threshold", cfg.Detector.ConfidenceThreshold),
		zap.Float32("nms_threshold", cfg.Detector.NMSThreshold),
	)
	if err := srv.Run(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
