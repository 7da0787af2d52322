// Command detect runs object detection on a camera, video file or stream and prints or
// shows the detections.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-detect/client"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/detectors"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/motion"
	"github.com/nvr-ai/go-detect/render"
)

// processFunc runs detection on one captured frame.
type processFunc func(ctx context.Context, img gocv.Mat) (postprocess.Results, images.Frame, error)

func main() {
	var (
		configPath string
		source     string
		remote     string
		window     bool
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration")
	flag.StringVar(&source, "source", "", "Capture device index, video file or stream URL (overrides capture.source)")
	flag.StringVar(&remote, "remote", "", "Detect service URL; frames are sent there instead of running the engine locally")
	flag.BoolVar(&window, "window", false, "Show annotated frames in a window")
	flag.StringVar(&logLevel, "log-level", "", "Log level (overrides log.level)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.S().Fatalw("loading configuration", "error", err)
	}
	if source != "" {
		cfg.Capture.Source = source
	}
	if remote != "" {
		cfg.Capture.Remote = remote
	}
	if window {
		cfg.Capture.Window = true
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.InitLogger(); err != nil {
		logger.S().Fatalw("initializing logger", "error", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Log().Fatal("detect failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config) error {
	log := logger.Named("detect")

	process, closeFn, err := newProcessor(cfg, log)
	if err != nil {
		return err
	}
	defer closeFn()

	capture, err := openCapture(cfg.Capture.Source)
	if err != nil {
		return err
	}
	defer capture.Close()
	if cfg.Capture.Resolution != "" {
		setResolution(capture, cfg.Capture.Resolution, log)
	}

	var gate *motion.Gate
	if cfg.Capture.Motion.Enabled {
		md, err := motion.NewDetector(cfg.Capture.Motion)
		if err != nil {
			return err
		}
		defer md.Close()
		gate = motion.NewGate(md, cfg.Capture.Motion.Threshold, cfg.Capture.Motion.HoldFrames)
	}

	var win *gocv.Window
	if cfg.Capture.Window {
		win = gocv.NewWindow("Detect")
		defer win.Close()
	}

	img := gocv.NewMat()
	defer img.Close()

	labels := cfg.Detector.Labels()
	style := render.DefaultStyle()

	fps := 0.0
	frameCount := 0
	lastTime := time.Now()

	log.Info("start reading capture", zap.String("source", cfg.Capture.Source))
	for ctx.Err() == nil {
		if ok := capture.Read(&img); !ok {
			log.Info("capture ended", zap.String("source", cfg.Capture.Source))
			return nil
		}
		if img.Empty() {
			continue
		}

		frameCount++
		if elapsed := time.Since(lastTime).Seconds(); elapsed >= 1.0 {
			fps = float64(frameCount) / elapsed
			frameCount = 0
			lastTime = time.Now()
		}

		var (
			results postprocess.Results
			frame   = images.Frame{Width: img.Cols(), Height: img.Rows()}
		)
		if allowed(gate, img, log) {
			start := time.Now()
			results, frame, err = process(ctx, img)
			if err != nil {
				log.Warn("frame skipped", zap.Error(err))
				continue
			}
			log.Debug("frame processed",
				zap.Int("detections", len(results)),
				zap.Stringer("frame", frame),
				zap.Duration("latency", time.Since(start)),
				zap.Float64("fps", fps),
			)
		}
		for _, r := range results {
			var name string
			if len(labels) > 0 {
				if name, err = labels.Name(r.Class); err != nil {
					log.Warn("label lookup failed", zap.Int("class_id", r.Class), zap.Error(err))
				}
			}
			log.Info("detection",
				zap.String("label", name),
				zap.Int("class_id", r.Class),
				zap.Float32("confidence", r.Score),
				zap.Int("left", r.Box.Left),
				zap.Int("top", r.Box.Top),
				zap.Int("width", r.Box.Width),
				zap.Int("height", r.Box.Height),
			)
		}

		if win == nil {
			continue
		}
		// Region-proposal boxes are relative to the network input.
		if frame.Width != img.Cols() || frame.Height != img.Rows() {
			gocv.Resize(img, &img, frame.Bounds().Size(), 0, 0, gocv.InterpolationLinear)
		}
		if err := render.Detections(&img, results, labels, style); err != nil {
			log.Warn("rendering detections", zap.Error(err))
		}
		render.Status(&img, 0, "FPS: "+strconv.FormatFloat(fps, 'f', 1, 64), render.Green)
		win.IMShow(img)
		if win.WaitKey(1) == 27 {
			return nil
		}
	}
	return nil
}

// allowed reports whether the frame should go through inference.
func allowed(gate *motion.Gate, img gocv.Mat, log *zap.Logger) bool {
	if gate == nil {
		return true
	}
	ok, score, err := gate.Allow(img)
	if err != nil {
		log.Warn("motion scoring failed", zap.Error(err))
	}
	if !ok {
		log.Debug("no motion", zap.Float64("score", score))
	}
	return ok
}

// newProcessor returns the local pipeline, or a client of a remote service when one is
// configured.
func newProcessor(cfg config.Config, log *zap.Logger) (processFunc, func(), error) {
	if cfg.Capture.Remote != "" {
		c := client.New(cfg.Capture.Remote, 0)
		return func(ctx context.Context, img gocv.Mat) (postprocess.Results, images.Frame, error) {
			return detectRemote(ctx, c, img)
		}, func() {}, nil
	}

	engine, err := cfg.NewEngine()
	if err != nil {
		return nil, nil, errors.Wrap(err, "loading engine")
	}
	detector, err := detectors.New(cfg.Detector, detectors.WithLogger(log))
	if err != nil {
		engine.Close()
		return nil, nil, err
	}
	pipeline := inference.NewPipeline(engine, detector)
	return pipeline.Process, func() { _ = pipeline.Close() }, nil
}

func detectRemote(ctx context.Context, c *client.Client, img gocv.Mat) (postprocess.Results, images.Frame, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, images.Frame{}, errors.Wrap(err, "encoding frame")
	}
	defer buf.Close()

	resp, err := c.Detect(ctx, buf.GetBytes())
	if err != nil {
		return nil, images.Frame{}, err
	}
	results := make(postprocess.Results, 0, len(resp.Detections))
	for _, d := range resp.Detections {
		results = append(results, postprocess.Result{Box: d.Box, Score: d.Confidence, Class: d.ClassID})
	}
	return results, resp.Frame, nil
}

// openCapture opens a device when source is an index and a file or URL otherwise.
func openCapture(source string) (*gocv.VideoCapture, error) {
	var device any = source
	if id, err := strconv.Atoi(source); err == nil {
		device = id
	}
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, errors.Wrapf(err, "opening capture %s", source)
	}
	return capture, nil
}

// setResolution requests a named resolution from the device and logs what it settled on.
func setResolution(capture *gocv.VideoCapture, alias string, log *zap.Logger) {
	res, err := images.ParseResolution(alias)
	if err != nil {
		log.Warn("ignoring capture resolution", zap.Error(err))
		return
	}
	capture.Set(gocv.VideoCaptureFrameWidth, float64(res.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(res.Height))

	got := images.Frame{
		Width:  int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}
	log.Info("capture resolution",
		zap.Stringer("requested", res),
		zap.Stringer("actual", got),
		zap.Float64("megapixels", res.MegaPixels()),
	)
}
