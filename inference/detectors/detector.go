package detectors

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/models/region"
)

// Frame is everything the inference collaborator hands over for one frame.
type Frame struct {
	// Outputs are the raw output tensors of the forward pass.
	Outputs []postprocess.RawTensor
	// Metadata describes the output layer so the decode strategy can be selected.
	Metadata model.Metadata
	// Geometry is the frame the boxes are expressed against.
	Geometry images.Frame
}

// BatchResult is the outcome of one frame of a DetectBatch call.
type BatchResult struct {
	Results postprocess.Results
	Err     error
}

// Option customizes a Detector.
type Option func(*Detector)

// WithLogger sets the logger used to report rejected frames. The default discards.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// WithMetrics records frame and candidate counts on m.
func WithMetrics(m *Metrics) Option {
	return func(d *Detector) {
		d.metrics = m
	}
}

// Detector runs the decode-and-suppress cycle.
//
// It holds only read-only state built at construction and is safe for concurrent use;
// every call allocates its own result.
type Detector struct {
	config   Config
	labels   models.Labels
	decoders map[model.Format]model.Decoder
	nms      postprocess.NMSConfig
	logger   *zap.Logger
	metrics  *Metrics
}

// New creates a Detector.
//
// Arguments:
//   - config: The detector configuration.
//   - opts: Optional logger and metrics.
//
// Returns:
//   - *Detector: The detector.
//   - error: An error if the configuration is invalid.
func New(config Config, opts ...Option) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	labels := config.Labels()
	decoders, err := models.Decoders(models.DecoderOptions{
		Region: region.Options{
			ScoreOffset: config.RegionScoreOffset,
			NumClasses:  len(labels),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "build decoders")
	}

	d := &Detector{
		config:   config,
		labels:   labels,
		decoders: decoders,
		nms: postprocess.NMSConfig{
			IoUThreshold: config.NMSThreshold,
			ClassAware:   config.ClassAwareNMS,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the configuration the detector was built with.
func (d *Detector) Config() Config {
	return d.config
}

// Labels returns the configured label table.
func (d *Detector) Labels() models.Labels {
	return d.labels
}

// Detect decodes and suppresses the raw outputs of one frame.
//
// The frame moves through AwaitingOutputs, Classified, Decoded, Suppressed and Delivered.
// An unsupported output layer or a malformed tensor rejects the frame: the result is then
// empty (never nil) and the error is a *RejectedError that still matches
// postprocess.ErrUnsupportedOutputFormat or postprocess.ErrMalformedTensor.
//
// Arguments:
//   - frame: The raw outputs, output metadata and frame geometry.
//
// Returns:
//   - postprocess.Results: The surviving detections, highest confidence first.
//   - error: A *RejectedError when the frame could not be decoded.
func (d *Detector) Detect(frame Frame) (postprocess.Results, error) {
	start := time.Now()

	format, results, err := d.detect(frame)
	elapsed := time.Since(start)

	if err != nil {
		d.metrics.observeFrame(format.String(), outcomeRejected, elapsed)
		d.logger.Warn("frame rejected",
			zap.Stringer("format", format),
			zap.String("last_layer_type", frame.Metadata.LastLayerType),
			zap.Stringer("frame", frame.Geometry),
			zap.Error(err),
		)
		return postprocess.Results{}, err
	}

	d.metrics.observeFrame(format.String(), outcomeDelivered, elapsed)
	d.logger.Debug("frame delivered",
		zap.Stringer("format", format),
		zap.Int("detections", len(results)),
		zap.Duration("elapsed", elapsed),
	)
	return results, nil
}

func (d *Detector) detect(frame Frame) (model.Format, postprocess.Results, error) {
	if !frame.Geometry.Valid() {
		return model.FormatUnknown, nil, &RejectedError{
			Stage: StageAwaitingOutputs,
			Err:   errors.Errorf("invalid frame geometry %s", frame.Geometry),
		}
	}

	meta := frame.Metadata
	if meta.Format == model.FormatUnknown {
		meta.Format = d.config.Format
	}

	format, err := model.Classify(meta)
	if err != nil {
		return format, nil, &RejectedError{Stage: StageAwaitingOutputs, Err: err}
	}

	decoder, ok := d.decoders[format]
	if !ok {
		return format, nil, &RejectedError{
			Stage: StageClassified,
			Err:   &model.UnsupportedFormatError{LayerType: format.String()},
		}
	}

	candidates, err := decoder.Decode(frame.Outputs, frame.Geometry, d.config.ConfidenceThreshold)
	if err != nil {
		return format, nil, &RejectedError{Stage: StageClassified, Err: err}
	}
	d.metrics.observeCandidates(StageDecoded, len(candidates))

	kept := postprocess.ApplyGreedyNMS(candidates, &d.nms)
	d.metrics.observeCandidates(StageSuppressed, len(kept))

	return format, kept, nil
}

// DetectBatch runs Detect over independent frames on at most Config.Workers goroutines.
//
// Each frame is decoded in full once started. Frames not yet started when ctx is done
// are reported with ctx.Err() and an empty result.
//
// Arguments:
//   - ctx: Cancels frames that have not started.
//   - frames: The frames to process.
//
// Returns:
//   - []BatchResult: One entry per frame, in input order.
func (d *Detector) DetectBatch(ctx context.Context, frames []Frame) []BatchResult {
	out := make([]BatchResult, len(frames))
	if len(frames) == 0 {
		return out
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < min(d.config.Workers, len(frames)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					out[i] = BatchResult{Results: postprocess.Results{}, Err: err}
					continue
				}
				results, err := d.Detect(frames[i])
				out[i] = BatchResult{Results: results, Err: err}
			}
		}()
	}

	for i := range frames {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return out
}

// Label returns the configured label of a detection.
func (d *Detector) Label(r postprocess.Result) (string, error) {
	return d.labels.Name(r.Class)
}
