// Package server exposes the detector over HTTP.
//
// Routes:
//   - GET  /api/ping   liveness
//   - GET  /healthz    readiness, reports whether an inference engine is attached
//   - GET  /metrics    prometheus exposition
//   - POST /v1/decode  decode raw output tensors produced elsewhere
//   - POST /v1/detect  run inference on a base64 image (requires an engine)
//   - GET  /v1/stream  websocket, one base64 or binary image per message (requires an engine)
package server

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference/detectors"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

const requestIDKey = "request_id"

// RequestIDHeader carries the id assigned to every request.
const RequestIDHeader = "X-Request-ID"

// Decoder decodes one frame of raw outputs. *detectors.Detector satisfies it.
type Decoder interface {
	Detect(frame detectors.Frame) (postprocess.Results, error)
	Labels() models.Labels
}

// Processor runs inference and decoding on a captured frame. *inference.Pipeline
// satisfies it.
type Processor interface {
	Process(ctx context.Context, img gocv.Mat) (postprocess.Results, images.Frame, error)
}

// Options configures a Server.
type Options struct {
	// Decoder serves /v1/decode. Required.
	Decoder Decoder
	// Processor serves /v1/detect and /v1/stream. Optional.
	Processor Processor
	// Gatherer serves /metrics. Defaults to the prometheus default registry.
	Gatherer prometheus.Gatherer
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// StreamIdleTimeout closes idle websocket streams. Zero disables it.
	StreamIdleTimeout time.Duration
	// MaxMessageBytes limits websocket messages.
	MaxMessageBytes int64
	// AllowedOrigins lists the cross-site origins, such as "https://console.example.com",
	// that may open /v1/stream. Same-origin and non-browser clients are always accepted.
	AllowedOrigins []string
}

// Server is the HTTP front of a detector.
type Server struct {
	opts     Options
	router   *gin.Engine
	logger   *zap.Logger
	upgrader *websocket.Upgrader
}

// New builds the router.
//
// Arguments:
//   - opts: The decoder, the optional inference processor and the ambient dependencies.
//
// Returns:
//   - *Server: The server.
//   - error: An error if no decoder is configured.
func New(opts Options) (*Server, error) {
	if opts.Decoder == nil {
		return nil, errors.New("server: a decoder is required")
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 20 * 1024 * 1024
	}

	s := &Server{opts: opts, logger: opts.Logger, upgrader: newUpgrader(opts.AllowedOrigins)}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.accessLog())
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	v1.POST("/decode", s.decode)
	v1.POST("/detect", s.detect)
	v1.GET("/stream", s.stream)

	s.router = r
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"inference": s.opts.Processor != nil,
		"labels":    len(s.opts.Decoder.Labels()),
	})
}

func (s *Server) decode(c *gin.Context) {
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	outputs := make([]postprocess.RawTensor, 0, len(req.Outputs))
	for i, p := range req.Outputs {
		t, err := p.Dense()
		if err != nil {
			s.fail(c, http.StatusBadRequest, errors.Wrapf(err, "output %d", i))
			return
		}
		outputs = append(outputs, t)
	}

	results, err := s.opts.Decoder.Detect(detectors.Frame{
		Outputs:  outputs,
		Metadata: req.Metadata,
		Geometry: req.Frame,
	})
	if err != nil {
		s.fail(c, http.StatusUnprocessableEntity, err)
		return
	}
	s.respond(c, req.Frame, results)
}

func (s *Server) detect(c *gin.Context) {
	if s.opts.Processor == nil {
		s.fail(c, http.StatusServiceUnavailable, errors.New("no inference engine configured"))
		return
	}

	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	img, err := DecodeBase64Image(req.Image)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	defer img.Close()

	results, frame, err := s.opts.Processor.Process(c.Request.Context(), img)
	if err != nil {
		s.fail(c, statusOf(err), err)
		return
	}
	s.respond(c, frame, results)
}

func (s *Server) respond(c *gin.Context, frame images.Frame, results postprocess.Results) {
	resp, err := NewResponse(c.GetString(requestIDKey), frame, results, s.opts.Decoder.Labels())
	if err != nil {
		s.fail(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	body := errorBody(c.GetString(requestIDKey), err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("request_id", body.RequestID), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}

// errorBody reports err, with the rejection stage when the detector rejected the frame.
func errorBody(requestID string, err error) ErrorResponse {
	body := ErrorResponse{RequestID: requestID, Error: err.Error()}
	var rejected *detectors.RejectedError
	if errors.As(err, &rejected) {
		body.Stage = rejected.Stage.String()
	}
	return body
}

// statusOf maps a processing error to an HTTP status. Rejected frames and detections the
// label table does not cover are 422.
func statusOf(err error) int {
	var rejected *detectors.RejectedError
	if errors.As(err, &rejected) || errors.Is(err, postprocess.ErrClassIndexOutOfRange) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// DecodeBase64Image decodes a base64 image, with or without a data URL prefix.
//
// Arguments:
//   - b64: The encoded image.
//
// Returns:
//   - gocv.Mat: The BGR image; the caller closes it when err is nil.
//   - error: An error if the payload is not base64 or not a supported image.
func DecodeBase64Image(b64 string) (gocv.Mat, error) {
	if i := strings.Index(b64, ","); i != -1 && strings.HasPrefix(b64, "data:") {
		b64 = b64[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return gocv.Mat{}, errors.Wrap(err, "invalid base64 image")
	}
	return decodeImage(data)
}

func decodeImage(data []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, errors.Wrap(err, "decoding image")
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, errors.New("decoded image is empty or unsupported format")
	}
	return mat, nil
}
