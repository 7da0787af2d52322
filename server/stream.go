package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

func newUpgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowed),
	}
}

// originChecker accepts requests without an Origin header, same-origin requests and the
// listed origins. "*" accepts every origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(strings.TrimSuffix(a, "/"), origin) {
				return true
			}
		}
		return false
	}
}

// stream runs detection on every image message until the client disconnects or stays
// idle past StreamIdleTimeout. Text messages are base64 images, binary messages are
// encoded image bytes. Every message gets exactly one Response or ErrorResponse.
func (s *Server) stream(c *gin.Context) {
	if s.opts.Processor == nil {
		s.fail(c, http.StatusServiceUnavailable, errors.New("no inference engine configured"))
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.opts.MaxMessageBytes)

	id := c.GetString(requestIDKey)
	logger := s.logger.With(zap.String("request_id", id))
	logger.Debug("stream opened")

	ctx := c.Request.Context()
	for seq := 0; ; seq++ {
		if s.opts.StreamIdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.opts.StreamIdleTimeout))
		}
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Debug("stream closed", zap.Int("frames", seq), zap.Error(err))
			return
		}

		var img gocv.Mat
		switch mt {
		case websocket.TextMessage:
			img, err = DecodeBase64Image(string(msg))
		case websocket.BinaryMessage:
			img, err = decodeImage(msg)
		default:
			err = errors.New("unsupported message type")
		}
		if err != nil {
			if werr := conn.WriteJSON(errorBody(id, err)); werr != nil {
				return
			}
			continue
		}

		results, frame, err := s.opts.Processor.Process(ctx, img)
		img.Close()

		var reply any
		if err == nil {
			reply, err = NewResponse(id, frame, results, s.opts.Decoder.Labels())
		}
		if err != nil {
			reply = errorBody(id, err)
		}
		if err := conn.WriteJSON(reply); err != nil {
			logger.Debug("stream write failed", zap.Error(err))
			return
		}
	}
}
