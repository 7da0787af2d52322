package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference/detectors"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/server"
)

func newService(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	detector, err := detectors.New(detectors.DefaultConfig())
	require.NoError(t, err)
	s, err := server.New(server.Options{Decoder: detector})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestClient_Decode(t *testing.T) {
	ts := newService(t)
	c := New(ts.URL, 0)

	resp, err := c.Decode(context.Background(), server.DecodeRequest{
		Outputs: []server.TensorPayload{{
			Shape: []int{1, 7},
			Data:  []float32{0, 15, 0.8, 10.7, 20.2, 110.9, 220.5},
		}},
		Metadata: model.Metadata{HasImInfo: true},
		Frame:    images.Frame{Width: 600, Height: 800},
	})
	require.NoError(t, err)
	require.Len(t, resp.Detections, 1)
	assert.Equal(t, images.Box{Left: 10, Top: 20, Width: 101, Height: 201}, resp.Detections[0].Box)
	assert.Equal(t, 14, resp.Detections[0].ClassID)
	assert.NotEmpty(t, resp.RequestID)
}

func TestClient_Errors(t *testing.T) {
	ts := newService(t)
	c := New(ts.URL, 0)

	_, err := c.Decode(context.Background(), server.DecodeRequest{
		Outputs:  []server.TensorPayload{{Shape: []int{1, 7}, Data: make([]float32, 7)}},
		Metadata: model.Metadata{LastLayerType: "Softmax"},
		Frame:    images.Frame{Width: 10, Height: 10},
	})
	var svcErr *Error
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, http.StatusUnprocessableEntity, svcErr.StatusCode)
	assert.Equal(t, detectors.StageAwaitingOutputs.String(), svcErr.Body.Stage)

	_, err = c.Detect(context.Background(), []byte("jpeg bytes"))
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, http.StatusServiceUnavailable, svcErr.StatusCode)
}
