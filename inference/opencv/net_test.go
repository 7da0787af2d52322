package opencv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/models/model"
)

func TestOutputNames(t *testing.T) {
	names := []string{"conv1", "relu1", "detection_out", "region"}

	assert.Equal(t, []string{"detection_out"}, OutputNames(names, []int{3}))
	assert.Equal(t, []string{"conv1", "region"}, OutputNames(names, []int{1, 4}))
	assert.Empty(t, OutputNames(names, []int{0, 5}))
}

func TestMetadata(t *testing.T) {
	rcnn := Metadata(1, "Softmax")
	assert.True(t, rcnn.HasImInfo)

	ssd := Metadata(notFound, model.LayerTypeDetectionOutput)
	assert.False(t, ssd.HasImInfo)

	format, err := model.Classify(ssd)
	require.NoError(t, err)
	assert.Equal(t, model.FormatDetectionOutput, format)

	format, err = model.Classify(rcnn)
	require.NoError(t, err)
	assert.Equal(t, model.FormatRegionProposal, format)
}

func TestNew_MissingFiles(t *testing.T) {
	opts := DefaultOptions()
	opts.ModelPath = "does-not-exist.caffemodel"

	_, err := New(opts)
	assert.Error(t, err)
}
