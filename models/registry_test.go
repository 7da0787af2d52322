package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/models/region"
)

func TestNewDecoder(t *testing.T) {
	tests := []struct {
		format model.Format
	}{
		{model.FormatRegionProposal},
		{model.FormatDetectionOutput},
		{model.FormatRegion},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			d, err := NewDecoder(tt.format, DecoderOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.format, d.Format())
		})
	}
}

func TestNewDecoder_Unsupported(t *testing.T) {
	d, err := NewDecoder(model.FormatUnknown, DecoderOptions{})
	assert.Nil(t, d)
	assert.True(t, errors.Is(err, postprocess.ErrUnsupportedOutputFormat))

	d, err = NewDecoder(model.FormatRegion, DecoderOptions{Region: region.Options{ScoreOffset: 1}})
	assert.Nil(t, d)
	assert.Error(t, err)
}

func TestDecoders(t *testing.T) {
	decoders, err := Decoders(DecoderOptions{Region: region.Options{ScoreOffset: region.DarknetScoreOffset}})
	require.NoError(t, err)
	assert.Len(t, decoders, 3)

	for format, d := range decoders {
		assert.Equal(t, format, d.Format())
	}
	assert.Equal(t, region.DarknetScoreOffset, decoders[model.FormatRegion].(*region.Decoder).ScoreOffset())
}

func TestLabels_Name(t *testing.T) {
	labels := Labels{"cat", "dog"}

	name, err := labels.Name(1)
	require.NoError(t, err)
	assert.Equal(t, "dog", name)

	for _, id := range []int{-1, 2, 80} {
		_, err := labels.Name(id)
		require.Error(t, err)
		assert.True(t, errors.Is(err, postprocess.ErrClassIndexOutOfRange))

		var indexErr *ClassIndexError
		require.True(t, errors.As(err, &indexErr))
		assert.Equal(t, id, indexErr.ClassID)
		assert.Equal(t, 2, indexErr.Len)
	}

	assert.Equal(t, 0, labels.Index("cat"))
	assert.Equal(t, -1, labels.Index("bird"))
}

func TestLabelsFor(t *testing.T) {
	coco, err := LabelsFor(model.ModelFamilyCOCO)
	require.NoError(t, err)
	assert.Len(t, coco, 80)
	assert.Equal(t, "person", coco[0])
	assert.Equal(t, "toothbrush", coco[79])

	voc, err := LabelsFor(model.ModelFamilyVOC)
	require.NoError(t, err)
	assert.Len(t, voc, 20)
	assert.Equal(t, "tvmonitor", voc[19])

	voc[0] = "changed"
	assert.Equal(t, "aeroplane", PascalVOCClasses[0])

	_, err = LabelsFor(model.Family("imagenet"))
	assert.Error(t, err)
}

func TestLoadLabels(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		content  string
		expected Labels
		wantErr  bool
	}{
		{"unix newlines", "person\nbicycle\ncar\n", Labels{"person", "bicycle", "car"}, false},
		{"windows newlines", "person\r\nbicycle\r\n", Labels{"person", "bicycle"}, false},
		{"inner blank line keeps its slot", "a\n\nc\n\n\n", Labels{"a", "", "c"}, false},
		{"no trailing newline", "face", Labels{"face"}, false},
		{"empty file", "\n\n", nil, true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "names"+string(rune('a'+i)))
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			labels, err := LoadLabels(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, labels)
		})
	}

	_, err := LoadLabels(filepath.Join(dir, "missing.names"))
	assert.Error(t, err)
}
