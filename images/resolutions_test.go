package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResolution(t *testing.T) {
	tests := []struct {
		alias string
		want  Frame
	}{
		{"720p", Frame{Width: 1280, Height: 720}},
		{"1080P", Frame{Width: 1920, Height: 1080}},
		{"4K", Frame{Width: 3840, Height: 2160}},
		{"vga", Frame{Width: 640, Height: 480}},
	}

	for _, tc := range tests {
		t.Run(tc.alias, func(t *testing.T) {
			r, err := ParseResolution(tc.alias)
			require.NoError(t, err)
			assert.Equal(t, tc.want, r.Frame)
		})
	}

	_, err := ParseResolution("8k")
	assert.Error(t, err)
}

func TestResolution_MegaPixels(t *testing.T) {
	r, err := ParseResolution("1080p")
	require.NoError(t, err)
	assert.Equal(t, 2.0, r.MegaPixels())
	assert.Equal(t, "1080p (1920x1080, 16:9)", r.String())
}

func TestResolutions_Ordered(t *testing.T) {
	all := Resolutions()
	require.Len(t, all, len(resolutions))
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Width*all[i-1].Height, all[i].Width*all[i].Height)
	}
	assert.Equal(t, "nHD", all[0].Name)
	assert.Equal(t, "4K", all[len(all)-1].Name)
}

func TestLargestWithin(t *testing.T) {
	r, ok := LargestWithin(Frame{Width: 1920, Height: 1200})
	require.True(t, ok)
	assert.Equal(t, "1080p", r.Name)

	r, ok = LargestWithin(Frame{Width: 1300, Height: 1100})
	require.True(t, ok)
	assert.Equal(t, "1MP", r.Name)

	_, ok = LargestWithin(Frame{Width: 320, Height: 240})
	assert.False(t, ok)
}
