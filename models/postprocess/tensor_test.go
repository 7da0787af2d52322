package postprocess

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestRows(t *testing.T) {
	t.Run("flattens leading axes", func(t *testing.T) {
		raw := tensor.New(
			tensor.WithShape(1, 1, 2, 7),
			tensor.WithBacking([]float32{
				0, 1, 0.9, 1, 2, 3, 4,
				0, 2, 0.8, 5, 6, 7, 8,
			}),
		)

		view, err := Rows(raw, 7)
		require.NoError(t, err)
		assert.Equal(t, 2, view.Len())
		assert.Equal(t, 7, view.Width())
		assert.Equal(t, []float32{0, 2, 0.8, 5, 6, 7, 8}, view.Row(1))
	})

	t.Run("accepts float64 data", func(t *testing.T) {
		raw := tensor.New(tensor.WithShape(2, 5), tensor.WithBacking([]float64{
			0.5, 0.5, 0.1, 0.1, 0.9,
			0.2, 0.2, 0.1, 0.1, 0.3,
		}))

		view, err := Rows(raw, 5)
		require.NoError(t, err)
		assert.Equal(t, 2, view.Len())
		assert.InDelta(t, 0.3, view.Row(1)[4], 1e-6)
	})

	t.Run("rows wider than required are fine", func(t *testing.T) {
		raw := tensor.New(tensor.WithShape(1, 9), tensor.WithBacking(make([]float32, 9)))

		view, err := Rows(raw, 7)
		require.NoError(t, err)
		assert.Equal(t, 1, view.Len())
		assert.Len(t, view.Row(0), 9)
	})
}

func TestRows_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  RawTensor
	}{
		{"nil tensor", nil},
		{"nil dense", (*tensor.Dense)(nil)},
		{"rows too narrow", tensor.New(tensor.WithShape(3, 6), tensor.WithBacking(make([]float32, 18)))},
		{"integer data", tensor.New(tensor.WithShape(2, 7), tensor.WithBacking(make([]int, 14)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Rows(tt.raw, 7)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedTensor))

			var malformed *MalformedTensorError
			assert.True(t, errors.As(err, &malformed))
			assert.NotEmpty(t, malformed.Reason)
			assert.Equal(t, -1, malformed.Index)
		})
	}
}

func TestAtOutput(t *testing.T) {
	err := AtOutput(errors.Wrap(Malformedf("bad rows"), "decode"), 2)

	var malformed *MalformedTensorError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 2, malformed.Index)
	assert.Contains(t, err.Error(), "malformed tensor: output 2: bad rows")

	other := errors.New("boom")
	assert.Equal(t, other, AtOutput(other, 3))
}
