package providers

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
)

// PrepareInput resizes img to the network input and writes it into dst in planar NCHW
// order, applying (pixel - mean) * scale to every channel.
//
// Arguments:
//   - img: The image to prepare.
//   - size: The network input size.
//   - mean: The per-channel mean in output channel order.
//   - scale: The multiplier applied after mean subtraction.
//   - swapRB: Writes channels as R, G, B instead of B, G, R.
//   - dst: The destination tensor data to populate.
//
// Returns:
//   - error: An error if dst cannot hold 3 * size.X * size.Y floats.
func PrepareInput(img image.Image, size image.Point, mean [3]float32, scale float32, swapRB bool, dst []float32) error {
	channelSize := size.X * size.Y
	if len(dst) < channelSize*3 {
		return fmt.Errorf("destination tensor only holds %d floats, needs %d", len(dst), channelSize*3)
	}

	b := img.Bounds()
	if b.Dx() != size.X || b.Dy() != size.Y {
		img = resize.Resize(uint(size.X), uint(size.Y), img, resize.Bilinear)
		b = img.Bounds()
	}

	first, third := dst[0:channelSize], dst[channelSize*2:channelSize*3]
	if swapRB {
		first, third = third, first
	}
	// first is blue and third is red unless swapped.
	blue, green, red := first, dst[channelSize:channelSize*2], third

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			blue[i] = (float32(bl>>8) - mean[channelIndex(0, swapRB)]) * scale
			green[i] = (float32(g>>8) - mean[1]) * scale
			red[i] = (float32(r>>8) - mean[channelIndex(2, swapRB)]) * scale
			i++
		}
	}
	return nil
}

// channelIndex maps a BGR channel index to its position in the output tensor.
func channelIndex(bgr int, swapRB bool) int {
	if swapRB {
		return 2 - bgr
	}
	return bgr
}
