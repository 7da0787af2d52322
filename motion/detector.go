// Package motion - Motion scoring with frame differencing or background subtraction, used
// to skip inference on static scenes.
package motion

import (
	"image"
	"math"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Config contains configuration parameters for motion detection.
type Config struct {
	// Enabled turns motion gating on in the capture loop.
	Enabled bool `yaml:"enabled"`
	// MinContourArea is the minimum area in pixels of a contour to be considered motion.
	MinContourArea float64 `yaml:"min_contour_area"`
	// DifferenceThreshold is the pixel difference threshold for frame differencing.
	DifferenceThreshold float64 `yaml:"difference_threshold"`
	// BlurKernelSize controls noise reduction; must be odd.
	BlurKernelSize int `yaml:"blur_kernel_size"`
	// BackgroundSubtraction uses a MOG2 background model instead of frame differencing.
	BackgroundSubtraction bool `yaml:"background_subtraction"`
	// History is the number of scores smoothed together.
	History int `yaml:"history"`
	// Threshold is the smoothed score at or above which a frame counts as motion.
	Threshold float64 `yaml:"threshold"`
	// HoldFrames keeps the gate open for this many frames after motion stops.
	HoldFrames int `yaml:"hold_frames"`
}

// DefaultConfig returns the default motion configuration. Gating is disabled.
func DefaultConfig() Config {
	return Config{
		MinContourArea:        500,
		DifferenceThreshold:   30,
		BlurKernelSize:        21,
		BackgroundSubtraction: true,
		History:               30,
		Threshold:             0.002,
		HoldFrames:            15,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.BlurKernelSize < 1 || c.BlurKernelSize%2 == 0:
		return errors.Errorf("blur_kernel_size must be a positive odd number, got %d", c.BlurKernelSize)
	case c.History < 1:
		return errors.Errorf("history must be positive, got %d", c.History)
	case c.Threshold < 0 || c.Threshold > 1:
		return errors.Errorf("threshold must be in [0, 1], got %f", c.Threshold)
	case c.MinContourArea < 0 || c.HoldFrames < 0:
		return errors.New("min_contour_area and hold_frames must not be negative")
	}
	return nil
}

// Detector scores the amount of motion between consecutive frames.
//
// Scores range from 0.0 (no motion) to 1.0 and are smoothed over the last History frames
// with recent frames weighted higher.
type Detector struct {
	mu         sync.Mutex
	config     Config
	previous   gocv.Mat
	background gocv.BackgroundSubtractorMOG2
	history    []float64
	frames     int64
}

// NewDetector creates a motion detector. The caller closes it.
//
// Arguments:
//   - config: Configuration parameters for motion detection.
//
// Returns:
//   - *Detector: The motion detector.
//   - error: An error if the configuration is invalid.
func NewDetector(config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{
		config:   config,
		previous: gocv.NewMat(),
		history:  make([]float64, 0, config.History),
	}
	if config.BackgroundSubtraction {
		d.background = gocv.NewBackgroundSubtractorMOG2WithParams(500, 16, false)
	}
	return d, nil
}

// Score returns the smoothed motion score of a BGR frame. The first frame only primes the
// detector and scores 0.
func (d *Detector) Score(frame gocv.Mat) (float64, error) {
	if frame.Empty() {
		return 0, errors.New("empty frame")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() == 1 {
		frame.CopyTo(&gray)
	} else {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}
	k := d.config.BlurKernelSize
	gocv.GaussianBlur(gray, &gray, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	d.frames++
	if d.frames == 1 {
		gray.CopyTo(&d.previous)
		if d.config.BackgroundSubtraction {
			mask := gocv.NewMat()
			d.background.Apply(gray, &mask)
			mask.Close()
		}
		return 0, nil
	}

	var score float64
	if d.config.BackgroundSubtraction {
		score = d.subtractBackground(gray)
	} else {
		score = d.difference(gray)
	}
	gray.CopyTo(&d.previous)

	d.history = append(d.history, score)
	if len(d.history) > d.config.History {
		d.history = d.history[len(d.history)-d.config.History:]
	}
	return smooth(d.history), nil
}

func (d *Detector) difference(gray gocv.Mat) float64 {
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, d.previous, &diff)
	gocv.Threshold(diff, &diff, float32(d.config.DifferenceThreshold), 255, gocv.ThresholdBinary)

	area, _ := d.contourArea(diff)
	return math.Min(area/float64(gray.Rows()*gray.Cols()), 1)
}

func (d *Detector) subtractBackground(gray gocv.Mat) float64 {
	mask := gocv.NewMat()
	defer mask.Close()
	d.background.Apply(gray, &mask)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(5, 5))
	defer kernel.Close()
	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, kernel)
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, kernel)

	area, count := d.contourArea(mask)
	areaScore := math.Min(area/float64(gray.Rows()*gray.Cols()), 1)
	countScore := math.Min(float64(count)/10, 1)
	return math.Min(0.7*areaScore+0.3*countScore, 1)
}

// contourArea sums the areas of the external contours of a binary mask that reach
// MinContourArea.
func (d *Detector) contourArea(mask gocv.Mat) (float64, int) {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	total, count := 0.0, 0
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area >= d.config.MinContourArea {
			total += area
			count++
		}
	}
	return total, count
}

// smooth is a linearly weighted mean, the newest score weighing the most.
func smooth(scores []float64) float64 {
	var total, weights float64
	for i, s := range scores {
		w := float64(i + 1)
		total += s * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return total / weights
}

// History returns a copy of the recent raw scores.
func (d *Detector) History() []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]float64(nil), d.history...)
}

// Reset clears the frame and background state, e.g. after switching streams.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.previous.Close()
	d.previous = gocv.NewMat()
	d.history = d.history[:0]
	d.frames = 0
	if d.config.BackgroundSubtraction {
		d.background.Close()
		d.background = gocv.NewBackgroundSubtractorMOG2WithParams(500, 16, false)
	}
}

// Close releases the OpenCV resources of the detector.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.previous.Close(); err != nil {
		return err
	}
	if d.config.BackgroundSubtraction {
		return d.background.Close()
	}
	return nil
}
