package images

import (
	"fmt"
	"sort"
	"strings"
)

// Resolution is a named capture resolution requested from a camera.
type Resolution struct {
	// Name is the alias used in configuration, e.g. "720p".
	Name string
	// Aspect is the nominal aspect ratio, e.g. "16:9".
	Aspect string
	Frame
}

// MegaPixels returns the pixel count in millions, rounded to one decimal.
func (r Resolution) MegaPixels() float64 {
	return float64(r.Width*r.Height/100000) / 10
}

func (r Resolution) String() string {
	return fmt.Sprintf("%s (%s, %s)", r.Name, r.Frame, r.Aspect)
}

// Common surveillance camera resolutions keyed by alias.
var resolutions = map[string]Resolution{
	"nhd":   {Name: "nHD", Aspect: "16:9", Frame: Frame{Width: 640, Height: 360}},
	"vga":   {Name: "VGA", Aspect: "4:3", Frame: Frame{Width: 640, Height: 480}},
	"480p":  {Name: "480p", Aspect: "16:9", Frame: Frame{Width: 854, Height: 480}},
	"540p":  {Name: "540p", Aspect: "16:9", Frame: Frame{Width: 960, Height: 540}},
	"720p":  {Name: "720p", Aspect: "16:9", Frame: Frame{Width: 1280, Height: 720}},
	"1mp":   {Name: "1MP", Aspect: "5:4", Frame: Frame{Width: 1280, Height: 1024}},
	"1080p": {Name: "1080p", Aspect: "16:9", Frame: Frame{Width: 1920, Height: 1080}},
	"3mp":   {Name: "3MP", Aspect: "4:3", Frame: Frame{Width: 2048, Height: 1536}},
	"1440p": {Name: "1440p", Aspect: "16:9", Frame: Frame{Width: 2560, Height: 1440}},
	"4k":    {Name: "4K", Aspect: "16:9", Frame: Frame{Width: 3840, Height: 2160}},
}

// ParseResolution returns the resolution registered under alias. Aliases are case
// insensitive.
//
// Arguments:
//   - alias: The resolution alias, e.g. "1080p".
//
// Returns:
//   - Resolution: The resolution.
//   - error: An error if the alias is unknown.
func ParseResolution(alias string) (Resolution, error) {
	r, ok := resolutions[strings.ToLower(alias)]
	if !ok {
		return Resolution{}, fmt.Errorf("unknown resolution %q", alias)
	}
	return r, nil
}

// Resolutions returns every known resolution, smallest first.
func Resolutions() []Resolution {
	out := make([]Resolution, 0, len(resolutions))
	for _, r := range resolutions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Width*out[i].Height, out[j].Width*out[j].Height
		if pi != pj {
			return pi < pj
		}
		return out[i].Width < out[j].Width
	})
	return out
}

// LargestWithin returns the largest known resolution that fits inside limit.
func LargestWithin(limit Frame) (Resolution, bool) {
	var (
		best  Resolution
		found bool
	)
	for _, r := range Resolutions() {
		if r.Width <= limit.Width && r.Height <= limit.Height {
			best, found = r, true
		}
	}
	return best, found
}
