// Package model - Output format identification for detection networks.
package model

import (
	"fmt"
	"strings"

	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Format identifies one of the supported output tensor layouts.
type Format int

const (
	// FormatUnknown is the zero value; it is never produced by Classify.
	FormatUnknown Format = iota
	// FormatRegionProposal is the Faster-RCNN / R-FCN family: 7-element rows with
	// absolute pixel coordinates.
	FormatRegionProposal
	// FormatDetectionOutput is the single-shot detector family: 7-element rows with
	// coordinates normalized to [0, 1].
	FormatDetectionOutput
	// FormatRegion is the grid-based single-pass family: center/size boxes followed by
	// per-class scores.
	FormatRegion
)

const (
	// ImInfoPort is the input port exposed by region-proposal networks.
	ImInfoPort = "im_info"
	// LayerTypeDetectionOutput is the last layer type of single-shot detectors.
	LayerTypeDetectionOutput = "DetectionOutput"
	// LayerTypeRegion is the last layer type of grid-based single-pass detectors.
	LayerTypeRegion = "Region"
)

var formatNames = map[Format]string{
	FormatUnknown:         "unknown",
	FormatRegionProposal:  "region_proposal",
	FormatDetectionOutput: "detection_output",
	FormatRegion:          "region",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat parses the textual name of a format. The empty string parses to
// FormatUnknown.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FormatUnknown, nil
	}
	for f, name := range formatNames {
		if name == s {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("unknown output format %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Metadata describes the output layer of a network as reported by the inference
// collaborator.
type Metadata struct {
	// HasImInfo reports whether the network declares an "im_info" input port.
	HasImInfo bool `json:"has_im_info" yaml:"has_im_info"`
	// LastLayerType is the symbolic type of the final layer, e.g. "DetectionOutput".
	LastLayerType string `json:"last_layer_type" yaml:"last_layer_type"`
	// Format pins the output format explicitly and skips classification when set.
	Format Format `json:"format,omitempty" yaml:"format,omitempty"`
}

// UnsupportedFormatError is returned when no decoder understands the output layer.
type UnsupportedFormatError struct {
	LayerType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: unknown output layer type %q", postprocess.ErrUnsupportedOutputFormat, e.LayerType)
}

// Is matches postprocess.ErrUnsupportedOutputFormat.
func (e *UnsupportedFormatError) Is(target error) bool {
	return target == postprocess.ErrUnsupportedOutputFormat
}

// Classify selects the decode strategy for a network's output.
//
// The im_info port takes precedence over the last layer type.
//
// Arguments:
//   - meta: The output metadata reported by the inference collaborator.
//
// Returns:
//   - Format: The matching output format.
//   - error: An UnsupportedFormatError carrying the unrecognized layer type.
func Classify(meta Metadata) (Format, error) {
	if meta.Format != FormatUnknown {
		if _, ok := formatNames[meta.Format]; !ok {
			return FormatUnknown, &UnsupportedFormatError{LayerType: meta.Format.String()}
		}
		return meta.Format, nil
	}

	switch {
	case meta.HasImInfo:
		return FormatRegionProposal, nil
	case meta.LastLayerType == LayerTypeDetectionOutput:
		return FormatDetectionOutput, nil
	case meta.LastLayerType == LayerTypeRegion:
		return FormatRegion, nil
	default:
		return FormatUnknown, &UnsupportedFormatError{LayerType: meta.LastLayerType}
	}
}
