// Package models - registry for output decoders.
package models

import (
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/region"
	"github.com/nvr-ai/go-detect/models/ssd"
)

// DecoderOptions carries the per-format knobs used when a decoder is built.
type DecoderOptions struct {
	// Region configures the grid decoder and is ignored by the other formats.
	Region region.Options
}

// NewDecoder returns the decoder registered for an output format.
//
// This is the single dispatch point between a classified output format and the decode
// routine that understands it. Adding a format means adding a case here.
//
// Arguments:
//   - format: The classified output format.
//   - opts: The decoder options.
//
// Returns:
//   - model.Decoder: The decoder for the format.
//   - error: An UnsupportedFormatError for FormatUnknown or any unregistered format.
//
// Example:
//
//	format, err := model.Classify(model.Metadata{LastLayerType: "DetectionOutput"})
//	if err != nil {
//	    return err
//	}
//	decoder, err := models.NewDecoder(format, models.DecoderOptions{})
func NewDecoder(format model.Format, opts DecoderOptions) (model.Decoder, error) {
	switch format {
	case model.FormatRegionProposal:
		return ssd.NewRegionProposal(), nil
	case model.FormatDetectionOutput:
		return ssd.NewSingleShot(), nil
	case model.FormatRegion:
		d, err := region.New(opts.Region)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, &model.UnsupportedFormatError{LayerType: format.String()}
	}
}

// Decoders builds one decoder per supported format so callers on a hot path can select
// by format without allocating.
func Decoders(opts DecoderOptions) (map[model.Format]model.Decoder, error) {
	decoders := make(map[model.Format]model.Decoder, 3)
	for _, f := range []model.Format{
		model.FormatRegionProposal,
		model.FormatDetectionOutput,
		model.FormatRegion,
	} {
		d, err := NewDecoder(f, opts)
		if err != nil {
			return nil, err
		}
		decoders[f] = d
	}
	return decoders, nil
}

var (
	_ model.Decoder = (*ssd.Decoder)(nil)
	_ model.Decoder = (*region.Decoder)(nil)
)
