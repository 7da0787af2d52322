// Package detectors - decode-and-suppress entry point and its configuration.
package detectors

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/region"
)

// Config holds the read-only settings of a Detector.
//
// A Config is loaded once at startup and passed to New; the Detector never mutates it,
// so one Config can back any number of concurrent Detect calls.
type Config struct {
	// ConfidenceThreshold drops candidates whose confidence is not strictly above it.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// NMSThreshold suppresses a candidate whose IoU with a kept box reaches it.
	NMSThreshold float32 `json:"nms_threshold" yaml:"nms_threshold"`

	// ClassAwareNMS restricts suppression to boxes of the same class.
	ClassAwareNMS bool `json:"class_aware_nms" yaml:"class_aware_nms"`

	// RegionScoreOffset is the column of the first class score in Region rows.
	RegionScoreOffset int `json:"region_score_offset" yaml:"region_score_offset"`

	// Workers bounds the goroutines used by DetectBatch.
	Workers int `json:"workers" yaml:"workers"`

	// ClassesFile is a names file with one label per line. It wins over Classes.
	ClassesFile string `json:"classes_file,omitempty" yaml:"classes_file,omitempty"`

	// Classes lists the labels inline.
	Classes []string `json:"classes,omitempty" yaml:"classes,omitempty"`

	// Family selects a built-in label table when neither ClassesFile nor Classes is set.
	Family model.Family `json:"family,omitempty" yaml:"family,omitempty"`

	// Format pins the output format instead of classifying network metadata.
	Format model.Format `json:"format,omitempty" yaml:"format,omitempty"`
}

// DefaultConfig returns the defaults of the OpenCV detection samples: 0.5 confidence and
// 0.4 suppression, cross-class NMS and four-column Region boxes.
//
// Returns:
//   - Config: The default configuration.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.5,
		NMSThreshold:        0.4,
		ClassAwareNMS:       false,
		RegionScoreOffset:   region.DefaultScoreOffset,
		Workers:             4,
		Classes:             []string{},
	}
}

// LoadConfig reads a YAML configuration on top of DefaultConfig, loads the labels file
// it names and validates the result.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - Config: The loaded configuration with Classes populated from ClassesFile.
//   - error: An error if the file cannot be read, parsed or validated.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Wrapf(err, "parse config %s", path)
	}

	if err := config.ResolveLabels(); err != nil {
		return config, err
	}

	return config, config.Validate()
}

// ResolveLabels fills Classes from ClassesFile, or from the built-in table of Family when
// no labels are listed.
func (c *Config) ResolveLabels() error {
	switch {
	case c.ClassesFile != "":
		labels, err := models.LoadLabels(c.ClassesFile)
		if err != nil {
			return err
		}
		c.Classes = labels
	case len(c.Classes) == 0 && c.Family != "":
		labels, err := models.LabelsFor(c.Family)
		if err != nil {
			return err
		}
		c.Classes = labels
	}
	return nil
}

// Validate checks that every field is within range.
func (c Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return errors.Errorf("confidence_threshold %v is outside [0, 1]", c.ConfidenceThreshold)
	}
	if c.NMSThreshold <= 0 || c.NMSThreshold > 1 {
		return errors.Errorf("nms_threshold %v is outside (0, 1]", c.NMSThreshold)
	}
	if c.RegionScoreOffset < region.BoxColumns {
		return errors.Errorf("region_score_offset %d overlaps the box columns", c.RegionScoreOffset)
	}
	if c.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// Labels returns the configured label table, empty when none is configured.
func (c Config) Labels() models.Labels {
	return models.Labels(c.Classes)
}
