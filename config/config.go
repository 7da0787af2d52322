// Package config - YAML configuration shared by the detect and detectd commands.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/detectors"
	"github.com/nvr-ai/go-detect/inference/opencv"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/nvr-ai/go-detect/motion"
)

// Log configures the process logger.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Server configures the HTTP service.
type Server struct {
	Addr              string        `yaml:"addr"`
	StreamIdleTimeout time.Duration `yaml:"stream_idle_timeout"`
	// AllowedOrigins may open the websocket stream from other sites.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Capture configures the capture loop.
type Capture struct {
	// Source is a device index such as "0", a video file or a stream URL.
	Source string `yaml:"source"`
	// Window shows annotated frames.
	Window bool `yaml:"window"`
	// Remote sends frames to a detect service instead of running the engine locally.
	Remote string `yaml:"remote"`
	// Resolution is requested from capture devices, e.g. "720p". Empty keeps the device
	// default.
	Resolution string `yaml:"resolution"`
	// Motion skips inference on frames without motion.
	Motion motion.Config `yaml:"motion"`
}

// Config is the whole configuration file.
type Config struct {
	Log      Log                  `yaml:"log"`
	Engine   inference.EngineType `yaml:"engine"`
	OpenCV   opencv.Options       `yaml:"opencv"`
	ONNX     providers.Config     `yaml:"onnx"`
	Detector detectors.Config     `yaml:"detector"`
	Server   Server               `yaml:"server"`
	Capture  Capture              `yaml:"capture"`
}

// Default returns the configuration used for every key the file leaves out.
func Default() Config {
	return Config{
		Log:      Log{Level: "info"},
		Engine:   inference.EngineOpenCV,
		OpenCV:   opencv.DefaultOptions(),
		ONNX:     providers.DefaultConfig(),
		Detector: detectors.DefaultConfig(),
		Server:   Server{Addr: ":8080", StreamIdleTimeout: 30 * time.Second},
		Capture:  Capture{Source: "0", Motion: motion.DefaultConfig()},
	}
}

// Load reads a YAML file on top of Default, resolves labels and validates the result.
//
// Arguments:
//   - path: The YAML file; empty loads only the defaults.
//
// Returns:
//   - Config: The configuration.
//   - error: An error if the file cannot be read, parsed or validated.
func Load(path string) (Config, error) {
	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := config.Detector.ResolveLabels(); err != nil {
		return config, err
	}
	return config, config.Validate()
}

// Validate checks the detector and the settings of the selected engine.
func (c Config) Validate() error {
	if _, err := inference.ParseEngineType(string(c.Engine)); err != nil {
		return err
	}
	if err := c.Detector.Validate(); err != nil {
		return errors.Wrap(err, "detector")
	}
	if c.Capture.Resolution != "" {
		if _, err := images.ParseResolution(c.Capture.Resolution); err != nil {
			return errors.Wrap(err, "capture")
		}
	}
	if c.Capture.Motion.Enabled {
		if err := c.Capture.Motion.Validate(); err != nil {
			return errors.Wrap(err, "capture.motion")
		}
	}
	return nil
}

// ValidateEngine checks the settings of the selected engine. Commands that only decode
// remote tensors never call it.
func (c Config) ValidateEngine() error {
	switch c.Engine {
	case inference.EngineONNX:
		return errors.Wrap(c.ONNX.Validate(), "onnx")
	default:
		if c.OpenCV.ModelPath == "" {
			return errors.New("opencv: model_path is required")
		}
		return nil
	}
}

// InitLogger installs the process logger.
func (c Config) InitLogger() error {
	if c.Log.Development {
		return logger.InitDevelopment(c.Log.Level)
	}
	return logger.InitProduction(c.Log.Level)
}

// NewEngine loads the selected inference engine.
//
// Returns:
//   - inference.Engine: The engine; the caller closes it.
//   - error: An error if the engine settings are invalid or the model cannot be loaded.
func (c Config) NewEngine() (inference.Engine, error) {
	if err := c.ValidateEngine(); err != nil {
		return nil, err
	}
	switch c.Engine {
	case inference.EngineONNX:
		return providers.NewSession(c.ONNX)
	default:
		return opencv.New(c.OpenCV)
	}
}
