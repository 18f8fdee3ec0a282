// Package config loads the application settings: built-in defaults, then an
// optional YAML file, then CALIBCAM_* environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/intothevoid/calibcam/pkg/calib"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the application.
type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	Capture     CaptureConfig     `yaml:"capture"`
	Calibration CalibrationConfig `yaml:"calibration"`
	UI          UIConfig          `yaml:"ui"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Log         LogConfig         `yaml:"log"`
}

type CameraConfig struct {
	Index       int     `yaml:"index"`
	Width       int     `yaml:"width"`  // 0 keeps the device default
	Height      int     `yaml:"height"` // 0 keeps the device default
	FallbackFPS float64 `yaml:"fallback_fps"`
}

type CaptureConfig struct {
	Throttle time.Duration `yaml:"throttle"`
	Output   string        `yaml:"output"` // empty disables the archive
	Codec    string        `yaml:"codec"`
}

type CalibrationConfig struct {
	Variant      string       `yaml:"variant"`
	Rows         int          `yaml:"rows"`
	Cols         int          `yaml:"cols"`
	Required     int          `yaml:"required"`
	MinSpread    float64      `yaml:"min_spread"`
	SquareSize   float64      `yaml:"square_size"`
	MarkerLength float64      `yaml:"marker_length"`
	SeparationX  float64      `yaml:"separation_x"`
	SeparationY  float64      `yaml:"separation_y"`
	Dictionary   string       `yaml:"dictionary"`
	Refine       RefineConfig `yaml:"refine"`
}

type RefineConfig struct {
	Window  int     `yaml:"window"` // half-size of the search window
	MaxIter int     `yaml:"max_iter"`
	Epsilon float64 `yaml:"epsilon"`
}

type UIConfig struct {
	TickMargin float64 `yaml:"tick_margin"`
	Width      float32 `yaml:"width"`
	Height     float32 `yaml:"height"`
}

// MonitorConfig enables the HTTP surface when Addr is set.
type MonitorConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the settings used when nothing else is given.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			Index:       0,
			FallbackFPS: 30,
		},
		Capture: CaptureConfig{
			Throttle: 10 * time.Millisecond,
			Output:   "output.mp4",
			Codec:    "mp4v",
		},
		Calibration: CalibrationConfig{
			Variant:      calib.Chessboard.String(),
			Rows:         6,
			Cols:         9,
			Required:     calib.DefaultRequired,
			SquareSize:   1,
			MarkerLength: 1,
			SeparationX:  0.2,
			SeparationY:  0.2,
			Dictionary:   "6x6_250",
			Refine: RefineConfig{
				Window:  11,
				MaxIter: 30,
				Epsilon: 0.1,
			},
		},
		UI: UIConfig{
			TickMargin: 10,
			Width:      1024,
			Height:     768,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("CALIBCAM_CAMERA"); v != "" {
		idx, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "CALIBCAM_CAMERA=%q", v)
		}
		c.Camera.Index = idx
	}
	if v, ok := os.LookupEnv("CALIBCAM_OUTPUT"); ok {
		c.Capture.Output = v
	}
	if v, ok := os.LookupEnv("CALIBCAM_MONITOR_ADDR"); ok {
		c.Monitor.Addr = v
	}
	if v := os.Getenv("CALIBCAM_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks the settings that would otherwise fail deep inside a
// running session.
func (c *Config) Validate() error {
	if c.Camera.Index < 0 {
		return errors.Errorf("camera index %d", c.Camera.Index)
	}
	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		return errors.Errorf("camera size %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FallbackFPS <= 0 {
		return errors.New("fallback_fps must be positive")
	}
	if c.Capture.Throttle < 0 {
		return errors.New("throttle must not be negative")
	}
	if c.Capture.Output != "" && len(c.Capture.Codec) != 4 {
		return errors.Errorf("codec %q is not a FourCC", c.Capture.Codec)
	}

	cal := c.Calibration
	if _, err := calib.ParseKind(cal.Variant); err != nil {
		return err
	}
	if cal.Required < 3 {
		return errors.Errorf("required samples %d, need at least 3", cal.Required)
	}
	if cal.MinSpread < 0 {
		return errors.New("min_spread must not be negative")
	}
	if cal.Refine.Window < 1 || cal.Refine.MaxIter < 1 || cal.Refine.Epsilon <= 0 {
		return errors.New("refine window, max_iter and epsilon must be positive")
	}

	if c.UI.TickMargin < 0 {
		return errors.New("tick_margin must not be negative")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// Kind is the configured default variant. Validate has already checked it.
func (c *Config) Kind() calib.Kind {
	k, _ := calib.ParseKind(c.Calibration.Variant)
	return k
}

// Params converts the calibration section into session parameters.
func (c *Config) Params() calib.Params {
	cal := c.Calibration
	return calib.Params{
		Rows:         cal.Rows,
		Cols:         cal.Cols,
		SquareSize:   cal.SquareSize,
		MarkerLength: cal.MarkerLength,
		SeparationX:  cal.SeparationX,
		SeparationY:  cal.SeparationY,
	}
}

func (c *Config) Policy() calib.Policy {
	return calib.Policy{Required: c.Calibration.Required, MinSpread: c.Calibration.MinSpread}
}

func (c *Config) Criteria() calib.Criteria {
	return calib.Criteria{MaxIter: c.Calibration.Refine.MaxIter, Epsilon: c.Calibration.Refine.Epsilon}
}

func (c *Config) Window() calib.Window {
	w := calib.DefaultWindow()
	w.Size.X, w.Size.Y = c.Calibration.Refine.Window, c.Calibration.Refine.Window
	return w
}

func (c *Config) LogLevel() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "log level %q", c.Log.Level)
	}
	return lvl, nil
}
