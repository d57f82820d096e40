package utils

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ─── Section configs ────────────────────────────────────────────────────

type CameraConfig struct {
	Serial      string  `yaml:"serial"`
	FPS         float64 `yaml:"fps"`
	ExposureUs  float64 `yaml:"exposure_us"`
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	OffsetX     int     `yaml:"offset_x"` // negative = centre on the sensor
	OffsetY     int     `yaml:"offset_y"`
	PixelFormat string  `yaml:"pixel_format"`
}

type WindowConfig struct {
	BeforeSeconds      float64 `yaml:"t_before"`
	AfterSeconds       float64 `yaml:"t_after"`
	Retrigger          string  `yaml:"retrigger"` // "ignore" or "overwrite"
	FlushPartialOnKill bool    `yaml:"flush_partial_on_kill"`
	QueueSize          int     `yaml:"queue_size"`
	HandoffTimeoutMs   int     `yaml:"handoff_timeout_ms"` // 0 = wait until cancelled
}

type TriggerConfig struct {
	Address            string `yaml:"address"`           // PUB endpoint, host:port
	HandshakeAddress   string `yaml:"handshake_address"` // REP endpoint, host:port
	Topic              string `yaml:"topic"`
	InboxSize          int    `yaml:"inbox_size"`
	HandshakeTimeoutMs int    `yaml:"handshake_timeout_ms"` // 0 = block until answered
}

type StorageConfig struct {
	SaveFolder   string `yaml:"save_folder"`
	Writers      int    `yaml:"writers"` // parallel image writers, 0 = NumCPU
	BufferSizeKB int    `yaml:"buffer_size_kb"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type SimulationConfig struct {
	Enabled      bool `yaml:"enabled"`
	SensorWidth  int  `yaml:"sensor_width"`
	SensorHeight int  `yaml:"sensor_height"`
}

// CaptureConfig is the top-level structure for capture.yaml.
type CaptureConfig struct {
	Camera     CameraConfig     `yaml:"camera"`
	Window     WindowConfig     `yaml:"window"`
	Trigger    TriggerConfig    `yaml:"trigger"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// Retrigger policies.
const (
	RetriggerIgnore    = "ignore"
	RetriggerOverwrite = "overwrite"
)

// DefaultCaptureConfig returns the settings used when no file is given.
func DefaultCaptureConfig() *CaptureConfig {
	return &CaptureConfig{
		Camera: CameraConfig{
			FPS:         400,
			ExposureUs:  2000,
			Width:       2496,
			Height:      2496,
			OffsetX:     -1,
			OffsetY:     -1,
			PixelFormat: "Mono8",
		},
		Window: WindowConfig{
			BeforeSeconds:    0.5,
			AfterSeconds:     1.0,
			Retrigger:        RetriggerIgnore,
			QueueSize:        4,
			HandoffTimeoutMs: 2000,
		},
		Trigger: TriggerConfig{
			Address:          "127.0.0.1:5555",
			HandshakeAddress: "127.0.0.1:5556",
			Topic:            "trigger",
			InboxSize:        64,
		},
		Storage: StorageConfig{
			SaveFolder:   "recordings",
			BufferSizeKB: 64,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Simulation: SimulationConfig{
			SensorWidth:  2496,
			SensorHeight: 2496,
		},
	}
}

// ─── Loaders ────────────────────────────────────────────────────────────

// LoadCaptureConfig reads capture.yaml on top of the defaults. A missing
// file is not an error when allowMissing is set.
func LoadCaptureConfig(path string, allowMissing bool) (*CaptureConfig, error) {
	cfg := DefaultCaptureConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read capture config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse capture config: %w", err)
	}
	return cfg, nil
}

// ApplyOverrides copies every key set in v (bound flags, environment) over
// the file values. Keys use the yaml paths, e.g. "camera.fps".
func ApplyOverrides(cfg *CaptureConfig, v *viper.Viper) {
	setF := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	setI := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	setS := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setB := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	setS("camera.serial", &cfg.Camera.Serial)
	setF("camera.fps", &cfg.Camera.FPS)
	setF("camera.exposure_us", &cfg.Camera.ExposureUs)
	setI("camera.width", &cfg.Camera.Width)
	setI("camera.height", &cfg.Camera.Height)
	setI("camera.offset_x", &cfg.Camera.OffsetX)
	setI("camera.offset_y", &cfg.Camera.OffsetY)
	setS("camera.pixel_format", &cfg.Camera.PixelFormat)

	setF("window.t_before", &cfg.Window.BeforeSeconds)
	setF("window.t_after", &cfg.Window.AfterSeconds)
	setS("window.retrigger", &cfg.Window.Retrigger)
	setB("window.flush_partial_on_kill", &cfg.Window.FlushPartialOnKill)
	setI("window.queue_size", &cfg.Window.QueueSize)
	setI("window.handoff_timeout_ms", &cfg.Window.HandoffTimeoutMs)

	setS("trigger.address", &cfg.Trigger.Address)
	setS("trigger.handshake_address", &cfg.Trigger.HandshakeAddress)
	setS("trigger.topic", &cfg.Trigger.Topic)
	setI("trigger.inbox_size", &cfg.Trigger.InboxSize)
	setI("trigger.handshake_timeout_ms", &cfg.Trigger.HandshakeTimeoutMs)

	setS("storage.save_folder", &cfg.Storage.SaveFolder)
	setI("storage.writers", &cfg.Storage.Writers)

	setS("logging.level", &cfg.Logging.Level)
	setS("logging.file", &cfg.Logging.File)

	setB("simulation.enabled", &cfg.Simulation.Enabled)
}

// Validate rejects settings the pipeline cannot run with.
func (c *CaptureConfig) Validate() error {
	switch {
	case c.Camera.FPS <= 0:
		return fmt.Errorf("camera.fps must be positive, got %v", c.Camera.FPS)
	case c.Camera.Width <= 0 || c.Camera.Height <= 0:
		return fmt.Errorf("camera size must be positive, got %dx%d", c.Camera.Width, c.Camera.Height)
	case c.Camera.ExposureUs <= 0:
		return fmt.Errorf("camera.exposure_us must be positive, got %v", c.Camera.ExposureUs)
	case c.Window.BeforeSeconds < 0 || c.Window.AfterSeconds < 0:
		return fmt.Errorf("window durations must not be negative (t_before=%v, t_after=%v)",
			c.Window.BeforeSeconds, c.Window.AfterSeconds)
	case c.Window.Retrigger != RetriggerIgnore && c.Window.Retrigger != RetriggerOverwrite:
		return fmt.Errorf("window.retrigger must be %q or %q, got %q",
			RetriggerIgnore, RetriggerOverwrite, c.Window.Retrigger)
	case c.Window.QueueSize < 0 || c.Window.HandoffTimeoutMs < 0:
		return errors.New("window.queue_size and window.handoff_timeout_ms must not be negative")
	case c.Trigger.Address == "" || c.Trigger.HandshakeAddress == "":
		return errors.New("trigger.address and trigger.handshake_address are required")
	case c.Storage.SaveFolder == "":
		return errors.New("storage.save_folder is required")
	case c.Storage.Writers < 0:
		return fmt.Errorf("storage.writers must not be negative, got %d", c.Storage.Writers)
	}
	return nil
}

// FramesBefore is the capacity of the pre-trigger ring.
func (c *CaptureConfig) FramesBefore() int {
	return FramesFor(c.Window.BeforeSeconds, c.Camera.FPS)
}

// FramesAfter is the number of frames captured after a trigger.
func (c *CaptureConfig) FramesAfter() int {
	return FramesFor(c.Window.AfterSeconds, c.Camera.FPS)
}

// HandoffTimeout returns the queue-full wait as a time.Duration.
func (c *WindowConfig) HandoffTimeout() time.Duration {
	return MillisToDuration(c.HandoffTimeoutMs)
}

// HandshakeTimeout returns the handshake wait as a time.Duration (0 = forever).
func (c *TriggerConfig) HandshakeTimeout() time.Duration {
	return MillisToDuration(c.HandshakeTimeoutMs)
}
