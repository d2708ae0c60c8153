// Package config loads the service configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Camera drivers.
const (
	DriverDir    = "dir"
	DriverGoCV   = "gocv"
	DriverStatic = "static"
)

// Config is the complete service configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Model  ModelConfig  `yaml:"model"`
	Camera CameraConfig `yaml:"camera"`
	Chart  ChartConfig  `yaml:"chart"`
	Redis  RedisConfig  `yaml:"redis"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ModelConfig points at the model descriptor.
type ModelConfig struct {
	Location     string        `yaml:"location"`      // path, file:// or http(s):// URL of model_metadata.json
	LibraryPath  string        `yaml:"library_path"`  // onnxruntime shared library, empty for the default
	FetchTimeout time.Duration `yaml:"fetch_timeout"` // bounds startup load
}

type CameraConfig struct {
	Driver         string        `yaml:"driver"` // dir, gocv, static
	Dir            string        `yaml:"dir"`
	Device         int           `yaml:"device"`
	CaptureTimeout time.Duration `yaml:"capture_timeout"`
}

type ChartConfig struct {
	Width      int           `yaml:"width"`
	Height     int           `yaml:"height"`
	Transition time.Duration `yaml:"transition"`
}

// RedisConfig enables the Redis label sink when Addr is set.
type RedisConfig struct {
	Addr    string        `yaml:"addr"`
	Key     string        `yaml:"key"`
	Channel string        `yaml:"channel"`
	TTL     time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Model: ModelConfig{
			Location:     "models/model_metadata.json",
			FetchTimeout: 30 * time.Second,
		},
		Camera: CameraConfig{
			Driver:         DriverDir,
			Dir:            "frames",
			CaptureTimeout: 2 * time.Second,
		},
		Chart: ChartConfig{Width: 300, Height: 200, Transition: 500 * time.Millisecond},
		Redis: RedisConfig{Key: "charcam:label", Channel: "charcam:label"},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}

	if v, ok := get("PORT"); ok {
		cfg.Server.Addr = ":" + v
	}
	if v, ok := get("MODEL_LOCATION"); ok {
		cfg.Model.Location = v
	}
	if v, ok := get("ONNXRUNTIME_LIB"); ok {
		cfg.Model.LibraryPath = v
	}
	if v, ok := get("CAMERA_DRIVER"); ok {
		cfg.Camera.Driver = v
	}
	if v, ok := get("CAMERA_DEVICE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CAMERA_DEVICE: %w", err)
		}
		cfg.Camera.Device = n
	}
	if v, ok := get("FRAME_DIR"); ok {
		cfg.Camera.Dir = v
	}
	if v, ok := get("REDIS_ADDR"); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	return nil
}

// Validate checks the configuration and fills zero values that have a
// sensible default.
func Validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Model.Location == "" {
		return errors.New("model.location is required")
	}
	if cfg.Model.FetchTimeout <= 0 {
		cfg.Model.FetchTimeout = 30 * time.Second
	}

	switch cfg.Camera.Driver {
	case DriverDir:
		if cfg.Camera.Dir == "" {
			return errors.New("camera.dir is required for the dir driver")
		}
	case DriverGoCV:
		if cfg.Camera.Device < 0 {
			return fmt.Errorf("camera.device must be >= 0, got %d", cfg.Camera.Device)
		}
	case DriverStatic:
	default:
		return fmt.Errorf("camera.driver must be one of dir, gocv, static, got %q", cfg.Camera.Driver)
	}
	if cfg.Camera.CaptureTimeout <= 0 {
		cfg.Camera.CaptureTimeout = 2 * time.Second
	}

	if cfg.Chart.Width <= 0 || cfg.Chart.Height <= 0 {
		return fmt.Errorf("chart size must be positive, got %dx%d", cfg.Chart.Width, cfg.Chart.Height)
	}
	if cfg.Chart.Transition < 0 {
		return errors.New("chart.transition must not be negative")
	}

	if cfg.Redis.Addr != "" && cfg.Redis.Key == "" {
		return errors.New("redis.key is required when redis.addr is set")
	}
	if cfg.Redis.TTL < 0 {
		return errors.New("redis.ttl must not be negative")
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	return nil
}
