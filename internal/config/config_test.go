package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.Server != want.Server || cfg.Camera != want.Camera || cfg.Chart != want.Chart {
		t.Errorf("Load() = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  shutdown_timeout: 3s
model:
  location: https://models.example.com/charcam/model_metadata.json
  library_path: /opt/onnxruntime/lib/libonnxruntime.so
camera:
  driver: gocv
  device: 1
  capture_timeout: 750ms
chart:
  width: 600
  height: 400
  transition: 1s
redis:
  addr: localhost:6379
  ttl: 1m
log:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Model.LibraryPath != "/opt/onnxruntime/lib/libonnxruntime.so" {
		t.Errorf("model = %+v", cfg.Model)
	}
	if cfg.Model.FetchTimeout != 30*time.Second {
		t.Errorf("fetch timeout default lost: %v", cfg.Model.FetchTimeout)
	}
	if cfg.Camera.Driver != DriverGoCV || cfg.Camera.Device != 1 || cfg.Camera.CaptureTimeout != 750*time.Millisecond {
		t.Errorf("camera = %+v", cfg.Camera)
	}
	if cfg.Chart.Width != 600 || cfg.Chart.Transition != time.Second {
		t.Errorf("chart = %+v", cfg.Chart)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.Key != "charcam:label" || cfg.Redis.TTL != time.Minute {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "camera:\n  driver: static\n")
	t.Setenv("PORT", "7070")
	t.Setenv("MODEL_LOCATION", "file:///srv/models/model_metadata.json")
	t.Setenv("CAMERA_DRIVER", "dir")
	t.Setenv("FRAME_DIR", "/var/spool/charcam")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Model.Location != "file:///srv/models/model_metadata.json" {
		t.Errorf("location = %q", cfg.Model.Location)
	}
	if cfg.Camera.Driver != DriverDir || cfg.Camera.Dir != "/var/spool/charcam" {
		t.Errorf("camera = %+v", cfg.Camera)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Log.Level != "warn" {
		t.Errorf("redis/log = %+v %+v", cfg.Redis, cfg.Log)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad yaml", "server: [", "failed to parse config"},
		{"unknown driver", "camera:\n  driver: v4l\n", "camera.driver"},
		{"dir without path", "camera:\n  driver: dir\n  dir: \"\"\n", "camera.dir"},
		{"zero chart", "chart:\n  width: 0\n", "chart size"},
		{"negative device", "camera:\n  driver: gocv\n  device: -1\n", "camera.device"},
		{"redis without key", "redis:\n  addr: localhost:6379\n  key: \"\"\n", "redis.key"},
		{"bad duration", "server:\n  shutdown_timeout: soon\n", "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestApplyEnvBadDevice(t *testing.T) {
	cfg := Default()
	err := applyEnv(cfg, func(key string) (string, bool) {
		if key == "CAMERA_DEVICE" {
			return "front", true
		}
		return "", false
	})
	if err == nil {
		t.Fatal("expected error for non-numeric CAMERA_DEVICE")
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := Default()
	cfg.Server.ShutdownTimeout = 0
	cfg.Camera.CaptureTimeout = 0
	cfg.Log.Level = ""
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second || cfg.Camera.CaptureTimeout != 2*time.Second || cfg.Log.Level != "info" {
		t.Errorf("defaults not filled: %+v", cfg)
	}
}
