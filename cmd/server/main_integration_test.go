package main

import (
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Brownie44l1/charcam/internal/config"
	"github.com/Brownie44l1/charcam/internal/frame"
)

func TestServerGracefulShutdown(t *testing.T) {
	logger := zap.NewNop()

	requestStarted := make(chan struct{})
	releaseRequest := make(chan struct{})
	defer func() {
		select {
		case <-releaseRequest:
		default:
			close(releaseRequest)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-requestStarted:
		default:
			close(requestStarted)
		}
		<-releaseRequest
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	server := &http.Server{Handler: mux}

	signalCh := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- serveHTTPServerWithOptions(server, 2*time.Second, logger, listener, signalCh)
	}()

	addr := listener.Addr().String()
	waitForServer(t, addr)

	client := &http.Client{Timeout: 2 * time.Second}
	respCh := make(chan *http.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		resp, err := client.Post("http://"+addr+"/predict", "application/json", nil)
		if err != nil {
			errCh <- err
			return
		}
		respCh <- resp
	}()

	select {
	case <-requestStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("request did not start in time")
	}

	signalCh <- syscall.SIGTERM

	time.Sleep(50 * time.Millisecond)
	close(releaseRequest)

	select {
	case resp := <-respCh:
		t.Cleanup(func() { resp.Body.Close() })
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			t.Fatalf("unexpected status: %d body: %s", resp.StatusCode, string(body))
		}
	case err := <-errCh:
		t.Fatalf("request failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("request did not complete")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server did not shutdown cleanly: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not exit after shutdown")
	}
}

func TestNewFrameSource(t *testing.T) {
	logger := zap.NewNop()

	src, err := newFrameSource(config.CameraConfig{Driver: config.DriverDir, Dir: "frames"}, "/srv/charcam", logger)
	if err != nil {
		t.Fatalf("dir driver: %v", err)
	}
	if _, ok := src.(*frame.DirSource); !ok {
		t.Errorf("dir driver returned %T", src)
	}

	src, err = newFrameSource(config.CameraConfig{Driver: config.DriverStatic}, "", logger)
	if err != nil {
		t.Fatalf("static driver: %v", err)
	}
	if _, ok := src.(*frame.StaticSource); !ok {
		t.Errorf("static driver returned %T", src)
	}

	_, err = newFrameSource(config.CameraConfig{Driver: config.DriverGoCV}, "", logger)
	if frame.CameraAvailable == (err != nil) {
		t.Errorf("gocv driver: CameraAvailable=%v, err=%v", frame.CameraAvailable, err)
	}

	if _, err := newFrameSource(config.CameraConfig{Driver: "v4l"}, "", logger); err == nil {
		t.Error("unknown driver accepted")
	}
}

func TestResolveLocation(t *testing.T) {
	root := filepath.FromSlash("/srv/charcam")
	tests := map[string]string{
		"models/model_metadata.json":                filepath.Join(root, "models", "model_metadata.json"),
		"https://example.com/model_metadata.json":   "https://example.com/model_metadata.json",
		"file:///opt/models/model_metadata.json":    "file:///opt/models/model_metadata.json",
		filepath.FromSlash("/opt/models/meta.json"): filepath.FromSlash("/opt/models/meta.json"),
	}
	for in, want := range tests {
		if got := resolveLocation(root, in); got != want {
			t.Errorf("resolveLocation(%q) = %q, want %q", in, got, want)
		}
	}
}

func waitForServer(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server %s did not become ready", addr)
}
