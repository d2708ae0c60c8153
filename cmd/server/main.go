package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Brownie44l1/charcam/internal/chart"
	"github.com/Brownie44l1/charcam/internal/config"
	"github.com/Brownie44l1/charcam/internal/display"
	"github.com/Brownie44l1/charcam/internal/frame"
	"github.com/Brownie44l1/charcam/internal/handlers"
	"github.com/Brownie44l1/charcam/internal/labels"
	"github.com/Brownie44l1/charcam/internal/logging"
	"github.com/Brownie44l1/charcam/internal/loop"
	"github.com/Brownie44l1/charcam/internal/model"
	"github.com/Brownie44l1/charcam/internal/preprocess"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	root := projectRoot()
	source, err := newFrameSource(cfg.Camera, root, logger)
	if err != nil {
		logger.Fatal("failed to create frame source", zap.Error(err))
	}

	backend := model.NewONNXBackend(cfg.Model.LibraryPath)
	defer backend.Close() //nolint:errcheck
	engine := model.NewEngine(backend, preprocess.New(preprocess.DefaultSize).Shape(), labels.All(), logger)

	barChart := chart.NewBarChart(labels.All(),
		chart.WithSize(cfg.Chart.Width, cfg.Chart.Height),
		chart.WithTransition(cfg.Chart.Transition),
	)
	board := display.NewBoard()
	sinks := display.Fanout{board}
	if cfg.Redis.Addr != "" {
		redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
		client := initRedis(redisCtx, cfg.Redis.Addr, logger)
		redisCancel()
		defer client.Close()
		sinks = append(sinks, display.NewRedisDisplay(display.NewRedisStore(client), cfg.Redis.Key, cfg.Redis.Channel, cfg.Redis.TTL, logger))
	}

	controller := loop.New(loop.Config{
		Source:         source,
		Preprocessor:   preprocess.New(preprocess.DefaultSize),
		Loader:         engineLoader(engine, cfg.Model.FetchTimeout),
		ModelLocation:  resolveLocation(root, cfg.Model.Location),
		Visualizer:     barChart,
		Display:        sinks,
		CaptureTimeout: cfg.Camera.CaptureTimeout,
		Logger:         logger,
	})
	defer controller.Close() //nolint:errcheck

	// A failed startup is fatal for the classifier but not for the process:
	// /health reports it and triggers are rejected.
	if err := controller.Start(context.Background()); err != nil {
		logger.Error("classifier unavailable", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = handlers.MaxUploadSize
	handlers.RegisterRoutes(r, handlers.NewHandler(controller, board, barChart, logger))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("charcam listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("camera", cfg.Camera.Driver),
		zap.Bool("webcam_support", frame.CameraAvailable),
		zap.Strings("labels", labels.All()),
	)
	if err := serveHTTPServer(server, cfg.Server.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// projectRoot returns the working directory, stepping out of cmd/server
// when run from there.
func projectRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if filepath.Base(wd) == "server" && filepath.Base(filepath.Dir(wd)) == "cmd" {
		return filepath.Join(wd, "../..")
	}
	return wd
}

func resolveLocation(root, location string) string {
	if strings.Contains(location, "://") || filepath.IsAbs(location) {
		return location
	}
	return filepath.Join(root, location)
}

func newFrameSource(cfg config.CameraConfig, root string, logger *zap.Logger) (frame.Source, error) {
	switch cfg.Driver {
	case config.DriverDir:
		return frame.NewDirSource(resolveLocation(root, cfg.Dir), logger), nil
	case config.DriverGoCV:
		return frame.NewCameraSource(cfg.Device, logger)
	case config.DriverStatic:
		// Upload-only: POST /predict/image supplies the frames.
		return frame.NewStaticSource(nil), nil
	default:
		return nil, fmt.Errorf("unknown camera driver %q", cfg.Driver)
	}
}

func engineLoader(engine *model.Engine, timeout time.Duration) loop.Loader {
	return loop.LoaderFunc(func(ctx context.Context, location string) (loop.Model, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		m, err := engine.Load(ctx, location)
		if err != nil {
			return nil, err
		}
		return m, nil
	})
}

func initRedis(ctx context.Context, addr string, logger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, label publishing will fail until it is up",
			zap.String("addr", addr), zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
