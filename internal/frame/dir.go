package frame

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DirSource treats a spool directory as a camera: an external grabber drops
// image files into it and the newest file is the current frame.
type DirSource struct {
	dir    string
	logger *zap.Logger

	mu     sync.Mutex
	latest string

	watcher   *fsnotify.Watcher
	wg        sync.WaitGroup
	closeOnce sync.Once
	seq       atomic.Uint64
}

// NewDirSource creates a source over dir. Nothing is touched until Setup.
func NewDirSource(dir string, logger *zap.Logger) *DirSource {
	return &DirSource{dir: dir, logger: logger.Named("dir_source")}
}

// Setup verifies the directory, picks the newest existing image and starts
// watching for new ones.
func (s *DirSource) Setup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrDeviceUnavailable, s.dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: create watcher: %v", ErrDeviceUnavailable, err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("%w: watch %s: %v", ErrDeviceUnavailable, s.dir, err)
	}

	s.rescan()
	s.watcher = watcher
	s.wg.Add(1)
	go s.watch()

	s.logger.Info("watching frame directory", zap.String("dir", s.dir), zap.String("latest", s.current()))
	return nil
}

// Capture decodes the newest image in the directory.
func (s *DirSource) Capture(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrNoFrameAvailable, err)
	}
	path := s.current()
	if path == "" {
		return Frame{}, ErrNoFrameAvailable
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		// The grabber may still be writing the file.
		return Frame{}, fmt.Errorf("%w: decode %s: %v", ErrNoFrameAvailable, filepath.Base(path), err)
	}
	return Frame{Image: img, CapturedAt: time.Now(), Seq: s.seq.Add(1)}, nil
}

// Close stops the watcher.
func (s *DirSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.watcher != nil {
			err = s.watcher.Close()
			s.wg.Wait()
		}
	})
	return err
}

func (s *DirSource) watch() {
	defer s.wg.Done()
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !isImageFile(ev.Name) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				s.mu.Lock()
				s.latest = ev.Name
				s.mu.Unlock()
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				if ev.Name == s.current() {
					s.rescan()
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("frame directory watch error", zap.Error(err))
		}
	}
}

// rescan picks the most recently modified image in the directory.
func (s *DirSource) rescan() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("scan frame directory", zap.Error(err))
		return
	}
	var (
		newest  string
		newestT time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !isImageFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestT) {
			newest = filepath.Join(s.dir, e.Name())
			newestT = info.ModTime()
		}
	}
	s.mu.Lock()
	s.latest = newest
	s.mu.Unlock()
}

func (s *DirSource) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
