package display

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestBoard(t *testing.T) {
	b := NewBoard()
	b.ShowLabel("黒猫")
	if got := b.State(); got.Text != "黒猫" || got.Error != "" {
		t.Fatalf("unexpected state %+v", got)
	}
	b.ShowError(errors.New("no frame available"))
	got := b.State()
	if got.Text != "黒猫" {
		t.Fatalf("error should keep the last label, got %q", got.Text)
	}
	if got.Error != "no frame available" {
		t.Fatalf("unexpected error text %q", got.Error)
	}
	b.ShowLabel("高坂桐乃")
	if got := b.State(); got.Error != "" {
		t.Fatalf("a new label should clear the error, got %q", got.Error)
	}
	b.ShowError(nil)
	if got := b.State(); got.Error != "" {
		t.Fatal("nil error must be ignored")
	}
}

type recordingDisplay struct {
	labels []string
	errs   []error
}

func (r *recordingDisplay) ShowLabel(label string) { r.labels = append(r.labels, label) }
func (r *recordingDisplay) ShowError(err error)    { r.errs = append(r.errs, err) }

func TestFanout(t *testing.T) {
	a, b := &recordingDisplay{}, &recordingDisplay{}
	f := Fanout{a, b}
	f.ShowLabel("x")
	f.ShowError(errors.New("y"))
	for _, r := range []*recordingDisplay{a, b} {
		if len(r.labels) != 1 || r.labels[0] != "x" || len(r.errs) != 1 {
			t.Fatalf("unexpected recording %+v", r)
		}
	}
}

type stubStore struct {
	setKeys   []string
	setValues []string
	ttls      []time.Duration
	channels  []string
	setErr    error
	pubErr    error
}

func (s *stubStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	s.setKeys = append(s.setKeys, key)
	s.setValues = append(s.setValues, value.(string))
	s.ttls = append(s.ttls, expiration)
	return s.setErr
}

func (s *stubStore) Publish(ctx context.Context, channel string, message interface{}) error {
	s.channels = append(s.channels, channel)
	return s.pubErr
}

func TestRedisDisplayWritesLabel(t *testing.T) {
	store := &stubStore{}
	d := NewRedisDisplay(store, "charcam:current", "charcam:events", time.Minute, zap.NewNop())
	d.ShowLabel("黒猫")

	if len(store.setKeys) != 1 || store.setKeys[0] != "charcam:current" {
		t.Fatalf("unexpected keys %v", store.setKeys)
	}
	if store.ttls[0] != time.Minute {
		t.Fatalf("unexpected ttl %v", store.ttls[0])
	}
	var p redisPayload
	if err := json.Unmarshal([]byte(store.setValues[0]), &p); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if p.Label != "黒猫" || p.Error != "" {
		t.Fatalf("unexpected payload %+v", p)
	}
	if len(store.channels) != 1 || store.channels[0] != "charcam:events" {
		t.Fatalf("unexpected channels %v", store.channels)
	}
}

func TestRedisDisplaySwallowsStoreErrors(t *testing.T) {
	store := &stubStore{setErr: errors.New("connection refused"), pubErr: errors.New("connection refused")}
	d := NewRedisDisplay(store, "k", "", time.Minute, zap.NewNop())
	d.ShowError(errors.New("no frame available"))
	if len(store.setKeys) != 1 {
		t.Fatalf("expected one write attempt, got %d", len(store.setKeys))
	}
	if len(store.channels) != 0 {
		t.Fatal("publishing should be disabled without a channel")
	}
	var p redisPayload
	_ = json.Unmarshal([]byte(store.setValues[0]), &p)
	if p.Error != "no frame available" {
		t.Fatalf("unexpected payload %+v", p)
	}
}
