package alarms

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/miradorstack/mirador-bsm/internal/engine"
	"github.com/miradorstack/mirador-bsm/internal/models"
)

type fakePopper struct {
	mu       sync.Mutex
	payloads [][]byte
	failures int
	drained  chan struct{}
	once     sync.Once
}

func (f *fakePopper) Pop(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, errors.New("connection reset")
	}
	if len(f.payloads) == 0 {
		f.mu.Unlock()
		f.once.Do(func() { close(f.drained) })
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
			return nil, nil
		}
	}
	next := f.payloads[0]
	f.payloads = f.payloads[1:]
	f.mu.Unlock()
	return next, nil
}

func newStateMachine(t *testing.T) *engine.StateMachine {
	t.Helper()
	sm := engine.NewStateMachine(nil)
	if err := sm.SetBusinessServices([]models.BusinessServiceDefinition{
		{Name: "web", Edges: []models.EdgeDefinition{
			{Type: models.EdgeTypeReductionKey, ReductionKey: "k1"},
			{Type: models.EdgeTypeReductionKey, ReductionKey: "k2"},
		}},
	}); err != nil {
		t.Fatalf("load: %v", err)
	}
	return sm
}

func TestPipelineAppliesAlarmsInOrder(t *testing.T) {
	sm := newStateMachine(t)
	var seen []models.Status
	var mu sync.Mutex
	sm.AddHandler(func(c engine.StateChange) {
		mu.Lock()
		seen = append(seen, c.NewStatus)
		mu.Unlock()
	}, nil)

	popper := &fakePopper{
		failures: 1,
		drained:  make(chan struct{}),
		payloads: [][]byte{
			[]byte(`{"reductionKey":"k1","severity":"WARNING"}`),
			[]byte(`not json`),
			[]byte(`{"reductionKey":"unrelated","severity":7}`),
			[]byte(`{"reductionKey":"k2","severity":6,"id":"a-1"}`),
			[]byte(`{"reductionKey":"k2","severity":"CLEARED"}`),
		},
	}
	pipeline := NewPipeline(popper, sm, nil, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pipeline.Run(ctx) }()

	select {
	case <-popper.drained:
	case <-time.After(2 * time.Second):
		t.Fatalf("pipeline did not drain the stream")
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []models.Status{models.StatusWarning, models.StatusMajor, models.StatusWarning}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seen)
		}
	}
}

func TestApplyDropsMalformedPayload(t *testing.T) {
	sm := newStateMachine(t)
	pipeline := NewPipeline(&fakePopper{drained: make(chan struct{})}, sm, nil, 0)
	if changes := pipeline.Apply(context.Background(), []byte(`{"severity":"MAJOR"}`)); changes != nil {
		t.Fatalf("expected no changes, got %v", changes)
	}
	if status, _ := sm.BusinessServiceStatus("web"); status != models.StatusUnknown {
		t.Fatalf("status should be untouched, got %s", status)
	}
	if changes := pipeline.Apply(context.Background(), []byte(`{"reductionKey":"k1","severity":"critical"}`)); len(changes) != 1 {
		t.Fatalf("expected one change, got %d", len(changes))
	}
}
