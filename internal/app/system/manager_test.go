package system

import (
	"context"
	"errors"
	"testing"
)

type recordingService struct {
	name        string
	startErr    error
	stopErr     error
	startCalled bool
	stopCalled  bool
	order       *[]string
}

func (r *recordingService) Name() string { return r.name }
func (r *recordingService) Start(ctx context.Context) error {
	r.startCalled = true
	if r.order != nil {
		*r.order = append(*r.order, "start:"+r.name)
	}
	return r.startErr
}
func (r *recordingService) Stop(ctx context.Context) error {
	r.stopCalled = true
	if r.order != nil {
		*r.order = append(*r.order, "stop:"+r.name)
	}
	return r.stopErr
}

func TestManagerStartStopOrder(t *testing.T) {
	var order []string
	a := &recordingService{name: "a", order: &order}
	b := &recordingService{name: "b", order: &order}

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !a.startCalled || !b.startCalled {
		t.Fatalf("expected both services started")
	}

	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !a.stopCalled || !b.stopCalled {
		t.Fatalf("expected both services stopped")
	}
	want := []string{"start:a", "start:b", "stop:b", "stop:a"}
	if len(order) != len(want) {
		t.Fatalf("expected order %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestManagerStartFailureStopsStartedServices(t *testing.T) {
	a := &recordingService{name: "a"}
	b := &recordingService{name: "b", startErr: errors.New("boom")}

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)

	err := m.Start(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !a.stopCalled {
		t.Fatalf("expected already-started service to be stopped on failure")
	}
}
