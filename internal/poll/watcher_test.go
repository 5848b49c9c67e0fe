package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ngabriel/incident-watch/internal/errs"
	"github.com/ngabriel/incident-watch/internal/model"
)

func incs(ids ...string) []model.Incident {
	out := make([]model.Incident, len(ids))
	for i, id := range ids {
		out[i] = model.Incident{ID: id, Title: "t-" + id, Status: model.StatusPending}
	}
	return out
}

// sink collects events; safe to read while Run appends from its goroutine.
type sink struct {
	mu     sync.Mutex
	events []Event
}

func (s *sink) add(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *sink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *sink) count() int { return len(s.all()) }

func collector() (func(Event), *sink) {
	s := &sink{}
	return s.add, s
}

func TestFirstFetchSeedsWithoutEvents(t *testing.T) {
	t.Parallel()
	notify, events := collector()
	w := New(func(context.Context) ([]model.Incident, error) {
		return incs("a", "b"), nil
	}, time.Second, notify, nil, nil)

	if err := w.tick(context.Background(), false); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if events.count() != 0 {
		t.Fatalf("initial load must not notify, got %v", events.all())
	}
	if len(w.seen) != 2 {
		t.Fatalf("baseline not seeded: %v", w.seen)
	}
}

func TestNewIncidentEmitsExactlyOneEvent(t *testing.T) {
	t.Parallel()
	notify, events := collector()
	responses := [][]model.Incident{
		incs("a", "b"),
		incs("a", "b", "c"),
		incs("a", "b"), // c removed: no event
	}
	i := 0
	w := New(func(context.Context) ([]model.Incident, error) {
		r := responses[i]
		i++
		return r, nil
	}, time.Second, notify, nil, nil)

	ctx := context.Background()
	if err := w.tick(ctx, false); err != nil {
		t.Fatal(err)
	}
	if err := w.tick(ctx, true); err != nil {
		t.Fatal(err)
	}
	if events.count() != 1 {
		t.Fatalf("want 1 event, got %v", events.all())
	}
	e := events.all()[0]
	if e.ID != "c" || e.Title != "t-c" || e.Status != "En attente" {
		t.Fatalf("event: %+v", e)
	}

	if err := w.tick(ctx, true); err != nil {
		t.Fatal(err)
	}
	if events.count() != 1 {
		t.Fatalf("removal must not notify, got %v", events.all())
	}

	// c comes back: it is new again relative to the replaced baseline.
	responses = append(responses, incs("a", "b", "c"))
	if err := w.tick(ctx, true); err != nil {
		t.Fatal(err)
	}
	if events.count() != 2 {
		t.Fatalf("want 2 events, got %v", events.all())
	}
}

func TestFailedFetchKeepsBaseline(t *testing.T) {
	t.Parallel()
	notify, events := collector()
	failNext := false
	w := New(func(context.Context) ([]model.Incident, error) {
		if failNext {
			return nil, errs.WithStatus(500, "connection to server failed", errs.ErrConnection)
		}
		return incs("a"), nil
	}, time.Second, notify, nil, nil)

	ctx := context.Background()
	if err := w.tick(ctx, false); err != nil {
		t.Fatal(err)
	}
	failNext = true
	if err := w.tick(ctx, true); err != nil {
		t.Fatalf("transient failure must not stop the loop: %v", err)
	}
	if len(w.seen) != 1 {
		t.Fatalf("baseline lost: %v", w.seen)
	}
	failNext = false
	if err := w.tick(ctx, true); err != nil {
		t.Fatal(err)
	}
	if events.count() != 0 {
		t.Fatalf("unchanged set after recovery must not notify: %v", events.all())
	}
}

func TestAuthFailureClearsSessionAndStops(t *testing.T) {
	t.Parallel()
	notify, _ := collector()
	cleared := false
	w := New(func(context.Context) ([]model.Incident, error) {
		return nil, errs.WithStatus(401, "expired", errs.ErrUnauthorized)
	}, time.Second, notify, func() { cleared = true }, nil)

	err := w.tick(context.Background(), true)
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if !cleared {
		t.Fatal("auth hook not invoked")
	}
}

func TestRunStopsOnCancelWithoutLateEvents(t *testing.T) {
	t.Parallel()
	notify, events := collector()
	calls := 0
	w := New(func(context.Context) ([]model.Incident, error) {
		calls++
		if calls == 1 {
			return incs("a"), nil
		}
		return incs("a", "b"), nil
	}, 10*time.Millisecond, notify, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Let at least one notifying tick happen, then cancel.
	deadline := time.After(2 * time.Second)
	for {
		if events.count() > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no event before deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	after := events.count()
	time.Sleep(50 * time.Millisecond)
	if events.count() != after {
		t.Fatal("events delivered after cancellation")
	}
}

func TestRunReturnsUnauthorizedFromFirstFetch(t *testing.T) {
	t.Parallel()
	notify, _ := collector()
	w := New(func(context.Context) ([]model.Incident, error) {
		return nil, errs.WithStatus(403, "no", errs.ErrUnauthorized)
	}, time.Second, notify, nil, nil)

	err := w.Run(context.Background())
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}
