package logging_test

import (
	"context"
	"testing"
	"time"

	"dicetable/server/logging"
	loggingSinks "dicetable/server/logging/sinks"
)

func newMemoryRouter(t *testing.T, cfg logging.Config) (*logging.Router, *loggingSinks.Memory) {
	t.Helper()
	memory := loggingSinks.NewMemory()
	router, err := logging.NewRouter(logging.SystemClock{}, cfg, []logging.NamedSink{
		{Name: "memory", Sink: memory},
	})
	if err != nil {
		t.Fatalf("failed to construct router: %v", err)
	}
	return router, memory
}

func closeRouter(t *testing.T, router *logging.Router) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("failed to close router: %v", err)
	}
}

func waitForEvents(t *testing.T, memory *loggingSinks.Memory, want int) []logging.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events := memory.Events()
		if len(events) >= want {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d events, got %d", want, len(memory.Events()))
	return nil
}

func TestRouterDeliversToSink(t *testing.T) {
	cfg := logging.DefaultConfig()
	router, memory := newMemoryRouter(t, cfg)

	router.Publish(context.Background(), logging.Event{
		Type:     "session.joined",
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Actor:    logging.EntityRef{ID: "sess-1", Kind: logging.EntityKindSession},
	})

	events := waitForEvents(t, memory, 1)
	if events[0].Type != "session.joined" {
		t.Fatalf("expected session.joined, got %q", events[0].Type)
	}
	if events[0].Actor.ID != "sess-1" {
		t.Fatalf("expected actor sess-1, got %q", events[0].Actor.ID)
	}

	closeRouter(t, router)
	if stats := router.Stats(); stats.EventsTotal != 1 {
		t.Fatalf("expected 1 routed event, got %d", stats.EventsTotal)
	}
}

func TestRouterFiltersBelowMinimumSeverity(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityWarn
	router, memory := newMemoryRouter(t, cfg)

	router.Publish(context.Background(), logging.Event{
		Type:     "canvas.ingested",
		Severity: logging.SeverityInfo,
		Category: logging.CategoryTable,
	})
	router.Publish(context.Background(), logging.Event{
		Type:     "activity.drop",
		Severity: logging.SeverityWarn,
		Category: logging.CategorySystem,
	})

	events := waitForEvents(t, memory, 1)
	closeRouter(t, router)

	for _, event := range events {
		if event.Severity < logging.SeverityWarn {
			t.Fatalf("event %q should have been filtered", event.Type)
		}
	}
}

func TestRouterMergesConfiguredFields(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.Fields = map[string]any{"service": "dicetable"}
	router, memory := newMemoryRouter(t, cfg)

	router.Publish(context.Background(), logging.Event{
		Type:     "roll.performed",
		Severity: logging.SeverityInfo,
		Category: logging.CategoryTable,
	})

	events := waitForEvents(t, memory, 1)
	closeRouter(t, router)

	if got := events[0].Extra["service"]; got != "dicetable" {
		t.Fatalf("expected configured field on event, got %v", got)
	}
}

func TestRouterIgnoresUntypedEvents(t *testing.T) {
	router, memory := newMemoryRouter(t, logging.DefaultConfig())

	router.Publish(context.Background(), logging.Event{Severity: logging.SeverityError})
	router.Publish(context.Background(), logging.Event{
		Type:     "session.left",
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
	})

	events := waitForEvents(t, memory, 1)
	closeRouter(t, router)

	if len(events) != 1 || events[0].Type != "session.left" {
		t.Fatalf("expected only the typed event, got %+v", events)
	}
}
