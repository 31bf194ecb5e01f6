package activity

import (
	"fmt"
	"testing"

	"dicetable/server/internal/telemetry"
)

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	log := NewLog(LogConfig{})

	stored := log.Append(Activity{Kind: KindChat, User: "Bob", Message: "hi"})
	if stored.ID == "" {
		t.Fatal("expected generated id")
	}
	if stored.Timestamp.IsZero() {
		t.Fatal("expected generated timestamp")
	}
}

func TestSnapshotPreservesAppendOrder(t *testing.T) {
	log := NewLog(LogConfig{})

	for i := 0; i < 10; i++ {
		log.Append(Activity{Kind: KindChat, Message: fmt.Sprintf("msg-%d", i)})
	}

	snapshot := log.Snapshot()
	if len(snapshot) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(snapshot))
	}
	for i, entry := range snapshot {
		if want := fmt.Sprintf("msg-%d", i); entry.Message != want {
			t.Fatalf("entry %d is %q, want %q", i, entry.Message, want)
		}
	}
}

func TestCapacityEvictsOldestFirst(t *testing.T) {
	log := NewLog(LogConfig{Capacity: 3})

	for i := 0; i < 5; i++ {
		log.Append(Activity{Kind: KindChat, Message: fmt.Sprintf("msg-%d", i)})
	}

	snapshot := log.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("expected capacity 3, got %d entries", len(snapshot))
	}
	if snapshot[0].Message != "msg-2" || snapshot[2].Message != "msg-4" {
		t.Fatalf("unexpected retained window: %q .. %q", snapshot[0].Message, snapshot[2].Message)
	}
}

func TestSubscribersObserveAppendOrder(t *testing.T) {
	log := NewLog(LogConfig{})
	id, ch := log.Subscribe()
	defer log.Unsubscribe(id)

	for i := 0; i < 5; i++ {
		log.Append(Activity{Kind: KindSystem, Message: fmt.Sprintf("msg-%d", i)})
	}

	for i := 0; i < 5; i++ {
		got := <-ch
		if want := fmt.Sprintf("msg-%d", i); got.Message != want {
			t.Fatalf("subscriber saw %q at position %d, want %q", got.Message, i, want)
		}
	}
}

func TestSlowSubscriberNeverBlocksAppend(t *testing.T) {
	metrics := telemetry.NewCounterSet()
	log := NewLog(LogConfig{SubscriberBuffer: 1, Metrics: metrics})
	id, ch := log.Subscribe()
	defer log.Unsubscribe(id)

	// Nothing reads ch; only the first entry fits its buffer. Append must
	// return regardless.
	for i := 0; i < 4; i++ {
		log.Append(Activity{Kind: KindChat, Message: fmt.Sprintf("msg-%d", i)})
	}

	if got := <-ch; got.Message != "msg-0" {
		t.Fatalf("buffered entry is %q, want msg-0", got.Message)
	}
	if drops := metrics.Get(MetricSubscriberDrops); drops != 3 {
		t.Fatalf("expected 3 recorded drops, got %d", drops)
	}
	if log.Len() != 4 {
		t.Fatalf("log retained %d entries, want 4", log.Len())
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	log := NewLog(LogConfig{})
	id, ch := log.Subscribe()
	log.Unsubscribe(id)

	if _, open := <-ch; open {
		t.Fatal("expected closed channel after unsubscribe")
	}

	// Double unsubscribe must not panic.
	log.Unsubscribe(id)
}
