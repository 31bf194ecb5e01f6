package canvas

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicetable/server/internal/dice"
)

func spawnEvent(dieID, origin string) Event {
	return Event{
		ID:           "evt-spawn-" + dieID,
		Type:         EventSpawn,
		DieID:        dieID,
		OriginatorID: origin,
		DieType:      "d6",
		Position:     &dice.Vec3{X: 1},
	}
}

func TestShouldApplyLocalOriginAlwaysPasses(t *testing.T) {
	p := NewProtocol(SyncConfig{Mode: ModeResultOnly})

	for _, kind := range []EventType{EventSpawn, EventThrow, EventSettle, EventHighlight, EventRemove, EventClear} {
		event := Event{Type: kind, DieID: "d-1", OriginatorID: "me"}
		assert.True(t, p.ShouldApply(event, true), "local %s must pass", kind)
	}
}

func TestShouldApplyResultOnlySuppressesPhysics(t *testing.T) {
	p := NewProtocol(SyncConfig{Mode: ModeResultOnly})

	pass := []EventType{EventSpawn, EventSettle, EventRemove, EventClear}
	for _, kind := range pass {
		event := Event{Type: kind, DieID: "d-1"}
		assert.True(t, p.ShouldApply(event, false), "%s must pass in result-only mode", kind)
	}
	assert.False(t, p.ShouldApply(Event{Type: EventThrow, DieID: "d-1"}, false))
	assert.False(t, p.ShouldApply(Event{Type: EventHighlight, DieID: "d-1"}, false))
}

func TestShouldApplyFeatureFlags(t *testing.T) {
	cases := []struct {
		cfg           SyncConfig
		wantThrow     bool
		wantHighlight bool
	}{
		{SyncConfig{Mode: ModeFull}, false, false},
		{SyncConfig{Mode: ModeFull, EnablePhysicsSync: true}, true, false},
		{SyncConfig{Mode: ModeFull, EnableHighlighting: true}, false, true},
		{SyncConfig{Mode: ModeResultOnly, EnablePhysicsSync: true, EnableHighlighting: true}, true, true},
	}
	for i, tc := range cases {
		p := NewProtocol(tc.cfg)
		assert.Equal(t, tc.wantThrow, p.ShouldApply(Event{Type: EventThrow, DieID: "d"}, false), "case %d throw", i)
		assert.Equal(t, tc.wantHighlight, p.ShouldApply(Event{Type: EventHighlight, DieID: "d"}, false), "case %d highlight", i)
	}
}

func TestHistoryRetainsFilteredEvents(t *testing.T) {
	p := NewProtocol(SyncConfig{Mode: ModeResultOnly})

	p.Record(spawnEvent("d-1", "other"))
	applied := p.Ingest(Event{Type: EventThrow, DieID: "d-1", OriginatorID: "other"}, false)
	require.False(t, applied, "throw must be filtered in result-only mode")

	history := p.History()
	require.Len(t, history, 2, "filtered events still land in history")
	assert.Equal(t, EventThrow, history[1].Type)
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	p := NewProtocol(SyncConfig{MaxEventHistory: 3})

	for i := 0; i < 5; i++ {
		p.Record(Event{ID: fmt.Sprintf("evt-%d", i), Type: EventSpawn, DieID: fmt.Sprintf("d-%d", i), DieType: "d6"})
	}

	history := p.History()
	require.Len(t, history, 3)
	assert.Equal(t, "evt-2", history[0].ID)
	assert.Equal(t, "evt-4", history[2].ID)
}

func TestActiveDiceLifecycle(t *testing.T) {
	p := NewProtocol(DefaultSyncConfig())

	p.Record(spawnEvent("d-1", "alice"))
	view, ok := p.Die("d-1")
	require.True(t, ok)
	assert.Equal(t, PhaseSpawning, view.Phase)
	assert.Equal(t, "alice", view.OriginatorID)

	p.Record(Event{Type: EventThrow, DieID: "d-1", Velocity: &dice.Vec3{X: 3}})
	view, _ = p.Die("d-1")
	assert.Equal(t, PhaseRolling, view.Phase)

	result := 4
	p.Record(Event{Type: EventSettle, DieID: "d-1", Result: &result, Position: &dice.Vec3{X: 2}})
	view, _ = p.Die("d-1")
	assert.Equal(t, PhaseSettled, view.Phase)
	assert.Equal(t, 4, view.Result)
	assert.Equal(t, 2.0, view.Position.X)

	p.Record(Event{Type: EventHighlight, DieID: "d-1", HighlightCol: "#ff0"})
	view, _ = p.Die("d-1")
	assert.Equal(t, PhaseHighlighted, view.Phase)
	assert.Equal(t, "#ff0", view.HighlightColor)

	p.Record(Event{Type: EventHighlight, DieID: "d-1"})
	view, _ = p.Die("d-1")
	assert.Equal(t, PhaseSettled, view.Phase)
	assert.Empty(t, view.HighlightColor)

	p.Record(Event{Type: EventRemove, DieID: "d-1"})
	_, ok = p.Die("d-1")
	assert.False(t, ok)
}

func TestClearWipesActiveDice(t *testing.T) {
	p := NewProtocol(DefaultSyncConfig())
	for i := 0; i < 7; i++ {
		p.Record(spawnEvent(fmt.Sprintf("d-%d", i), "alice"))
	}
	require.Len(t, p.ActiveDice(), 7)

	p.Record(Event{Type: EventClear, OriginatorID: "alice"})
	assert.Empty(t, p.ActiveDice())
}

func TestEventValid(t *testing.T) {
	assert.True(t, Event{Type: EventClear}.Valid())
	assert.True(t, Event{Type: EventSpawn, DieID: "d", DieType: "d6"}.Valid())
	assert.False(t, Event{Type: EventSpawn, DieID: "d"}.Valid())
	assert.False(t, Event{Type: EventSettle}.Valid())
	assert.False(t, Event{Type: "explode", DieID: "d"}.Valid())
}
