package canvas

import (
	"sync"

	"dicetable/server/internal/dice"
)

// SyncMode selects how much of the table's motion is replicated.
type SyncMode string

const (
	// ModeFull replicates intermediate physics when the flags allow it.
	ModeFull SyncMode = "full"
	// ModeResultOnly replicates spawn/settle/remove/clear and suppresses
	// intermediate throw physics for remote events.
	ModeResultOnly SyncMode = "result-only"
)

// ConflictResolution selects the winner when two events touch the same die.
type ConflictResolution string

const (
	ConflictLatest ConflictResolution = "latest"
	ConflictOwner  ConflictResolution = "owner"
)

// DefaultEventHistory bounds the event FIFO when the config leaves it zero.
const DefaultEventHistory = 256

// SyncConfig is the subscriber-side sync policy.
type SyncConfig struct {
	Mode               SyncMode           `json:"mode"`
	EnablePhysicsSync  bool               `json:"enablePhysicsSync"`
	EnableHighlighting bool               `json:"enableHighlighting"`
	MaxEventHistory    int                `json:"maxEventHistory"`
	ConflictResolution ConflictResolution `json:"conflictResolution"`
}

// DefaultSyncConfig mirrors the behavior of a fresh table: full sync with
// physics and highlighting on.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Mode:               ModeFull,
		EnablePhysicsSync:  true,
		EnableHighlighting: true,
		MaxEventHistory:    DefaultEventHistory,
		ConflictResolution: ConflictLatest,
	}
}

func (c SyncConfig) normalized() SyncConfig {
	if c.Mode == "" {
		c.Mode = ModeFull
	}
	if c.MaxEventHistory <= 0 {
		c.MaxEventHistory = DefaultEventHistory
	}
	if c.ConflictResolution == "" {
		c.ConflictResolution = ConflictLatest
	}
	return c
}

// DiePhase tracks a die through its table lifecycle.
type DiePhase string

const (
	PhaseSpawning    DiePhase = "spawning"
	PhaseRolling     DiePhase = "rolling"
	PhaseSettled     DiePhase = "settled"
	PhaseHighlighted DiePhase = "highlighted"
)

// DieView is one entry of the activeDice map: what this subscriber currently
// believes is on the table, local and remote dice alike.
type DieView struct {
	DieID          string    `json:"dieId"`
	DieType        string    `json:"dieType"`
	OriginatorID   string    `json:"originatorId"`
	Phase          DiePhase  `json:"phase"`
	Position       dice.Vec3 `json:"position"`
	Result         int       `json:"result,omitempty"`
	IsVirtual      bool      `json:"isVirtual,omitempty"`
	HighlightColor string    `json:"highlightColor,omitempty"`
}

// Protocol decides which events a subscriber applies and keeps the bounded
// event history plus the canonical activeDice view. Events failing the
// filter are still recorded so history queries stay complete regardless of
// sync mode.
type Protocol struct {
	mu      sync.Mutex
	cfg     SyncConfig
	history []Event
	active  map[string]*DieView
}

// NewProtocol constructs a protocol with the given sync configuration.
func NewProtocol(cfg SyncConfig) *Protocol {
	return &Protocol{
		cfg:    cfg.normalized(),
		active: make(map[string]*DieView),
	}
}

// Config returns the active sync configuration.
func (p *Protocol) Config() SyncConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// ShouldApply reports whether a subscriber must dispatch the event to its
// reconciler. Events from the subscriber itself always apply: the local
// canvas already reflects the action but bookkeeping still needs them.
func (p *Protocol) ShouldApply(event Event, isLocalOrigin bool) bool {
	if isLocalOrigin {
		return true
	}
	p.mu.Lock()
	cfg := p.cfg
	p.mu.Unlock()

	switch event.Type {
	case EventThrow:
		return cfg.EnablePhysicsSync
	case EventHighlight:
		return cfg.EnableHighlighting
	default:
		// Spawn, settle, remove and clear pass in every mode.
		return true
	}
}

// Record stores the event in the history FIFO and folds it into the
// activeDice map. Eviction drops the oldest events first.
func (p *Protocol) Record(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.history = append(p.history, event)
	if len(p.history) > p.cfg.MaxEventHistory {
		overflow := len(p.history) - p.cfg.MaxEventHistory
		p.history = append(p.history[:0], p.history[overflow:]...)
	}

	switch event.Type {
	case EventSpawn:
		view := &DieView{
			DieID:        event.DieID,
			DieType:      event.DieType,
			OriginatorID: event.OriginatorID,
			Phase:        PhaseSpawning,
			IsVirtual:    event.IsVirtual,
		}
		if event.Position != nil {
			view.Position = *event.Position
		}
		p.active[event.DieID] = view
	case EventThrow:
		if view, ok := p.active[event.DieID]; ok {
			view.Phase = PhaseRolling
			if event.Position != nil {
				view.Position = *event.Position
			}
		}
	case EventSettle:
		if view, ok := p.active[event.DieID]; ok {
			view.Phase = PhaseSettled
			if event.Position != nil {
				view.Position = *event.Position
			}
			if event.Result != nil {
				view.Result = *event.Result
			}
			view.HighlightColor = ""
		}
	case EventHighlight:
		if view, ok := p.active[event.DieID]; ok {
			if event.HighlightCol == "" {
				view.Phase = PhaseSettled
				view.HighlightColor = ""
			} else {
				view.Phase = PhaseHighlighted
				view.HighlightColor = event.HighlightCol
			}
		}
	case EventRemove:
		delete(p.active, event.DieID)
	case EventClear:
		p.active = make(map[string]*DieView)
	}
}

// Ingest records the event and reports whether it must be dispatched.
func (p *Protocol) Ingest(event Event, isLocalOrigin bool) bool {
	p.Record(event)
	return p.ShouldApply(event, isLocalOrigin)
}

// History copies the retained events in arrival order.
func (p *Protocol) History() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := make([]Event, len(p.history))
	copy(copied, p.history)
	return copied
}

// ActiveDice copies the current table view.
func (p *Protocol) ActiveDice() []DieView {
	p.mu.Lock()
	defer p.mu.Unlock()
	views := make([]DieView, 0, len(p.active))
	for _, view := range p.active {
		views = append(views, *view)
	}
	return views
}

// Die returns the view for one die.
func (p *Protocol) Die(dieID string) (DieView, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	view, ok := p.active[dieID]
	if !ok {
		return DieView{}, false
	}
	return *view, true
}
