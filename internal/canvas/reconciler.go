package canvas

import (
	"math/rand"
	"sync"

	"dicetable/server/internal/dice"
	"dicetable/server/internal/telemetry"
)

// Presenter receives the presentation-layer callbacks the reconciler emits:
// result overlays for settled dice and highlight changes. Implementations
// must not call back into the reconciler.
type Presenter interface {
	ShowResult(dieID string, result int, position dice.Vec3)
	Highlight(dieID string, color string)
}

// NopPresenter discards every callback.
type NopPresenter struct{}

func (NopPresenter) ShowResult(string, int, dice.Vec3) {}
func (NopPresenter) Highlight(string, string)          {}

// Body is a subscriber-local replica of a die whose authoritative action
// happened elsewhere.
type Body struct {
	DieID        string
	DieType      string
	OriginatorID string
	Phase        DiePhase
	Position     dice.Vec3
	Velocity     dice.Vec3
	Result       int
	Awake        bool
}

// virtualDie is bookkeeping for dice that never materialize a physics body.
type virtualDie struct {
	dieID        string
	originatorID string
	result       int
	rolls        []int
}

const spawnImpulse = 1.5

// Reconciler consumes accepted, non-local canvas events and maintains the
// replica dice set. Lookups that miss are silent no-ops: the event may have
// raced a removal or describe a virtual die.
type Reconciler struct {
	mu        sync.Mutex
	bodies    map[string]*Body
	virtual   map[string]*virtualDie
	presenter Presenter
	rng       *rand.Rand
	logger    telemetry.Logger
}

// ReconcilerConfig collects the reconciler's collaborators.
type ReconcilerConfig struct {
	Presenter Presenter
	Rand      *rand.Rand
	Logger    telemetry.Logger
}

// NewReconciler constructs an empty reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	presenter := cfg.Presenter
	if presenter == nil {
		presenter = NopPresenter{}
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Reconciler{
		bodies:    make(map[string]*Body),
		virtual:   make(map[string]*virtualDie),
		presenter: presenter,
		rng:       rng,
		logger:    cfg.Logger,
	}
}

// Apply folds one event into the replica set. Applying the same settle or
// remove twice leaves the state unchanged the second time.
func (r *Reconciler) Apply(event Event) {
	switch event.Type {
	case EventSpawn:
		r.applySpawn(event)
	case EventThrow:
		r.applyThrow(event)
	case EventSettle:
		r.applySettle(event)
	case EventHighlight:
		r.applyHighlight(event)
	case EventRemove:
		r.applyRemove(event)
	case EventClear:
		r.Clear()
	default:
		if r.logger != nil {
			r.logger.Printf("reconciler ignoring unknown event type %q", event.Type)
		}
	}
}

func (r *Reconciler) applySpawn(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.IsVirtual {
		// Virtual dice only ever produce a final aggregate number.
		v := &virtualDie{dieID: event.DieID, originatorID: event.OriginatorID}
		if event.Result != nil {
			v.result = *event.Result
		}
		if len(event.VirtualRolls) > 0 {
			v.rolls = append([]int(nil), event.VirtualRolls...)
		}
		r.virtual[event.DieID] = v
		return
	}

	body := &Body{
		DieID:        event.DieID,
		DieType:      event.DieType,
		OriginatorID: event.OriginatorID,
		Phase:        PhaseSpawning,
		Awake:        true,
	}
	if event.Position != nil {
		body.Position = *event.Position
	}
	// A small random impulse so freshly spawned replicas tumble instead
	// of appearing frozen mid-air.
	body.Velocity = dice.Vec3{
		X: (r.rng.Float64()*2 - 1) * spawnImpulse,
		Y: r.rng.Float64() * spawnImpulse,
		Z: (r.rng.Float64()*2 - 1) * spawnImpulse,
	}
	r.bodies[event.DieID] = body
}

func (r *Reconciler) applyThrow(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	body, ok := r.bodies[event.DieID]
	if !ok {
		return
	}
	if event.Velocity != nil {
		body.Velocity = *event.Velocity
	}
	if event.Position != nil {
		body.Position = *event.Position
	}
	body.Awake = true
	body.Phase = PhaseRolling
}

func (r *Reconciler) applySettle(event Event) {
	r.mu.Lock()
	body, ok := r.bodies[event.DieID]
	if !ok {
		r.mu.Unlock()
		return
	}

	result := body.Result
	if event.Result != nil {
		result = *event.Result
	}
	if body.Phase == PhaseSettled && body.Result == result {
		// Duplicate settle, nothing to do and no second overlay.
		r.mu.Unlock()
		return
	}

	if event.Position != nil {
		body.Position = *event.Position
	}
	body.Velocity = dice.Vec3{}
	body.Awake = false
	body.Phase = PhaseSettled
	body.Result = result
	position := body.Position
	r.mu.Unlock()

	r.presenter.ShowResult(event.DieID, result, position)
}

func (r *Reconciler) applyHighlight(event Event) {
	r.mu.Lock()
	body, ok := r.bodies[event.DieID]
	if ok {
		if event.HighlightCol == "" {
			body.Phase = PhaseSettled
		} else {
			body.Phase = PhaseHighlighted
		}
	}
	r.mu.Unlock()

	// Highlights never mutate physics state; the presentation layer owns
	// the visual.
	r.presenter.Highlight(event.DieID, event.HighlightCol)
}

func (r *Reconciler) applyRemove(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bodies, event.DieID)
	delete(r.virtual, event.DieID)
}

// Clear removes every replica and all virtual bookkeeping.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = make(map[string]*Body)
	r.virtual = make(map[string]*virtualDie)
}

// Body returns a copy of the replica for the given die.
func (r *Reconciler) Body(dieID string) (Body, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	body, ok := r.bodies[dieID]
	if !ok {
		return Body{}, false
	}
	return *body, true
}

// BodyCount reports the number of physical replicas.
func (r *Reconciler) BodyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

// VirtualCount reports the number of tracked virtual dice.
func (r *Reconciler) VirtualCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.virtual)
}
