package activity

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"dicetable/server/internal/telemetry"
)

const (
	// DefaultCapacity bounds the in-memory feed; the oldest entries are
	// evicted first.
	DefaultCapacity = 500
	// DefaultSubscriberBuffer is the per-subscriber channel depth.
	DefaultSubscriberBuffer = 64

	dropWarnInterval = 5 * time.Second
)

// MetricSubscriberDrops counts activities dropped on full subscriber buffers.
const MetricSubscriberDrops = "activity_subscriber_drops"

// Log is an append-only, bounded record of activities. Appends fan out to
// every subscriber in order; a full subscriber buffer drops the entry for
// that subscriber rather than stalling the publisher.
type Log struct {
	mu          sync.Mutex
	entries     []Activity
	capacity    int
	subscribers map[uint64]chan Activity
	nextSub     uint64
	buffer      int
	logger      telemetry.Logger
	metrics     telemetry.Metrics
	lastWarn    time.Time
}

// LogConfig tunes a Log; zero values take defaults.
type LogConfig struct {
	Capacity         int
	SubscriberBuffer int
	Logger           telemetry.Logger
	Metrics          telemetry.Metrics
}

// NewLog constructs an empty activity log.
func NewLog(cfg LogConfig) *Log {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	buffer := cfg.SubscriberBuffer
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Log{
		entries:     make([]Activity, 0, capacity),
		capacity:    capacity,
		subscribers: make(map[uint64]chan Activity),
		buffer:      buffer,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

// Append stores the activity and notifies every current subscriber with the
// same immutable value. Missing ID and timestamp fields are filled in. The
// stored copy is returned.
func (l *Log) Append(a Activity) Activity {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, a)
	if len(l.entries) > l.capacity {
		overflow := len(l.entries) - l.capacity
		l.entries = append(l.entries[:0], l.entries[overflow:]...)
	}

	for id, ch := range l.subscribers {
		select {
		case ch <- a:
		default:
			l.recordDropLocked(id)
		}
	}
	return a
}

// Snapshot returns every retained activity in append order.
func (l *Log) Snapshot() []Activity {
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := make([]Activity, len(l.entries))
	copy(copied, l.entries)
	return copied
}

// Len reports the number of retained activities.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Subscribe registers a new subscriber and returns its id and channel. The
// channel is buffered; entries that would block are dropped for that
// subscriber only.
func (l *Log) Subscribe() (uint64, <-chan Activity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	ch := make(chan Activity, l.buffer)
	l.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (l *Log) Unsubscribe(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.subscribers[id]
	if !ok {
		return
	}
	delete(l.subscribers, id)
	close(ch)
}

func (l *Log) recordDropLocked(subscriber uint64) {
	if l.metrics != nil {
		l.metrics.Add(MetricSubscriberDrops, 1)
	}
	now := time.Now()
	if l.logger != nil && now.Sub(l.lastWarn) >= dropWarnInterval {
		l.lastWarn = now
		l.logger.Printf("activity subscriber %d backlog full, dropping", subscriber)
	}
}
