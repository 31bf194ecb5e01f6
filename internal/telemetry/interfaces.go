package telemetry

import (
	"log"
	"sort"
	"sync"
)

// Logger exposes the logging capabilities required by server components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// Metrics exposes the counter methods required by server components.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// CounterSet is an in-process Metrics implementation surfaced by the
// diagnostics endpoint.
type CounterSet struct {
	mu       sync.Mutex
	counters map[string]uint64
}

// NewCounterSet returns an empty CounterSet.
func NewCounterSet() *CounterSet {
	return &CounterSet{counters: make(map[string]uint64)}
}

// Add increments the named counter by delta.
func (c *CounterSet) Add(key string, delta uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.counters[key] += delta
	c.mu.Unlock()
}

// Store overwrites the named counter.
func (c *CounterSet) Store(key string, value uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.counters[key] = value
	c.mu.Unlock()
}

// Get returns the current value of the named counter.
func (c *CounterSet) Get(key string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[key]
}

// Snapshot copies every counter for serialization.
func (c *CounterSet) Snapshot() map[string]uint64 {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make(map[string]uint64, len(c.counters))
	for k, v := range c.counters {
		copied[k] = v
	}
	return copied
}

// Keys returns the counter names in stable order, mostly for tests.
func (c *CounterSet) Keys() []string {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.counters))
	for k := range c.counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
