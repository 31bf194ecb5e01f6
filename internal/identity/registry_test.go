package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLiveness struct {
	alive map[string]bool
}

func (f *fakeLiveness) SessionAlive(sessionID string) bool {
	return f.alive[sessionID]
}

type recordingNotifier struct {
	messages []string
}

func (r *recordingNotifier) SystemMessage(text string) {
	r.messages = append(r.messages, text)
}

func newTestRegistry(live ...string) (*Registry, *fakeLiveness, *recordingNotifier) {
	liveness := &fakeLiveness{alive: make(map[string]bool)}
	for _, id := range live {
		liveness.alive[id] = true
	}
	notifier := &recordingNotifier{}
	registry := NewRegistry(Config{Liveness: liveness, Notifier: notifier})
	return registry, liveness, notifier
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"", AnonymousName},
		{"   ", AnonymousName},
		{"Ω!!!", AnonymousName},
		{"  Bob  ", "Bob"},
		{"Bob<script>", "Bobscript"},
		{"O'Neil_the-3rd.", "O'Neil_the-3rd."},
		{strings.Repeat("a", 70), strings.Repeat("a", 60)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Sanitize(tc.raw), "raw=%q", tc.raw)
	}
}

func TestRegisterUniqueness(t *testing.T) {
	registry, _, _ := newTestRegistry("s1", "s2")

	first := registry.Register("s1", "Bob")
	require.True(t, first.Success)
	require.Equal(t, "Bob", first.Username)

	second := registry.Register("s2", "Bob")
	require.False(t, second.Success)
	assert.Equal(t, "Bob", second.Username)
	assert.Contains(t, second.Message, "taken")

	// The losing session still answers to Anonymous.
	assert.Equal(t, AnonymousName, registry.Username("s2"))
}

func TestRegisterIdempotent(t *testing.T) {
	registry, _, notifier := newTestRegistry("s1")

	require.True(t, registry.Register("s1", "Bob").Success)
	require.Len(t, notifier.messages, 1)

	again := registry.Register("s1", "Bob")
	require.True(t, again.Success)
	assert.Len(t, notifier.messages, 1, "idempotent re-register must not re-announce")
}

func TestRegisterRename(t *testing.T) {
	registry, _, notifier := newTestRegistry("s1", "s2")

	require.True(t, registry.Register("s1", "Bob").Success)
	require.True(t, registry.Register("s1", "Alice").Success)

	// The old name is free immediately.
	require.True(t, registry.Register("s2", "Bob").Success)

	require.Len(t, notifier.messages, 3)
	assert.Equal(t, "Bob is now known as Alice", notifier.messages[1])
}

func TestRegisterAnonymousNeverExclusive(t *testing.T) {
	registry, _, notifier := newTestRegistry("s1", "s2")

	for _, session := range []string{"s1", "s2"} {
		result := registry.Register(session, "Anonymous")
		require.True(t, result.Success)
		assert.Equal(t, AnonymousName, result.Username)
	}
	assert.Empty(t, notifier.messages, "anonymous registrations are silent")

	// Registering Anonymous releases a previously held name.
	require.True(t, registry.Register("s1", "Bob").Success)
	require.True(t, registry.Register("s1", "Anonymous").Success)
	require.True(t, registry.Register("s2", "Bob").Success)
}

func TestRegisterEvictsStaleClaim(t *testing.T) {
	registry, liveness, _ := newTestRegistry("s1", "s2")

	require.True(t, registry.Register("s1", "Bob").Success)
	liveness.alive["s1"] = false

	claimed := registry.Register("s2", "Bob")
	require.True(t, claimed.Success, "stale claim must be forcibly released")
	assert.Equal(t, "Bob", claimed.Username)
	assert.Equal(t, AnonymousName, registry.Username("s1"))
}

func TestReleaseVerifiesOwner(t *testing.T) {
	registry, _, _ := newTestRegistry("s1", "s2")

	require.True(t, registry.Register("s1", "Bob").Success)
	registry.Release("s1")

	// A new session claims the freed name; the first session's late
	// disconnect handler must not delete the new claim.
	require.True(t, registry.Register("s2", "Bob").Success)
	registry.Release("s1")
	assert.Equal(t, "Bob", registry.Username("s2"))

	result := registry.Register("s1", "Bob")
	assert.False(t, result.Success)
}

func TestReleaseWithoutRegistrationIsHarmless(t *testing.T) {
	registry, _, _ := newTestRegistry("s1", "s2")

	require.True(t, registry.Register("s1", "Bob").Success)
	registry.Release("s2")
	assert.Equal(t, "Bob", registry.Username("s1"))
}

func TestSetColor(t *testing.T) {
	registry, _, notifier := newTestRegistry("s1")

	require.False(t, registry.SetColor("s1", "red").Success)
	require.False(t, registry.SetColor("s1", "ABC").Success)
	require.False(t, registry.SetColor("s1", "#ABCD").Success)

	require.True(t, registry.SetColor("s1", "#ABC").Success)
	require.True(t, registry.SetColor("s1", "#aabbcc").Success)
	assert.Equal(t, "#aabbcc", registry.Color("s1"))

	// No notice for anonymous sessions.
	assert.Empty(t, notifier.messages)

	require.True(t, registry.Register("s1", "Bob").Success)
	require.True(t, registry.SetColor("s1", "#123456").Success)
	require.Len(t, notifier.messages, 2)
	assert.Equal(t, "Bob changed their color", notifier.messages[1])

	// Unchanged color is a silent no-op.
	require.True(t, registry.SetColor("s1", "#123456").Success)
	assert.Len(t, notifier.messages, 2)
}

func TestPresence(t *testing.T) {
	registry, _, _ := newTestRegistry("s1", "s2", "s3")

	require.True(t, registry.Register("s2", "Bob").Success)
	require.True(t, registry.SetColor("s2", "#ABC").Success)

	entries := registry.Presence([]string{"s3", "s2", "s1"})
	require.Len(t, entries, 3)

	// Sorted by username, anonymous entries carry defaults.
	assert.Equal(t, AnonymousName, entries[0].Username)
	assert.Equal(t, DefaultColor, entries[0].Color)
	assert.Equal(t, "Bob", entries[2].Username)
	assert.Equal(t, "#ABC", entries[2].Color)
	for _, entry := range entries {
		assert.True(t, entry.IsActive)
	}
}
