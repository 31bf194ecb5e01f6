// Package identity owns the mapping of sessions to usernames and colors.
// The registry is the single source of truth for name ownership: every
// check-then-mutate sequence runs under one mutex so two concurrent
// registrations can never both believe a name is free.
package identity

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"dicetable/server/logging"
	identitylog "dicetable/server/logging/identity"
)

const (
	// AnonymousName is never unique and never claims a registry slot.
	AnonymousName = "Anonymous"
	// MaxNameLength bounds sanitized usernames in code units.
	MaxNameLength = 60
	// DefaultColor is assigned to sessions that never picked one.
	DefaultColor = "#ffffff"
)

var (
	disallowedRunes = regexp.MustCompile(`[^A-Za-z0-9 _'.\-]`)
	colorFormat     = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// Sanitize normalizes a requested username: trim, strip disallowed
// characters, truncate to MaxNameLength, and fall back to AnonymousName
// when nothing survives.
func Sanitize(raw string) string {
	name := strings.TrimSpace(raw)
	name = disallowedRunes.ReplaceAllString(name, "")
	// Stripping leaves ASCII only, so byte truncation cannot split a rune.
	if len(name) > MaxNameLength {
		name = name[:MaxNameLength]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return AnonymousName
	}
	return name
}

// ValidColor reports whether color is a #-prefixed 3- or 6-digit hex string.
func ValidColor(color string) bool {
	return colorFormat.MatchString(color)
}

// Liveness answers whether a session still has a live connection. The hub
// implements it; the registry consults it before evicting a stale claim.
type Liveness interface {
	SessionAlive(sessionID string) bool
}

// Notifier receives the human-readable system notices the registry emits on
// renames and color changes. The hub appends them to the activity log.
type Notifier interface {
	SystemMessage(text string)
}

// NotifierFunc adapts functions into the Notifier interface.
type NotifierFunc func(text string)

// SystemMessage implements Notifier for NotifierFunc.
func (f NotifierFunc) SystemMessage(text string) {
	if f == nil {
		return
	}
	f(text)
}

// RegisterResult is the structured outcome of a username claim. Failures are
// returned, never raised: the transport always succeeds and surfaces
// Success=false to the client.
type RegisterResult struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
	Message  string `json:"message,omitempty"`
}

// ColorResult is the structured outcome of a color change.
type ColorResult struct {
	Success bool   `json:"success"`
	Color   string `json:"color"`
	Message string `json:"message,omitempty"`
}

// PresenceEntry describes one live session for the user list.
type PresenceEntry struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
	Color     string `json:"color"`
	IsActive  bool   `json:"isActive"`
}

// Config collects the registry's collaborators.
type Config struct {
	Liveness  Liveness
	Notifier  Notifier
	Publisher logging.Publisher
}

// Registry enforces username uniqueness across active sessions.
type Registry struct {
	mu             sync.Mutex
	liveness       Liveness
	notifier       Notifier
	publisher      logging.Publisher
	nameToSession  map[string]string
	sessionToName  map[string]string
	sessionToColor map[string]string
}

// NewRegistry constructs an empty registry.
func NewRegistry(cfg Config) *Registry {
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Registry{
		liveness:       cfg.Liveness,
		notifier:       cfg.Notifier,
		publisher:      publisher,
		nameToSession:  make(map[string]string),
		sessionToName:  make(map[string]string),
		sessionToColor: make(map[string]string),
	}
}

// Register claims the sanitized form of requested for the session.
//
// Rules, in order: Anonymous always succeeds and is never exclusive; a
// different name previously held by this session is released first;
// re-registering the current name is an idempotent success; a claim held by
// a no-longer-live session is forcibly released; a claim held by a live
// session fails with a taken message.
func (r *Registry) Register(sessionID, requested string) RegisterResult {
	name := Sanitize(requested)

	r.mu.Lock()
	previous := r.sessionToName[sessionID]

	if name == AnonymousName {
		released := r.releaseClaimLocked(sessionID)
		r.sessionToName[sessionID] = AnonymousName
		r.mu.Unlock()
		if released != "" {
			identitylog.UsernameReleased(context.Background(), r.publisher, sessionID, identitylog.ReleasePayload{Username: released})
		}
		return RegisterResult{Success: true, Username: AnonymousName}
	}

	if previous == name {
		r.mu.Unlock()
		return RegisterResult{Success: true, Username: name}
	}

	var forcedFrom string
	if owner, claimed := r.nameToSession[name]; claimed && owner != sessionID {
		if r.liveness == nil || r.liveness.SessionAlive(owner) {
			r.mu.Unlock()
			identitylog.UsernameRejected(context.Background(), r.publisher, sessionID, identitylog.ClaimPayload{Username: name})
			return RegisterResult{
				Success:  false,
				Username: name,
				Message:  fmt.Sprintf("Username %q is already taken", name),
			}
		}
		delete(r.nameToSession, name)
		if r.sessionToName[owner] == name {
			delete(r.sessionToName, owner)
		}
		forcedFrom = owner
	}

	released := r.releaseClaimLocked(sessionID)
	r.nameToSession[name] = sessionID
	r.sessionToName[sessionID] = name
	r.mu.Unlock()

	if forcedFrom != "" {
		identitylog.UsernameReleased(context.Background(), r.publisher, forcedFrom, identitylog.ReleasePayload{Username: name, Forced: true})
	}
	if released != "" {
		identitylog.UsernameReleased(context.Background(), r.publisher, sessionID, identitylog.ReleasePayload{Username: released})
	}
	identitylog.UsernameClaimed(context.Background(), r.publisher, sessionID, identitylog.ClaimPayload{Username: name, Previous: previous})

	from := previous
	if from == "" {
		from = AnonymousName
	}
	r.notify(fmt.Sprintf("%s is now known as %s", from, name))

	return RegisterResult{Success: true, Username: name}
}

// SetColor validates and stores the session's color. Setting the current
// color again is a silent success.
func (r *Registry) SetColor(sessionID, color string) ColorResult {
	if !ValidColor(color) {
		return ColorResult{
			Success: false,
			Color:   color,
			Message: "Color must be a 3- or 6-digit hex value like #ABC or #aabbcc",
		}
	}

	r.mu.Lock()
	if r.sessionToColor[sessionID] == color {
		r.mu.Unlock()
		return ColorResult{Success: true, Color: color}
	}
	r.sessionToColor[sessionID] = color
	name := r.sessionToName[sessionID]
	r.mu.Unlock()

	identitylog.ColorChanged(context.Background(), r.publisher, sessionID, identitylog.ColorPayload{Color: color})
	if name != "" && name != AnonymousName {
		r.notify(fmt.Sprintf("%s changed their color", name))
	}
	return ColorResult{Success: true, Color: color}
}

// Release drops every registry entry owned by the session. It verifies the
// current owner of the name is this session before deleting, so a stale
// disconnect handler can never remove a name a newer session re-claimed.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	released := r.releaseClaimLocked(sessionID)
	delete(r.sessionToName, sessionID)
	delete(r.sessionToColor, sessionID)
	r.mu.Unlock()

	if released != "" {
		identitylog.UsernameReleased(context.Background(), r.publisher, sessionID, identitylog.ReleasePayload{Username: released})
	}
}

// releaseClaimLocked removes the session's exclusive claim, if any, and
// returns the released name. Callers must hold r.mu.
func (r *Registry) releaseClaimLocked(sessionID string) string {
	name := r.sessionToName[sessionID]
	if name == "" || name == AnonymousName {
		return ""
	}
	if r.nameToSession[name] != sessionID {
		return ""
	}
	delete(r.nameToSession, name)
	return name
}

// Username returns the session's current name, AnonymousName if it never
// registered one.
func (r *Registry) Username(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name := r.sessionToName[sessionID]; name != "" {
		return name
	}
	return AnonymousName
}

// Color returns the session's current color, DefaultColor if unset.
func (r *Registry) Color(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if color := r.sessionToColor[sessionID]; color != "" {
		return color
	}
	return DefaultColor
}

// Presence derives presence entries for the supplied live sessions. Entries
// are sorted by username then session id so broadcast lists stay stable.
func (r *Registry) Presence(liveSessions []string) []PresenceEntry {
	r.mu.Lock()
	entries := make([]PresenceEntry, 0, len(liveSessions))
	for _, sessionID := range liveSessions {
		name := r.sessionToName[sessionID]
		if name == "" {
			name = AnonymousName
		}
		color := r.sessionToColor[sessionID]
		if color == "" {
			color = DefaultColor
		}
		entries = append(entries, PresenceEntry{
			SessionID: sessionID,
			Username:  name,
			Color:     color,
			IsActive:  true,
		})
	}
	r.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Username != entries[j].Username {
			return entries[i].Username < entries[j].Username
		}
		return entries[i].SessionID < entries[j].SessionID
	})
	return entries
}

func (r *Registry) notify(text string) {
	if r.notifier == nil {
		return
	}
	r.notifier.SystemMessage(text)
}
