package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"dicetable/server/internal/activity"
	"dicetable/server/internal/canvas"
	"dicetable/server/internal/identity"
	"dicetable/server/internal/telemetry"
	"dicetable/server/logging"
	lifecyclelog "dicetable/server/logging/lifecycle"
	tablelog "dicetable/server/logging/table"
)

// Hub owns all live sessions, their websocket subscribers, the activity
// feed, the identity registry, and the authoritative canvas state.
type Hub struct {
	mu          sync.Mutex
	sessions    map[string]*sessionState
	subscribers map[string]*subscriber

	cfg        HubConfig
	registry   *identity.Registry
	activities *activity.Log
	protocol   *canvas.Protocol
	reconciler *canvas.Reconciler
	roller     RollProcessor
	logger     telemetry.Logger
	publisher  logging.Publisher
	metrics    *telemetry.CounterSet

	dropMu       sync.Mutex
	lastDropWarn time.Time
}

type sessionState struct {
	id            string
	joinedAt      time.Time
	lastHeartbeat time.Time
	lastRTT       time.Duration
	announced     bool
	departed      bool
}

// subscriber pairs a websocket connection with a bounded send queue. All
// outbound frames for a session go through the queue so broadcast fan-out
// never blocks on a slow socket.
type subscriber struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	once      sync.Once
}

func newSubscriber(sessionID string, conn *websocket.Conn) *subscriber {
	return &subscriber{
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}
}

// Send queues a frame without blocking. It reports false when the queue is
// full or the subscriber already shut down.
func (s *subscriber) Send(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// Close tears the connection down. Safe to call more than once.
func (s *subscriber) Close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// writePump drains the send queue onto the socket until the subscriber
// closes or a write fails.
func (s *subscriber) writePump(onError func()) {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.Close()
				if onError != nil {
					onError()
				}
				return
			}
		}
	}
}

// HubConfig tunes a hub; zero values take defaults.
type HubConfig struct {
	AnnounceDelay    time.Duration
	ActivityCapacity int
	Sync             canvas.SyncConfig
	Roller           RollProcessor
	Presenter        canvas.Presenter
	Logger           telemetry.Logger
	Publisher        logging.Publisher
}

// DefaultHubConfig returns the production defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		AnnounceDelay:    joinAnnounceDelay,
		ActivityCapacity: activity.DefaultCapacity,
		Sync:             canvas.DefaultSyncConfig(),
	}
}

// NewHub constructs a hub with empty maps. Call Run to start the broadcast
// loop and the heartbeat sweeper.
func NewHub(cfg HubConfig) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	if cfg.AnnounceDelay <= 0 {
		cfg.AnnounceDelay = joinAnnounceDelay
	}

	hub := &Hub{
		sessions:    make(map[string]*sessionState),
		subscribers: make(map[string]*subscriber),
		cfg:         cfg,
		roller:      cfg.Roller,
		logger:      logger,
		publisher:   publisher,
		metrics:     telemetry.NewCounterSet(),
	}
	hub.activities = activity.NewLog(activity.LogConfig{
		Capacity: cfg.ActivityCapacity,
		Logger:   logger,
		Metrics:  hub.metrics,
	})
	hub.registry = identity.NewRegistry(identity.Config{
		Liveness:  hub,
		Notifier:  identity.NotifierFunc(hub.systemNotice),
		Publisher: publisher,
	})
	hub.protocol = canvas.NewProtocol(cfg.Sync)
	hub.reconciler = canvas.NewReconciler(canvas.ReconcilerConfig{
		Presenter: cfg.Presenter,
		Logger:    logger,
	})
	return hub
}

// EnsureSession returns a live session ID, minting one when the client did
// not present any. New sessions get their join announced after the
// announce delay so an immediately following username registration lands
// in the notice.
func (h *Hub) EnsureSession(sessionID string) string {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	now := time.Now()
	h.mu.Lock()
	if state, ok := h.sessions[sessionID]; ok {
		state.lastHeartbeat = now
		h.mu.Unlock()
		return sessionID
	}
	h.sessions[sessionID] = &sessionState{id: sessionID, joinedAt: now, lastHeartbeat: now}
	h.mu.Unlock()

	lifecyclelog.SessionJoined(context.Background(), h.publisher, sessionID, lifecyclelog.SessionJoinedPayload{
		Username: h.registry.Username(sessionID),
	})
	h.broadcastUserList()

	time.AfterFunc(h.cfg.AnnounceDelay, func() { h.announceJoin(sessionID) })
	return sessionID
}

// announceJoin posts the join notice once. Sessions that departed before
// the delay elapsed stay silent.
func (h *Hub) announceJoin(sessionID string) {
	h.mu.Lock()
	state, ok := h.sessions[sessionID]
	if !ok || state.announced || state.departed {
		h.mu.Unlock()
		return
	}
	state.announced = true
	h.mu.Unlock()

	h.systemNotice(fmt.Sprintf("%s joined the table", h.registry.Username(sessionID)))
}

// SessionAlive reports whether the session is still tracked. Implements
// identity.Liveness so stale username claims can be evicted.
func (h *Hub) SessionAlive(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	state, ok := h.sessions[sessionID]
	return ok && !state.departed
}

// Subscribe attaches a websocket connection to an existing session,
// replacing any previous socket for the same session.
func (h *Hub) Subscribe(sessionID string, conn *websocket.Conn) (*subscriber, bool) {
	h.mu.Lock()
	state, ok := h.sessions[sessionID]
	if !ok {
		h.mu.Unlock()
		return nil, false
	}
	state.lastHeartbeat = time.Now()

	replaced := h.subscribers[sessionID]
	sub := newSubscriber(sessionID, conn)
	h.subscribers[sessionID] = sub
	h.mu.Unlock()

	if replaced != nil {
		replaced.Close()
		lifecyclelog.SubscriberReplaced(context.Background(), h.publisher, sessionID)
	}

	go sub.writePump(func() {
		h.dropSubscriber(sub, "write failure")
	})
	return sub, true
}

// Hello builds the snapshot frame for a freshly subscribed session.
func (h *Hub) Hello(sessionID string) HelloMessage {
	return HelloMessage{
		Ver:             ProtocolVersion,
		Type:            "hello",
		SessionID:       sessionID,
		Username:        h.registry.Username(sessionID),
		Color:           h.registry.Color(sessionID),
		Users:           h.ActiveUsers(),
		Activities:      h.activities.Snapshot(),
		ActiveDice:      h.protocol.ActiveDice(),
		Sync:            h.protocol.Config(),
		HeartbeatMillis: heartbeatInterval.Milliseconds(),
		ServerTime:      time.Now().UnixMilli(),
	}
}

// Disconnect removes a session, releases its username claim, and posts the
// leave notice. Calling it twice for the same session is harmless; the
// notice goes out at most once, and only if the join was announced.
func (h *Hub) Disconnect(sessionID, reason string) {
	h.remove(sessionID, nil, reason)
}

// dropSubscriber disconnects sub's session only while sub is still the
// session's current socket. A write pump whose connection was replaced by
// a reconnect must not tear down the replacement.
func (h *Hub) dropSubscriber(sub *subscriber, reason string) {
	h.remove(sub.sessionID, sub, reason)
}

func (h *Hub) remove(sessionID string, owner *subscriber, reason string) {
	h.mu.Lock()
	sub, subOK := h.subscribers[sessionID]
	if owner != nil && sub != owner {
		h.mu.Unlock()
		return
	}
	if subOK {
		delete(h.subscribers, sessionID)
	}
	state, ok := h.sessions[sessionID]
	announceLeave := false
	if ok {
		state.departed = true
		announceLeave = state.announced
		delete(h.sessions, sessionID)
	}
	h.mu.Unlock()

	if subOK {
		sub.Close()
	}
	if !ok {
		return
	}

	name := h.registry.Username(sessionID)
	h.registry.Release(sessionID)
	if announceLeave {
		h.systemNotice(fmt.Sprintf("%s left the table", name))
	}
	lifecyclelog.SessionLeft(context.Background(), h.publisher, sessionID, lifecyclelog.SessionLeftPayload{
		Username: name,
		Reason:   reason,
	})
	h.broadcastUserList()
}

// RollDice evaluates the expression, records the roll activity, and drives
// the resulting dice onto the canvas.
func (h *Hub) RollDice(sessionID, expression string) (activity.Activity, error) {
	if h.roller == nil {
		return activity.Activity{}, errors.New("no roll processor configured")
	}
	if !h.SessionAlive(sessionID) {
		return activity.Activity{}, fmt.Errorf("unknown session %s", sessionID)
	}

	roll, err := h.roller.ProcessRoll(expression)
	if err != nil {
		return activity.Activity{}, err
	}

	act := h.activities.Append(activity.Activity{
		Kind: activity.KindRoll,
		User: h.registry.Username(sessionID),
		Roll: &roll,
	})

	for i := range roll.Canvas {
		die := roll.Canvas[i]
		result := die.Result
		spawn := canvas.Event{
			Type:         canvas.EventSpawn,
			DieID:        die.DieID,
			DieType:      die.DieType,
			IsVirtual:    die.IsVirtual,
			Result:       &result,
			VirtualRolls: die.VirtualRolls,
		}
		if _, err := h.PublishCanvasEvent(sessionID, spawn); err != nil {
			h.logger.Printf("failed to spawn die %s for %s: %v", die.DieID, sessionID, err)
			continue
		}
		if !die.IsVirtual {
			settle := canvas.Event{Type: canvas.EventSettle, DieID: die.DieID, Result: &result}
			if _, err := h.PublishCanvasEvent(sessionID, settle); err != nil {
				h.logger.Printf("failed to settle die %s for %s: %v", die.DieID, sessionID, err)
			}
		}
	}

	tablelog.RollPerformed(context.Background(), h.publisher, sessionID, tablelog.RollPayload{
		Expression: roll.Expression,
		Total:      roll.Total,
		DiceCount:  len(roll.Rolls),
		Virtual:    len(roll.Canvas) == 1 && roll.Canvas[0].IsVirtual,
	})
	return act, nil
}

// RegisterUsername claims a username for the session. Failures come back
// as data in the result, never as a dropped connection.
func (h *Hub) RegisterUsername(sessionID, requested string) identity.RegisterResult {
	res := h.registry.Register(sessionID, requested)
	if res.Success {
		h.broadcastUserList()
	}
	return res
}

// SetColor updates the session's dice color.
func (h *Hub) SetColor(sessionID, color string) identity.ColorResult {
	res := h.registry.SetColor(sessionID, color)
	if res.Success {
		h.broadcastUserList()
	}
	return res
}

// SendChat appends a chat activity. Messages are trimmed and truncated to
// the chat length limit; an empty message is rejected.
func (h *Hub) SendChat(sessionID, text string) (activity.Activity, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return activity.Activity{}, errors.New("chat message is empty")
	}
	if runes := []rune(text); len(runes) > maxChatLength {
		text = string(runes[:maxChatLength])
	}

	act := h.activities.Append(activity.Activity{
		Kind:    activity.KindChat,
		User:    h.registry.Username(sessionID),
		Message: text,
	})
	tablelog.ChatSent(context.Background(), h.publisher, sessionID, tablelog.ChatPayload{Length: len(text)})
	return act, nil
}

// PublishCanvasEvent stamps, records, and broadcasts one canvas event. The
// originator is always overwritten with the authenticated session so a
// client cannot impersonate another. Events the server-side filter rejects
// still enter the shared history and go out to subscribers, who filter for
// themselves.
func (h *Hub) PublishCanvasEvent(sessionID string, event canvas.Event) (canvas.Event, error) {
	event.OriginatorID = sessionID
	if !event.Valid() {
		return canvas.Event{}, fmt.Errorf("invalid canvas event type %q", event.Type)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	applied := h.protocol.Ingest(event, false)
	if applied {
		h.reconciler.Apply(event)
	} else {
		h.metrics.Add(MetricCanvasFiltered, 1)
	}

	tablelog.CanvasIngested(context.Background(), h.publisher, sessionID, tablelog.CanvasPayload{
		EventType: string(event.Type),
		DieID:     event.DieID,
		Applied:   applied,
	})

	h.broadcastCanvas(event)
	return event, nil
}

// UpdateHeartbeat records the most recent heartbeat time and RTT for a
// session.
func (h *Hub) UpdateHeartbeat(sessionID string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.sessions[sessionID]
	if !ok {
		return 0, false
	}
	state.lastHeartbeat = receivedAt

	if clientSent > 0 {
		// A client clock running ahead of ours yields a negative sample.
		// Clamp to zero rather than echoing the previous measurement.
		rtt := receivedAt.Sub(time.UnixMilli(clientSent))
		if rtt < 0 {
			rtt = 0
		}
		state.lastRTT = rtt
	}
	return state.lastRTT, true
}

// ActiveUsers returns presence entries for every tracked session, sorted
// for stable rendering.
func (h *Hub) ActiveUsers() []identity.PresenceEntry {
	h.mu.Lock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	return h.registry.Presence(ids)
}

// Activities returns the retained activity window, oldest first.
func (h *Hub) Activities() []activity.Activity {
	return h.activities.Snapshot()
}

// CanvasHistory returns the retained canvas event window, oldest first.
func (h *Hub) CanvasHistory() []canvas.Event {
	return h.protocol.History()
}

// ActiveDice returns the canonical view of what is on the table.
func (h *Hub) ActiveDice() []canvas.DieView {
	return h.protocol.ActiveDice()
}

// DiagnosticsSnapshot exposes heartbeat data for the diagnostics endpoint.
func (h *Hub) DiagnosticsSnapshot() []DiagnosticsSession {
	h.mu.Lock()
	out := make([]DiagnosticsSession, 0, len(h.sessions))
	for id, state := range h.sessions {
		_, connected := h.subscribers[id]
		out = append(out, DiagnosticsSession{
			Ver:           ProtocolVersion,
			ID:            id,
			Connected:     connected,
			LastHeartbeat: state.lastHeartbeat.UnixMilli(),
			RTTMillis:     state.lastRTT.Milliseconds(),
		})
	}
	h.mu.Unlock()

	for i := range out {
		out[i].Username = h.registry.Username(out[i].ID)
	}
	return out
}

// Run drives the broadcast loop and the heartbeat sweeper until the stop
// channel closes.
func (h *Hub) Run(stop <-chan struct{}) {
	subID, feed := h.activities.Subscribe()
	defer h.activities.Unsubscribe(subID)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case act, ok := <-feed:
			if !ok {
				return
			}
			h.broadcastActivity(act)
		case now := <-ticker.C:
			h.sweepStale(now)
		}
	}
}

// sweepStale disconnects every session whose heartbeat went quiet.
func (h *Hub) sweepStale(now time.Time) {
	h.mu.Lock()
	stale := make([]string, 0)
	for id, state := range h.sessions {
		if now.Sub(state.lastHeartbeat) > disconnectAfter {
			stale = append(stale, id)
		}
	}
	h.mu.Unlock()

	for _, id := range stale {
		h.logger.Printf("disconnecting %s due to heartbeat timeout", id)
		h.Disconnect(id, "heartbeat timeout")
	}
}

// systemNotice appends a system activity. The broadcast loop picks it up
// through the feed subscription.
func (h *Hub) systemNotice(text string) {
	h.activities.Append(activity.Activity{Kind: activity.KindSystem, Message: text})
}

func (h *Hub) broadcastActivity(act activity.Activity) {
	h.fanOut(ActivityMessage{Ver: ProtocolVersion, Type: "activityAdded", Activity: act})
}

func (h *Hub) broadcastUserList() {
	h.fanOut(UserListMessage{Ver: ProtocolVersion, Type: "userListChanged", Users: h.ActiveUsers()})
}

func (h *Hub) broadcastCanvas(event canvas.Event) {
	h.fanOut(CanvasMessage{Ver: ProtocolVersion, Type: "canvasEventsUpdated", Event: event})
}

// fanOut marshals once and queues the frame for every subscriber. A full
// queue drops the frame for that subscriber rather than stalling the rest.
func (h *Hub) fanOut(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("failed to marshal broadcast: %v", err)
		return
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if sub.Send(data) {
			h.metrics.Add(MetricBroadcastsSent, 1)
			continue
		}
		h.metrics.Add(MetricBroadcastDrops, 1)
		h.warnDrop(sub.sessionID)
	}
}

// warnDrop logs a queue-full drop at most once per warn interval. The drop
// counter still counts every drop.
func (h *Hub) warnDrop(sessionID string) {
	now := time.Now()
	h.dropMu.Lock()
	warn := now.Sub(h.lastDropWarn) >= dropWarnInterval
	if warn {
		h.lastDropWarn = now
	}
	h.dropMu.Unlock()
	if warn {
		h.logger.Printf("dropping broadcast for %s: send queue full", sessionID)
	}
}
