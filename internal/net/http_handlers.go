package net

import (
	"encoding/json"
	"io"
	"log"
	nethttp "net/http"
	"net/http/pprof"
	"time"

	"dicetable/server"
	"dicetable/server/internal/net/ws"
	"dicetable/server/internal/observability"
	"dicetable/server/internal/telemetry"
)

// SessionHeader carries the session ID on every HTTP exchange. The server
// mints an ID when the client presents none and echoes it back.
const SessionHeader = "X-Session-ID"

type HTTPHandlerConfig struct {
	Logger        telemetry.Logger
	Observability observability.Config
}

// NewHTTPHandler wires the REST surface and the websocket endpoint onto a
// single mux.
func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string `json:"status"`
			ServerTime int64  `json:"serverTime"`
			Sessions   any    `json:"sessions"`
			Activities int    `json:"activityCount"`
			Heartbeat  int64  `json:"heartbeatMillis"`
			Telemetry  any    `json:"telemetry"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Sessions:   hub.DiagnosticsSnapshot(),
			Activities: len(hub.Activities()),
			Heartbeat:  server.HeartbeatInterval().Milliseconds(),
			Telemetry:  hub.TelemetrySnapshot(),
		}
		writeJSON(w, payload)
	})

	mux.HandleFunc("/activities", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		ensureSession(hub, w, r)
		writeJSON(w, struct {
			Activities any `json:"activities"`
		}{Activities: hub.Activities()})
	})

	mux.HandleFunc("/users", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		ensureSession(hub, w, r)
		writeJSON(w, struct {
			Users any `json:"users"`
		}{Users: hub.ActiveUsers()})
	})

	mux.HandleFunc("/roll", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		sessionID := ensureSession(hub, w, r)

		var req struct {
			Expression string `json:"expression"`
		}
		if !decodeBody(w, r, &req) {
			return
		}

		act, err := hub.RollDice(sessionID, req.Expression)
		if err != nil {
			writeJSON(w, server.CommandResultMessage{
				Ver:     server.ProtocolVersion,
				Type:    "commandResult",
				Command: "roll",
				Message: err.Error(),
			})
			return
		}
		writeJSON(w, server.CommandResultMessage{
			Ver:     server.ProtocolVersion,
			Type:    "commandResult",
			Command: "roll",
			Success: true,
			Payload: act,
		})
	})

	mux.HandleFunc("/username", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		sessionID := ensureSession(hub, w, r)

		var req struct {
			Username string `json:"username"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		writeJSON(w, hub.RegisterUsername(sessionID, req.Username))
	})

	mux.HandleFunc("/color", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		sessionID := ensureSession(hub, w, r)

		var req struct {
			Color string `json:"color"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		writeJSON(w, hub.SetColor(sessionID, req.Color))
	})

	mux.HandleFunc("/chat", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		sessionID := ensureSession(hub, w, r)

		var req struct {
			Message string `json:"message"`
		}
		if !decodeBody(w, r, &req) {
			return
		}

		act, err := hub.SendChat(sessionID, req.Message)
		if err != nil {
			writeJSON(w, server.CommandResultMessage{
				Ver:     server.ProtocolVersion,
				Type:    "commandResult",
				Command: "chat",
				Message: err.Error(),
			})
			return
		}
		writeJSON(w, server.CommandResultMessage{
			Ver:     server.ProtocolVersion,
			Type:    "commandResult",
			Command: "chat",
			Success: true,
			Payload: act,
		})
	})

	wsHandler := ws.NewHandler(hub, ws.HandlerConfig{Logger: logger})
	mux.HandleFunc("/ws", wsHandler.Handle)

	if cfg.Observability.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return mux
}

// ensureSession resolves the request's session, minting one when the header
// is absent, and echoes the ID back on the response.
func ensureSession(hub *server.Hub, w nethttp.ResponseWriter, r *nethttp.Request) string {
	sessionID := hub.EnsureSession(r.Header.Get(SessionHeader))
	w.Header().Set(SessionHeader, sessionID)
	return sessionID
}

func decodeBody(w nethttp.ResponseWriter, r *nethttp.Request, dst any) bool {
	if r.Body == nil {
		httpError(w, "missing body", nethttp.StatusBadRequest)
		return false
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && err != io.EOF {
		httpError(w, "invalid payload", nethttp.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
