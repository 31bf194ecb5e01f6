package server

// Broadcast counter keys surfaced by the diagnostics endpoint.
const (
	MetricBroadcastsSent = "broadcasts_sent"
	MetricBroadcastDrops = "broadcast_send_drops"
	MetricCanvasFiltered = "canvas_events_filtered"
)

// TelemetrySnapshot copies the hub's counters for diagnostics.
func (h *Hub) TelemetrySnapshot() map[string]uint64 {
	return h.metrics.Snapshot()
}
