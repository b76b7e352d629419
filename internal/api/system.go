package api

import (
	"net/http"
	"runtime"
	"time"
)

// handleMetrics returns basic process metrics for monitoring.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	clients, err := s.subscribers.CountAll(r.Context())
	if err != nil {
		clients = -1
	}

	wsClients := 0
	if s.hub != nil {
		wsClients = s.hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version":           s.version,
		"uptime_seconds":    int(time.Since(s.startedAt).Seconds()),
		"goroutines":        runtime.NumGoroutine(),
		"heap_alloc_bytes":  mem.HeapAlloc,
		"websocket_clients": wsClients,
		"clients":           clients,
	})
}
