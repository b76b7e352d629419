package api

import (
	"errors"
	"net/http"

	"github.com/reznoir/netward/internal/device"
	"github.com/reznoir/netward/internal/routeros"
)

// handleImportFromRouter pulls the router's active PPPoE sessions into
// the database, creating or refreshing one subscriber per session.
func (s *Server) handleImportFromRouter(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	result, err := s.engine.ImportFromRouter(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		var devErr *routeros.DeviceError
		if errors.As(err, &devErr) {
			writeBadGateway(w, "router error: "+err.Error())
			return
		}
		writeInternalError(w, "import failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSyncStatus reconciles one router's subscriber statuses against
// its active sessions. Detected changes are pushed over WebSocket as a
// side effect.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	result, err := s.engine.SyncStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		var devErr *routeros.DeviceError
		if errors.As(err, &devErr) {
			writeBadGateway(w, "router error: "+err.Error())
			return
		}
		writeInternalError(w, "status sync failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSyncAll runs a status sync across every configured router.
// Unreachable routers are skipped; their results are simply absent.
func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	results, err := s.engine.SyncAllDevices(r.Context())
	if err != nil {
		writeInternalError(w, "fleet sync failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}
