package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reznoir/netward/internal/subscriber"
	syncengine "github.com/reznoir/netward/internal/sync"
)

// idParam parses the {id} URL parameter as an int64.
func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// handleListClients returns all subscribers, with optional query filters.
//
// Query parameters:
//   - status: filter by connection status (online, offline, isolir)
//   - device_id: filter by owning router
func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := subscriber.Status(statusStr)
		if !subscriber.ValidStatus(status) {
			writeBadRequest(w, "unknown status: "+statusStr)
			return
		}
		subs, err := s.subscribers.ListByStatus(ctx, status)
		if err != nil {
			writeInternalError(w, "failed to list clients")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"clients": subs, "count": len(subs)})
		return
	}

	if deviceStr := r.URL.Query().Get("device_id"); deviceStr != "" {
		deviceID, err := strconv.ParseInt(deviceStr, 10, 64)
		if err != nil {
			writeBadRequest(w, "device_id must be an integer")
			return
		}
		subs, err := s.subscribers.ListByDevice(ctx, deviceID)
		if err != nil {
			writeInternalError(w, "failed to list clients")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"clients": subs, "count": len(subs)})
		return
	}

	subs, err := s.subscribers.GetAll(ctx)
	if err != nil {
		writeInternalError(w, "failed to list clients")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": subs, "count": len(subs)})
}

// handleListOnlineClients returns subscribers with an active session.
func (s *Server) handleListOnlineClients(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subscribers.ListByStatus(r.Context(), subscriber.StatusOnline)
	if err != nil {
		writeInternalError(w, "failed to list clients")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": subs, "count": len(subs)})
}

// handleGetClient returns a single subscriber by ID.
func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	sub, err := s.subscribers.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, subscriber.ErrNotFound) {
			writeNotFound(w, "client not found")
			return
		}
		writeInternalError(w, "failed to get client")
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// handleCreateClient creates a new subscriber and mirrors the PPP secret
// to the owning router.
//
// A router push failure does not roll back the database write; the response
// is still 201 with a warning field so the operator can retry the push.
func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var sub subscriber.Subscriber
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := s.engine.CreateSubscriber(r.Context(), &sub)

	var warning *syncengine.RouterWarning
	if errors.As(err, &warning) {
		writeJSON(w, http.StatusCreated, map[string]any{
			"client":  sub,
			"warning": warning.Error(),
		})
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, subscriber.ErrExists):
			writeConflict(w, "username already taken")
		case errors.Is(err, subscriber.ErrInvalid), errors.Is(err, subscriber.ErrInvalidStatus):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, "failed to create client")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"client": sub})
}

// updateClientRequest is the PATCH body for a subscriber. Absent fields
// are left unchanged.
type updateClientRequest struct {
	Username    *string `json:"username"`
	FullName    *string `json:"full_name"`
	Password    *string `json:"password"`
	ServiceName *string `json:"service_name"`
	IsDisabled  *bool   `json:"is_disabled"`
	IPAddress   *string `json:"ip_address"`
	MACAddress  *string `json:"mac_address"`
	Address     *string `json:"address"`
	PhoneNumber *string `json:"phone_number"`
	Latitude    *string `json:"latitude"`
	Longitude   *string `json:"longitude"`
	DeviceID    *int64  `json:"device_id"`
	ODPID       *int64  `json:"odp_id"`
	PackageID   *int64  `json:"package_id"`
}

func (req *updateClientRequest) toParams() subscriber.UpdateParams {
	return subscriber.UpdateParams{
		Username:    req.Username,
		FullName:    req.FullName,
		Password:    req.Password,
		ServiceName: req.ServiceName,
		IsDisabled:  req.IsDisabled,
		IPAddress:   req.IPAddress,
		MACAddress:  req.MACAddress,
		Address:     req.Address,
		PhoneNumber: req.PhoneNumber,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		DeviceID:    req.DeviceID,
		ODPID:       req.ODPID,
		PackageID:   req.PackageID,
	}
}

// handleUpdateClient partially updates a subscriber and mirrors any
// secret-affecting changes to the owning router.
func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	var req updateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	sub, err := s.engine.UpdateSubscriber(r.Context(), id, req.toParams())

	var warning *syncengine.RouterWarning
	if errors.As(err, &warning) {
		writeJSON(w, http.StatusOK, map[string]any{
			"client":  sub,
			"warning": warning.Error(),
		})
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, subscriber.ErrNotFound):
			writeNotFound(w, "client not found")
		case errors.Is(err, subscriber.ErrExists):
			writeConflict(w, "username already taken")
		default:
			writeInternalError(w, "failed to update client")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"client": sub})
}

// handleToggleClient flips a subscriber's disabled flag, mirroring the
// change to the router's PPP secret.
func (s *Server) handleToggleClient(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	existing, err := s.subscribers.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, subscriber.ErrNotFound) {
			writeNotFound(w, "client not found")
			return
		}
		writeInternalError(w, "failed to get client")
		return
	}

	disabled := !existing.IsDisabled
	sub, err := s.engine.UpdateSubscriber(r.Context(), id, subscriber.UpdateParams{
		IsDisabled: &disabled,
	})

	var warning *syncengine.RouterWarning
	if errors.As(err, &warning) {
		writeJSON(w, http.StatusOK, map[string]any{
			"client":  sub,
			"warning": warning.Error(),
		})
		return
	}
	if err != nil {
		writeInternalError(w, "failed to toggle client")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"client": sub})
}

// handleDeleteClient removes a subscriber, best-effort removing the
// router secret first.
func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	if err := s.engine.DeleteSubscriber(r.Context(), id); err != nil {
		if errors.Is(err, subscriber.ErrNotFound) {
			writeNotFound(w, "client not found")
			return
		}
		writeInternalError(w, "failed to delete client")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// bulkDeleteRequest is the request body for POST /clients/bulk-delete.
type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

// handleBulkDeleteClients removes many subscribers in one database write.
// Router secrets are not touched; bulk delete exists for cleaning up rows
// after a router has been decommissioned.
func (s *Server) handleBulkDeleteClients(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.IDs) == 0 {
		writeBadRequest(w, "ids is required")
		return
	}

	deleted, err := s.subscribers.DeleteMany(r.Context(), req.IDs)
	if err != nil {
		writeInternalError(w, "failed to delete clients")
		return
	}

	s.logger.Info("bulk delete", "requested", len(req.IDs), "deleted", deleted)

	writeJSON(w, http.StatusOK, map[string]any{
		"requested": len(req.IDs),
		"deleted":   deleted,
	})
}
