package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/reznoir/netward/internal/device"
	"github.com/reznoir/netward/internal/routeros"
)

// deviceRequest is the create/update body for a router. Password is
// accepted here but never echoed back in responses.
type deviceRequest struct {
	Name        *string `json:"name"`
	Host        *string `json:"host"`
	Port        *int    `json:"port"`
	Username    *string `json:"username"`
	Password    *string `json:"password"`
	Type        *string `json:"type"`
	Description *string `json:"description"`
}

// apply copies the set fields onto dev.
func (req *deviceRequest) apply(dev *device.Device) {
	if req.Name != nil {
		dev.Name = *req.Name
	}
	if req.Host != nil {
		dev.Host = *req.Host
	}
	if req.Port != nil {
		dev.Port = *req.Port
	}
	if req.Username != nil {
		dev.Username = *req.Username
	}
	if req.Password != nil {
		dev.Password = *req.Password
	}
	if req.Type != nil {
		dev.Type = *req.Type
	}
	if req.Description != nil {
		dev.Description = req.Description
	}
}

// handleListDevices returns all routers.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single router by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	dev, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice registers a new router.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var dev device.Device
	req.apply(&dev)

	if err := dev.Validate(); err != nil {
		writeBadRequest(w, "name and host are required")
		return
	}

	if err := s.devices.Create(r.Context(), &dev); err != nil {
		if errors.Is(err, device.ErrExists) {
			writeConflict(w, "device name already taken")
			return
		}
		writeInternalError(w, "failed to create device")
		return
	}

	writeJSON(w, http.StatusCreated, dev)
}

// handleUpdateDevice partially updates a router.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	existing, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.apply(existing)

	if err := existing.Validate(); err != nil {
		writeBadRequest(w, "name and host are required")
		return
	}

	if err := s.devices.Update(r.Context(), existing); err != nil {
		if errors.Is(err, device.ErrExists) {
			writeConflict(w, "device name already taken")
			return
		}
		writeInternalError(w, "failed to update device")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteDevice removes a router. Subscribers that referenced it
// keep their rows; the foreign key nulls out their device.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	if err := s.devices.Delete(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleTestConnection dials the router's API and reads its identity.
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	dev, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	if !dev.HasConnectionParams() {
		writeBadRequest(w, "device has no connection parameters")
		return
	}

	session, err := s.dialer.Dial(r.Context(), routeros.Params{
		Host:     dev.Host,
		Port:     dev.Port,
		Username: dev.Username,
		Password: dev.Password,
	})
	if err != nil {
		writeBadGateway(w, "connection failed: "+err.Error())
		return
	}
	defer session.Close()

	rows, err := session.Run(r.Context(), "/system/identity/print")
	if err != nil {
		writeBadGateway(w, "identity query failed: "+err.Error())
		return
	}

	identity := ""
	if len(rows) > 0 {
		identity = rows[0]["name"]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"identity": identity,
	})
}
