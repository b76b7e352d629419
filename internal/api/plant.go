package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/reznoir/netward/internal/plant"
)

// handleListPOPs returns all points of presence.
func (s *Server) handleListPOPs(w http.ResponseWriter, r *http.Request) {
	pops, err := s.plant.ListPOPs(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list pops")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pops": pops, "count": len(pops)})
}

// handleGetPOP returns a single POP by ID.
func (s *Server) handleGetPOP(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	pop, err := s.plant.GetPOP(r.Context(), id)
	if err != nil {
		if errors.Is(err, plant.ErrNotFound) {
			writeNotFound(w, "pop not found")
			return
		}
		writeInternalError(w, "failed to get pop")
		return
	}

	writeJSON(w, http.StatusOK, pop)
}

// handleCreatePOP creates a new POP.
func (s *Server) handleCreatePOP(w http.ResponseWriter, r *http.Request) {
	var pop plant.POP
	if err := json.NewDecoder(r.Body).Decode(&pop); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := pop.Validate(); err != nil {
		writeBadRequest(w, "name and code are required")
		return
	}

	if err := s.plant.CreatePOP(r.Context(), &pop); err != nil {
		if errors.Is(err, plant.ErrExists) {
			writeConflict(w, "pop code already taken")
			return
		}
		writeInternalError(w, "failed to create pop")
		return
	}

	writeJSON(w, http.StatusCreated, pop)
}

// handleUpdatePOP partially updates a POP.
func (s *Server) handleUpdatePOP(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	existing, err := s.plant.GetPOP(r.Context(), id)
	if err != nil {
		if errors.Is(err, plant.ErrNotFound) {
			writeNotFound(w, "pop not found")
			return
		}
		writeInternalError(w, "failed to get pop")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := existing.Validate(); err != nil {
		writeBadRequest(w, "name and code are required")
		return
	}

	if err := s.plant.UpdatePOP(r.Context(), existing); err != nil {
		if errors.Is(err, plant.ErrExists) {
			writeConflict(w, "pop code already taken")
			return
		}
		writeInternalError(w, "failed to update pop")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeletePOP removes a POP. ODPs under it are kept with their POP
// reference nulled out.
func (s *Server) handleDeletePOP(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	if err := s.plant.DeletePOP(r.Context(), id); err != nil {
		if errors.Is(err, plant.ErrNotFound) {
			writeNotFound(w, "pop not found")
			return
		}
		writeInternalError(w, "failed to delete pop")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListODPs returns all distribution points.
func (s *Server) handleListODPs(w http.ResponseWriter, r *http.Request) {
	odps, err := s.plant.ListODPs(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list odps")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"odps": odps, "count": len(odps)})
}

// handleListODPsByPOP returns the distribution points under one POP.
func (s *Server) handleListODPsByPOP(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	odps, err := s.plant.ListODPsByPOP(r.Context(), id)
	if err != nil {
		writeInternalError(w, "failed to list odps")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"odps": odps, "count": len(odps)})
}

// handleGetODP returns a single ODP by ID.
func (s *Server) handleGetODP(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	odp, err := s.plant.GetODP(r.Context(), id)
	if err != nil {
		if errors.Is(err, plant.ErrNotFound) {
			writeNotFound(w, "odp not found")
			return
		}
		writeInternalError(w, "failed to get odp")
		return
	}

	writeJSON(w, http.StatusOK, odp)
}

// handleCreateODP creates a new ODP.
func (s *Server) handleCreateODP(w http.ResponseWriter, r *http.Request) {
	var odp plant.ODP
	if err := json.NewDecoder(r.Body).Decode(&odp); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := odp.Validate(); err != nil {
		writeBadRequest(w, "name and code are required")
		return
	}

	if err := s.plant.CreateODP(r.Context(), &odp); err != nil {
		if errors.Is(err, plant.ErrExists) {
			writeConflict(w, "odp code already taken")
			return
		}
		writeInternalError(w, "failed to create odp")
		return
	}

	writeJSON(w, http.StatusCreated, odp)
}

// handleUpdateODP partially updates an ODP.
func (s *Server) handleUpdateODP(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	existing, err := s.plant.GetODP(r.Context(), id)
	if err != nil {
		if errors.Is(err, plant.ErrNotFound) {
			writeNotFound(w, "odp not found")
			return
		}
		writeInternalError(w, "failed to get odp")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := existing.Validate(); err != nil {
		writeBadRequest(w, "name and code are required")
		return
	}

	if err := s.plant.UpdateODP(r.Context(), existing); err != nil {
		if errors.Is(err, plant.ErrExists) {
			writeConflict(w, "odp code already taken")
			return
		}
		writeInternalError(w, "failed to update odp")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteODP removes an ODP.
func (s *Server) handleDeleteODP(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	if err := s.plant.DeleteODP(r.Context(), id); err != nil {
		if errors.Is(err, plant.ErrNotFound) {
			writeNotFound(w, "odp not found")
			return
		}
		writeInternalError(w, "failed to delete odp")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
