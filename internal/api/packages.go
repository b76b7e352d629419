package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/reznoir/netward/internal/plan"
)

// handleListPackages returns all service packages.
func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := s.packages.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list packages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"packages": packages, "count": len(packages)})
}

// handleGetPackage returns a single service package by ID.
func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	pkg, err := s.packages.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, plan.ErrNotFound) {
			writeNotFound(w, "package not found")
			return
		}
		writeInternalError(w, "failed to get package")
		return
	}

	writeJSON(w, http.StatusOK, pkg)
}

// handleCreatePackage creates a new service package.
func (s *Server) handleCreatePackage(w http.ResponseWriter, r *http.Request) {
	var pkg plan.Package
	if err := json.NewDecoder(r.Body).Decode(&pkg); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := pkg.Validate(); err != nil {
		writeBadRequest(w, "name is required")
		return
	}

	if err := s.packages.Create(r.Context(), &pkg); err != nil {
		if errors.Is(err, plan.ErrExists) {
			writeConflict(w, "package name already taken")
			return
		}
		writeInternalError(w, "failed to create package")
		return
	}

	writeJSON(w, http.StatusCreated, pkg)
}

// handleUpdatePackage partially updates a service package.
func (s *Server) handleUpdatePackage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	existing, err := s.packages.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, plan.ErrNotFound) {
			writeNotFound(w, "package not found")
			return
		}
		writeInternalError(w, "failed to get package")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := existing.Validate(); err != nil {
		writeBadRequest(w, "name is required")
		return
	}

	if err := s.packages.Update(r.Context(), existing); err != nil {
		if errors.Is(err, plan.ErrExists) {
			writeConflict(w, "package name already taken")
			return
		}
		writeInternalError(w, "failed to update package")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeletePackage removes a service package.
func (s *Server) handleDeletePackage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return
	}

	if err := s.packages.Delete(r.Context(), id); err != nil {
		if errors.Is(err, plan.ErrNotFound) {
			writeNotFound(w, "package not found")
			return
		}
		writeInternalError(w, "failed to delete package")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
