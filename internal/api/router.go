package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)

			// WS ticket requires authentication - user must be logged in
			// to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// PPPoE subscriber endpoints
			r.Route("/clients", func(r chi.Router) {
				r.Get("/", s.handleListClients)
				r.Post("/", s.handleCreateClient)
				r.Get("/online", s.handleListOnlineClients)
				r.Post("/bulk-delete", s.handleBulkDeleteClients)
				r.Get("/template", s.handleClientTemplate)
				r.Get("/export", s.handleExportClients)
				r.Post("/import", s.handleImportClients)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetClient)
					r.Patch("/", s.handleUpdateClient)
					r.Delete("/", s.handleDeleteClient)
					r.Post("/toggle-status", s.handleToggleClient)
				})
			})

			// Router endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleCreateDevice)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Patch("/", s.handleUpdateDevice)
					r.Delete("/", s.handleDeleteDevice)
					r.Post("/test-connection", s.handleTestConnection)
					r.Post("/import", s.handleImportFromRouter)
					r.Post("/sync-status", s.handleSyncStatus)
				})
			})

			// Service package endpoints
			r.Route("/packages", func(r chi.Router) {
				r.Get("/", s.handleListPackages)
				r.Post("/", s.handleCreatePackage)
				r.Get("/{id}", s.handleGetPackage)
				r.Patch("/{id}", s.handleUpdatePackage)
				r.Delete("/{id}", s.handleDeletePackage)
			})

			// Plant endpoints (POPs and ODPs)
			r.Route("/pops", func(r chi.Router) {
				r.Get("/", s.handleListPOPs)
				r.Post("/", s.handleCreatePOP)
				r.Get("/{id}", s.handleGetPOP)
				r.Patch("/{id}", s.handleUpdatePOP)
				r.Delete("/{id}", s.handleDeletePOP)
				r.Get("/{id}/odps", s.handleListODPsByPOP)
			})
			r.Route("/odps", func(r chi.Router) {
				r.Get("/", s.handleListODPs)
				r.Post("/", s.handleCreateODP)
				r.Get("/{id}", s.handleGetODP)
				r.Patch("/{id}", s.handleUpdateODP)
				r.Delete("/{id}", s.handleDeleteODP)
			})

			// Fleet-wide sync and dashboard
			r.Post("/sync/all", s.handleSyncAll)
			r.Get("/dashboard/stats", s.handleDashboardStats)

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
