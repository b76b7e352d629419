// Package api provides the HTTP REST API and WebSocket server for Netward.
//
// It exposes subscriber, router, package, and plant management to the web
// console, plus the sync operations that reconcile the database against
// the routers. Status changes detected by the sync engine are pushed to
// connected consoles over WebSocket.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
