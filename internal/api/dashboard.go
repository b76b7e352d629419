package api

import (
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/reznoir/netward/internal/subscriber"
	syncengine "github.com/reznoir/netward/internal/sync"
)

// maxDashboardProbes caps how many routers are probed at once; a large
// registry must not open a connection per device simultaneously.
const maxDashboardProbes = 8

// deviceDashboard is one router's row on the dashboard.
type deviceDashboard struct {
	syncengine.DeviceStats
	Bandwidth string `json:"bandwidth"`
	Reachable bool   `json:"reachable"`
}

// dashboardResponse is the response body for GET /dashboard/stats.
type dashboardResponse struct {
	TotalClients  int               `json:"total_clients"`
	OnlineClients int               `json:"online_clients"`
	OfflineClient int               `json:"offline_clients"`
	IsolirClients int               `json:"isolir_clients"`
	Devices       []deviceDashboard `json:"devices"`
}

// handleDashboardStats returns subscriber counts plus a live probe of
// every configured router.
//
// Router probes run concurrently. A router that cannot be reached still
// gets a row, with zeroed traffic figures and reachable=false, so the
// dashboard never fails outright because one POP is dark.
func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := dashboardResponse{}
	var err error
	if resp.TotalClients, err = s.subscribers.CountAll(ctx); err != nil {
		writeInternalError(w, "failed to count clients")
		return
	}
	if resp.OnlineClients, err = s.subscribers.CountByStatus(ctx, subscriber.StatusOnline); err != nil {
		writeInternalError(w, "failed to count clients")
		return
	}
	if resp.OfflineClient, err = s.subscribers.CountByStatus(ctx, subscriber.StatusOffline); err != nil {
		writeInternalError(w, "failed to count clients")
		return
	}
	if resp.IsolirClients, err = s.subscribers.CountByStatus(ctx, subscriber.StatusIsolir); err != nil {
		writeInternalError(w, "failed to count clients")
		return
	}

	devices, err := s.devices.List(ctx)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}

	resp.Devices = make([]deviceDashboard, len(devices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxDashboardProbes)
	for i, dev := range devices {
		i, dev := i, dev
		g.Go(func() error {
			row := deviceDashboard{
				DeviceStats: syncengine.DeviceStats{DeviceID: dev.ID, DeviceName: dev.Name},
			}
			if dev.HasConnectionParams() {
				stats, statsErr := s.engine.CollectDeviceStats(gctx, dev.ID)
				if statsErr != nil {
					s.logger.Warn("dashboard stats probe failed", "device_id", dev.ID, "error", statsErr)
				} else {
					row.DeviceStats = *stats
					row.Reachable = true
				}
			}
			row.Bandwidth = formatBandwidth(row.RxMbps, row.TxMbps)
			resp.Devices[i] = row
			return nil
		})
	}
	//nolint:errcheck // Goroutines never return errors; failures become unreachable rows
	g.Wait()

	writeJSON(w, http.StatusOK, resp)
}

// formatBandwidth renders traffic rates the way the console displays them.
func formatBandwidth(rx, tx float64) string {
	return fmt.Sprintf("↓ %.1f Mbps ↑ %.1f Mbps", rx, tx)
}
