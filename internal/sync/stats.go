package sync

import (
	"context"
	"strconv"
	"strings"
)

// DeviceStats is a live snapshot of one router for the dashboard.
type DeviceStats struct {
	DeviceID       int64   `json:"device_id"`
	DeviceName     string  `json:"device_name"`
	ActiveSessions int     `json:"active_sessions"`
	RxMbps         float64 `json:"rx_mbps"`
	TxMbps         float64 `json:"tx_mbps"`
}

const bitsPerMbit = 1_000_000

// CollectDeviceStats probes one router for its active session count and
// WAN traffic rates. Traffic probing is best effort: a router without a
// detectable WAN interface reports zero rates, not an error.
func (e *Engine) CollectDeviceStats(ctx context.Context, deviceID int64) (*DeviceStats, error) {
	dev, err := e.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	session, err := e.dialDevice(ctx, dev)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	stats := &DeviceStats{DeviceID: dev.ID, DeviceName: dev.Name}

	rows, err := e.run(ctx, session, dev.ID, "/ppp/active/print", "?service=pppoe", "=count-only=")
	if err != nil {
		return nil, err
	}
	stats.ActiveSessions = countFromReply(rows)

	routes, err := e.run(ctx, session, dev.ID, "/ip/route/print", "?dst-address=0.0.0.0/0")
	if err != nil {
		e.logger.Warn("route lookup failed, skipping traffic probe",
			"device_id", dev.ID, "error", err)
		return stats, nil
	}

	wan := wanInterface(routes)
	if wan == "" {
		return stats, nil
	}

	traffic, err := e.run(ctx, session, dev.ID,
		"/interface/monitor-traffic", "=interface="+wan, "=once=")
	if err != nil {
		e.logger.Warn("traffic probe failed",
			"device_id", dev.ID, "interface", wan, "error", err)
		return stats, nil
	}
	if len(traffic) > 0 {
		stats.RxMbps = bpsToMbps(traffic[0]["rx-bits-per-second"])
		stats.TxMbps = bpsToMbps(traffic[0]["tx-bits-per-second"])
	}

	return stats, nil
}

// countFromReply reads a count-only reply. Routers return the count as
// a "ret" attribute; fall back to counting rows for older firmware.
func countFromReply(rows []map[string]string) int {
	for _, row := range rows {
		if ret, ok := row["ret"]; ok {
			if n, err := strconv.Atoi(ret); err == nil {
				return n
			}
		}
	}
	return len(rows)
}

// wanInterface picks the egress interface of the default route. RouterOS
// reports the immediate gateway as "1.2.3.4%ether1" on newer firmware
// and a bare interface name in "gateway" on some setups.
func wanInterface(routes []map[string]string) string {
	for _, route := range routes {
		if gw := route["immediate-gw"]; gw != "" {
			if i := strings.IndexByte(gw, '%'); i >= 0 {
				return gw[i+1:]
			}
		}
		// A gateway with no dots or colons is an interface name, not an IP.
		if gw := route["gateway"]; gw != "" && !strings.ContainsAny(gw, ".:") {
			return gw
		}
	}
	return ""
}

func bpsToMbps(value string) float64 {
	bps, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return bps / bitsPerMbit
}
