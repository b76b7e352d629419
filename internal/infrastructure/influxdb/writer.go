package influxdb

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/reznoir/netward/internal/infrastructure/config"
	syncengine "github.com/reznoir/netward/internal/sync"
)

// bandwidthMeasurement is the measurement router samples are written to.
const bandwidthMeasurement = "router_bandwidth"

// writeTimeout bounds each telemetry write.
const writeTimeout = 5 * time.Second

// Writer records bandwidth samples to an InfluxDB bucket.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *slog.Logger
}

// New creates a telemetry writer. The connection is lazy; a broken URL
// or token surfaces on the first write.
func New(cfg config.InfluxDBConfig, logger *slog.Logger) *Writer {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Writer{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger:   logger.With("component", "influxdb"),
	}
}

// WriteDeviceStats records one router's bandwidth sample. Failures are
// logged and swallowed.
func (w *Writer) WriteDeviceStats(ctx context.Context, stats syncengine.DeviceStats) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	point := influxdb2.NewPoint(
		bandwidthMeasurement,
		bandwidthTags(stats),
		bandwidthFields(stats),
		time.Now().UTC(),
	)

	if err := w.writeAPI.WritePoint(ctx, point); err != nil {
		w.logger.Warn("bandwidth sample write failed",
			"device_id", stats.DeviceID, "error", err)
	}
}

// HealthCheck verifies the InfluxDB endpoint is reachable.
func (w *Writer) HealthCheck(ctx context.Context) error {
	ok, err := w.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("influxdb ping: not ready")
	}
	return nil
}

// Close releases the client's resources.
func (w *Writer) Close() {
	w.client.Close()
}

func bandwidthTags(stats syncengine.DeviceStats) map[string]string {
	return map[string]string{
		"device_id":   strconv.FormatInt(stats.DeviceID, 10),
		"device_name": stats.DeviceName,
	}
}

func bandwidthFields(stats syncengine.DeviceStats) map[string]any {
	return map[string]any{
		"active_sessions": stats.ActiveSessions,
		"rx_mbps":         stats.RxMbps,
		"tx_mbps":         stats.TxMbps,
	}
}
