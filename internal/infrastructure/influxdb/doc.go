// Package influxdb records per-router bandwidth samples to InfluxDB.
//
// Telemetry is optional. When enabled, every dashboard stats collection
// also lands a point in the configured bucket so operators get traffic
// history beyond the console's live view. Write failures are logged and
// dropped; telemetry never blocks or fails a dashboard request.
package influxdb
