// Package mqtt mirrors subscriber status events to an MQTT broker.
//
// The mirror is optional. When enabled, every committed status delta is
// published retained to netward/subscribers/<username>/status, and the
// service's own liveness to netward/system/status with a Last Will so
// external monitoring (NMS dashboards, alerting) can consume state
// changes without holding a WebSocket open against the console.
package mqtt
