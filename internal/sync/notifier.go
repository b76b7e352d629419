package sync

import "github.com/reznoir/netward/internal/subscriber"

// StatusDelta is one subscriber whose status changed during a sync pass.
type StatusDelta struct {
	ID       int64             `json:"id"`
	Username string            `json:"username"`
	Status   subscriber.Status `json:"status"`
}

// StatusNotifier receives status deltas after they are committed to the
// store. Implementations must not block; the engine calls this on its
// sync goroutine.
type StatusNotifier interface {
	NotifyStatus(deltas []StatusDelta)
}

// NopNotifier discards deltas. Used when no push channel is wired.
type NopNotifier struct{}

// NotifyStatus implements StatusNotifier.
func (NopNotifier) NotifyStatus([]StatusDelta) {}
