package sync

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/reznoir/netward/internal/routeros"
	"github.com/reznoir/netward/internal/subscriber"
)

// StatusResult summarises one status sync pass against a router.
type StatusResult struct {
	// DeviceID is the router the pass ran against.
	DeviceID int64 `json:"device_id"`

	// Total is how many subscribers were evaluated.
	Total int `json:"total"`

	// Updated is how many status changes were committed.
	Updated int `json:"updated"`

	// Deltas are the committed changes, in evaluation order.
	Deltas []StatusDelta `json:"deltas,omitempty"`
}

// SyncStatus reclassifies every subscriber owned by the device against
// the router's live session table and commits the changes.
//
// Only subscribers whose device_id matches are touched: a session on
// router A never flips a subscriber owned by router B, and subscribers
// on unreachable routers keep their last known status. After the writes
// the notifier receives the post-sync status of every device-owned
// subscriber, changed or not, so consumers always see a complete
// snapshot for the device.
func (e *Engine) SyncStatus(ctx context.Context, deviceID int64) (*StatusResult, error) {
	dev, err := e.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	session, err := e.dialDevice(ctx, dev)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	rows, err := e.run(ctx, session, dev.ID, "/ppp/active/print", "?service=pppoe")
	if err != nil {
		return nil, err
	}

	online := make(map[string]struct{})
	for _, sess := range routeros.DecodeActiveSessions(rows) {
		online[sess.Username] = struct{}{}
	}

	subs, err := e.subs.ListByDevice(ctx, dev.ID)
	if err != nil {
		return nil, err
	}

	var changes []StatusDelta
	for _, sub := range subs {
		next := Classify(&sub, online)
		if next != sub.Status {
			changes = append(changes, StatusDelta{ID: sub.ID, Username: sub.Username, Status: next})
		}
	}

	deltas := e.applyStatusChanges(ctx, changes)

	result := &StatusResult{
		DeviceID: dev.ID,
		Total:    len(subs),
		Updated:  len(deltas),
		Deltas:   deltas,
	}

	if len(subs) > 0 {
		e.notifier.NotifyStatus(deviceSnapshot(subs, deltas))
	}

	e.logger.Info("status sync complete",
		"device_id", dev.ID, "total", result.Total, "updated", result.Updated)

	return result, nil
}

// deviceSnapshot builds the notification payload: one delta per
// device-owned subscriber carrying its post-sync status. Writes that
// failed keep the subscriber's previous status in the snapshot.
func deviceSnapshot(subs []subscriber.Subscriber, committed []StatusDelta) []StatusDelta {
	applied := make(map[int64]subscriber.Status, len(committed))
	for _, d := range committed {
		applied[d.ID] = d.Status
	}

	snapshot := make([]StatusDelta, 0, len(subs))
	for _, sub := range subs {
		status := sub.Status
		if next, ok := applied[sub.ID]; ok {
			status = next
		}
		snapshot = append(snapshot, StatusDelta{ID: sub.ID, Username: sub.Username, Status: status})
	}
	return snapshot
}

// applyStatusChanges commits changes in concurrency-limited batches.
// Each batch runs fully and is awaited before the next starts; a failed
// write is logged and dropped from the returned deltas without touching
// the rest of its batch.
func (e *Engine) applyStatusChanges(ctx context.Context, changes []StatusDelta) []StatusDelta {
	applied := make([]bool, len(changes))

	for start := 0; start < len(changes); start += e.batchSize {
		end := start + e.batchSize
		if end > len(changes) {
			end = len(changes)
		}

		var wg stdsync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				change := changes[i]
				if err := e.subs.UpdateStatus(ctx, change.ID, change.Status); err != nil {
					e.logger.Warn("status update failed",
						"subscriber_id", change.ID, "username", change.Username, "error", err)
					return
				}
				applied[i] = true
			}(i)
		}
		wg.Wait()
	}

	deltas := make([]StatusDelta, 0, len(changes))
	for i, ok := range applied {
		if ok {
			deltas = append(deltas, changes[i])
		}
	}
	return deltas
}

// SyncAllDevices runs a status sync against every registered router in
// turn. Devices without connection parameters are skipped; a failing
// device is logged and the pass moves on.
func (e *Engine) SyncAllDevices(ctx context.Context) ([]StatusResult, error) {
	devices, err := e.devices.List(ctx)
	if err != nil {
		return nil, err
	}

	var results []StatusResult
	for _, dev := range devices {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		if !dev.HasConnectionParams() {
			e.logger.Info("skipping device without connection parameters",
				"device_id", dev.ID, "device", dev.Name)
			continue
		}

		result, err := e.SyncStatus(ctx, dev.ID)
		if err != nil {
			e.logger.Warn("device status sync failed",
				"device_id", dev.ID, "device", dev.Name, "error", err)
			continue
		}
		results = append(results, *result)
	}

	return results, nil
}

// Run executes SyncAllDevices on a fixed interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	e.logger.Info("background sync started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("background sync stopped")
			return
		case <-ticker.C:
			if _, err := e.SyncAllDevices(ctx); err != nil {
				e.logger.Warn("background sync pass failed", "error", err)
			}
		}
	}
}
