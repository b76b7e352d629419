package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/reznoir/netward/internal/subscriber"
)

// RouterWarning reports that a database write succeeded but mirroring it
// to the router failed. Callers treat the operation as a success and
// surface the warning to the operator.
type RouterWarning struct {
	Err error
}

// Error implements the error interface.
func (w *RouterWarning) Error() string {
	return fmt.Sprintf("saved to database, but router error: %v", w.Err)
}

// Unwrap returns the underlying router error.
func (w *RouterWarning) Unwrap() error {
	return w.Err
}

// CreateSubscriber stores a new subscriber and provisions the matching
// PPP secret on its router.
//
// A missing customer ID is generated. If the subscriber has no device,
// or the device lacks connection parameters, the router step is skipped.
// A router failure after the insert returns a RouterWarning so the
// caller can report partial success.
func (e *Engine) CreateSubscriber(ctx context.Context, sub *subscriber.Subscriber) error {
	if sub.CustomerID == "" {
		customerID, err := e.subs.NextCustomerID(ctx, time.Now())
		if err != nil {
			return err
		}
		sub.CustomerID = customerID
	}

	if err := e.subs.Create(ctx, sub); err != nil {
		return err
	}

	if sub.DeviceID == nil {
		return nil
	}

	words := []string{
		"/ppp/secret/add",
		"=name=" + sub.Username,
		"=password=" + sub.Password,
		"=service=" + sub.ServiceName,
	}
	if sub.IsDisabled {
		words = append(words, "=disabled=yes")
	}

	if err := e.pushSecret(ctx, *sub.DeviceID, words); err != nil {
		return &RouterWarning{Err: err}
	}
	return nil
}

// UpdateSubscriber applies a partial update and mirrors the changed
// secret fields to the router, addressing the secret by its pre-update
// username in case the update renames it.
func (e *Engine) UpdateSubscriber(ctx context.Context, id int64, params subscriber.UpdateParams) (*subscriber.Subscriber, error) {
	existing, err := e.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := e.subs.Update(ctx, id, params); err != nil {
		return nil, err
	}

	updated, err := e.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if updated.DeviceID == nil {
		return updated, nil
	}

	words := []string{"/ppp/secret/set", "=numbers=" + existing.Username}
	if params.Username != nil {
		words = append(words, "=name="+updated.Username)
	}
	if params.Password != nil {
		words = append(words, "=password="+updated.Password)
	}
	if params.ServiceName != nil {
		words = append(words, "=service="+updated.ServiceName)
	}
	if params.IsDisabled != nil {
		words = append(words, "=disabled="+yesNo(updated.IsDisabled))
	}

	// Nothing router-visible changed.
	if len(words) == 2 {
		return updated, nil
	}

	if err := e.pushSecret(ctx, *updated.DeviceID, words); err != nil {
		return updated, &RouterWarning{Err: err}
	}
	return updated, nil
}

// DeleteSubscriber removes the router secret best effort, then deletes
// the row. A router failure is logged but never blocks the delete.
func (e *Engine) DeleteSubscriber(ctx context.Context, id int64) error {
	sub, err := e.subs.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if sub.DeviceID != nil {
		words := []string{"/ppp/secret/remove", "=numbers=" + sub.Username}
		if err := e.pushSecret(ctx, *sub.DeviceID, words); err != nil {
			e.logger.Warn("router secret removal failed, deleting locally anyway",
				"subscriber_id", sub.ID, "username", sub.Username, "error", err)
		}
	}

	return e.subs.Delete(ctx, id)
}

// pushSecret dials the subscriber's router and runs one secret command.
// Devices without connection parameters are skipped silently: the next
// import will reconcile.
func (e *Engine) pushSecret(ctx context.Context, deviceID int64, words []string) error {
	dev, err := e.devices.GetByID(ctx, deviceID)
	if err != nil {
		return err
	}
	if !dev.HasConnectionParams() {
		e.logger.Info("device has no connection parameters, skipping router push",
			"device_id", dev.ID)
		return nil
	}

	session, err := e.dialDevice(ctx, dev)
	if err != nil {
		return err
	}
	defer session.Close()

	_, err = e.run(ctx, session, dev.ID, words...)
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
