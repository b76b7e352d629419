package sync

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/reznoir/netward/internal/routeros"
	"github.com/reznoir/netward/internal/subscriber"
)

// unknownPassword is recorded for imported subscribers whose router
// secret is missing or hides its password. The operator fixes these up
// manually; pushing "unknown" back to the router is never done.
const unknownPassword = "unknown"

// ImportResult summarises one import pass against a router.
type ImportResult struct {
	// DeviceID is the router the pass ran against.
	DeviceID int64 `json:"device_id"`

	// TotalActive is how many active PPPoE sessions the router reported.
	TotalActive int `json:"total_active"`

	// Synced counts every row written, created plus updated.
	Synced int `json:"synced"`

	// Created and Updated break Synced down by write kind.
	Created int `json:"created"`
	Updated int `json:"updated"`

	// Errors counts sessions that could not be upserted. The pass
	// continues past individual failures.
	Errors int `json:"errors"`

	// FirstError carries the first upsert failure, for the operator.
	FirstError string `json:"first_error,omitempty"`
}

// ImportFromRouter pulls the router's active PPPoE sessions and upserts
// a subscriber row for each, keyed by username.
//
// New subscribers get a generated customer ID and the password from the
// router's secret table when available. Existing subscribers keep their
// descriptive fields (name, address, phone, coordinates); ownership,
// service name, disabled flag, password, and ip/mac (session first,
// secret as fallback) are refreshed. Individual row failures are counted
// and skipped, never aborting the pass.
func (e *Engine) ImportFromRouter(ctx context.Context, deviceID int64) (*ImportResult, error) {
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
	active := routeros.DecodeActiveSessions(rows)

	// Secrets are best effort: some deployments restrict the API user to
	// read active sessions only.
	secrets := map[string]routeros.Secret{}
	secretRows, err := e.run(ctx, session, dev.ID, "/ppp/secret/print")
	if err != nil {
		e.logger.Warn("secret listing unavailable, importing without passwords",
			"device_id", dev.ID, "error", err)
	} else {
		secrets = routeros.SecretsByUsername(routeros.DecodeSecrets(secretRows))
	}

	result := &ImportResult{DeviceID: dev.ID, TotalActive: len(active)}
	for _, sess := range active {
		if err := e.upsertSession(ctx, dev.ID, sess, secrets, result); err != nil {
			result.Errors++
			if result.FirstError == "" {
				result.FirstError = err.Error()
			}
			e.logger.Warn("import upsert failed",
				"device_id", dev.ID, "username", sess.Username, "error", err)
		}
	}

	result.Synced = result.Created + result.Updated

	e.logger.Info("import complete",
		"device_id", dev.ID,
		"total_active", result.TotalActive,
		"created", result.Created,
		"updated", result.Updated,
		"errors", result.Errors,
	)

	return result, nil
}

// upsertSession reconciles one active session into the store.
func (e *Engine) upsertSession(ctx context.Context, deviceID int64, sess routeros.ActiveSession, secrets map[string]routeros.Secret, result *ImportResult) error {
	existing, err := e.subs.GetByUsername(ctx, sess.Username)

	switch {
	case errors.Is(err, subscriber.ErrNotFound):
		sub := e.newSubscriberFromSession(deviceID, sess, secrets)

		customerID, idErr := e.subs.NextCustomerID(ctx, time.Now())
		if idErr != nil {
			return idErr
		}
		sub.CustomerID = customerID

		if createErr := e.subs.Create(ctx, sub); createErr != nil {
			return createErr
		}
		result.Created++
		return nil

	case err != nil:
		return err

	default:
		sec, hasSecret := secrets[sess.Username]

		params := subscriber.UpdateParams{DeviceID: &deviceID}
		if sess.Service != "" {
			service := sess.Service
			params.ServiceName = &service
		}
		if hasSecret {
			disabled := sec.Disabled
			params.IsDisabled = &disabled
			if sec.Password != "" && sec.Password != existing.Password {
				params.Password = &sec.Password
			}
		}
		if ip := sessionAddress(sess, sec); ip != "" {
			params.IPAddress = &ip
		}
		if mac := sessionCallerID(sess, sec); mac != "" {
			params.MACAddress = &mac
		}

		if updateErr := e.subs.Update(ctx, existing.ID, params); updateErr != nil {
			return updateErr
		}

		refreshed := *existing
		if params.IPAddress != nil {
			refreshed.IPAddress = params.IPAddress
		}
		status := Classify(&refreshed, map[string]struct{}{sess.Username: {}})
		if status != existing.Status {
			if statusErr := e.subs.UpdateStatus(ctx, existing.ID, status); statusErr != nil {
				return statusErr
			}
		}
		result.Updated++
		return nil
	}
}

// sessionAddress returns the session's IP, falling back to the secret's
// static remote-address when the session withheld one.
func sessionAddress(sess routeros.ActiveSession, sec routeros.Secret) string {
	if sess.Address != "" {
		return sess.Address
	}
	return sec.RemoteAddress
}

// sessionCallerID returns the session's MAC, falling back to the secret's
// pinned caller-id.
func sessionCallerID(sess routeros.ActiveSession, sec routeros.Secret) string {
	if sess.CallerID != "" {
		return sess.CallerID
	}
	return sec.CallerID
}

// newSubscriberFromSession builds a fresh row for a session with no
// matching subscriber. The display name starts as the uppercased
// username until an operator fills in the real one.
func (e *Engine) newSubscriberFromSession(deviceID int64, sess routeros.ActiveSession, secrets map[string]routeros.Secret) *subscriber.Subscriber {
	sec, hasSecret := secrets[sess.Username]

	password := unknownPassword
	disabled := false
	if hasSecret {
		if sec.Password != "" {
			password = sec.Password
		}
		disabled = sec.Disabled
	}

	sub := &subscriber.Subscriber{
		Username:   sess.Username,
		FullName:   strings.ToUpper(sess.Username),
		Password:   password,
		IsDisabled: disabled,
		DeviceID:   &deviceID,
	}
	if sess.Service != "" {
		sub.ServiceName = sess.Service
	}
	if ip := sessionAddress(sess, sec); ip != "" {
		sub.IPAddress = &ip
	}
	if mac := sessionCallerID(sess, sec); mac != "" {
		sub.MACAddress = &mac
	}
	sub.Status = Classify(sub, map[string]struct{}{sess.Username: {}})
	return sub
}
