package sync

import (
	"strings"

	"github.com/reznoir/netward/internal/subscriber"
)

// IsolationPrefix marks the address pool isolated subscribers are parked
// in. An isolated subscriber may still hold a session, but it is fenced
// off from the internet, typically for non-payment.
const IsolationPrefix = "10.127."

// Classify computes a subscriber's status from its stored record and the
// router's live session table.
//
// The stored address wins: a subscriber whose ip_address sits in the
// isolation pool is isolir whether or not a session is up, so a dropped
// session never releases an isolated subscriber. Otherwise a live
// session means online and anything else means offline.
func Classify(sub *subscriber.Subscriber, online map[string]struct{}) subscriber.Status {
	if sub.IPAddress != nil && strings.HasPrefix(*sub.IPAddress, IsolationPrefix) {
		return subscriber.StatusIsolir
	}
	if _, ok := online[sub.Username]; ok {
		return subscriber.StatusOnline
	}
	return subscriber.StatusOffline
}
