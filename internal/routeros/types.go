package routeros

// ActiveSession is one row of /ppp/active/print: a PPPoE connection
// currently established on the router.
type ActiveSession struct {
	// ID is the router-internal item ID (".id"), used for targeted removal.
	ID string

	// Username is the PPP account name.
	Username string

	// Service is the PPP service type, "pppoe" for subscriber sessions.
	Service string

	// Address is the IP assigned to the session.
	Address string

	// CallerID is the client MAC address.
	CallerID string

	// Uptime is the session duration as reported by the router.
	Uptime string
}

// Secret is one row of /ppp/secret/print: a provisioned PPP account.
type Secret struct {
	// ID is the router-internal item ID (".id").
	ID string

	// Username is the account name.
	Username string

	// Password is the account password. Empty when the router hides it.
	Password string

	// Profile is the PPP profile assigned to the account.
	Profile string

	// RemoteAddress is the static IP assigned to the account, if any.
	RemoteAddress string

	// CallerID is the MAC address the account is pinned to, if any.
	CallerID string

	// Disabled reports whether the account is disabled on the router.
	Disabled bool
}

// DecodeActiveSessions converts raw attribute maps from /ppp/active/print
// into typed sessions. Rows without a name are dropped: a nameless
// session cannot be matched to a subscriber.
func DecodeActiveSessions(rows []map[string]string) []ActiveSession {
	sessions := make([]ActiveSession, 0, len(rows))
	for _, row := range rows {
		name := row["name"]
		if name == "" {
			continue
		}
		sessions = append(sessions, ActiveSession{
			ID:       row[".id"],
			Username: name,
			Service:  row["service"],
			Address:  row["address"],
			CallerID: row["caller-id"],
			Uptime:   row["uptime"],
		})
	}
	return sessions
}

// DecodeSecrets converts raw attribute maps from /ppp/secret/print into
// typed secrets, dropping nameless rows.
func DecodeSecrets(rows []map[string]string) []Secret {
	secrets := make([]Secret, 0, len(rows))
	for _, row := range rows {
		name := row["name"]
		if name == "" {
			continue
		}
		secrets = append(secrets, Secret{
			ID:            row[".id"],
			Username:      name,
			Password:      row["password"],
			Profile:       row["profile"],
			RemoteAddress: row["remote-address"],
			CallerID:      row["caller-id"],
			Disabled:      row["disabled"] == "true" || row["disabled"] == "yes",
		})
	}
	return secrets
}

// SecretsByUsername indexes secrets for the import path's lookups.
func SecretsByUsername(secrets []Secret) map[string]Secret {
	index := make(map[string]Secret, len(secrets))
	for _, s := range secrets {
		index[s.Username] = s
	}
	return index
}
