package routeros

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	ros "github.com/go-routeros/routeros/v3"
)

// defaultAPIPort is the RouterOS API port when a device doesn't specify one.
const defaultAPIPort = 8728

// Params holds the connection parameters for a single router.
type Params struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Validate reports whether the parameters are sufficient to dial.
func (p Params) Validate() error {
	if p.Host == "" || p.Username == "" || p.Password == "" {
		return ErrMissingConfig
	}
	return nil
}

// Address returns the host:port dial target, applying the default API
// port when none is set.
func (p Params) Address() string {
	port := p.Port
	if port <= 0 {
		port = defaultAPIPort
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(port))
}

// Session is an open connection to a router's API.
//
// Run executes a single API sentence (command word plus attribute words)
// and returns one attribute map per reply sentence. Close is idempotent.
type Session interface {
	Run(ctx context.Context, words ...string) ([]map[string]string, error)
	Close() error
}

// Dialer opens API sessions. The production implementation dials TCP;
// tests substitute fakes.
type Dialer interface {
	Dial(ctx context.Context, params Params) (Session, error)
}

// NetDialer dials routers over TCP using the RouterOS binary API.
type NetDialer struct {
	// Timeout bounds the dial and login handshake.
	Timeout time.Duration
}

// NewDialer creates a NetDialer with the given connect timeout.
func NewDialer(timeout time.Duration) *NetDialer {
	return &NetDialer{Timeout: timeout}
}

// Dial connects and logs in to the router described by params.
func (d *NetDialer) Dial(ctx context.Context, params Params) (Session, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	timeout := d.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}

	client, err := ros.DialTimeout(params.Address(), params.Username, params.Password, timeout)
	if err != nil {
		return nil, fmt.Errorf("dialling %s: %w", params.Address(), err)
	}

	return &apiSession{client: client}, nil
}

// apiSession wraps the go-routeros client behind the Session interface.
type apiSession struct {
	client *ros.Client
	closed bool
}

// Run executes the sentence and flattens each reply into its attribute map.
func (s *apiSession) Run(ctx context.Context, words ...string) ([]map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reply, err := s.client.Run(words...)
	if err != nil {
		return nil, fmt.Errorf("running %q: %w", words[0], err)
	}

	rows := make([]map[string]string, 0, len(reply.Re))
	for _, sentence := range reply.Re {
		row := make(map[string]string, len(sentence.Map))
		for k, v := range sentence.Map {
			row[k] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Close shuts the connection down. Safe to call more than once.
func (s *apiSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.Close()
	return nil
}
