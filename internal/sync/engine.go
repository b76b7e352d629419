package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/reznoir/netward/internal/device"
	"github.com/reznoir/netward/internal/routeros"
	"github.com/reznoir/netward/internal/subscriber"
)

const (
	// defaultBatchSize limits how many status writes run concurrently.
	defaultBatchSize = 10

	// defaultCommandTimeout bounds each router command.
	defaultCommandTimeout = 10 * time.Second
)

// Engine reconciles the subscriber store with router state.
type Engine struct {
	subs       subscriber.Repository
	devices    device.Repository
	dialer     routeros.Dialer
	notifier   StatusNotifier
	logger     *slog.Logger
	batchSize  int
	cmdTimeout time.Duration
}

// Config wires an Engine's collaborators. Subscribers, Devices and Dialer
// are required; the rest default sensibly.
type Config struct {
	Subscribers    subscriber.Repository
	Devices        device.Repository
	Dialer         routeros.Dialer
	Notifier       StatusNotifier
	Logger         *slog.Logger
	BatchSize      int
	CommandTimeout time.Duration
}

// NewEngine creates a reconciliation engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}

	return &Engine{
		subs:       cfg.Subscribers,
		devices:    cfg.Devices,
		dialer:     cfg.Dialer,
		notifier:   cfg.Notifier,
		logger:     cfg.Logger.With("component", "sync"),
		batchSize:  cfg.BatchSize,
		cmdTimeout: cfg.CommandTimeout,
	}
}

// dialDevice opens a session to the device's router, verifying the
// device carries usable connection parameters first.
func (e *Engine) dialDevice(ctx context.Context, dev *device.Device) (routeros.Session, error) {
	if !dev.HasConnectionParams() {
		return nil, &routeros.DeviceError{DeviceID: dev.ID, Op: "dial", Err: routeros.ErrMissingConfig}
	}

	session, err := e.dialer.Dial(ctx, routeros.Params{
		Host:     dev.Host,
		Port:     dev.Port,
		Username: dev.Username,
		Password: dev.Password,
	})
	if err != nil {
		return nil, &routeros.DeviceError{DeviceID: dev.ID, Op: "dial", Err: err}
	}
	return session, nil
}

// run executes one router command with the engine's command timeout.
// The router protocol has no cancellation, so a hung command is abandoned
// to its goroutine and the caller gets a timeout error.
func (e *Engine) run(ctx context.Context, session routeros.Session, deviceID int64, words ...string) ([]map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cmdTimeout)
	defer cancel()

	type reply struct {
		rows []map[string]string
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		rows, err := session.Run(ctx, words...)
		ch <- reply{rows: rows, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, &routeros.DeviceError{DeviceID: deviceID, Op: words[0], Err: ctx.Err()}
	case r := <-ch:
		if r.err != nil {
			return nil, &routeros.DeviceError{DeviceID: deviceID, Op: words[0], Err: r.err}
		}
		return r.rows, nil
	}
}
