package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/reznoir/netward/internal/infrastructure/config"
)

const (
	// defaultConnectTimeout bounds the initial broker handshake.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout bounds individual publish waits.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce gives pending publishes time to flush (ms).
	defaultDisconnectQuiesce = 250

	// reconnectMaxInterval caps paho's reconnect backoff.
	reconnectMaxInterval = 30 * time.Second
)

// Publisher mirrors status events to an MQTT broker.
//
// All methods are safe for concurrent use. The paho client reconnects
// automatically with backoff; publishes while disconnected are dropped
// and logged, never blocking the sync engine.
type Publisher struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	logger *slog.Logger

	connected bool
	connMu    stdsync.RWMutex
}

// Connect establishes a connection to the MQTT broker and publishes the
// service's online status.
func Connect(cfg config.MQTTConfig, logger *slog.Logger) (*Publisher, error) {
	p := &Publisher{
		cfg:    cfg,
		logger: logger.With("component", "mqtt"),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(reconnectMaxInterval).
		SetWill(SystemStatusTopic(), `{"status":"offline"}`, byte(cfg.QoS), true)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetOnConnectHandler(func(client pahomqtt.Client) {
		p.connMu.Lock()
		p.connected = true
		p.connMu.Unlock()

		client.Publish(SystemStatusTopic(), byte(cfg.QoS), true, `{"status":"online"}`)
		p.logger.Info("broker connected", "host", cfg.Host, "port", cfg.Port)
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.connMu.Lock()
		p.connected = false
		p.connMu.Unlock()

		p.logger.Warn("broker connection lost", "error", err)
	})

	p.client = pahomqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously and may not have fired
	// yet; mark connected here so IsConnected is immediately true.
	p.connMu.Lock()
	p.connected = true
	p.connMu.Unlock()

	return p, nil
}

// Close publishes a graceful offline status and disconnects.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}

	if p.IsConnected() {
		token := p.client.Publish(SystemStatusTopic(), byte(p.cfg.QoS), true, `{"status":"offline"}`)
		token.WaitTimeout(defaultPublishTimeout)
	}

	p.client.Disconnect(defaultDisconnectQuiesce)

	p.connMu.Lock()
	p.connected = false
	p.connMu.Unlock()

	return nil
}

// HealthCheck verifies the broker connection is alive.
func (p *Publisher) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !p.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the current connection state.
func (p *Publisher) IsConnected() bool {
	p.connMu.RLock()
	defer p.connMu.RUnlock()
	return p.connected && p.client.IsConnected()
}
