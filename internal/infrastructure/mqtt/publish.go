package mqtt

import (
	"encoding/json"

	syncengine "github.com/reznoir/netward/internal/sync"
)

// NotifyStatus implements sync.StatusNotifier by publishing each delta
// retained to its subscriber topic. Deltas are dropped with a warning
// while the broker is unreachable; the dashboard WebSocket remains the
// primary delivery path.
func (p *Publisher) NotifyStatus(deltas []syncengine.StatusDelta) {
	if !p.IsConnected() {
		p.logger.Warn("broker unavailable, dropping status deltas", "count", len(deltas))
		return
	}

	for _, delta := range deltas {
		payload, err := json.Marshal(delta)
		if err != nil {
			p.logger.Warn("marshalling status delta", "username", delta.Username, "error", err)
			continue
		}

		topic := SubscriberStatusTopic(delta.Username)
		token := p.client.Publish(topic, byte(p.cfg.QoS), true, payload)
		if !token.WaitTimeout(defaultPublishTimeout) {
			p.logger.Warn("status publish timed out", "topic", topic)
			continue
		}
		if err := token.Error(); err != nil {
			p.logger.Warn("status publish failed", "topic", topic, "error", err)
		}
	}
}
