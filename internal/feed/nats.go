package feed

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

// NATSTransport delivers raw spot messages from a NATS subject. Reconnection
// is owned by Source, so the underlying connection runs with reconnect
// disabled and reports loss through the onLost callback.
type NATSTransport struct {
	url     string
	subject string
	name    string

	mu      sync.Mutex
	conn    *nats.Conn
	sub     *nats.Subscription
	closing bool
}

// NewNATSTransport creates a transport for the given NATS URL and subject.
// The name identifies the feed in logs and spot records.
func NewNATSTransport(url, subject, name string) *NATSTransport {
	return &NATSTransport{
		url:     url,
		subject: subject,
		name:    name,
	}
}

// Connect opens the NATS connection and subscribes to the spot subject
func (t *NATSTransport) Connect(onMessage func(data []byte), onLost func(err error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil && t.conn.IsConnected() {
		return nil
	}
	t.closing = false

	nc, err := nats.Connect(t.url,
		nats.Name(fmt.Sprintf("spotstream-%s", t.name)),
		nats.NoReconnect(),
		nats.ClosedHandler(func(c *nats.Conn) {
			t.mu.Lock()
			closing := t.closing
			t.mu.Unlock()
			if closing {
				return
			}
			onLost(c.LastError())
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	sub, err := nc.Subscribe(t.subject, func(msg *nats.Msg) {
		onMessage(msg.Data)
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", t.subject, err)
	}

	t.conn = nc
	t.sub = sub
	return nil
}

// Disconnect tears down the subscription and connection. Idempotent.
func (t *NATSTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	t.closing = true

	var err error
	if t.sub != nil {
		err = t.sub.Unsubscribe()
		t.sub = nil
	}
	t.conn.Close()
	t.conn = nil

	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

// Connected reports whether the NATS connection is up
func (t *NATSTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil && t.conn.IsConnected()
}

// Name returns the feed name
func (t *NATSTransport) Name() string {
	return t.name
}
