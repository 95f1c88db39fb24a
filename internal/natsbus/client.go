package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/n1fdx/spotstream/internal/types"
	"github.com/nats-io/nats.go"
)

const (
	SubjectBandActivity = "spots.bandactivity"
)

// Client represents a NATS client for band activity events
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New creates a new NATS client
func New(url string) (*Client, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	// Create stream if it doesn't exist
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     "BAND_ACTIVITY",
		Subjects: []string{SubjectBandActivity},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour,
	})
	if err != nil && !strings.Contains(err.Error(), "stream name already in use") {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Client{
		conn: nc,
		js:   js,
	}, nil
}

// PublishBandActivity publishes a full band activity snapshot as one event.
func (c *Client) PublishBandActivity(ctx context.Context, activity map[string]types.BandActivity) error {
	data, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal band activity: %w", err)
	}

	_, err = c.js.Publish(SubjectBandActivity, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish band activity: %w", err)
	}

	return nil
}

// SubscribeBandActivity subscribes to band activity snapshots
func (c *Client) SubscribeBandActivity(handler func(map[string]types.BandActivity)) error {
	_, err := c.js.Subscribe(SubjectBandActivity, func(msg *nats.Msg) {
		var activity map[string]types.BandActivity
		if err := json.Unmarshal(msg.Data, &activity); err != nil {
			fmt.Printf("Error unmarshaling band activity: %v\n", err)
			return
		}
		handler(activity)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	return nil
}

// Close closes the NATS connection
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
