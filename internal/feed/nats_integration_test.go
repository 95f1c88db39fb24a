package feed

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/testcontainers/testcontainers-go"
	natscontainer "github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/n1fdx/spotstream/internal/types"
)

// setupNATSContainer starts a NATS container for integration tests
func setupNATSContainer(t *testing.T) (*natscontainer.NATSContainer, string) {
	t.Helper()
	ctx := context.Background()

	container, err := natscontainer.Run(ctx, "nats:2.9-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server is ready"),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start NATS container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate NATS container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get NATS connection string: %v", err)
	}

	return container, url
}

func TestNATSTransport_Integration_DeliversMessages(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	_, url := setupNATSContainer(t)

	transport := NewNATSTransport(url, "spots.raw", "test-feed")
	source := NewSource(transport)
	defer source.Close()

	received := make(chan types.RawMessage, 10)
	source.SetMessageHandler(func(msg types.RawMessage) {
		received <- msg
	})

	source.Connect()
	if !source.IsConnected() {
		t.Fatal("source should be connected")
	}

	// Publish a raw spot line with a plain connection
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("Failed to connect publisher: %v", err)
	}
	defer nc.Close()

	// Give the subscription time to establish
	time.Sleep(100 * time.Millisecond)

	line := "SPOT,pskreporter,20m,FT8,14074000,-12,1756728000,W6XYZ,CM87,JA1ABC,PM95"
	if err := nc.Publish("spots.raw", []byte(line)); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Raw != line {
			t.Errorf("Expected raw %q, got %q", line, msg.Raw)
		}
		if msg.Source != "test-feed" {
			t.Errorf("Expected source test-feed, got %s", msg.Source)
		}
		if msg.Timestamp.IsZero() {
			t.Error("Expected non-zero receive timestamp")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for message")
	}

	if !source.IsReceivingMessages() {
		t.Error("source should report receiving messages")
	}
}

func TestNATSTransport_Integration_DisconnectAndReconnect(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	_, url := setupNATSContainer(t)

	transport := NewNATSTransport(url, "spots.raw", "test-feed")
	source := NewSource(transport)
	defer source.Close()

	received := make(chan types.RawMessage, 10)
	source.SetMessageHandler(func(msg types.RawMessage) {
		received <- msg
	})

	source.Connect()
	if !source.IsConnected() {
		t.Fatal("source should be connected")
	}

	source.Disconnect()
	if source.IsConnected() {
		t.Fatal("source should be disconnected")
	}

	source.Connect()
	if !source.IsConnected() {
		t.Fatal("source should be reconnected")
	}

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("Failed to connect publisher: %v", err)
	}
	defer nc.Close()

	time.Sleep(100 * time.Millisecond)

	line := "SPOT,rbn,40m,CW,7025000,22,1756728060,SK3W,JP80,W3LPL,FM19"
	if err := nc.Publish("spots.raw", []byte(line)); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Raw != line {
			t.Errorf("Expected raw %q, got %q", line, msg.Raw)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for message after reconnect")
	}
}
