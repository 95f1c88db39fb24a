package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/n1fdx/spotstream/internal/types"
)

// setupRedisClient starts a Redis container and returns a connected client
func setupRedisClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	container, err := rediscontainer.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get Redis connection string: %v", err)
	}

	client, err := New(strings.TrimPrefix(uri, "redis://"))
	if err != nil {
		t.Fatalf("Failed to create Redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestClient_Integration_SnapshotRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := setupRedisClient(t)
	ctx := context.Background()

	km := 8500
	snapshot := map[string]types.BandActivity{
		"20m": {
			Band:              "20m",
			Mode:              "FT8",
			SpotCount:         100,
			BaselineSpotCount: 50,
			TrendPercentage:   100.0,
			MaxDxKm:           &km,
			MaxDxPath:         "JA1ABC → W6XYZ",
			ActivePaths:       []string{"EU-NA", "NA-AS"},
			WindowStart:       time.Date(2026, 9, 1, 11, 45, 0, 0, time.UTC),
			WindowEnd:         time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
			CalculatedAt:      time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		},
		"40m": {
			Band:      "40m",
			Mode:      "CW",
			SpotCount: 12,
		},
	}

	if err := client.PublishBandActivity(ctx, snapshot); err != nil {
		t.Fatalf("PublishBandActivity() failed: %v", err)
	}

	got, err := client.GetBandActivity(ctx)
	if err != nil {
		t.Fatalf("GetBandActivity() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d bands, want 2", len(got))
	}
	activity := got["20m"]
	if activity.MaxDxKm == nil || *activity.MaxDxKm != 8500 {
		t.Errorf("MaxDxKm = %v, want 8500", activity.MaxDxKm)
	}
	if activity.MaxDxPath != "JA1ABC → W6XYZ" {
		t.Errorf("MaxDxPath = %s, want 'JA1ABC → W6XYZ'", activity.MaxDxPath)
	}
	if len(activity.ActivePaths) != 2 {
		t.Errorf("ActivePaths = %v, want 2 entries", activity.ActivePaths)
	}

	if err := client.DeleteBandActivity(ctx); err != nil {
		t.Fatalf("DeleteBandActivity() failed: %v", err)
	}
	got, err = client.GetBandActivity(ctx)
	if err != nil {
		t.Fatalf("GetBandActivity() failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetBandActivity() = %v, want nil after delete", got)
	}
}
