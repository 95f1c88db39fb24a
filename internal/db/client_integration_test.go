package db

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/n1fdx/spotstream/internal/types"
)

const spotsSchema = `
CREATE TABLE IF NOT EXISTS spots (
	time TIMESTAMPTZ NOT NULL,
	source TEXT NOT NULL,
	band TEXT NOT NULL,
	mode TEXT NOT NULL,
	frequency_hz BIGINT NOT NULL,
	snr INTEGER NOT NULL,
	spotter_call TEXT NOT NULL,
	spotted_call TEXT NOT NULL,
	spotter_grid TEXT NOT NULL DEFAULT '',
	spotted_grid TEXT NOT NULL DEFAULT '',
	spotter_continent TEXT NOT NULL DEFAULT '',
	spotted_continent TEXT NOT NULL DEFAULT '',
	distance_km INTEGER
);
CREATE INDEX IF NOT EXISTS idx_spots_band_time ON spots (band, time);
`

// setupPostgresClient starts a Postgres container and returns a connected client
func setupPostgresClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	container, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("spots"),
		postgrescontainer.WithUsername("spots"),
		postgrescontainer.WithPassword("spots"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate Postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	client, err := New(connStr)
	if err != nil {
		t.Fatalf("Failed to create database client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if _, err := client.db.ExecContext(ctx, spotsSchema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return client
}

func integrationSpots(now time.Time) []types.Spot {
	far := 8500
	near := 1200
	return []types.Spot{
		{
			Source: "pskreporter", Band: "20m", Mode: "FT8", FrequencyHz: 14074000, SNR: -12,
			Timestamp: now.Add(-5 * time.Minute), SpotterCall: "W6XYZ", SpottedCall: "JA1ABC",
			SpotterGrid: "CM87", SpottedGrid: "PM95",
			SpotterContinent: types.ContinentNA, SpottedContinent: types.ContinentAS,
			DistanceKm: &far,
		},
		{
			Source: "pskreporter", Band: "20m", Mode: "FT8", FrequencyHz: 14074000, SNR: 3,
			Timestamp: now.Add(-10 * time.Minute), SpotterCall: "SM5AAA", SpottedCall: "DL1BBB",
			SpotterGrid: "JO89", SpottedGrid: "JO62",
			SpotterContinent: types.ContinentEU, SpottedContinent: types.ContinentEU,
			DistanceKm: &near,
		},
		{
			Source: "rbn", Band: "20m", Mode: "CW", FrequencyHz: 14025000, SNR: 22,
			Timestamp: now.Add(-7 * time.Minute), SpotterCall: "SK3W", SpottedCall: "W3LPL",
			SpotterContinent: types.ContinentEU, SpottedContinent: types.ContinentNA,
		},
		{
			Source: "rbn", Band: "40m", Mode: "CW", FrequencyHz: 7025000, SNR: 15,
			Timestamp: now.Add(-90 * time.Minute), SpotterCall: "VE3NEA", SpottedCall: "G4ABC",
		},
	}
}

func TestClient_Integration_SaveAndQuery(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := setupPostgresClient(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := client.SaveSpotBatch(ctx, integrationSpots(now)); err != nil {
		t.Fatalf("SaveSpotBatch() failed: %v", err)
	}

	t.Run("CountSpots", func(t *testing.T) {
		count, err := client.CountSpots(ctx, "20m", now.Add(-15*time.Minute), now)
		if err != nil {
			t.Fatalf("CountSpots() failed: %v", err)
		}
		if count != 3 {
			t.Errorf("CountSpots() = %d, want 3", count)
		}
	})

	t.Run("CountSpots excludes other windows", func(t *testing.T) {
		count, err := client.CountSpots(ctx, "40m", now.Add(-15*time.Minute), now)
		if err != nil {
			t.Fatalf("CountSpots() failed: %v", err)
		}
		if count != 0 {
			t.Errorf("CountSpots() = %d, want 0 for spot outside window", count)
		}
	})

	t.Run("ModeCounts", func(t *testing.T) {
		counts, err := client.ModeCounts(ctx, "20m", now.Add(-15*time.Minute), now)
		if err != nil {
			t.Fatalf("ModeCounts() failed: %v", err)
		}
		if counts["FT8"] != 2 || counts["CW"] != 1 {
			t.Errorf("ModeCounts() = %v, want FT8:2 CW:1", counts)
		}
	})

	t.Run("MaxDistanceSpot", func(t *testing.T) {
		spot, err := client.MaxDistanceSpot(ctx, "20m", now.Add(-15*time.Minute), now)
		if err != nil {
			t.Fatalf("MaxDistanceSpot() failed: %v", err)
		}
		if spot == nil {
			t.Fatal("MaxDistanceSpot() returned nil")
		}
		if spot.DistanceKm == nil || *spot.DistanceKm != 8500 {
			t.Errorf("DistanceKm = %v, want 8500", spot.DistanceKm)
		}
		if spot.SpottedCall != "JA1ABC" {
			t.Errorf("SpottedCall = %s, want JA1ABC", spot.SpottedCall)
		}
	})

	t.Run("MaxDistanceSpot ignores unenriched rows", func(t *testing.T) {
		spot, err := client.MaxDistanceSpot(ctx, "40m", now.Add(-2*time.Hour), now)
		if err != nil {
			t.Fatalf("MaxDistanceSpot() failed: %v", err)
		}
		if spot != nil {
			t.Errorf("MaxDistanceSpot() = %+v, want nil when no row has a distance", spot)
		}
	})

	t.Run("ContinentPairCounts", func(t *testing.T) {
		pairs, err := client.ContinentPairCounts(ctx, "20m", now.Add(-15*time.Minute), now)
		if err != nil {
			t.Fatalf("ContinentPairCounts() failed: %v", err)
		}
		found := make(map[string]int)
		for _, pair := range pairs {
			found[pair.SpotterContinent+"/"+pair.SpottedContinent] = pair.Count
		}
		if found["NA/AS"] != 1 || found["EU/EU"] != 1 || found["EU/NA"] != 1 {
			t.Errorf("ContinentPairCounts() = %v, want NA/AS, EU/EU and EU/NA once each", found)
		}
	})

	t.Run("ActiveBands", func(t *testing.T) {
		bands, err := client.ActiveBands(ctx, now.Add(-2*time.Hour))
		if err != nil {
			t.Fatalf("ActiveBands() failed: %v", err)
		}
		if len(bands) != 2 || bands[0] != "20m" || bands[1] != "40m" {
			t.Errorf("ActiveBands() = %v, want [20m 40m]", bands)
		}
	})
}

func TestClient_Integration_EmptyBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := setupPostgresClient(t)
	if err := client.SaveSpotBatch(context.Background(), nil); err != nil {
		t.Errorf("SaveSpotBatch(nil) failed: %v", err)
	}
}
