package testutils

import (
	"context"
	"fmt"
	"time"

	"github.com/n1fdx/spotstream/internal/types"
)

// MockSpotLine builds a valid raw spot line for testing
func MockSpotLine(band, mode, spotterCall, spottedCall string) string {
	return fmt.Sprintf("SPOT,test-feed,%s,%s,14074000,-12,%d,%s,CM87,%s,PM95",
		band, mode, time.Now().Unix(), spotterCall, spottedCall)
}

// MockSpot builds a parsed, unenriched spot for testing
func MockSpot(band, mode string) types.Spot {
	return types.Spot{
		Source:      "test-feed",
		Band:        band,
		Mode:        mode,
		FrequencyHz: 14074000,
		SNR:         -12,
		Timestamp:   time.Now().UTC(),
		SpotterCall: "W6XYZ",
		SpottedCall: "JA1ABC",
		SpotterGrid: "CM87",
		SpottedGrid: "PM95",
	}
}

// MockEnrichedSpot builds a fully enriched spot with the given distance
func MockEnrichedSpot(band, mode string, distanceKm int) types.Spot {
	spot := MockSpot(band, mode)
	spot.DistanceKm = &distanceKm
	spot.SpotterContinent = types.ContinentNA
	spot.SpottedContinent = types.ContinentAS
	return spot
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(condition func() bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for condition")
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}
