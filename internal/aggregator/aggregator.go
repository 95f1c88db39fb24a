// Package aggregator recomputes per-band activity summaries over sliding
// time windows from persisted spots. It reads only the durable store, never
// the live stream, so aggregation cadence is independent of ingestion rate.
package aggregator

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/n1fdx/spotstream/internal/types"
)

const (
	// defaultMode is assumed for a band with no recent spots.
	defaultMode = "FT8"

	// modeLookback is the window used to detect the dominant mode.
	modeLookback = 15 * time.Minute

	// bandLookback is the window used to discover bands with any activity.
	bandLookback = 2 * time.Hour

	// pathThreshold is the spot count a continent pair must exceed to
	// qualify as an active path.
	pathThreshold = 5
)

// modeWindows maps a detected mode to its aggregation window length.
// Fast digital modes burst often and need a short window; slower modes
// need a longer one so the trend is not dominated by noise.
var modeWindows = map[string]time.Duration{
	"FT8":  15 * time.Minute,
	"FT4":  15 * time.Minute,
	"CW":   30 * time.Minute,
	"RTTY": 30 * time.Minute,
	"SSB":  20 * time.Minute,
}

const defaultWindow = 15 * time.Minute

// SpotQueries is the read contract the aggregator needs from the durable
// store, parameterized by band and time range.
type SpotQueries interface {
	CountSpots(ctx context.Context, band string, from, to time.Time) (int, error)
	ModeCounts(ctx context.Context, band string, from, to time.Time) (map[string]int, error)
	MaxDistanceSpot(ctx context.Context, band string, from, to time.Time) (*types.Spot, error)
	ContinentPairCounts(ctx context.Context, band string, from, to time.Time) ([]types.ContinentPairCount, error)
	ActiveBands(ctx context.Context, since time.Time) ([]string, error)
}

// Notifier receives the complete band activity mapping once per cycle
type Notifier interface {
	PublishBandActivity(ctx context.Context, activities map[string]types.BandActivity) error
}

// Aggregator computes windowed band activity summaries
type Aggregator struct {
	store    SpotQueries
	notifier Notifier
	clock    clockwork.Clock
}

// New creates an Aggregator over the given store. The notifier may be nil
// when no publication is wanted.
func New(store SpotQueries, notifier Notifier) *Aggregator {
	return newAggregator(store, notifier, clockwork.NewRealClock())
}

func newAggregator(store SpotQueries, notifier Notifier, clock clockwork.Clock) *Aggregator {
	return &Aggregator{
		store:    store,
		notifier: notifier,
		clock:    clock,
	}
}

// AggregateBand computes a fresh activity summary for one band
func (a *Aggregator) AggregateBand(ctx context.Context, band string) (types.BandActivity, error) {
	now := a.clock.Now().UTC()

	mode, err := a.detectMode(ctx, band, now)
	if err != nil {
		return types.BandActivity{}, fmt.Errorf("failed to detect mode for %s: %w", band, err)
	}

	window := windowForMode(mode)
	windowStart := now.Add(-window)

	current, err := a.store.CountSpots(ctx, band, windowStart, now)
	if err != nil {
		return types.BandActivity{}, fmt.Errorf("failed to count spots for %s: %w", band, err)
	}

	baseline, err := a.store.CountSpots(ctx, band, windowStart.Add(-window), windowStart)
	if err != nil {
		return types.BandActivity{}, fmt.Errorf("failed to count baseline for %s: %w", band, err)
	}

	activity := types.BandActivity{
		Band:              band,
		Mode:              mode,
		SpotCount:         current,
		BaselineSpotCount: baseline,
		TrendPercentage:   trendPercentage(current, baseline),
		ActivePaths:       []string{},
		WindowStart:       windowStart,
		WindowEnd:         now,
		CalculatedAt:      now,
	}

	dx, err := a.store.MaxDistanceSpot(ctx, band, windowStart, now)
	if err != nil {
		return types.BandActivity{}, fmt.Errorf("failed to find max DX for %s: %w", band, err)
	}
	if dx != nil && dx.DistanceKm != nil {
		km := *dx.DistanceKm
		activity.MaxDxKm = &km
		activity.MaxDxPath = fmt.Sprintf("%s → %s",
			strings.ToUpper(dx.SpottedCall), strings.ToUpper(dx.SpotterCall))
	}

	pairs, err := a.store.ContinentPairCounts(ctx, band, windowStart, now)
	if err != nil {
		return types.BandActivity{}, fmt.Errorf("failed to count continent pairs for %s: %w", band, err)
	}
	activity.ActivePaths = activePaths(pairs)

	return activity, nil
}

// AggregateAllBands discovers bands with recent activity and aggregates each
// independently. A failing band is logged and skipped; it never blanks out
// the rest of the result.
func (a *Aggregator) AggregateAllBands(ctx context.Context) (map[string]types.BandActivity, error) {
	now := a.clock.Now().UTC()

	bands, err := a.store.ActiveBands(ctx, now.Add(-bandLookback))
	if err != nil {
		return nil, fmt.Errorf("failed to discover active bands: %w", err)
	}

	activities := make(map[string]types.BandActivity, len(bands))
	for _, band := range bands {
		activity, err := a.AggregateBand(ctx, band)
		if err != nil {
			log.Printf("aggregator: skipping band %s: %v", band, err)
			continue
		}
		activities[band] = activity
	}
	return activities, nil
}

// RunCycle aggregates all bands and publishes the complete mapping as one
// event. The mapping is never published incrementally per band.
func (a *Aggregator) RunCycle(ctx context.Context) error {
	activities, err := a.AggregateAllBands(ctx)
	if err != nil {
		return err
	}

	if a.notifier == nil || len(activities) == 0 {
		return nil
	}
	if err := a.notifier.PublishBandActivity(ctx, activities); err != nil {
		return fmt.Errorf("failed to publish band activity: %w", err)
	}
	return nil
}

// detectMode returns the most frequent mode in the recent lookback, or the
// default digital mode when the band is quiet.
func (a *Aggregator) detectMode(ctx context.Context, band string, now time.Time) (string, error) {
	counts, err := a.store.ModeCounts(ctx, band, now.Add(-modeLookback), now)
	if err != nil {
		return "", err
	}

	mode := defaultMode
	best := 0
	for m, n := range counts {
		// Ties break lexically so repeated runs agree.
		if n > best || (n == best && n > 0 && m < mode) {
			mode = m
			best = n
		}
	}
	return mode, nil
}

func windowForMode(mode string) time.Duration {
	if w, ok := modeWindows[mode]; ok {
		return w
	}
	return defaultWindow
}

// trendPercentage is always finite: 100% when activity appears from a silent
// baseline, 0% when both windows are silent.
func trendPercentage(current, baseline int) float64 {
	switch {
	case baseline > 0:
		return float64(current-baseline) / float64(baseline) * 100
	case current > 0:
		return 100.0
	default:
		return 0.0
	}
}

// activePaths folds directional pair counts into undirected path keys and
// keeps the major paths whose totals exceed the threshold.
func activePaths(pairs []types.ContinentPairCount) []string {
	totals := make(map[string]int)
	for _, p := range pairs {
		if p.SpotterContinent == "" || p.SpottedContinent == "" {
			continue
		}
		if !types.IsMajorPath(p.SpotterContinent, p.SpottedContinent) {
			continue
		}
		totals[types.PathKey(p.SpotterContinent, p.SpottedContinent)] += p.Count
	}

	paths := make([]string, 0, len(totals))
	for key, n := range totals {
		if n > pathThreshold {
			paths = append(paths, key)
		}
	}
	sort.Strings(paths)
	return paths
}
