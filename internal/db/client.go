package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/n1fdx/spotstream/internal/types"
)

type Client struct {
	db *sql.DB
}

// New creates a new database client
func New(connStr string) (*Client, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// SaveSpotBatch persists one batch of spots as a single COPY
func (c *Client) SaveSpotBatch(ctx context.Context, spots []types.Spot) error {
	if len(spots) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("spots",
		"time", "source", "band", "mode", "frequency_hz", "snr",
		"spotter_call", "spotted_call", "spotter_grid", "spotted_grid",
		"spotter_continent", "spotted_continent", "distance_km",
	))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, s := range spots {
		var distance sql.NullInt64
		if s.DistanceKm != nil {
			distance = sql.NullInt64{Int64: int64(*s.DistanceKm), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			s.Timestamp, s.Source, s.Band, s.Mode, s.FrequencyHz, s.SNR,
			s.SpotterCall, s.SpottedCall, s.SpotterGrid, s.SpottedGrid,
			s.SpotterContinent, s.SpottedContinent, distance,
		); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("failed to buffer spot: %w", err)
		}
	}

	// Flush the COPY.
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// CountSpots counts spots for a band within a time range
func (c *Client) CountSpots(ctx context.Context, band string, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM spots
		WHERE band = $1 AND time >= $2 AND time < $3
	`
	var count int
	if err := c.db.QueryRowContext(ctx, query, band, from, to).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ModeCounts returns the distribution of modes for a band within a time range
func (c *Client) ModeCounts(ctx context.Context, band string, from, to time.Time) (map[string]int, error) {
	query := `
		SELECT mode, COUNT(*)
		FROM spots
		WHERE band = $1 AND time >= $2 AND time < $3
		GROUP BY mode
	`
	rows, err := c.db.QueryContext(ctx, query, band, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var mode string
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			return nil, err
		}
		counts[mode] = count
	}
	return counts, rows.Err()
}

// MaxDistanceSpot returns the spot with the greatest distance for a band
// within a time range, or nil when no spot in the range carries a distance
func (c *Client) MaxDistanceSpot(ctx context.Context, band string, from, to time.Time) (*types.Spot, error) {
	query := `
		SELECT time, source, band, mode, frequency_hz, snr,
			spotter_call, spotted_call, spotter_grid, spotted_grid,
			spotter_continent, spotted_continent, distance_km
		FROM spots
		WHERE band = $1 AND time >= $2 AND time < $3 AND distance_km IS NOT NULL
		ORDER BY distance_km DESC
		LIMIT 1
	`
	var s types.Spot
	var distance sql.NullInt64
	err := c.db.QueryRowContext(ctx, query, band, from, to).Scan(
		&s.Timestamp, &s.Source, &s.Band, &s.Mode, &s.FrequencyHz, &s.SNR,
		&s.SpotterCall, &s.SpottedCall, &s.SpotterGrid, &s.SpottedGrid,
		&s.SpotterContinent, &s.SpottedContinent, &distance,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if distance.Valid {
		km := int(distance.Int64)
		s.DistanceKm = &km
	}
	return &s, nil
}

// ContinentPairCounts returns directional continent-pair counts for a band
// within a time range; rows missing either continent are excluded
func (c *Client) ContinentPairCounts(ctx context.Context, band string, from, to time.Time) ([]types.ContinentPairCount, error) {
	query := `
		SELECT spotter_continent, spotted_continent, COUNT(*)
		FROM spots
		WHERE band = $1 AND time >= $2 AND time < $3
			AND spotter_continent <> '' AND spotted_continent <> ''
		GROUP BY spotter_continent, spotted_continent
	`
	rows, err := c.db.QueryContext(ctx, query, band, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []types.ContinentPairCount
	for rows.Next() {
		var p types.ContinentPairCount
		if err := rows.Scan(&p.SpotterContinent, &p.SpottedContinent, &p.Count); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// ActiveBands returns the distinct bands with any spot since the given time
func (c *Client) ActiveBands(ctx context.Context, since time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT band
		FROM spots
		WHERE time >= $1
		ORDER BY band
	`
	rows, err := c.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bands []string
	for rows.Next() {
		var band string
		if err := rows.Scan(&band); err != nil {
			return nil, err
		}
		bands = append(bands, band)
	}
	return bands, rows.Err()
}
