package types

import (
	"sort"
	"time"
)

// RawMessage represents one raw message received from a spot feed
type RawMessage struct {
	Raw       string    `json:"raw"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Spot represents one observed radio transmission report
type Spot struct {
	Source           string    `json:"source"`
	Band             string    `json:"band"`
	Mode             string    `json:"mode"`
	FrequencyHz      int64     `json:"frequency_hz"`
	SNR              int       `json:"snr"`
	Timestamp        time.Time `json:"timestamp"`
	SpotterCall      string    `json:"spotter_call"`
	SpottedCall      string    `json:"spotted_call"`
	SpotterGrid      string    `json:"spotter_grid,omitempty"`
	SpottedGrid      string    `json:"spotted_grid,omitempty"`
	SpotterContinent string    `json:"spotter_continent,omitempty"`
	SpottedContinent string    `json:"spotted_continent,omitempty"`
	DistanceKm       *int      `json:"distance_km,omitempty"`
}

// BandActivity represents a windowed activity summary for one band
type BandActivity struct {
	Band              string    `json:"band"`
	Mode              string    `json:"mode"`
	SpotCount         int       `json:"spot_count"`
	BaselineSpotCount int       `json:"baseline_spot_count"`
	TrendPercentage   float64   `json:"trend_percentage"`
	MaxDxKm           *int      `json:"max_dx_km,omitempty"`
	MaxDxPath         string    `json:"max_dx_path,omitempty"`
	ActivePaths       []string  `json:"active_paths"`
	WindowStart       time.Time `json:"window_start"`
	WindowEnd         time.Time `json:"window_end"`
	CalculatedAt      time.Time `json:"calculated_at"`
}

// ContinentPairCount is one row of a grouped continent-pair query,
// directional as stored (spotter side, spotted side)
type ContinentPairCount struct {
	SpotterContinent string
	SpottedContinent string
	Count            int
}

// Continent codes derived from Maidenhead grid fields
const (
	ContinentNA = "NA"
	ContinentSA = "SA"
	ContinentEU = "EU"
	ContinentAF = "AF"
	ContinentAS = "AS"
	ContinentOC = "OC"
)

// PathKey returns the canonical identifier for an unordered continent pair.
// PathKey("EU", "NA") and PathKey("NA", "EU") return the same key.
func PathKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + "-" + pair[1]
}

// majorPaths is the fixed enumeration of continent pairs tracked as
// propagation paths. Pairs outside this set are ignored by the aggregator.
var majorPaths = map[string]bool{
	PathKey(ContinentNA, ContinentEU): true,
	PathKey(ContinentNA, ContinentAS): true,
	PathKey(ContinentNA, ContinentSA): true,
	PathKey(ContinentNA, ContinentOC): true,
	PathKey(ContinentEU, ContinentAS): true,
	PathKey(ContinentEU, ContinentAF): true,
	PathKey(ContinentEU, ContinentSA): true,
	PathKey(ContinentAS, ContinentOC): true,
}

// IsMajorPath reports whether the pair of continent codes is one of the
// tracked propagation paths, in either order.
func IsMajorPath(a, b string) bool {
	return majorPaths[PathKey(a, b)]
}
