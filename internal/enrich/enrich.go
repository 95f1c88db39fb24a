// Package enrich holds the pure, idempotent transforms that fill in derived
// Spot fields. Enrichers never mutate their input and are safe to call
// concurrently on different spots.
package enrich

import (
	"math"

	"github.com/n1fdx/spotstream/internal/types"
)

// earthRadiusKm is the mean Earth radius used for great-circle distances.
const earthRadiusKm = 6371.0

// Distance fills in DistanceKm from the two grid squares. A spot that is
// already enriched, or is missing either grid, comes back unchanged.
func Distance(spot types.Spot) types.Spot {
	if spot.DistanceKm != nil {
		return spot
	}
	if spot.SpotterGrid == "" || spot.SpottedGrid == "" {
		return spot
	}

	lat1, lon1, err := GridCenter(spot.SpotterGrid)
	if err != nil {
		return spot
	}
	lat2, lon2, err := GridCenter(spot.SpottedGrid)
	if err != nil {
		return spot
	}

	km := int(math.Round(Haversine(lat1, lon1, lat2, lon2)))
	spot.DistanceKm = &km
	return spot
}

// Continent fills in the continent code for each side whose grid is present
// and whose continent is still absent. Already-set continents are never
// overwritten.
func Continent(spot types.Spot) types.Spot {
	if spot.SpotterContinent == "" {
		spot.SpotterContinent = ContinentForGrid(spot.SpotterGrid)
	}
	if spot.SpottedContinent == "" {
		spot.SpottedContinent = ContinentForGrid(spot.SpottedGrid)
	}
	return spot
}

// ContinentForGrid derives a coarse continent code from the grid's field
// designator: the first letter selects a 20-degree longitude band, the
// second splits it by latitude. Returns "" when the grid is absent or
// unusable.
func ContinentForGrid(grid string) string {
	if len(grid) < 2 {
		return ""
	}
	c1 := upperLetter(grid[0])
	c2 := upperLetter(grid[1])
	if c1 < 'A' || c1 > 'R' || c2 < 'A' || c2 > 'R' {
		return ""
	}

	// Center latitude of the 10-degree field row.
	lat := float64(c2-'A')*10 - 90 + 5

	switch {
	case c1 <= 'B': // mid-Pacific
		return types.ContinentOC
	case c1 <= 'F': // Americas west of 60W
		if lat >= 15 {
			return types.ContinentNA
		}
		return types.ContinentSA
	case c1 == 'G': // 60W-40W
		if lat >= 60 {
			return types.ContinentNA
		}
		return types.ContinentSA
	case c1 <= 'K': // 40W-40E
		if lat >= 35 {
			return types.ContinentEU
		}
		return types.ContinentAF
	default: // 40E-180E
		if lat >= -10 {
			return types.ContinentAS
		}
		return types.ContinentOC
	}
}

func upperLetter(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// Haversine returns the great-circle distance in kilometers between two
// coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
