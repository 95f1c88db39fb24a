package enrich

import (
	"fmt"
	"strings"
)

// GridCenter decodes a Maidenhead locator into the latitude and longitude of
// the cell center. 4-character (field+square) and 6-character (+subsquare)
// locators are accepted.
func GridCenter(grid string) (lat, lon float64, err error) {
	g := strings.ToUpper(strings.TrimSpace(grid))
	if len(g) != 4 && len(g) != 6 {
		return 0, 0, fmt.Errorf("invalid grid length: %q", grid)
	}

	if g[0] < 'A' || g[0] > 'R' || g[1] < 'A' || g[1] > 'R' {
		return 0, 0, fmt.Errorf("invalid grid field: %q", grid)
	}
	if g[2] < '0' || g[2] > '9' || g[3] < '0' || g[3] > '9' {
		return 0, 0, fmt.Errorf("invalid grid square: %q", grid)
	}

	// Field: 20 degrees of longitude, 10 degrees of latitude.
	lon = float64(g[0]-'A')*20 - 180
	lat = float64(g[1]-'A')*10 - 90

	// Square: 2 degrees of longitude, 1 degree of latitude.
	lon += float64(g[2]-'0') * 2
	lat += float64(g[3] - '0')

	if len(g) == 6 {
		if g[4] < 'A' || g[4] > 'X' || g[5] < 'A' || g[5] > 'X' {
			return 0, 0, fmt.Errorf("invalid grid subsquare: %q", grid)
		}
		// Subsquare: 5 minutes of longitude, 2.5 minutes of latitude.
		lon += float64(g[4]-'A') * 5.0 / 60.0
		lat += float64(g[5]-'A') * 2.5 / 60.0
		lon += 2.5 / 60.0
		lat += 1.25 / 60.0
		return lat, lon, nil
	}

	// Center of the 2x1 degree square.
	lon += 1
	lat += 0.5
	return lat, lon, nil
}
