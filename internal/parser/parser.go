package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/n1fdx/spotstream/internal/types"
)

// Field layout of one spot line:
// SPOT,<source>,<band>,<mode>,<freq-hz>,<snr-db>,<unix-seconds>,<spotter-call>,<spotter-grid>,<spotted-call>,<spotted-grid>
const (
	fieldTag = iota
	fieldSource
	fieldBand
	fieldMode
	fieldFrequency
	fieldSNR
	fieldTimestamp
	fieldSpotterCall
	fieldSpotterGrid
	fieldSpottedCall
	fieldSpottedGrid

	fieldCount = 11
)

// ParseMessage parses a raw spot line into a Spot. Malformed or semantically
// invalid lines return an error; callers treat that as an expected drop, not
// a fault.
func ParseMessage(raw string) (*types.Spot, error) {
	fields := strings.Split(strings.TrimSpace(raw), ",")
	if len(fields) != fieldCount {
		return nil, fmt.Errorf("invalid message format: expected %d fields, got %d", fieldCount, len(fields))
	}

	if fields[fieldTag] != "SPOT" {
		return nil, fmt.Errorf("invalid message tag: %q", fields[fieldTag])
	}

	source := strings.TrimSpace(fields[fieldSource])
	band := strings.TrimSpace(fields[fieldBand])
	mode := strings.ToUpper(strings.TrimSpace(fields[fieldMode]))
	if source == "" || band == "" || mode == "" {
		return nil, fmt.Errorf("missing source, band or mode")
	}

	freq, err := strconv.ParseInt(fields[fieldFrequency], 10, 64)
	if err != nil || freq <= 0 {
		return nil, fmt.Errorf("invalid frequency: %q", fields[fieldFrequency])
	}

	snr, err := strconv.Atoi(fields[fieldSNR])
	if err != nil {
		return nil, fmt.Errorf("invalid snr: %q", fields[fieldSNR])
	}

	unix, err := strconv.ParseInt(fields[fieldTimestamp], 10, 64)
	if err != nil || unix <= 0 {
		return nil, fmt.Errorf("invalid timestamp: %q", fields[fieldTimestamp])
	}

	spotterCall := strings.ToUpper(strings.TrimSpace(fields[fieldSpotterCall]))
	spottedCall := strings.ToUpper(strings.TrimSpace(fields[fieldSpottedCall]))
	if spotterCall == "" || spottedCall == "" {
		return nil, fmt.Errorf("missing callsign")
	}

	return &types.Spot{
		Source:      source,
		Band:        band,
		Mode:        mode,
		FrequencyHz: freq,
		SNR:         snr,
		Timestamp:   time.Unix(unix, 0).UTC(),
		SpotterCall: spotterCall,
		SpottedCall: spottedCall,
		SpotterGrid: normalizeGrid(fields[fieldSpotterGrid]),
		SpottedGrid: normalizeGrid(fields[fieldSpottedGrid]),
	}, nil
}

// normalizeGrid returns the grid square trimmed and upper-cased, or "" when
// the value is not a plausible Maidenhead locator. An implausible grid does
// not reject the whole message; the spot simply stays unenrichable.
func normalizeGrid(grid string) string {
	g := strings.ToUpper(strings.TrimSpace(grid))
	if !plausibleGrid(g) {
		return ""
	}
	return g
}

func plausibleGrid(g string) bool {
	if len(g) < 4 {
		return false
	}
	if g[0] < 'A' || g[0] > 'R' || g[1] < 'A' || g[1] > 'R' {
		return false
	}
	if g[2] < '0' || g[2] > '9' || g[3] < '0' || g[3] > '9' {
		return false
	}
	return true
}
