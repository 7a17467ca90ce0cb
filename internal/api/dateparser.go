package api

import (
	"fmt"
	"strconv"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

// ParseSince parses the "since" query parameter, accepting Unix timestamps
// and human-readable dates like "2 hours ago" or "yesterday". An empty
// value means the beginning of time.
func ParseSince(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}

	if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
		if unix < 0 {
			return time.Time{}, fmt.Errorf("since must be non-negative")
		}
		return time.Unix(unix, 0).UTC(), nil
	}

	parser := dps.Parser{}
	cfg := &dps.Configuration{
		PreferredDateSource: dps.CurrentPeriod,
	}
	parsed, err := parser.Parse(cfg, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("since must be a Unix timestamp or human-readable date: %v", err)
	}
	if parsed.IsZero() {
		return time.Time{}, fmt.Errorf("since could not be parsed as a date: %s", value)
	}
	return parsed.Time.UTC(), nil
}
