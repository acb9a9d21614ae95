package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// LegacyDate decodes a date that the old document store wrote either as a structured
// timestamp ({"seconds":..,"nanoseconds":..}) or as a string. Malformed values are
// logged and decode as absent.
type LegacyDate struct {
	Time  time.Time
	Valid bool
}

var legacyDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

type legacyTimestamp struct {
	Seconds     *int64 `json:"seconds"`
	Nanoseconds int64  `json:"nanoseconds"`
	// Some exports used the underscore spelling
	AltSeconds     *int64 `json:"_seconds"`
	AltNanoseconds int64  `json:"_nanoseconds"`
}

// UnmarshalJSON implements json.Unmarshaler
func (d *LegacyDate) UnmarshalJSON(data []byte) error {
	*d = LegacyDate{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if t, ok := ParseLegacyDate(s); ok {
			d.Time, d.Valid = t, true
		}
		return nil
	case '{':
		var ts legacyTimestamp
		if err := json.Unmarshal(data, &ts); err != nil {
			log.Warn().Str("value", string(data)).Msg("malformed legacy timestamp, treating as absent")
			return nil
		}
		switch {
		case ts.Seconds != nil:
			d.Time, d.Valid = time.Unix(*ts.Seconds, ts.Nanoseconds), true
		case ts.AltSeconds != nil:
			d.Time, d.Valid = time.Unix(*ts.AltSeconds, ts.AltNanoseconds), true
		default:
			log.Warn().Str("value", string(data)).Msg("legacy timestamp without seconds, treating as absent")
		}
		return nil
	default:
		log.Warn().Str("value", string(data)).Msg("unsupported legacy date representation, treating as absent")
		return nil
	}
}

// Ptr returns the decoded time or nil when absent
func (d LegacyDate) Ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// ParseLegacyDate parses a date string in any of the layouts the old clients wrote
func ParseLegacyDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range legacyDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	log.Warn().Str("value", s).Msg("malformed legacy date string, treating as absent")
	return time.Time{}, false
}

// LegacyProfile is a user profile document exported from the old document store
type LegacyProfile struct {
	ID                  string     `json:"id" binding:"required"`
	Email               string     `json:"email" binding:"required,email"`
	DisplayName         string     `json:"displayName"`
	Plan                Plan       `json:"plan"`
	DailyRemainingQuota *int       `json:"dailyRemainingQuota"`
	LastSummaryDate     LegacyDate `json:"lastSummaryDate"`
	IsAdmin             bool       `json:"isAdmin"`
	PlanExpiryDate      LegacyDate `json:"planExpiryDate"`
}
