// Package clocktime turns client supplied clock strings into instants
//
// Instants must be unambiguous at the boundary: either RFC 3339 with an
// offset, or a naive local time paired with an IANA zone name. Timezone
// abbreviations are only ever used to pick a display zone.
package clocktime

import (
	"strings"
	"time"

	// embed the zone database so IANA lookups work on slim images
	_ "time/tzdata"

	perr "clockrelay/internal/platform/errors"
)

// Error kinds surfaced to clients
const (
	KindInvalidInstant    = "InvalidInstant"
	KindOrderingViolation = "OrderingViolation"
)

// naive layouts accepted only together with an IANA zone hint
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// minInstant rejects obviously broken client clocks
var minInstant = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// Normalized is the canonical form of a clock event's times
type Normalized struct {
	In  time.Time
	Out *time.Time

	// Display is where the event is shown to humans, never used for parsing
	Display *time.Location
}

// HasOut reports whether a clock-out instant was supplied
func (n Normalized) HasOut() bool { return n.Out != nil }

// Normalizer parses and validates clock event times
// safe for concurrent use once built
type Normalizer struct {
	fallback *time.Location
	abbrevs  map[string]string
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithDisplayZone sets the zone used when a hint cannot be resolved
func WithDisplayZone(loc *time.Location) Option {
	return func(n *Normalizer) {
		if loc != nil {
			n.fallback = loc
		}
	}
}

// WithAbbreviation adds or overrides a display abbreviation
func WithAbbreviation(abbr, zone string) Option {
	return func(n *Normalizer) { n.abbrevs[strings.ToUpper(abbr)] = zone }
}

// New builds a Normalizer with the default abbreviation table and UTC fallback
func New(opts ...Option) *Normalizer {
	n := &Normalizer{fallback: time.UTC, abbrevs: defaultAbbrevs()}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize parses clock-in and optional clock-out and checks their order
// rawOut == "" means the event is a clock-in only
func (n *Normalizer) Normalize(rawIn, rawOut, hint string) (Normalized, error) {
	in, err := ParseInstant(rawIn, hint)
	if err != nil {
		return Normalized{}, perr.WithField(err, "clockIn")
	}

	out := Normalized{In: in, Display: n.DisplayZone(hint)}
	if strings.TrimSpace(rawOut) == "" {
		return out, nil
	}

	o, err := ParseInstant(rawOut, hint)
	if err != nil {
		return Normalized{}, perr.WithField(err, "clockOut")
	}
	if !o.After(in) {
		return Normalized{}, perr.WithField(perr.NewKind(perr.ErrorCodeValidation, KindOrderingViolation,
			"clockOut %s must be after clockIn %s", o.Format(time.RFC3339), in.Format(time.RFC3339)), "clockOut")
	}
	out.Out = &o
	return out, nil
}

// ParseInstant parses raw as an absolute instant
// a naive timestamp is accepted only when hint is an IANA zone name
func ParseInstant(raw, hint string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, invalid("missing timestamp")
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return checked(t, s)
	}

	loc, ok := ianaZone(hint)
	if !ok {
		return time.Time{}, invalid("%q has no offset and %q is not an IANA zone", s, hint)
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return checked(t, s)
		}
	}
	return time.Time{}, invalid("%q is not a valid timestamp", s)
}

// DisplayZone resolves hint for presentation only
// IANA names win, then the abbreviation table, then the fallback zone
func (n *Normalizer) DisplayZone(hint string) *time.Location {
	if loc, ok := ianaZone(hint); ok {
		return loc
	}
	if name, ok := n.abbrevs[strings.ToUpper(strings.TrimSpace(hint))]; ok {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return n.fallback
}

// ianaZone accepts Area/City style names and UTC
// bare abbreviations like EST exist in tzdata but are rejected here
func ianaZone(hint string) (*time.Location, bool) {
	h := strings.TrimSpace(hint)
	if h == "" || (!strings.Contains(h, "/") && h != "UTC") {
		return nil, false
	}
	loc, err := time.LoadLocation(h)
	if err != nil {
		return nil, false
	}
	return loc, true
}

func checked(t time.Time, raw string) (time.Time, error) {
	if t.Before(minInstant) {
		return time.Time{}, invalid("%q is before 1970", raw)
	}
	return t.UTC(), nil
}

func invalid(format string, a ...any) error {
	return perr.NewKind(perr.ErrorCodeValidation, KindInvalidInstant, format, a...)
}

func defaultAbbrevs() map[string]string {
	return map[string]string{
		"PST": "America/Los_Angeles", "PDT": "America/Los_Angeles",
		"MST": "America/Denver", "MDT": "America/Denver",
		"CST": "America/Chicago", "CDT": "America/Chicago",
		"EST": "America/New_York", "EDT": "America/New_York",
		"AKST": "America/Anchorage", "AKDT": "America/Anchorage",
		"HST": "Pacific/Honolulu",
		"GMT": "UTC", "UTC": "UTC",
		"BST": "Europe/London",
		"CET": "Europe/Paris", "CEST": "Europe/Paris",
		"IST":  "Asia/Kolkata",
		"JST":  "Asia/Tokyo",
		"AEST": "Australia/Sydney", "AEDT": "Australia/Sydney",
	}
}
