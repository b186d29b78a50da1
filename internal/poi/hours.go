package poi

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OpeningHours maps lowercase weekday identifiers to an "HH:MM-HH:MM"
// range, a closed marker, or a 24-hour marker. Missing days are allowed.
type OpeningHours map[string]string

// Canonical markers written by the enricher.
const (
	HoursClosed  = "Closed"
	HoursAllDay  = "00:00-24:00"
	hoursPerDay  = 24 * 60
	weekdayCount = 7
)

// Weekdays holds the seven canonical keys, indexed by time.Weekday.
var Weekdays = [weekdayCount]string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

var weekdaySet = func() map[string]struct{} {
	s := make(map[string]struct{}, weekdayCount)
	for _, d := range Weekdays {
		s[d] = struct{}{}
	}
	return s
}()

// Validate checks that every key is one of the seven weekday identifiers.
func (h OpeningHours) Validate() error {
	for k := range h {
		if _, ok := weekdaySet[k]; !ok {
			return fmt.Errorf("%w: unknown weekday %q in opening hours", ErrValidation, k)
		}
	}
	return nil
}

// OpenAt reports whether the place is open at t, evaluated in t's location.
// The policy is fail-open: a missing weekday entry or an unparsable range
// never rules a place out. Ranges use an inclusive open bound and an
// exclusive close bound; a close time before the open time crosses midnight.
func (h OpeningHours) OpenAt(t time.Time) bool {
	entry, ok := h[Weekdays[t.Weekday()]]
	if !ok {
		return true
	}
	switch normalizeMarker(entry) {
	case HoursClosed:
		return false
	case HoursAllDay:
		return true
	}

	openMin, closeMin, err := parseRange(entry)
	if err != nil {
		return true
	}
	current := t.Hour()*60 + t.Minute()
	if closeMin < openMin {
		// Crosses midnight, e.g. 22:00-02:00.
		return current >= openMin || current < closeMin
	}
	return current >= openMin && current < closeMin
}

// The provider localizes markers; tolerate the known synonyms.
var (
	closedSynonyms = []string{"closed", "休息", "休业"}
	allDaySynonyms = []string{"00:00-24:00", "open 24 hours", "24 hours", "24小时营业"}
)

func normalizeMarker(entry string) string {
	v := strings.ToLower(strings.TrimSpace(entry))
	for _, s := range closedSynonyms {
		if v == s {
			return HoursClosed
		}
	}
	for _, s := range allDaySynonyms {
		if v == s {
			return HoursAllDay
		}
	}
	return entry
}

func parseRange(entry string) (openMin, closeMin int, err error) {
	parts := strings.SplitN(entry, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("not a range: %q", entry)
	}
	openMin, err = parseClockMinutes(parts[0])
	if err != nil {
		return 0, 0, err
	}
	closeMin, err = parseClockMinutes(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return openMin, closeMin, nil
}

func parseClockMinutes(s string) (int, error) {
	hm := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(hm) != 2 {
		return 0, fmt.Errorf("not a clock time: %q", s)
	}
	hour, err := strconv.Atoi(hm[0])
	if err != nil {
		return 0, fmt.Errorf("parse hour: %w", err)
	}
	minute, err := strconv.Atoi(hm[1])
	if err != nil {
		return 0, fmt.Errorf("parse minute: %w", err)
	}
	if hour < 0 || hour > 24 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock time out of range: %q", s)
	}
	return hour*60 + minute, nil
}
