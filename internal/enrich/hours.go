package enrich

import (
	"fmt"
	"strings"

	"github.com/dinefind/place-crawler/internal/poi"
)

// weekdayLabels maps provider weekday labels to canonical day keys.
// The provider localizes labels, so both English and Chinese forms are
// recognized.
var weekdayLabels = map[string]string{
	"monday":    "monday",
	"tuesday":   "tuesday",
	"wednesday": "wednesday",
	"thursday":  "thursday",
	"friday":    "friday",
	"saturday":  "saturday",
	"sunday":    "sunday",
	"星期一":       "monday",
	"星期二":       "tuesday",
	"星期三":       "wednesday",
	"星期四":       "thursday",
	"星期五":       "friday",
	"星期六":       "saturday",
	"星期日":       "sunday",
	"星期天":       "sunday",
}

var closedMarkers = map[string]struct{}{
	"closed": {},
	"休息":     {},
	"休业":     {},
}

var allDayMarkers = map[string]struct{}{
	"open 24 hours": {},
	"24 hours":      {},
	"24小时营业":        {},
	"00:00-24:00":   {},
}

// normalizeHours converts provider weekday_text lines into canonical
// opening hours. Lines that cannot be attributed to a weekday are
// dropped; a missing day later evaluates as open.
func normalizeHours(weekdayText []string) poi.OpeningHours {
	hours := make(poi.OpeningHours)
	for _, line := range weekdayText {
		day, value, ok := splitDayLine(line)
		if !ok {
			continue
		}
		hours[day] = normalizeDayValue(value)
	}
	return hours
}

func splitDayLine(line string) (day, value string, ok bool) {
	for _, sep := range []string{":", "："} {
		if idx := strings.Index(line, sep); idx > 0 {
			label := strings.ToLower(strings.TrimSpace(line[:idx]))
			if canonical, known := weekdayLabels[label]; known {
				return canonical, strings.TrimSpace(line[idx+len(sep):]), true
			}
		}
	}
	return "", "", false
}

func normalizeDayValue(value string) string {
	cleaned := strings.ToLower(strings.TrimSpace(value))
	if _, ok := closedMarkers[cleaned]; ok {
		return poi.HoursClosed
	}
	if _, ok := allDayMarkers[cleaned]; ok {
		return poi.HoursAllDay
	}

	// Normalize dash variants and the narrow spaces the provider puts
	// around them, then convert any 12-hour clocks.
	normalized := strings.NewReplacer("–", "-", "—", "-", " ", " ", " ", " ").Replace(value)
	parts := strings.Split(normalized, ",")
	for i, part := range parts {
		parts[i] = normalizeRange(part)
	}
	return strings.Join(parts, ", ")
}

func normalizeRange(s string) string {
	bounds := strings.Split(s, "-")
	if len(bounds) != 2 {
		return strings.TrimSpace(s)
	}
	open := normalizeClock(bounds[0])
	close := normalizeClock(bounds[1])
	return open + "-" + close
}

// normalizeClock converts "9:00 PM" style clocks to 24-hour "21:00".
// Already 24-hour values pass through unchanged.
func normalizeClock(s string) string {
	cleaned := strings.TrimSpace(s)
	upper := strings.ToUpper(cleaned)

	var pm bool
	var hasMeridiem bool
	switch {
	case strings.HasSuffix(upper, "AM"):
		hasMeridiem = true
		cleaned = strings.TrimSpace(cleaned[:len(cleaned)-2])
	case strings.HasSuffix(upper, "PM"):
		hasMeridiem = true
		pm = true
		cleaned = strings.TrimSpace(cleaned[:len(cleaned)-2])
	}

	hourStr, minStr, found := strings.Cut(cleaned, ":")
	if !found {
		minStr = "00"
	}
	hour := 0
	for _, r := range hourStr {
		if r < '0' || r > '9' {
			return strings.TrimSpace(s)
		}
		hour = hour*10 + int(r-'0')
	}
	if hasMeridiem {
		if pm && hour != 12 {
			hour += 12
		}
		if !pm && hour == 12 {
			hour = 0
		}
	}
	if len(minStr) == 1 {
		minStr = "0" + minStr
	}
	return fmt.Sprintf("%02d:%s", hour, minStr)
}
