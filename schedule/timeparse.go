package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// AsNeededMinutes is the minute offset given to as-needed markers, so that
// they sort ahead of every real clock time.
const AsNeededMinutes = -1

var asNeededMarkers = []string{"as needed", "필요시", "필요 시"}

// IsAsNeeded reports whether text carries an as-needed marker in either
// language.
func IsAsNeeded(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range asNeededMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// parseClock splits a 24-hour or 12-hour clock string into hour and minute.
// ok is false when the text is not a recognizable time.
func parseClock(text string) (hour, minute int, ok bool) {
	s := strings.TrimSpace(text)

	meridiem := ""
	upper := strings.ToUpper(s)
	switch {
	case strings.Contains(upper, "AM"):
		meridiem = "AM"
	case strings.Contains(upper, "PM"):
		meridiem = "PM"
	case strings.Contains(s, koreanAM):
		meridiem = "AM"
	case strings.Contains(s, koreanPM):
		meridiem = "PM"
	}

	if meridiem != "" {
		for _, m := range []string{"AM", "am", "Am", "aM", "PM", "pm", "Pm", "pM", koreanAM, koreanPM} {
			s = strings.ReplaceAll(s, m, "")
		}
		s = strings.TrimSpace(s)
	}

	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}

	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	if minute < 0 || minute > 59 {
		return 0, 0, false
	}

	switch meridiem {
	case "AM":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour < 0 || hour > 23 {
			return 0, 0, false
		}
	}

	return hour, minute, true
}

// IsValidTime reports whether text is a clock time ParseTimeTo24Hour can
// normalize without falling back to midnight.
func IsValidTime(text string) bool {
	_, _, ok := parseClock(text)
	return ok
}

// ParseTimeToMinutes converts a clock string to minutes past midnight.
//
// As-needed markers map to AsNeededMinutes and anything unparseable maps to 0.
func ParseTimeToMinutes(text string) int {
	if IsAsNeeded(text) {
		return AsNeededMinutes
	}
	hour, minute, ok := parseClock(text)
	if !ok {
		return 0
	}
	return hour*60 + minute
}

// ParseTimeTo24Hour normalizes a clock string to zero-padded "HH:MM".
//
// As-needed markers and unparseable text both normalize to "00:00".
func ParseTimeTo24Hour(text string) string {
	if IsAsNeeded(text) {
		return "00:00"
	}
	hour, minute, ok := parseClock(text)
	if !ok {
		return "00:00"
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// FormatTimeTo12Hour renders a 24-hour time for display.  Korean puts the
// meridiem before the time, English after.
func FormatTimeTo12Hour(time24 string, lang Language) string {
	hour, minute, ok := parseClock(time24)
	if !ok {
		hour, minute = 0, 0
	}

	hour12 := hour % 12
	if hour12 == 0 {
		hour12 = 12
	}
	pm := hour >= 12

	clock := fmt.Sprintf("%d:%02d", hour12, minute)
	if lang.normalize() == LanguageEnglish {
		if pm {
			return clock + " PM"
		}
		return clock + " AM"
	}

	if pm {
		return koreanPM + " " + clock
	}
	return koreanAM + " " + clock
}
