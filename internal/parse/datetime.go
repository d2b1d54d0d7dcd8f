package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultAppointmentMinutes is applied when an utterance gives a start time
// but no duration.
const DefaultAppointmentMinutes = 30

var (
	isoDateRE   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	monthDayRE  = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s*(\d{4}))?\b`)
	dayMonthRE  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?(?:,?\s*(\d{4}))?\b`)
	weekdayRE   = regexp.MustCompile(`(?i)\b(sunday|monday|tuesday|wednesday|thursday|friday|saturday|sun|mon|tue|tues|wed|thu|thur|thurs|fri|sat)\b`)
	clockRE     = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})(?::(\d{2}))?\s*(am|pm)?\b`)
	hourAMPMRE  = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm)\b`)
	spacedAMPRE = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(\d{2})\s*(am|pm)\b`)
)

var weekdayNums = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var monthNums = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Date extracts a calendar date from text and normalizes it to YYYY-MM-DD.
// Recognized forms, in priority order: absolute ISO dates, today/tomorrow,
// month-name dates ("June 5", "5th of June"), weekday names (next occurrence,
// today included).
func Date(text string, now time.Time) (string, bool) {
	if m := isoDateRE.FindStringSubmatch(text); len(m) == 4 {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if validDate(year, month, day) {
			return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
		}
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, "day after tomorrow") {
		return now.AddDate(0, 0, 2).Format("2006-01-02"), true
	}
	if strings.Contains(lower, "tomorrow") {
		return now.AddDate(0, 0, 1).Format("2006-01-02"), true
	}
	if strings.Contains(lower, "today") || strings.Contains(lower, "tonight") {
		return now.Format("2006-01-02"), true
	}

	if m := monthDayRE.FindStringSubmatch(text); len(m) == 4 {
		if d, ok := monthNameDate(m[1], m[2], m[3], now); ok {
			return d, true
		}
	}
	if m := dayMonthRE.FindStringSubmatch(text); len(m) == 4 {
		if d, ok := monthNameDate(m[2], m[1], m[3], now); ok {
			return d, true
		}
	}

	if m := weekdayRE.FindStringSubmatch(lower); len(m) == 2 {
		target := weekdayNums[m[1]]
		offset := (int(target) - int(now.Weekday()) + 7) % 7
		return now.AddDate(0, 0, offset).Format("2006-01-02"), true
	}

	return "", false
}

func monthNameDate(monthToken, dayToken, yearToken string, now time.Time) (string, bool) {
	month, ok := monthNums[strings.ToLower(monthToken)[:3]]
	if !ok {
		return "", false
	}
	day, err := strconv.Atoi(dayToken)
	if err != nil || day < 1 || day > 31 {
		return "", false
	}
	year := now.Year()
	if yearToken != "" {
		year, _ = strconv.Atoi(yearToken)
	}
	candidate := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	// Without an explicit year, a past date means the next one.
	if yearToken == "" && candidate.Before(now.AddDate(0, 0, -1)) {
		candidate = candidate.AddDate(1, 0, 0)
	}
	if !validDate(candidate.Year(), int(candidate.Month()), day) {
		return "", false
	}
	return candidate.Format("2006-01-02"), true
}

func validDate(year, month, day int) bool {
	if year < 1 || month < 1 || month > 12 || day < 1 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day && int(t.Month()) == month
}

// TimeOfDay extracts a time of day and normalizes to HH:MM:SS. Accepted
// forms: "14:30", "14:30:00", "2:30pm", "2pm", "2 30 pm". Hours 1-7 without
// a meridiem and without minutes are ambiguous and rejected.
func TimeOfDay(text string) (string, bool) {
	if m := spacedAMPRE.FindStringSubmatch(text); len(m) == 4 {
		return buildHMS(m[1], m[2], "0", m[3])
	}
	if m := clockRE.FindStringSubmatch(text); len(m) == 5 {
		sec := m[3]
		if sec == "" {
			sec = "0"
		}
		return buildHMS(m[1], m[2], sec, m[4])
	}
	if m := hourAMPMRE.FindStringSubmatch(text); len(m) == 3 {
		return buildHMS(m[1], "0", "0", m[2])
	}
	return "", false
}

func buildHMS(hourStr, minStr, secStr, meridiem string) (string, bool) {
	hour, _ := strconv.Atoi(hourStr)
	minute, _ := strconv.Atoi(minStr)
	second, _ := strconv.Atoi(secStr)

	switch strings.ToLower(meridiem) {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 || second > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d:%02d", hour, minute, second), true
}

// AddMinutes shifts an HH:MM:SS time forward, wrapping at midnight.
func AddMinutes(hms string, minutes int) string {
	secs := HMSToSeconds(hms) + minutes*60
	secs = ((secs % 86400) + 86400) % 86400
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// HMSToSeconds converts HH:MM:SS (or HH:MM) to seconds since midnight.
// Malformed input yields 0.
func HMSToSeconds(hms string) int {
	parts := strings.Split(hms, ":")
	if len(parts) < 2 {
		return 0
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	second := 0
	if len(parts) > 2 {
		second, _ = strconv.Atoi(parts[2])
	}
	return hour*3600 + minute*60 + second
}
