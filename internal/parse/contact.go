package parse

import (
	"regexp"
	"strings"
)

// emailRE matches common email address formats.
var emailRE = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// phoneRE matches E.164-ish and US-formatted numbers with at least 10 digits.
var phoneRE = regexp.MustCompile(`\+?\d[\d\-\s().]{8,}\d`)

// Email returns the first email address found, lowercased.
func Email(text string) (string, bool) {
	match := emailRE.FindString(text)
	if match == "" {
		return "", false
	}
	return strings.ToLower(match), true
}

// Phone returns the first phone-number-looking token with at least ten
// digits, stripped down to digits plus an optional leading +.
func Phone(text string) (string, bool) {
	for _, match := range phoneRE.FindAllString(text, -1) {
		normalized := normalizePhone(match)
		digits := strings.TrimPrefix(normalized, "+")
		if len(digits) >= 10 {
			return normalized, true
		}
	}
	return "", false
}

func normalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
