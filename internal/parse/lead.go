package parse

import (
	"regexp"
	"strings"
)

// LeadUpdate carries the partial field map extracted from a lead update
// command. Keys match the application server's lead schema.
type LeadUpdate struct {
	LeadID int64
	Fields map[string]string
}

var (
	leadStatusRE = regexp.MustCompile(`(?i)\blead(?:\s+(?:id\s+)?#?\d{1,10})?(?:'s)?\s+status\s+to\s+([a-zA-Z][a-zA-Z _-]*)`)
	leadPhoneRE  = regexp.MustCompile(`(?i)\blead(?:\s+(?:id\s+)?#?\d{1,10})?(?:'s)?\s+(?:phone|contact(?:\s+number)?|number)\s+to\s+(\+?[\d\-\s().]{9,})`)
	leadEmailRE  = regexp.MustCompile(`(?i)\blead(?:\s+(?:id\s+)?#?\d{1,10})?(?:'s)?\s+email\s+to\s+(\S+@\S+)`)
	leadNameRE   = regexp.MustCompile(`(?i)\blead(?:\s+(?:id\s+)?#?\d{1,10})?(?:'s)?\s+name\s+to\s+([A-Za-z][A-Za-z .'-]*)`)
	leadVerbRE   = regexp.MustCompile(`(?i)\b(?:update|change|set|mark)\b`)
)

// DetectLeadUpdate recognizes lead field update commands like
// "update lead 42 status to qualified" or "set lead 42 phone to +15551230000".
// The returned Fields map holds only the recognized fields.
func DetectLeadUpdate(text string) (LeadUpdate, bool) {
	if !leadVerbRE.MatchString(text) || !strings.Contains(strings.ToLower(text), "lead") {
		return LeadUpdate{}, false
	}

	fields := map[string]string{}

	if m := leadStatusRE.FindStringSubmatch(text); len(m) == 2 {
		fields["status"] = strings.ToLower(strings.TrimSpace(strings.TrimRight(m[1], ".!?")))
	}
	if m := leadPhoneRE.FindStringSubmatch(text); len(m) == 2 {
		if phone, ok := Phone(m[1]); ok {
			fields["contact_number"] = phone
		}
	}
	if m := leadEmailRE.FindStringSubmatch(text); len(m) == 2 {
		if email, ok := Email(m[1]); ok {
			fields["email"] = email
		}
	}
	if m := leadNameRE.FindStringSubmatch(text); len(m) == 2 {
		first, last := SplitName(cleanName(m[1]))
		if first != "" {
			fields["first_name"] = first
		}
		if last != "" {
			fields["last_name"] = last
		}
	}

	if len(fields) == 0 {
		return LeadUpdate{}, false
	}

	update := LeadUpdate{Fields: fields}
	if id, ok := LeadID(text); ok {
		update.LeadID = id
	}
	return update, true
}

// SplitName splits a full name into first and last; middle tokens join the
// last name.
func SplitName(full string) (string, string) {
	tokens := strings.Fields(strings.TrimSpace(full))
	switch len(tokens) {
	case 0:
		return "", ""
	case 1:
		return tokens[0], ""
	default:
		return tokens[0], strings.Join(tokens[1:], " ")
	}
}
