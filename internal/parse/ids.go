// Package parse contains the deterministic extractors used to recognize
// high-confidence commands before any model is consulted. Every function is
// pure: text in, fields out, no I/O.
package parse

import (
	"regexp"
	"strconv"
)

var (
	leadIDRE        = regexp.MustCompile(`(?i)\blead\s*(?:id\s*)?#?\s*(\d{1,10})\b`)
	leadIDSuffixRE  = regexp.MustCompile(`(?i)\b(\d{1,10})\s+lead\b`)
	clinicIDRE      = regexp.MustCompile(`(?i)\bclinic\s*(?:id\s*)?#?\s*(\d{1,10})\b`)
	clinicIDSufRE   = regexp.MustCompile(`(?i)\b(\d{1,10})\s+clinic\b`)
	appointmentIDRE = regexp.MustCompile(`(?i)\bappointment\s*(?:id\s*)?#?\s*(\d{1,10})\b`)
	serviceIDRE     = regexp.MustCompile(`(?i)\bservice\s*(?:id\s*)?#?\s*(\d{1,10})\b`)
)

func firstID(text string, res ...*regexp.Regexp) (int64, bool) {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); len(m) == 2 {
			id, err := strconv.ParseInt(m[1], 10, 64)
			if err == nil && id > 0 {
				return id, true
			}
		}
	}
	return 0, false
}

// LeadID extracts a lead identifier ("lead id 42", "lead 42", "42 lead").
func LeadID(text string) (int64, bool) {
	return firstID(text, leadIDRE, leadIDSuffixRE)
}

// ClinicID extracts a clinic identifier ("clinic id 3", "3 clinic").
func ClinicID(text string) (int64, bool) {
	return firstID(text, clinicIDRE, clinicIDSufRE)
}

// AppointmentID extracts an appointment identifier.
func AppointmentID(text string) (int64, bool) {
	return firstID(text, appointmentIDRE)
}

// ServiceID extracts a service identifier.
func ServiceID(text string) (int64, bool) {
	return firstID(text, serviceIDRE)
}
