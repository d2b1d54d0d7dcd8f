package parse

import (
	"regexp"
	"strings"
	"time"
)

// PatientDetails are the inline booking fields extracted from a message.
// Missing fields stay empty.
type PatientDetails struct {
	FirstName string
	LastName  string
	Email     string
	DOB       string // YYYY-MM-DD
	Gender    string
}

var (
	patientNameRE = regexp.MustCompile(`\b(?:for|patient|name(?:\s+is)?:?)\s+([A-Z][a-zA-Z'\-]+\.?(?:\s+[A-Z][a-zA-Z'\-]+){0,3})`)
	dobRE         = regexp.MustCompile(`(?i)\b(?:dob|date\s+of\s+birth|born(?:\s+on)?)[:\s]+(\d{4}-\d{2}-\d{2})`)
	genderRE      = regexp.MustCompile(`(?i)\bgender[:\s]+(male|female|other)\b|\b(male|female)\b`)

	honorificRE = regexp.MustCompile(`(?i)^(?:mr|mrs|ms|miss|dr|prof)\.?\s+`)
)

// ExtractPatientDetails pulls patient fields out of a booking message like
// "book for clinic 1 tomorrow at 10:00 for Jane Doe, email jane@x.com,
// gender female".
func ExtractPatientDetails(text string, now time.Time) PatientDetails {
	var d PatientDetails

	if m := patientNameRE.FindStringSubmatch(text); len(m) == 2 {
		name := strings.TrimRight(StripHonorific(m[1]), ".")
		d.FirstName, d.LastName = SplitName(name)
	}
	if email, ok := Email(text); ok {
		d.Email = email
	}
	if m := dobRE.FindStringSubmatch(text); len(m) == 2 {
		if dob, ok := Date(m[1], now); ok {
			d.DOB = dob
		}
	}
	if m := genderRE.FindStringSubmatch(text); len(m) == 3 {
		g := m[1]
		if g == "" {
			g = m[2]
		}
		d.Gender = strings.ToLower(g)
	}
	return d
}

// StripHonorific removes a leading title from a name.
func StripHonorific(name string) string {
	return strings.TrimSpace(honorificRE.ReplaceAllString(strings.TrimSpace(name), ""))
}
