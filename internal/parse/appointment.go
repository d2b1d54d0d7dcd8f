package parse

import (
	"regexp"
	"strings"
)

// AppointmentIntent classifies appointment-related utterances.
type AppointmentIntent int

const (
	IntentNone AppointmentIntent = iota
	IntentSlots
	IntentCreate
	IntentReschedule
	IntentCancel
)

var (
	slotsRE      = regexp.MustCompile(`(?i)\b(?:slots?|availability|available\s+times?|free\s+times?|openings?)\b`)
	rescheduleRE = regexp.MustCompile(`(?i)\b(?:reschedule|move|shift)\b|\bchange\s+(?:the\s+)?appointment\b`)
	cancelRE     = regexp.MustCompile(`(?i)\bcancel\b`)
	createRE     = regexp.MustCompile(`(?i)\b(?:book|schedule|create|set\s+up|make)\b.*\bappointment\b|\bbook\s+(?:for|me|an?|at)\b|\bappointment\b.*\b(?:book|schedule|create)\b`)
	apptWordRE   = regexp.MustCompile(`(?i)\bappointments?\b`)

	// "appointment of Linda Monroe", "for Linda Monroe" — up to four
	// capitalized words.
	apptOfNameRE  = regexp.MustCompile(`appointment\s+(?:of|for)\s+([A-Z][a-zA-Z'\-]+(?:\s+[A-Z][a-zA-Z'\-]+){0,3})`)
	apptForNameRE = regexp.MustCompile(`\bfor\s+([A-Z][a-zA-Z'\-]+(?:\s+[A-Z][a-zA-Z'\-]+){0,3})`)

	bookedRE = regexp.MustCompile(`(?i)\bbooked\b`)
)

// DetectAppointmentIntent classifies the utterance. Cancellation and
// rescheduling win over booking so "cancel my booked appointment" does not
// read as a create.
func DetectAppointmentIntent(text string) AppointmentIntent {
	hasAppt := apptWordRE.MatchString(text)
	switch {
	case cancelRE.MatchString(text) && hasAppt:
		return IntentCancel
	case rescheduleRE.MatchString(text) && hasAppt:
		return IntentReschedule
	case slotsRE.MatchString(text):
		return IntentSlots
	case createRE.MatchString(text):
		return IntentCreate
	case rescheduleRE.MatchString(text):
		return IntentReschedule
	default:
		return IntentNone
	}
}

// IsAppointmentIntent reports whether the utterance is appointment-shaped.
func IsAppointmentIntent(text string) bool {
	return DetectAppointmentIntent(text) != IntentNone || apptWordRE.MatchString(text)
}

// WantsBookedSlots reports whether the user asked to see taken slots rather
// than free ones.
func WantsBookedSlots(text string) bool {
	return bookedRE.MatchString(text)
}

// RescheduleName extracts the patient name a reschedule refers to.
func RescheduleName(text string) (string, bool) {
	if m := apptOfNameRE.FindStringSubmatch(text); len(m) == 2 {
		return strings.TrimSpace(m[1]), true
	}
	if m := apptForNameRE.FindStringSubmatch(text); len(m) == 2 {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}
