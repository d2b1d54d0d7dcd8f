package analysis

import (
	"regexp"
	"strings"

	"github.com/dentalops/assistant/internal/parse"
)

// Self-introduction patterns spoken at the start of most calls. One to three
// capitalized tokens follow the opener.
var callerNameRE = regexp.MustCompile(`(?:[Tt]his is|I am|I'm|[Mm]y name is)\s+([A-Z][a-zA-Z'\-]+\.?(?:\s+[A-Z][a-zA-Z'\-]+){0,2})`)

// CallerNameFromTranscript extracts the caller's self-introduced name.
// Trailing honorifics and punctuation are stripped.
func CallerNameFromTranscript(transcript string) (string, bool) {
	m := callerNameRE.FindStringSubmatch(transcript)
	if len(m) != 2 {
		return "", false
	}
	name := parse.StripHonorific(strings.TrimRight(m[1], ".,"))
	if name == "" {
		return "", false
	}
	return name, true
}
