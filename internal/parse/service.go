package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// ServiceUpdate is the single recognized service mutation shape:
// "update service N {name|description|for_report} to V".
type ServiceUpdate struct {
	ServiceID int64
	Field     string
	Value     any
}

var serviceUpdateRE = regexp.MustCompile(`(?i)\bupdate\s+service\s+(?:id\s+)?#?(\d{1,10})\s+(name|description|for_report)\s+to\s+(.+)$`)

// forReportValues is the accepted boolean coercion table for the for_report
// field.
var forReportValues = map[string]bool{
	"true": true, "yes": true, "y": true, "1": true, "on": true, "enable": true, "enabled": true,
	"false": false, "no": false, "n": false, "0": false, "off": false, "disable": false, "disabled": false,
}

// DetectServiceUpdate recognizes the service update command. for_report
// values outside the coercion table do not match.
func DetectServiceUpdate(text string) (ServiceUpdate, bool) {
	m := serviceUpdateRE.FindStringSubmatch(strings.TrimSpace(text))
	if len(m) != 4 {
		return ServiceUpdate{}, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return ServiceUpdate{}, false
	}

	field := strings.ToLower(m[2])
	raw := cleanName(m[3])

	if field == "for_report" {
		coerced, ok := forReportValues[strings.ToLower(raw)]
		if !ok {
			return ServiceUpdate{}, false
		}
		return ServiceUpdate{ServiceID: id, Field: field, Value: coerced}, true
	}
	return ServiceUpdate{ServiceID: id, Field: field, Value: raw}, true
}

// IsServiceMutation reports whether the utterance asks for a service change,
// even when the full shape does not parse. Used for role gating.
func IsServiceMutation(text string) bool {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "service") {
		return false
	}
	return leadVerbRE.MatchString(text) || strings.Contains(lower, "rename")
}

// IsServiceIntent reports whether the utterance mentions services at all.
func IsServiceIntent(text string) bool {
	return strings.Contains(strings.ToLower(text), "service")
}
