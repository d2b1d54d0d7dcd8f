package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// ClinicRename carries the fields extracted from a rename command. Exactly
// one of ClinicID / CurrentName may be set; NewName is always set.
type ClinicRename struct {
	ClinicID    int64
	CurrentName string
	NewName     string
}

var (
	// "update clinic 3 name to North Dental" / "set clinic id 3 name to X"
	renameByIDRE = regexp.MustCompile(`(?i)\b(?:update|change|set|rename)\s+clinic\s+(?:id\s+)?#?(\d{1,10})(?:'s)?\s+name\s+to\s+(.+)$`)
	// "change the name of the clinic to X" / "update name of clinic to X"
	renameNameOfRE = regexp.MustCompile(`(?i)\b(?:update|change|set)\s+(?:the\s+)?name\s+of\s+(?:the\s+|my\s+|our\s+)?clinic\s+to\s+(.+)$`)
	// "update my clinic name to X" / "change our clinic's name to X"
	renamePossessiveRE = regexp.MustCompile(`(?i)\b(?:update|change|set)\s+(?:my|our)\s+clinic(?:'s)?\s+name\s+to\s+(.+)$`)
	// "update clinic name to X" / "set the clinic name to X"
	renameSimpleRE = regexp.MustCompile(`(?i)\b(?:update|change|set)\s+(?:the\s+)?clinic\s+name\s+to\s+(.+)$`)
	// "rename clinic Old Name to New Name" / "rename Old Name to New Name" (clinic context)
	renameFromToRE = regexp.MustCompile(`(?i)\brename\s+(?:the\s+clinic\s+|clinic\s+)?(?:from\s+)?"?(.+?)"?\s+to\s+"?(.+?)"?$`)
	// "Current Name: Old ... New Name: New"
	renameStructuredRE = regexp.MustCompile(`(?i)current\s+name\s*:\s*(.+?)\s*(?:[,;\n]|\.{2,}|…|\s{2,})\s*new\s+name\s*:\s*(.+)$`)
	// free-form fallback: "update clinic name North Dental"
	renameFreeformRE = regexp.MustCompile(`(?i)\b(?:update|change|set)\s+clinic\s+name\s+(.+)$`)
)

// DetectClinicRename recognizes the rename command family. Each shape yields
// the same resulting update payload {name: NewName}.
func DetectClinicRename(text string) (ClinicRename, bool) {
	text = strings.TrimSpace(text)

	if m := renameStructuredRE.FindStringSubmatch(text); len(m) == 3 {
		return ClinicRename{CurrentName: cleanName(m[1]), NewName: cleanName(m[2])}, true
	}
	if m := renameByIDRE.FindStringSubmatch(text); len(m) == 3 {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return ClinicRename{ClinicID: id, NewName: cleanName(m[2])}, true
		}
	}
	if m := renameNameOfRE.FindStringSubmatch(text); len(m) == 2 {
		return ClinicRename{NewName: cleanName(m[1])}, true
	}
	if m := renamePossessiveRE.FindStringSubmatch(text); len(m) == 2 {
		return ClinicRename{NewName: cleanName(m[1])}, true
	}
	if m := renameSimpleRE.FindStringSubmatch(text); len(m) == 2 {
		return ClinicRename{NewName: cleanName(m[1])}, true
	}
	if m := renameFromToRE.FindStringSubmatch(text); len(m) == 3 {
		return ClinicRename{CurrentName: cleanName(m[1]), NewName: cleanName(m[2])}, true
	}
	if m := renameFreeformRE.FindStringSubmatch(text); len(m) == 2 {
		name := cleanName(m[1])
		// the "to X" shapes were already tried; reject leftovers like "to"
		if name != "" && !strings.EqualFold(name, "to") {
			return ClinicRename{NewName: name}, true
		}
	}
	return ClinicRename{}, false
}

// IsClinicIntent reports whether the utterance mentions clinics at all.
func IsClinicIntent(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "clinic") || strings.Contains(lower, "practice") || strings.Contains(lower, "office location")
}

func cleanName(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.Trim(name, `"'`)
	name = strings.TrimRight(name, ".!?")
	return strings.TrimSpace(name)
}
