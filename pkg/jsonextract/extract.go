// Package jsonextract recovers JSON objects from model output that may be
// wrapped in markdown fences, prose, or both.
package jsonextract

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoObject is returned when no decodable JSON object can be found.
var ErrNoObject = errors.New("jsonextract: no JSON object found")

var fenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// Object finds and decodes the first JSON object in raw into out.
// Markdown code fences are stripped first; if the remaining text is not
// itself valid JSON, the first balanced {...} block is tried.
func Object(raw string, out any) error {
	candidate := strings.TrimSpace(raw)
	if m := fenceRE.FindStringSubmatch(candidate); len(m) == 2 {
		candidate = strings.TrimSpace(m[1])
	}

	if json.Unmarshal([]byte(candidate), out) == nil {
		return nil
	}

	block, ok := firstObject(candidate)
	if !ok {
		return ErrNoObject
	}
	if err := json.Unmarshal([]byte(block), out); err != nil {
		return ErrNoObject
	}
	return nil
}

// firstObject returns the first brace-balanced block in s. Braces inside
// string literals are skipped.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// ClampEnum returns value if it appears in allowed (case-insensitive match
// against the canonical spelling), otherwise fallback.
func ClampEnum(value string, allowed []string, fallback string) string {
	trimmed := strings.TrimSpace(value)
	for _, a := range allowed {
		if strings.EqualFold(trimmed, a) {
			return a
		}
	}
	return fallback
}
