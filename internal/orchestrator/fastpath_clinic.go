package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dentalops/assistant/internal/parse"
)

const clinicSimilarityCutoff = 0.4

// fastClinicUpdate handles the rename command family deterministically.
func (o *Orchestrator) fastClinicUpdate(ctx context.Context, tenantID int64, msg string) (string, bool) {
	rename, ok := parse.DetectClinicRename(msg)
	if !ok || rename.NewName == "" {
		return "", false
	}
	if tenantID == 0 {
		return MsgNotLinked, true
	}

	clinicID := rename.ClinicID
	if clinicID == 0 {
		id, reply, resolved := o.resolveClinic(ctx, tenantID, rename.CurrentName)
		if !resolved {
			return reply, true
		}
		clinicID = id
	}

	_, err := o.callTool(ctx, tenantID, "clinic_update", map[string]any{
		"clinic_id": clinicID,
		"fields":    map[string]any{"name": rename.NewName},
	})
	if err != nil {
		return fmt.Sprintf("I couldn't update clinic #%d. The server rejected the change.", clinicID), true
	}
	return fmt.Sprintf("Clinic #%d updated.\n- Name: %s", clinicID, rename.NewName), true
}

var clinicDetailRE = regexp.MustCompile(`(?i)\b(?:show|view|detail|details|info|information|about|address|tell me)\b`)

// fastClinicDetail answers clinic detail questions when the target clinic is
// unambiguous: an explicit id, or a tenant with exactly one clinic.
func (o *Orchestrator) fastClinicDetail(ctx context.Context, tenantID int64, msg string) (string, bool) {
	if !parse.IsClinicIntent(msg) || !clinicDetailRE.MatchString(msg) {
		return "", false
	}
	if tenantID == 0 {
		return MsgNotLinked, true
	}

	clinicID, ok := parse.ClinicID(msg)
	if !ok {
		id, reply, resolved := o.resolveClinic(ctx, tenantID, "")
		if !resolved {
			return reply, true
		}
		clinicID = id
	}

	env, err := o.callTool(ctx, tenantID, "clinic_get", map[string]any{"clinic_id": clinicID})
	if err != nil {
		return fmt.Sprintf("I couldn't find clinic #%d.", clinicID), true
	}
	clinic, _ := env["clinic"].(map[string]any)
	return formatClinic(clinic), true
}

// resolveClinic picks a clinic for the tenant. Resolution order: unambiguous
// name match (substring, then similarity), then auto-pick when exactly one
// clinic exists. Anything else yields a deterministic disambiguation reply.
func (o *Orchestrator) resolveClinic(ctx context.Context, tenantID int64, nameHint string) (int64, string, bool) {
	env, err := o.callTool(ctx, tenantID, "clinic_search", map[string]any{"name": ""})
	if err != nil {
		return 0, "I couldn't load your clinics right now. Please try again.", false
	}
	clinics := envelopeRows(env, "clinics")
	if len(clinics) == 0 {
		return 0, "I couldn't find any clinics for your account.", false
	}

	if nameHint != "" {
		if id, ok := matchClinicByName(clinics, nameHint); ok {
			return id, "", true
		}
		return 0, disambiguateClinics(clinics), false
	}

	if len(clinics) == 1 {
		if id, ok := asInt64(clinics[0]["id"]); ok {
			return id, "", true
		}
	}
	return 0, disambiguateClinics(clinics), false
}

// matchClinicByName finds a single clinic by name: exact, then substring,
// then similarity above the cutoff. Ambiguous matches fail.
func matchClinicByName(clinics []map[string]any, hint string) (int64, bool) {
	lower := strings.ToLower(strings.TrimSpace(hint))

	var exact, substr []int64
	for _, c := range clinics {
		id, ok := asInt64(c["id"])
		if !ok {
			continue
		}
		name := strings.ToLower(stringField(c, "name"))
		switch {
		case name == lower:
			exact = append(exact, id)
		case strings.Contains(name, lower) || strings.Contains(lower, name):
			substr = append(substr, id)
		}
	}
	if len(exact) == 1 {
		return exact[0], true
	}
	if len(exact) == 0 && len(substr) == 1 {
		return substr[0], true
	}
	if len(exact) > 1 || len(substr) > 1 {
		return 0, false
	}

	var bestID int64
	var bestScore float64
	ties := 0
	for _, c := range clinics {
		id, ok := asInt64(c["id"])
		if !ok {
			continue
		}
		score := similarity(stringField(c, "name"), hint)
		switch {
		case score > bestScore:
			bestScore, bestID, ties = score, id, 1
		case score == bestScore && score > 0:
			ties++
		}
	}
	if bestScore >= clinicSimilarityCutoff && ties == 1 {
		return bestID, true
	}
	return 0, false
}

func disambiguateClinics(clinics []map[string]any) string {
	var sb strings.Builder
	sb.WriteString("Which clinic do you mean?\n")
	for _, c := range clinics {
		id, _ := asInt64(c["id"])
		fmt.Fprintf(&sb, "- Clinic #%d: %s\n", id, stringField(c, "name"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// similarity is a longest-common-subsequence ratio in [0,1], matching the
// close-match semantics used for clinic picking.
func similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(b)]
	return 2 * float64(lcs) / float64(len(a)+len(b))
}
