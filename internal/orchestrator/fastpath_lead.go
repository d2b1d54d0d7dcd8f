package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dentalops/assistant/internal/parse"
)

// fastLeadUpdate applies "update lead N <field> to <value>" commands in one
// call.
func (o *Orchestrator) fastLeadUpdate(ctx context.Context, tenantID int64, msg string) (string, bool) {
	update, ok := parse.DetectLeadUpdate(msg)
	if !ok || update.LeadID == 0 {
		return "", false
	}
	if tenantID == 0 {
		return MsgNotLinked, true
	}

	fields := make(map[string]any, len(update.Fields))
	for k, v := range update.Fields {
		fields[k] = v
	}
	_, err := o.callTool(ctx, tenantID, "lead_update", map[string]any{
		"lead_id": update.LeadID,
		"fields":  fields,
	})
	if err != nil {
		return fmt.Sprintf("I couldn't update lead #%d. The server rejected the change.", update.LeadID), true
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Lead #%d updated.", update.LeadID)
	keys := make([]string, 0, len(update.Fields))
	for k := range update.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "\n- %s: %s", fieldLabel(k), update.Fields[k])
	}
	return sb.String(), true
}

// fastReadByHints answers bare lookups: a lead id, a clinic id, or a
// phone/email hint. It is the last fast path, so anything more specific has
// already had its chance.
func (o *Orchestrator) fastReadByHints(ctx context.Context, tenantID int64, msg string) (string, bool) {
	if leadID, ok := parse.LeadID(msg); ok {
		if tenantID == 0 {
			return MsgNotLinked, true
		}
		env, err := o.callTool(ctx, tenantID, "lead_get", map[string]any{"lead_id": leadID})
		if err != nil {
			return fmt.Sprintf("I couldn't find lead #%d.", leadID), true
		}
		lead, _ := env["lead"].(map[string]any)
		return formatLead(lead), true
	}

	if clinicID, ok := parse.ClinicID(msg); ok {
		if tenantID == 0 {
			return MsgNotLinked, true
		}
		env, err := o.callTool(ctx, tenantID, "clinic_get", map[string]any{"clinic_id": clinicID})
		if err != nil {
			return fmt.Sprintf("I couldn't find clinic #%d.", clinicID), true
		}
		clinic, _ := env["clinic"].(map[string]any)
		return formatClinic(clinic), true
	}

	phone, hasPhone := parse.Phone(msg)
	email, hasEmail := parse.Email(msg)
	if !hasPhone && !hasEmail {
		return "", false
	}
	if tenantID == 0 {
		return MsgNotLinked, true
	}

	args := map[string]any{}
	if hasPhone {
		args["phone"] = phone
	}
	if hasEmail {
		args["email"] = email
	}
	env, err := o.callTool(ctx, tenantID, "lead_lookup", args)
	if err != nil {
		return "The lead lookup failed. Please try again.", true
	}
	return formatLeadList(envelopeRows(env, "leads")), true
}

func fieldLabel(field string) string {
	switch field {
	case "first_name":
		return "First name"
	case "last_name":
		return "Last name"
	case "contact_number":
		return "Phone"
	case "email":
		return "Email"
	case "status":
		return "Status"
	case "for_report":
		return "In reports"
	case "name":
		return "Name"
	case "description":
		return "Description"
	default:
		return field
	}
}
