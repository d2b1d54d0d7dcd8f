package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// domain priority for the post-tool formatter: appointment > service >
// clinic > lead > generic rows.
var toolDomains = map[string]int{
	"appointment_slots":  4,
	"appointment_get":    4,
	"appointment_create": 4,
	"appointment_update": 4,
	"appointment_cancel": 4,
	"service_list":       3,
	"service_get":        3,
	"service_search":     3,
	"service_update":     3,
	"clinic_get":         2,
	"clinic_search":      2,
	"clinic_update":      2,
	"lead_get":           1,
	"lead_lookup":        1,
	"lead_update":        1,
	"sql_read":           0,
}

// formatResults renders the outcome of a tool-call turn. The highest-priority
// captured domain wins; within a domain the first result wins. Failed
// envelopes and unknown shapes serialize as compact JSON.
func formatResults(results []toolResult) string {
	if len(results) == 0 {
		return MsgAppOnlyHint
	}

	chosen := results[0]
	best := -1
	for _, r := range results {
		if p, ok := toolDomains[r.tool]; ok && p > best {
			best, chosen = p, r
		}
	}

	env := chosen.envelope
	if ok, _ := env["ok"].(bool); !ok {
		return compactJSON(env)
	}

	switch {
	case env["slots"] != nil:
		slots := decodeSlots(env)
		if len(slots) == 0 {
			return "No slots found."
		}
		return "Slots:\n" + formatSlotLines(slots)
	case env["appointment"] != nil:
		appt, _ := env["appointment"].(map[string]any)
		return formatAppointment(chosen.tool, appt)
	case env["service"] != nil:
		svc, _ := env["service"].(map[string]any)
		return formatService(chosen.tool, svc)
	case env["services"] != nil:
		return formatServiceList(envelopeRows(env, "services"))
	case env["clinic"] != nil:
		clinic, _ := env["clinic"].(map[string]any)
		if chosen.tool == "clinic_update" {
			id, _ := asInt64(clinic["id"])
			return fmt.Sprintf("Clinic #%d updated.\n- Name: %s", id, stringField(clinic, "name"))
		}
		return formatClinic(clinic)
	case env["clinics"] != nil:
		return formatClinicList(envelopeRows(env, "clinics"))
	case env["lead"] != nil:
		lead, _ := env["lead"].(map[string]any)
		if chosen.tool == "lead_update" {
			id, _ := asInt64(lead["id"])
			return fmt.Sprintf("✅ Lead #%d updated.", id)
		}
		return formatLead(lead)
	case env["leads"] != nil:
		return formatLeadList(envelopeRows(env, "leads"))
	case env["rows"] != nil:
		return formatRows(envelopeRows(env, "rows"))
	default:
		return compactJSON(env)
	}
}

// formatLead renders the fixed lead detail layout. Identity and Timestamps
// sections always appear; the rest only when the record carries data.
func formatLead(lead map[string]any) string {
	id, _ := asInt64(lead["id"])
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Lead #%d**\n", id)

	sb.WriteString("\n**Identity**\n")
	name := strings.TrimSpace(stringField(lead, "first_name") + " " + stringField(lead, "last_name"))
	writeLine(&sb, "Name", name)
	writeLine(&sb, "Phone", stringField(lead, "contact_number", "phone"))
	writeLine(&sb, "Email", stringField(lead, "email"))
	writeLine(&sb, "Status", stringField(lead, "status"))

	if section := sectionLines(
		line("Clinic", stringField(lead, "clinic_name"), numText(lead, "clinic_id")),
		line("Appointment", stringField(lead, "appointment_date"), numText(lead, "appointment_id")),
		line("Service", stringField(lead, "service_name"), numText(lead, "service_id")),
	); section != "" {
		sb.WriteString("\n**Booking**\n" + section)
	}

	if section := sectionLines(
		line("Gender", stringField(lead, "gender"), ""),
		line("Date of birth", stringField(lead, "dob", "date_of_birth"), ""),
	); section != "" {
		sb.WriteString("\n**Person**\n" + section)
	}

	if section := sectionLines(
		line("Potential", numText(lead, "potential_score"), ""),
		line("Intent", numText(lead, "intent_score"), ""),
		line("Urgency", numText(lead, "urgency_score"), ""),
		line("Overall", numText(lead, "overall_score"), ""),
	); section != "" {
		sb.WriteString("\n**Scores**\n" + section)
	}

	if section := sectionLines(
		line("Call ID", stringField(lead, "callrail_id"), ""),
		line("Call type", stringField(lead, "type"), ""),
	); section != "" {
		sb.WriteString("\n**CallRail**\n" + section)
	}

	if desc := stringField(lead, "description", "notes"); desc != "" {
		sb.WriteString("\n**Notes**\n- " + desc + "\n")
	}

	sb.WriteString("\n**Timestamps**\n")
	writeLineOrDefault(&sb, "Created", stringField(lead, "created_at"), "not recorded")
	writeLineOrDefault(&sb, "Updated", stringField(lead, "updated_at"), "not recorded")

	return strings.TrimRight(sb.String(), "\n")
}

func formatLeadList(leads []map[string]any) string {
	if len(leads) == 0 {
		return "No matching leads found."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d lead(s):\n", len(leads))
	for _, l := range leads {
		id, _ := asInt64(l["id"])
		name := strings.TrimSpace(stringField(l, "first_name") + " " + stringField(l, "last_name"))
		if name == "" {
			name = "(no name)"
		}
		fmt.Fprintf(&sb, "- #%d: %s", id, name)
		if phone := stringField(l, "contact_number", "phone"); phone != "" {
			fmt.Fprintf(&sb, ", %s", phone)
		}
		if status := stringField(l, "status"); status != "" {
			fmt.Fprintf(&sb, " [%s]", status)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatClinic(clinic map[string]any) string {
	id, _ := asInt64(clinic["id"])
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Clinic #%d: %s**\n", id, stringField(clinic, "name"))
	writeLine(&sb, "Address", stringField(clinic, "address"))
	writeLine(&sb, "Phone", stringField(clinic, "contact_number", "phone"))
	writeLine(&sb, "Email", stringField(clinic, "email"))
	return strings.TrimRight(sb.String(), "\n")
}

func formatClinicList(clinics []map[string]any) string {
	if len(clinics) == 0 {
		return "No matching clinics found."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d clinic(s):\n", len(clinics))
	for _, c := range clinics {
		id, _ := asInt64(c["id"])
		fmt.Fprintf(&sb, "- #%d: %s\n", id, stringField(c, "name"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatService(tool string, svc map[string]any) string {
	id, _ := asInt64(svc["id"])
	if tool == "service_update" {
		return fmt.Sprintf("✅ Service #%d updated.\n- Name: %s", id, stringField(svc, "name"))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Service #%d: %s**\n", id, stringField(svc, "name"))
	writeLine(&sb, "Description", stringField(svc, "description"))
	if v, ok := svc["for_report"].(bool); ok {
		report := "no"
		if v {
			report = "yes"
		}
		writeLine(&sb, "In reports", report)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatServiceList(services []map[string]any) string {
	if len(services) == 0 {
		return "No services found."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d service(s):\n", len(services))
	for _, s := range services {
		id, _ := asInt64(s["id"])
		fmt.Fprintf(&sb, "- #%d: %s\n", id, stringField(s, "name"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatAppointment(tool string, appt map[string]any) string {
	id, _ := asInt64(appt["id"])
	switch tool {
	case "appointment_create":
		return fmt.Sprintf("✅ Appointment booked.\n- Appointment #%d on %s from %s to %s",
			id, stringField(appt, "date"), stringField(appt, "from_time"), stringField(appt, "to_time"))
	case "appointment_update":
		return fmt.Sprintf("✅ Appointment #%d updated to %s from %s to %s.",
			id, stringField(appt, "date"), stringField(appt, "from_time"), stringField(appt, "to_time"))
	case "appointment_cancel":
		return fmt.Sprintf("✅ Appointment #%d cancelled.", id)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Appointment #%d**\n", id)
	writeLine(&sb, "Date", stringField(appt, "date"))
	writeLine(&sb, "From", stringField(appt, "from_time"))
	writeLine(&sb, "To", stringField(appt, "to_time"))
	writeLine(&sb, "Status", stringField(appt, "status"))
	return strings.TrimRight(sb.String(), "\n")
}

func formatRows(rows []map[string]any) string {
	if len(rows) == 0 {
		return "No matching rows."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d row(s):\n", len(rows))
	limit := len(rows)
	if limit > 20 {
		limit = 20
	}
	for _, row := range rows[:limit] {
		sb.WriteString("- " + compactJSON(row) + "\n")
	}
	if len(rows) > limit {
		fmt.Fprintf(&sb, "… and %d more\n", len(rows)-limit)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ---- envelope helpers ----

func envelopeRows(env map[string]any, key string) []map[string]any {
	raw, _ := env[key].([]any)
	rows := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			rows = append(rows, m)
		}
	}
	return rows
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func asInt64(v any) (int64, bool) {
	switch value := v.(type) {
	case float64:
		return int64(value), true
	case int64:
		return value, true
	case int:
		return int64(value), true
	case json.Number:
		if id, err := value.Int64(); err == nil {
			return id, true
		}
	case string:
		var n int64
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

func numText(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch value := v.(type) {
	case float64:
		if value == float64(int64(value)) {
			return fmt.Sprintf("%d", int64(value))
		}
		return fmt.Sprintf("%g", value)
	case string:
		return value
	default:
		return fmt.Sprintf("%v", value)
	}
}

func writeLine(sb *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "- %s: %s\n", label, value)
}

func writeLineOrDefault(sb *strings.Builder, label, value, fallback string) {
	if value == "" {
		value = fallback
	}
	fmt.Fprintf(sb, "- %s: %s\n", label, value)
}

func line(label, primary, fallback string) string {
	value := primary
	if value == "" {
		value = fallback
	}
	if value == "" {
		return ""
	}
	return fmt.Sprintf("- %s: %s\n", label, value)
}

func sectionLines(lines ...string) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l)
	}
	return sb.String()
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
