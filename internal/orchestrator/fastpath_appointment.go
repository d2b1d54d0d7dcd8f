package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dentalops/assistant/internal/parse"
)

// slotInfo is the decoded slot grid entry.
type slotInfo struct {
	From   string
	To     string
	Booked bool
}

// fastAppointment dispatches on the parsed appointment intent. Every branch
// ends in a user-visible sentence; ambiguity produces a deterministic
// question rather than a model turn.
func (o *Orchestrator) fastAppointment(ctx context.Context, tenantID int64, msg string) (string, bool) {
	intent := parse.DetectAppointmentIntent(msg)
	if intent == parse.IntentNone {
		return "", false
	}
	if tenantID == 0 {
		return MsgNotLinked, true
	}

	switch intent {
	case parse.IntentSlots:
		return o.apptSlots(ctx, tenantID, msg), true
	case parse.IntentCreate:
		return o.apptBook(ctx, tenantID, msg), true
	case parse.IntentReschedule:
		return o.apptReschedule(ctx, tenantID, msg), true
	case parse.IntentCancel:
		return o.apptCancel(ctx, tenantID, msg), true
	}
	return "", false
}

func (o *Orchestrator) apptSlots(ctx context.Context, tenantID int64, msg string) string {
	clinicID, reply, ok := o.clinicForAppointment(ctx, tenantID, msg)
	if !ok {
		return reply
	}
	date := o.dateOrToday(msg)

	slots, err := o.readSlots(ctx, tenantID, clinicID, date)
	if err != nil {
		return fmt.Sprintf("I couldn't read the slot grid for clinic #%d on %s.", clinicID, date)
	}

	if parse.WantsBookedSlots(msg) {
		booked := filterSlots(slots, true)
		if len(booked) == 0 {
			return fmt.Sprintf("No booked slots for clinic #%d on %s.", clinicID, date)
		}
		return fmt.Sprintf("Booked slots for clinic #%d on %s:\n%s", clinicID, date, formatSlotLines(booked))
	}

	free := filterSlots(slots, false)
	if len(free) == 0 {
		return fmt.Sprintf("No available slots for clinic #%d on %s.", clinicID, date)
	}
	return fmt.Sprintf("Available slots for clinic #%d on %s:\n%s", clinicID, date, formatSlotLines(free))
}

func (o *Orchestrator) apptBook(ctx context.Context, tenantID int64, msg string) string {
	clinicID, reply, ok := o.clinicForAppointment(ctx, tenantID, msg)
	if !ok {
		return reply
	}
	date := o.dateOrToday(msg)

	patient := parse.ExtractPatientDetails(msg, o.now())
	if patient.FirstName == "" {
		return "Who is the appointment for? Please include the patient's name."
	}

	var from, to string
	if t, hasTime := parse.TimeOfDay(msg); hasTime {
		from = t
		to = parse.AddMinutes(t, parse.DefaultAppointmentMinutes)
	} else {
		slots, err := o.readSlots(ctx, tenantID, clinicID, date)
		if err != nil {
			return fmt.Sprintf("I couldn't read the slot grid for clinic #%d on %s.", clinicID, date)
		}
		earliest, found := earliestFree(slots)
		if !found {
			return fmt.Sprintf("No available slots for clinic #%d on %s.", clinicID, date)
		}
		from, to = earliest.From, earliest.To
	}

	fields := map[string]any{
		"clinic_id":  clinicID,
		"date":       date,
		"from_time":  from,
		"to_time":    to,
		"first_name": patient.FirstName,
	}
	if patient.LastName != "" {
		fields["last_name"] = patient.LastName
	}
	if patient.Email != "" {
		fields["email"] = patient.Email
	}
	if patient.DOB != "" {
		fields["dob"] = patient.DOB
	}
	if patient.Gender != "" {
		fields["gender"] = patient.Gender
	}

	if _, err := o.callTool(ctx, tenantID, "appointment_create", map[string]any{"fields": fields}); err != nil {
		return "I couldn't book the appointment. The server rejected the booking."
	}

	name := strings.TrimSpace(patient.FirstName + " " + patient.LastName)
	return fmt.Sprintf("✅ Appointment booked for %s at clinic #%d on %s from %s to %s.", name, clinicID, date, from, to)
}

func (o *Orchestrator) apptReschedule(ctx context.Context, tenantID int64, msg string) string {
	target, hasTime := parse.TimeOfDay(msg)
	if !hasTime {
		return "What time should I move the appointment to?"
	}
	clinicID, reply, ok := o.clinicForAppointment(ctx, tenantID, msg)
	if !ok {
		return reply
	}
	date := o.dateOrToday(msg)

	slots, err := o.readSlots(ctx, tenantID, clinicID, date)
	if err != nil {
		return fmt.Sprintf("I couldn't read the slot grid for clinic #%d on %s.", clinicID, date)
	}

	if slot, found := slotAt(slots, target); found && !slot.Booked {
		apptID, hasID := parse.AppointmentID(msg)
		if !hasID {
			if name, named := parse.RescheduleName(msg); named {
				apptID, hasID = o.appointmentForPatient(ctx, tenantID, name)
			}
		}
		if !hasID {
			return "I couldn't identify which appointment to move. Please include the appointment id."
		}
		_, err := o.callTool(ctx, tenantID, "appointment_update", map[string]any{
			"appointment_id": apptID,
			"fields": map[string]any{
				"date":      date,
				"from_time": slot.From,
				"to_time":   slot.To,
			},
		})
		if err != nil {
			return fmt.Sprintf("I couldn't move appointment #%d. The server rejected the change.", apptID)
		}
		return fmt.Sprintf("✅ Appointment #%d moved to %s from %s to %s.", apptID, date, slot.From, slot.To)
	}

	nearest := nearestFreeSlots(slots, target, 3)
	if len(nearest) == 0 {
		return fmt.Sprintf("There are no open slots for clinic #%d on %s.", clinicID, date)
	}
	return fmt.Sprintf("That time isn't available on %s. The nearest open slots are:\n%s", date, formatSlotLines(nearest))
}

func (o *Orchestrator) apptCancel(ctx context.Context, tenantID int64, msg string) string {
	apptID, ok := parse.AppointmentID(msg)
	if !ok {
		return "Which appointment should I cancel? Please include the appointment id."
	}
	if _, err := o.callTool(ctx, tenantID, "appointment_cancel", map[string]any{"appointment_id": apptID}); err != nil {
		return fmt.Sprintf("I couldn't cancel appointment #%d. The server rejected the request.", apptID)
	}
	return fmt.Sprintf("✅ Appointment #%d cancelled.", apptID)
}

// appointmentForPatient resolves a patient name to their most recent
// appointment through the reporting replica. Without the replica (or a
// matching lead) the caller falls back to asking for an explicit id.
func (o *Orchestrator) appointmentForPatient(ctx context.Context, tenantID int64, name string) (int64, bool) {
	first, last := parse.SplitName(parse.StripHonorific(name))
	if first == "" {
		return 0, false
	}
	where := map[string]any{"first_name": first}
	if last != "" {
		where["last_name"] = last
	}
	env, err := o.callTool(ctx, tenantID, "sql_read", map[string]any{
		"table":   "leads",
		"columns": []any{"id"},
		"where":   where,
		"limit":   1,
	})
	if err != nil {
		return 0, false
	}
	leads := envelopeRows(env, "rows")
	if len(leads) == 0 {
		return 0, false
	}
	leadID, ok := asInt64(leads[0]["id"])
	if !ok {
		return 0, false
	}

	env, err = o.callTool(ctx, tenantID, "sql_read", map[string]any{
		"table":    "appointments",
		"columns":  []any{"id"},
		"where":    map[string]any{"lead_id": leadID},
		"order_by": "date desc",
		"limit":    1,
	})
	if err != nil {
		return 0, false
	}
	appts := envelopeRows(env, "rows")
	if len(appts) == 0 {
		return 0, false
	}
	return asInt64(appts[0]["id"])
}

// clinicForAppointment resolves the clinic an appointment command refers to:
// explicit id first, else the tenant's single clinic.
func (o *Orchestrator) clinicForAppointment(ctx context.Context, tenantID int64, msg string) (int64, string, bool) {
	if clinicID, ok := parse.ClinicID(msg); ok {
		return clinicID, "", true
	}
	return o.resolveClinic(ctx, tenantID, "")
}

func (o *Orchestrator) dateOrToday(msg string) string {
	if date, ok := parse.Date(msg, o.now()); ok {
		return date
	}
	return o.now().Format("2006-01-02")
}

func (o *Orchestrator) readSlots(ctx context.Context, tenantID, clinicID int64, date string) ([]slotInfo, error) {
	env, err := o.callTool(ctx, tenantID, "appointment_slots", map[string]any{
		"clinic_id": clinicID,
		"date":      date,
	})
	if err != nil {
		return nil, err
	}
	return decodeSlots(env), nil
}

func decodeSlots(env map[string]any) []slotInfo {
	raw, _ := env["slots"].([]any)
	slots := make([]slotInfo, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		booked, _ := m["has_booking"].(bool)
		slots = append(slots, slotInfo{
			From:   stringField(m, "from_time"),
			To:     stringField(m, "to_time"),
			Booked: booked,
		})
	}
	return slots
}

func filterSlots(slots []slotInfo, booked bool) []slotInfo {
	out := make([]slotInfo, 0, len(slots))
	for _, s := range slots {
		if s.Booked == booked {
			out = append(out, s)
		}
	}
	return out
}

func slotAt(slots []slotInfo, from string) (slotInfo, bool) {
	for _, s := range slots {
		if s.From == from {
			return s, true
		}
	}
	return slotInfo{}, false
}

// earliestFree picks the free slot with the smallest start in HMS seconds.
func earliestFree(slots []slotInfo) (slotInfo, bool) {
	best := slotInfo{}
	found := false
	for _, s := range filterSlots(slots, false) {
		if !found || parse.HMSToSeconds(s.From) < parse.HMSToSeconds(best.From) {
			best, found = s, true
		}
	}
	return best, found
}

// nearestFreeSlots returns up to n free slots sorted by absolute distance of
// their start to the requested start.
func nearestFreeSlots(slots []slotInfo, target string, n int) []slotInfo {
	free := filterSlots(slots, false)
	want := parse.HMSToSeconds(target)
	sort.SliceStable(free, func(i, j int) bool {
		return absInt(parse.HMSToSeconds(free[i].From)-want) < absInt(parse.HMSToSeconds(free[j].From)-want)
	})
	if len(free) > n {
		free = free[:n]
	}
	return free
}

func formatSlotLines(slots []slotInfo) string {
	lines := make([]string, 0, len(slots))
	for _, s := range slots {
		lines = append(lines, fmt.Sprintf("- %s to %s", s.From, s.To))
	}
	return strings.Join(lines, "\n")
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
