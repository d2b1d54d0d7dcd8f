package tools

import (
	"context"

	"github.com/dentalops/assistant/internal/appserver"
)

// AppointmentAPI is the slice of the application server client used by
// appointment tools.
type AppointmentAPI interface {
	AppointmentSlots(ctx context.Context, tenantID, clinicID int64, date string) ([]appserver.Slot, error)
	CreateAppointment(ctx context.Context, tenantID int64, fields map[string]any) (map[string]any, error)
	UpdateAppointment(ctx context.Context, tenantID, appointmentID int64, fields map[string]any) (map[string]any, error)
	CancelAppointment(ctx context.Context, tenantID, appointmentID int64) (map[string]any, error)
	Appointment(ctx context.Context, tenantID, appointmentID int64) (map[string]any, error)
}

var appointmentWritableFields = map[string]bool{
	"date":       true,
	"from_time":  true,
	"to_time":    true,
	"clinic_id":  true,
	"service_id": true,
	"status":     true,
	"notes":      true,
}

var appointmentCreateFields = map[string]bool{
	"clinic_id":      true,
	"service_id":     true,
	"lead_id":        true,
	"date":           true,
	"from_time":      true,
	"to_time":        true,
	"first_name":     true,
	"last_name":      true,
	"email":          true,
	"contact_number": true,
	"dob":            true,
	"gender":         true,
	"notes":          true,
}

// AppointmentTools returns the appointment_slots, appointment_get,
// appointment_create, appointment_update, and appointment_cancel tools.
func AppointmentTools(api AppointmentAPI) []Tool {
	return []Tool{
		{
			Name:        "appointment_slots",
			Description: "List the slot grid for a clinic on a given date, including whether each slot is booked.",
			Parameters: objectSchema(map[string]any{
				"tenant_id": prop("integer", "Tenant the clinic belongs to."),
				"clinic_id": prop("integer", "Numeric clinic id."),
				"date":      prop("string", "Date in YYYY-MM-DD form."),
			}, "tenant_id", "clinic_id", "date"),
			Exec: func(ctx context.Context, args map[string]any) (string, error) {
				tenantID, err := argInt64(args, "tenant_id")
				if err != nil {
					return "", err
				}
				clinicID, err := argInt64(args, "clinic_id")
				if err != nil {
					return "", err
				}
				slots, err := api.AppointmentSlots(ctx, tenantID, clinicID, argString(args, "date"))
				if err != nil {
					return "", err
				}
				return marshalResult(map[string]any{"slots": slots, "count": len(slots)})
			},
		},
		{
			Name:        "appointment_get",
			Description: "Fetch a single appointment by its numeric id.",
			Parameters: objectSchema(map[string]any{
				"tenant_id":      prop("integer", "Tenant the appointment belongs to."),
				"appointment_id": prop("integer", "Numeric appointment id."),
			}, "tenant_id", "appointment_id"),
			Exec: func(ctx context.Context, args map[string]any) (string, error) {
				tenantID, err := argInt64(args, "tenant_id")
				if err != nil {
					return "", err
				}
				appointmentID, err := argInt64(args, "appointment_id")
				if err != nil {
					return "", err
				}
				appt, err := api.Appointment(ctx, tenantID, appointmentID)
				if err != nil {
					return "", err
				}
				return marshalResult(map[string]any{"appointment": appt})
			},
		},
		{
			Name:        "appointment_create",
			Description: "Book an appointment for a patient at a clinic on a given date and time.",
			Parameters: objectSchema(map[string]any{
				"tenant_id": prop("integer", "Tenant to book within."),
				"fields": map[string]any{
					"type":        "object",
					"description": "Booking details: clinic_id, date, from_time, to_time, and patient identity (first_name/last_name or lead_id).",
				},
			}, "tenant_id", "fields"),
			Exec: func(ctx context.Context, args map[string]any) (string, error) {
				tenantID, err := argInt64(args, "tenant_id")
				if err != nil {
					return "", err
				}
				fields, err := writableFields(args, appointmentCreateFields)
				if err != nil {
					return "", err
				}
				created, err := api.CreateAppointment(ctx, tenantID, fields)
				if err != nil {
					return "", err
				}
				return marshalResult(map[string]any{"appointment": created})
			},
		},
		{
			Name:        "appointment_update",
			Description: "Reschedule or modify an existing appointment.",
			Parameters: objectSchema(map[string]any{
				"tenant_id":      prop("integer", "Tenant the appointment belongs to."),
				"appointment_id": prop("integer", "Numeric appointment id."),
				"fields": map[string]any{
					"type":        "object",
					"description": "Field name to new value. Allowed: date, from_time, to_time, clinic_id, service_id, status, notes.",
				},
			}, "tenant_id", "appointment_id", "fields"),
			Exec: func(ctx context.Context, args map[string]any) (string, error) {
				tenantID, err := argInt64(args, "tenant_id")
				if err != nil {
					return "", err
				}
				appointmentID, err := argInt64(args, "appointment_id")
				if err != nil {
					return "", err
				}
				fields, err := writableFields(args, appointmentWritableFields)
				if err != nil {
					return "", err
				}
				updated, err := api.UpdateAppointment(ctx, tenantID, appointmentID, fields)
				if err != nil {
					return "", err
				}
				return marshalResult(map[string]any{"appointment": updated})
			},
		},
		{
			Name:        "appointment_cancel",
			Description: "Cancel an existing appointment by id.",
			Parameters: objectSchema(map[string]any{
				"tenant_id":      prop("integer", "Tenant the appointment belongs to."),
				"appointment_id": prop("integer", "Numeric appointment id."),
			}, "tenant_id", "appointment_id"),
			Exec: func(ctx context.Context, args map[string]any) (string, error) {
				tenantID, err := argInt64(args, "tenant_id")
				if err != nil {
					return "", err
				}
				appointmentID, err := argInt64(args, "appointment_id")
				if err != nil {
					return "", err
				}
				result, err := api.CancelAppointment(ctx, tenantID, appointmentID)
				if err != nil {
					return "", err
				}
				return marshalResult(map[string]any{"appointment": result})
			},
		},
	}
}
