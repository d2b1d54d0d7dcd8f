package tools

import "context"

// ClinicAPI is the slice of the application server client used by clinic tools.
type ClinicAPI interface {
	Clinic(ctx context.Context, tenantID, clinicID int64) (map[string]any, error)
	SearchClinics(ctx context.Context, tenantID int64, name string) ([]map[string]any, error)
	UpdateClinic(ctx context.Context, tenantID, clinicID int64, fields map[string]any) (map[string]any, error)
}

var clinicWritableFields = map[string]bool{
	"name":           true,
	"address":        true,
	"contact_number": true,
	"email":          true,
}

// ClinicTools returns the clinic_get, clinic_search, and clinic_update tools.
func ClinicTools(api ClinicAPI) []Tool {
	return []Tool{
		{
			Name:        "clinic_get",
			Description: "Fetch a single clinic by its numeric id.",
			Parameters: objectSchema(map[string]any{
				"tenant_id": prop("integer", "Tenant the clinic belongs to."),
				"clinic_id": prop("integer", "Numeric clinic id."),
			}, "tenant_id", "clinic_id"),
			Exec: func(ctx context.Context, args map[string]any) (string, error) {
				tenantID, err := argInt64(args, "tenant_id")
				if err != nil {
					return "", err
				}
				clinicID, err := argInt64(args, "clinic_id")
				if err != nil {
					return "", err
				}
				clinic, err := api.Clinic(ctx, tenantID, clinicID)
				if err != nil {
					return "", err
				}
				return marshalResult(map[string]any{"clinic": clinic})
			},
		},
		{
			Name:        "clinic_search",
			Description: "Find clinics by full or partial name.",
			Parameters: objectSchema(map[string]any{
				"tenant_id": prop("integer", "Tenant to search within."),
				"name":      prop("string", "Full or partial clinic name."),
			}, "tenant_id", "name"),
			Exec: func(ctx context.Context, args map[string]any) (string, error) {
				tenantID, err := argInt64(args, "tenant_id")
				if err != nil {
					return "", err
				}
				rows, err := api.SearchClinics(ctx, tenantID, argString(args, "name"))
				if err != nil {
					return "", err
				}
				return marshalResult(map[string]any{"clinics": rows, "count": len(rows)})
			},
		},
		{
			Name:        "clinic_update",
			Description: "Update clinic details such as name, address, or contact info.",
			Parameters: objectSchema(map[string]any{
				"tenant_id": prop("integer", "Tenant the clinic belongs to."),
				"clinic_id": prop("integer", "Numeric clinic id."),
				"fields": map[string]any{
					"type":        "object",
					"description": "Field name to new value. Allowed: name, address, contact_number, email.",
				},
			}, "tenant_id", "clinic_id", "fields"),
			Exec: func(ctx context.Context, args map[string]any) (string, error) {
				tenantID, err := argInt64(args, "tenant_id")
				if err != nil {
					return "", err
				}
				clinicID, err := argInt64(args, "clinic_id")
				if err != nil {
					return "", err
				}
				fields, err := writableFields(args, clinicWritableFields)
				if err != nil {
					return "", err
				}
				updated, err := api.UpdateClinic(ctx, tenantID, clinicID, fields)
				if err != nil {
					return "", err
				}
				return marshalResult(map[string]any{"clinic": updated})
			},
		},
	}
}
