package tools

import "context"

// LeadAPI is the slice of the application server client used by lead tools.
type LeadAPI interface {
	Lead(ctx context.Context, tenantID, leadID int64) (map[string]any, error)
	LookupLeads(ctx context.Context, tenantID int64, phone, email string, limit int) ([]map[string]any, error)
	UpdateLead(ctx context.Context, tenantID, leadID int64, fields map[string]any) (map[string]any, error)
}

// leadWritableFields lists the lead columns the assistant may change.
var leadWritableFields = map[string]bool{
	"first_name":     true,
	"last_name":      true,
	"contact_number": true,
	"email":          true,
	"status":         true,
	"description":    true,
}

// LeadTools returns the lead_get, lead_lookup, and lead_update tools.
func LeadTools(api LeadAPI) []Tool {
	return []Tool{
		{
			Name:        "lead_get",
			Description: "Fetch a single lead by its numeric id.",
			Parameters: objectSchema(map[string]any{
				"tenant_id": prop("integer", "Tenant the lead belongs to."),
				"lead_id":   prop("integer", "Numeric lead id."),
			}, "tenant_id", "lead_id"),
			Exec: func(ctx context.Context, args map[string]any) (string, error) {
				tenantID, err := argInt64(args, "tenant_id")
				if err != nil {
					return "", err
				}
				leadID, err := argInt64(args, "lead_id")
				if err != nil {
					return "", err
				}
				lead, err := api.Lead(ctx, tenantID, leadID)
				if err != nil {
					return "", err
				}
				return marshalResult(map[string]any{"lead": lead})
			},
		},
		{
			Name:        "lead_lookup",
			Description: "Search leads by phone number and/or email address.",
			Parameters: objectSchema(map[string]any{
				"tenant_id": prop("integer", "Tenant to search within."),
				"phone":     prop("string", "Phone number in any common format."),
				"email":     prop("string", "Email address."),
				"limit":     prop("integer", "Maximum rows to return, default 10."),
			}, "tenant_id"),
			Exec: func(ctx context.Context, args map[string]any) (string, error) {
				tenantID, err := argInt64(args, "tenant_id")
				if err != nil {
					return "", err
				}
				rows, err := api.LookupLeads(ctx, tenantID,
					argString(args, "phone"), argString(args, "email"), argInt(args, "limit", 10))
				if err != nil {
					return "", err
				}
				return marshalResult(map[string]any{"leads": rows, "count": len(rows)})
			},
		},
		{
			Name:        "lead_update",
			Description: "Update one or more fields on a lead. Only name, contact, status, and description fields are writable.",
			Parameters: objectSchema(map[string]any{
				"tenant_id": prop("integer", "Tenant the lead belongs to."),
				"lead_id":   prop("integer", "Numeric lead id."),
				"fields": map[string]any{
					"type":        "object",
					"description": "Field name to new value. Allowed: first_name, last_name, contact_number, email, status, description.",
				},
			}, "tenant_id", "lead_id", "fields"),
			Exec: func(ctx context.Context, args map[string]any) (string, error) {
				tenantID, err := argInt64(args, "tenant_id")
				if err != nil {
					return "", err
				}
				leadID, err := argInt64(args, "lead_id")
				if err != nil {
					return "", err
				}
				fields, err := writableFields(args, leadWritableFields)
				if err != nil {
					return "", err
				}
				updated, err := api.UpdateLead(ctx, tenantID, leadID, fields)
				if err != nil {
					return "", err
				}
				return marshalResult(map[string]any{"lead": updated})
			},
		},
	}
}
