package tools

import "context"

// ServiceAPI is the slice of the application server client used by service
// tools.
type ServiceAPI interface {
	ListServices(ctx context.Context, tenantID int64) ([]map[string]any, error)
	Service(ctx context.Context, tenantID, serviceID int64) (map[string]any, error)
	SearchServices(ctx context.Context, tenantID int64, name string) ([]map[string]any, error)
	UpdateService(ctx context.Context, tenantID, serviceID int64, fields map[string]any) (map[string]any, error)
}

var serviceWritableFields = map[string]bool{
	"name":        true,
	"description": true,
	"for_report":  true,
}

// ServiceTools returns the service_list, service_get, service_search, and
// service_update tools. service_update is registered regardless of role; the
// caller gates it on super-admin before execution.
func ServiceTools(api ServiceAPI) []Tool {
	return []Tool{
		{
			Name:        "service_list",
			Description: "List every service configured for the tenant.",
			Parameters: objectSchema(map[string]any{
				"tenant_id": prop("integer", "Tenant whose services to list."),
			}, "tenant_id"),
			Exec: func(ctx context.Context, args map[string]any) (string, error) {
				tenantID, err := argInt64(args, "tenant_id")
				if err != nil {
					return "", err
				}
				rows, err := api.ListServices(ctx, tenantID)
				if err != nil {
					return "", err
				}
				return marshalResult(map[string]any{"services": rows, "count": len(rows)})
			},
		},
		{
			Name:        "service_get",
			Description: "Fetch a single service by its numeric id.",
			Parameters: objectSchema(map[string]any{
				"tenant_id":  prop("integer", "Tenant the service belongs to."),
				"service_id": prop("integer", "Numeric service id."),
			}, "tenant_id", "service_id"),
			Exec: func(ctx context.Context, args map[string]any) (string, error) {
				tenantID, err := argInt64(args, "tenant_id")
				if err != nil {
					return "", err
				}
				serviceID, err := argInt64(args, "service_id")
				if err != nil {
					return "", err
				}
				svc, err := api.Service(ctx, tenantID, serviceID)
				if err != nil {
					return "", err
				}
				return marshalResult(map[string]any{"service": svc})
			},
		},
		{
			Name:        "service_search",
			Description: "Find services by full or partial name.",
			Parameters: objectSchema(map[string]any{
				"tenant_id": prop("integer", "Tenant to search within."),
				"name":      prop("string", "Full or partial service name."),
			}, "tenant_id", "name"),
			Exec: func(ctx context.Context, args map[string]any) (string, error) {
				tenantID, err := argInt64(args, "tenant_id")
				if err != nil {
					return "", err
				}
				rows, err := api.SearchServices(ctx, tenantID, argString(args, "name"))
				if err != nil {
					return "", err
				}
				return marshalResult(map[string]any{"services": rows, "count": len(rows)})
			},
		},
		{
			Name:        "service_update",
			Description: "Update a service's name, description, or report flag. Restricted to super admins.",
			Parameters: objectSchema(map[string]any{
				"tenant_id":  prop("integer", "Tenant the service belongs to."),
				"service_id": prop("integer", "Numeric service id."),
				"fields": map[string]any{
					"type":        "object",
					"description": "Field name to new value. Allowed: name, description, for_report.",
				},
			}, "tenant_id", "service_id", "fields"),
			Exec: func(ctx context.Context, args map[string]any) (string, error) {
				tenantID, err := argInt64(args, "tenant_id")
				if err != nil {
					return "", err
				}
				serviceID, err := argInt64(args, "service_id")
				if err != nil {
					return "", err
				}
				fields, err := writableFields(args, serviceWritableFields)
				if err != nil {
					return "", err
				}
				updated, err := api.UpdateService(ctx, tenantID, serviceID, fields)
				if err != nil {
					return "", err
				}
				return marshalResult(map[string]any{"service": updated})
			},
		},
	}
}
