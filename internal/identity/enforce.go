package identity

// tenantScopedTools is the closed set of tool names whose arguments must
// carry the caller's tenant id.
var tenantScopedTools = map[string]bool{
	"lead_get":           true,
	"lead_lookup":        true,
	"lead_update":        true,
	"clinic_get":         true,
	"clinic_search":      true,
	"clinic_update":      true,
	"service_list":       true,
	"service_get":        true,
	"service_search":     true,
	"service_update":     true,
	"appointment_slots":  true,
	"appointment_create": true,
	"appointment_update": true,
	"appointment_cancel": true,
	"appointment_get":    true,
	"sql_read":           true,
}

// IsTenantScoped reports whether a tool requires tenant enforcement.
func IsTenantScoped(toolName string) bool {
	return tenantScopedTools[toolName]
}

// EnforceTenant rewrites tool arguments to carry the caller's tenant id.
// For the generic SQL read tool the id lands inside the "where" sub-map so
// it participates in the row filter. Non-scoped tools pass through untouched.
// A scoped tool with no tenant id fails before any network I/O.
func EnforceTenant(toolName string, args map[string]any, tenantID int64) (map[string]any, error) {
	if !tenantScopedTools[toolName] {
		return args, nil
	}
	if tenantID <= 0 {
		return nil, ErrMissingTenant
	}

	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}

	if toolName == "sql_read" {
		where, _ := out["where"].(map[string]any)
		scoped := make(map[string]any, len(where)+1)
		for k, v := range where {
			scoped[k] = v
		}
		scoped["tenant_id"] = tenantID
		out["where"] = scoped
		return out, nil
	}

	out["tenant_id"] = tenantID
	return out, nil
}
