package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Querier is the read-replica surface sql_read needs. *pgxpool.Pool satisfies
// it, and so do the pgxmock pool fakes used in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	sqlReadDefaultLimit = 50
	sqlReadMaxLimit     = 200
)

// readableTables maps each queryable table to its readable columns. Anything
// outside this map is rejected before SQL is built.
var readableTables = map[string]map[string]bool{
	"leads": {
		"id": true, "client_id": true, "first_name": true, "last_name": true,
		"contact_number": true, "email": true, "status": true, "description": true,
		"potential_score": true, "type": true, "created_at": true, "updated_at": true,
	},
	"clinics": {
		"id": true, "client_id": true, "name": true, "address": true,
		"contact_number": true, "email": true, "created_at": true, "updated_at": true,
	},
	"services": {
		"id": true, "client_id": true, "name": true, "description": true,
		"for_report": true, "created_at": true, "updated_at": true,
	},
	"appointments": {
		"id": true, "client_id": true, "clinic_id": true, "service_id": true,
		"lead_id": true, "date": true, "from_time": true, "to_time": true,
		"status": true, "created_at": true, "updated_at": true,
	},
	"client_leads": {
		"id": true, "client_id": true, "first_name": true, "last_name": true,
		"contact_number": true, "email": true, "status": true, "type": true,
		"potential_score": true, "is_scored": true, "created_at": true,
	},
}

// tenantColumn is the column tenant enforcement writes into "where".
const tenantColumn = "tenant_id"

// SQLReadTool returns the sql_read tool: a whitelisted SELECT against the
// reporting read replica. The tenant filter arrives inside the where clause
// and is mapped onto the client_id column.
func SQLReadTool(db Querier) Tool {
	return Tool{
		Name:        "sql_read",
		Description: "Run a read-only query against the reporting replica. Only whitelisted tables and columns are available.",
		Parameters: objectSchema(map[string]any{
			"table": prop("string", "One of: leads, clinics, services, appointments, client_leads."),
			"columns": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Columns to select. Empty selects all readable columns.",
			},
			"where": map[string]any{
				"type":        "object",
				"description": "Column name to exact-match value.",
			},
			"order_by": prop("string", "Column to sort by, optionally suffixed with ' desc'."),
			"limit":    prop("integer", "Row cap, default 50, max 200."),
		}, "table"),
		Exec: func(ctx context.Context, args map[string]any) (string, error) {
			query, params, err := buildReadQuery(args)
			if err != nil {
				return "", err
			}
			rows, err := db.Query(ctx, query, params...)
			if err != nil {
				return "", fmt.Errorf("tools: sql_read query failed: %w", err)
			}
			defer rows.Close()

			out, err := collectRows(rows)
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{"rows": out, "count": len(out)})
		},
	}
}

func buildReadQuery(args map[string]any) (string, []any, error) {
	table := argString(args, "table")
	allowed, ok := readableTables[table]
	if !ok {
		return "", nil, fmt.Errorf("tools: table %q is not readable", table)
	}

	columns, err := selectColumns(args, allowed)
	if err != nil {
		return "", nil, err
	}

	var (
		sb     strings.Builder
		params []any
	)
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(table)

	where, _ := args["where"].(map[string]any)
	if len(where) > 0 {
		keys := make([]string, 0, len(where))
		for k := range where {
			keys = append(keys, k)
		}
		// stable order keeps the statement cacheable and testable
		sort.Strings(keys)
		sb.WriteString(" WHERE ")
		for i, k := range keys {
			col := k
			if col == tenantColumn {
				col = "client_id"
			}
			if !allowed[col] {
				return "", nil, fmt.Errorf("tools: column %q is not filterable on %s", k, table)
			}
			if i > 0 {
				sb.WriteString(" AND ")
			}
			params = append(params, where[k])
			fmt.Fprintf(&sb, "%s = $%d", col, len(params))
		}
	}

	if orderBy := argString(args, "order_by"); orderBy != "" {
		col, desc := strings.TrimSpace(orderBy), false
		if s, found := strings.CutSuffix(strings.ToLower(col), " desc"); found {
			col, desc = strings.TrimSpace(s), true
		}
		if !allowed[col] {
			return "", nil, fmt.Errorf("tools: column %q is not sortable on %s", orderBy, table)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(col)
		if desc {
			sb.WriteString(" DESC")
		}
	}

	limit := argInt(args, "limit", sqlReadDefaultLimit)
	if limit <= 0 {
		limit = sqlReadDefaultLimit
	}
	if limit > sqlReadMaxLimit {
		limit = sqlReadMaxLimit
	}
	fmt.Fprintf(&sb, " LIMIT %d", limit)

	return sb.String(), params, nil
}

func selectColumns(args map[string]any, allowed map[string]bool) ([]string, error) {
	raw, _ := args["columns"].([]any)
	if len(raw) == 0 {
		cols := make([]string, 0, len(allowed))
		for col := range allowed {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		return cols, nil
	}
	cols := make([]string, 0, len(raw))
	for _, item := range raw {
		col, ok := item.(string)
		if !ok || !allowed[col] {
			return nil, fmt.Errorf("tools: column %v is not readable", item)
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func collectRows(rows pgx.Rows) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("tools: sql_read scan failed: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[string(fd.Name)] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tools: sql_read iteration failed: %w", err)
	}
	return out, nil
}
