package appserver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Lead fetches a single lead by id within a tenant.
func (c *Client) Lead(ctx context.Context, tenantID, leadID int64) (map[string]any, error) {
	query := url.Values{"tenant_id": {strconv.FormatInt(tenantID, 10)}}
	data, err := c.getJSON(ctx, fmt.Sprintf("/api/leads/%d", leadID), query)
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("appserver: lead %d not found", leadID)
	}
	return rows[0], nil
}

// LookupLeads searches leads by phone and/or email.
func (c *Client) LookupLeads(ctx context.Context, tenantID int64, phone, email string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 10
	}
	query := url.Values{
		"tenant_id": {strconv.FormatInt(tenantID, 10)},
		"limit":     {strconv.Itoa(limit)},
	}
	if phone != "" {
		query.Set("contact_number", phone)
	}
	if email != "" {
		query.Set("email", email)
	}
	data, err := c.getJSON(ctx, "/api/leads", query)
	if err != nil {
		return nil, err
	}
	return decodeRows(data)
}

// UpdateLead applies a partial field update to a lead.
func (c *Client) UpdateLead(ctx context.Context, tenantID, leadID int64, fields map[string]any) (map[string]any, error) {
	payload := map[string]any{"tenant_id": tenantID}
	for k, v := range fields {
		payload[k] = v
	}
	data, err := c.mutate(ctx, http.MethodPatch, fmt.Sprintf("/api/leads/%d", leadID), payload)
	if err != nil {
		return nil, err
	}
	return decodeObject(data)
}
