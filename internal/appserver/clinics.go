package appserver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Clinic fetches a single clinic by id within a tenant.
func (c *Client) Clinic(ctx context.Context, tenantID, clinicID int64) (map[string]any, error) {
	query := url.Values{"tenant_id": {strconv.FormatInt(tenantID, 10)}}
	data, err := c.getJSON(ctx, fmt.Sprintf("/api/clinics/%d", clinicID), query)
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("appserver: clinic %d not found", clinicID)
	}
	return rows[0], nil
}

// SearchClinics lists a tenant's clinics, optionally filtered by name.
func (c *Client) SearchClinics(ctx context.Context, tenantID int64, name string) ([]map[string]any, error) {
	query := url.Values{"tenant_id": {strconv.FormatInt(tenantID, 10)}}
	if name != "" {
		query.Set("name", name)
	}
	data, err := c.getJSON(ctx, "/api/clinics", query)
	if err != nil {
		return nil, err
	}
	return decodeRows(data)
}

// UpdateClinic applies a partial field update to a clinic.
func (c *Client) UpdateClinic(ctx context.Context, tenantID, clinicID int64, fields map[string]any) (map[string]any, error) {
	payload := map[string]any{"tenant_id": tenantID}
	for k, v := range fields {
		payload[k] = v
	}
	data, err := c.mutate(ctx, http.MethodPatch, fmt.Sprintf("/api/clinics/%d", clinicID), payload)
	if err != nil {
		return nil, err
	}
	return decodeObject(data)
}
