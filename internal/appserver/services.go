package appserver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ListServices lists a tenant's services.
func (c *Client) ListServices(ctx context.Context, tenantID int64) ([]map[string]any, error) {
	query := url.Values{"tenant_id": {strconv.FormatInt(tenantID, 10)}}
	data, err := c.getJSON(ctx, "/api/services", query)
	if err != nil {
		return nil, err
	}
	return decodeRows(data)
}

// Service fetches one service by id.
func (c *Client) Service(ctx context.Context, tenantID, serviceID int64) (map[string]any, error) {
	query := url.Values{"tenant_id": {strconv.FormatInt(tenantID, 10)}}
	data, err := c.getJSON(ctx, fmt.Sprintf("/api/services/%d", serviceID), query)
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("appserver: service %d not found", serviceID)
	}
	return rows[0], nil
}

// SearchServices searches services by name.
func (c *Client) SearchServices(ctx context.Context, tenantID int64, name string) ([]map[string]any, error) {
	query := url.Values{
		"tenant_id": {strconv.FormatInt(tenantID, 10)},
		"name":      {name},
	}
	data, err := c.getJSON(ctx, "/api/services/search", query)
	if err != nil {
		return nil, err
	}
	return decodeRows(data)
}

// UpdateService applies a partial field update to a service.
func (c *Client) UpdateService(ctx context.Context, tenantID, serviceID int64, fields map[string]any) (map[string]any, error) {
	payload := map[string]any{"tenant_id": tenantID}
	for k, v := range fields {
		payload[k] = v
	}
	data, err := c.mutate(ctx, http.MethodPatch, fmt.Sprintf("/api/services/%d", serviceID), payload)
	if err != nil {
		return nil, err
	}
	return decodeObject(data)
}
