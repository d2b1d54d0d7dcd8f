package appserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Slot is one bookable window reported by the application server.
type Slot struct {
	From       string `json:"from_time"`
	To         string `json:"to_time"`
	HasBooking bool   `json:"has_booking"`
}

// AppointmentSlots lists the slot grid for a clinic on a date (YYYY-MM-DD).
func (c *Client) AppointmentSlots(ctx context.Context, tenantID, clinicID int64, date string) ([]Slot, error) {
	query := url.Values{
		"tenant_id": {strconv.FormatInt(tenantID, 10)},
		"clinic_id": {strconv.FormatInt(clinicID, 10)},
		"date":      {date},
	}
	data, err := c.getJSON(ctx, "/api/appointments/slots", query)
	if err != nil {
		return nil, err
	}

	var slots []Slot
	if err := json.Unmarshal(data, &slots); err == nil {
		return slots, nil
	}
	var wrapped struct {
		Slots []Slot `json:"slots"`
		Data  []Slot `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("appserver: decode slots failed: %w", err)
	}
	if wrapped.Slots != nil {
		return wrapped.Slots, nil
	}
	return wrapped.Data, nil
}

// CreateAppointment books a new appointment.
func (c *Client) CreateAppointment(ctx context.Context, tenantID int64, fields map[string]any) (map[string]any, error) {
	payload := map[string]any{"tenant_id": tenantID}
	for k, v := range fields {
		payload[k] = v
	}
	data, err := c.mutate(ctx, http.MethodPost, "/api/appointments", payload)
	if err != nil {
		return nil, err
	}
	return decodeObject(data)
}

// UpdateAppointment reschedules or edits an appointment.
func (c *Client) UpdateAppointment(ctx context.Context, tenantID, appointmentID int64, fields map[string]any) (map[string]any, error) {
	payload := map[string]any{"tenant_id": tenantID}
	for k, v := range fields {
		payload[k] = v
	}
	data, err := c.mutate(ctx, http.MethodPatch, fmt.Sprintf("/api/appointments/%d", appointmentID), payload)
	if err != nil {
		return nil, err
	}
	return decodeObject(data)
}

// CancelAppointment cancels an appointment.
func (c *Client) CancelAppointment(ctx context.Context, tenantID, appointmentID int64) (map[string]any, error) {
	payload := map[string]any{"tenant_id": tenantID}
	data, err := c.mutate(ctx, http.MethodDelete, fmt.Sprintf("/api/appointments/%d", appointmentID), payload)
	if err != nil {
		return nil, err
	}
	return decodeObject(data)
}

// Appointment fetches one appointment by id.
func (c *Client) Appointment(ctx context.Context, tenantID, appointmentID int64) (map[string]any, error) {
	query := url.Values{"tenant_id": {strconv.FormatInt(tenantID, 10)}}
	data, err := c.getJSON(ctx, fmt.Sprintf("/api/appointments/%d", appointmentID), query)
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("appserver: appointment %d not found", appointmentID)
	}
	return rows[0], nil
}
