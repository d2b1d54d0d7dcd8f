package appserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// LeadSubmission is the normalized record produced by the call-analysis
// pipeline. Idempotency across re-runs is the server's responsibility,
// keyed by callrail id + phone.
type LeadSubmission struct {
	TenantID       int64  `json:"client_id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	ContactNumber  string `json:"contact_number"`
	Email          string `json:"email,omitempty"`
	CallRailID     string `json:"callrail_id,omitempty"`
	Description    string `json:"description"`
	Status         string `json:"status,omitempty"`
	PotentialScore int    `json:"potential_score"`
	Transcription  string `json:"transcription"`
	IsScored       bool   `json:"is_scored"`
	IsSelf         bool   `json:"is_self"`
	Type           string `json:"type"` // "receive" or "miss"
	UserID         string `json:"user_id"`
}

// BatchResult reports per-item outcomes of a batch submission.
type BatchResult struct {
	Saved  int      `json:"saved"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// SubmitLeadRecords sends analyzed lead records to the application server.
// The endpoint accepts a single object or an array; we always send the
// array form. Partial failures are reported in the result, not as an error.
func (c *Client) SubmitLeadRecords(ctx context.Context, records []LeadSubmission) (*BatchResult, error) {
	if len(records) == 0 {
		return &BatchResult{}, nil
	}
	data, err := c.sendJSON(ctx, http.MethodPost, "/api/client-leads/save", records)
	if err != nil {
		return nil, fmt.Errorf("appserver: submit lead records: %w", err)
	}

	var result BatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		// some server versions return a bare acknowledgment
		return &BatchResult{Saved: len(records)}, nil
	}
	return &result, nil
}
