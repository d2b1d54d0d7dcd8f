package main

import (
	"testing"
)

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" CAL1, ,CAL2,")
	if len(got) != 2 || got[0] != "CAL1" || got[1] != "CAL2" {
		t.Fatalf("unexpected split %v", got)
	}
	if got := splitCSV(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestParseTenantIDs(t *testing.T) {
	got, err := parseTenantIDs("7, 12")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != 7 || got[1] != 12 {
		t.Fatalf("unexpected ids %v", got)
	}

	if _, err := parseTenantIDs("seven"); err == nil {
		t.Fatalf("expected error for non-numeric tenant id")
	}
}

func TestTenantPrompts(t *testing.T) {
	out := tenantPrompts(map[string]string{"7": "prompt", "x": "dropped"})
	if len(out) != 1 || out[7] != "prompt" {
		t.Fatalf("unexpected prompts %v", out)
	}
}
