package orchestrator

import (
	"testing"

	"github.com/salesagentco/platform/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestParseLeadJSON(t *testing.T) {
	reply := "Sure, here you go:\n```json\n{\"name\":\"Jane Doe\",\"email\":\"jane@example.com\",\"phone\":null,\"company\":\"Acme\",\"interest_level\":\"high\"}\n```"

	info, err := parseLeadJSON(reply)
	if err != nil {
		t.Fatalf("parseLeadJSON: %v", err)
	}
	if info.Name == nil || *info.Name != "Jane Doe" {
		t.Errorf("name = %v, want Jane Doe", info.Name)
	}
	if info.Email == nil || *info.Email != "jane@example.com" {
		t.Errorf("email = %v, want jane@example.com", info.Email)
	}
	if info.Phone != nil {
		t.Errorf("phone = %v, want nil", info.Phone)
	}
	if info.Company == nil || *info.Company != "Acme" {
		t.Errorf("company = %v, want Acme", info.Company)
	}
}

func TestParseLeadJSON_NoObject(t *testing.T) {
	if _, err := parseLeadJSON("no json here"); err == nil {
		t.Fatal("expected error for reply with no JSON object")
	}
}

func TestMergeLeadInfo_NeverOverwritesWithNil(t *testing.T) {
	existing := domain.LeadInfo{
		Name:  strPtr("Jane Doe"),
		Email: strPtr("jane@example.com"),
	}
	delta := domain.LeadInfo{
		Phone: strPtr("555-0100"),
	}

	merged := MergeLeadInfo(existing, delta)

	if merged.Name == nil || *merged.Name != "Jane Doe" {
		t.Errorf("name should survive merge, got %v", merged.Name)
	}
	if merged.Email == nil || *merged.Email != "jane@example.com" {
		t.Errorf("email should survive merge, got %v", merged.Email)
	}
	if merged.Phone == nil || *merged.Phone != "555-0100" {
		t.Errorf("phone should be added by merge, got %v", merged.Phone)
	}
}

func TestMergeLeadInfo_NewValueOverwritesOld(t *testing.T) {
	existing := domain.LeadInfo{InterestLevel: strPtr("low")}
	delta := domain.LeadInfo{InterestLevel: strPtr("high")}

	merged := MergeLeadInfo(existing, delta)

	if merged.InterestLevel == nil || *merged.InterestLevel != "high" {
		t.Errorf("interest_level = %v, want high", merged.InterestLevel)
	}
}
