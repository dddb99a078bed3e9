package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/salesagentco/platform/internal/domain"
)

// leadJSON mirrors the strict JSON shape the qualification prompt asks the
// LLM for. Fields are plain strings here since encoding/json happily leaves
// absent/null fields as "", which parseLeadJSON then turns into nil pointers.
// Absent, null and empty values all become nil, so MergeLeadInfo treats them
// alike as "unknown" and never overwrites a known value with them.
type leadJSON struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Company       string `json:"company"`
	InterestLevel string `json:"interest_level"`
}

// parseLeadJSON extracts a domain.LeadInfo from the LLM's raw reply. The
// model is asked to respond with JSON only, but real replies sometimes wrap
// it in prose or a code fence, so this trims to the outermost braces first.
func parseLeadJSON(reply string) (domain.LeadInfo, error) {
	start, end := -1, -1
	for i, r := range reply {
		if r == '{' && start == -1 {
			start = i
		}
		if r == '}' {
			end = i
		}
	}
	if start == -1 || end == -1 || end < start {
		return domain.LeadInfo{}, fmt.Errorf("no json object found in lead response")
	}

	var parsed leadJSON
	if err := json.Unmarshal([]byte(reply[start:end+1]), &parsed); err != nil {
		return domain.LeadInfo{}, fmt.Errorf("decode lead json: %w", err)
	}

	info := domain.LeadInfo{}
	info.Name = nonEmpty(parsed.Name)
	info.Email = nonEmpty(parsed.Email)
	info.Phone = nonEmpty(parsed.Phone)
	info.Company = nonEmpty(parsed.Company)
	info.InterestLevel = nonEmpty(parsed.InterestLevel)
	return info, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// MergeLeadInfo folds delta into existing without ever overwriting a known
// field with an unknown one — a lead's email learned in turn 3 survives even
// if turn 7's extraction pass didn't mention it again.
func MergeLeadInfo(existing, delta domain.LeadInfo) domain.LeadInfo {
	merged := existing
	if delta.Name != nil {
		merged.Name = delta.Name
	}
	if delta.Email != nil {
		merged.Email = delta.Email
	}
	if delta.Phone != nil {
		merged.Phone = delta.Phone
	}
	if delta.Company != nil {
		merged.Company = delta.Company
	}
	if delta.Budget != nil {
		merged.Budget = delta.Budget
	}
	if delta.Timeline != nil {
		merged.Timeline = delta.Timeline
	}
	if delta.InterestLevel != nil {
		merged.InterestLevel = delta.InterestLevel
	}
	return merged
}
