package orchestrator

import (
	"testing"
	"time"
)

func TestStageClassifyIntent(t *testing.T) {
	cases := []struct {
		text string
		want Intent
	}{
		{"Hi there!", IntentGreeting},
		{"I'd like to buy this one", IntentPurchaseIntent},
		{"That's too expensive for us", IntentObjection},
		{"my email is jane@example.com", IntentLeadCapture},
		{"I'm having an issue with my order", IntentSupport},
		{"is this in stock right now?", IntentAvailability},
		{"how much does it cost?", IntentPricing},
		{"what are the specs on this?", IntentProductInquiry},
		{"haha thanks so much", IntentSmalltalk},
		{"purple elephants dance sideways", IntentOther},
	}

	o := &Orchestrator{}
	for _, tc := range cases {
		state := &TurnState{IncomingText: tc.text, PerStageTimings: make(map[string]time.Duration)}
		o.stageClassifyIntent(state)
		if state.ClassifiedIntent != tc.want {
			t.Errorf("text %q: got intent %q, want %q", tc.text, state.ClassifiedIntent, tc.want)
		}
	}
}
