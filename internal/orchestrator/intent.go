package orchestrator

import (
	"regexp"
	"time"
)

// intentRule is one entry in the ordered classification table. Rules are
// tried in order and the first match wins — deterministic and easy to
// reason about, unlike a scored classifier.
type intentRule struct {
	intent Intent
	regex  *regexp.Regexp
}

// intentRules is deliberately ordered: purchase intent and objections must
// be checked before the broader product_inquiry/pricing buckets so that,
// e.g., "I want to buy this" doesn't fall into product_inquiry first.
var intentRules = []intentRule{
	{IntentGreeting, regexp.MustCompile(`(?i)^\s*(hi|hello|hey|good morning|good afternoon|good evening)\b`)},
	{IntentSupport, regexp.MustCompile(`(?i)\b(help|issue|problem|broken|not working|refund|complaint|support)\b`)},
	{IntentPurchaseIntent, regexp.MustCompile(`(?i)\b(buy|purchase|order|checkout|i'?ll take it|sign me up|add to cart)\b`)},
	{IntentObjection, regexp.MustCompile(`(?i)\b(too expensive|too much|can'?t afford|not sure (about|if)|not convinced|need to think|skeptical)\b`)},
	{IntentLeadCapture, regexp.MustCompile(`(?i)\b(my email is|my phone( number)? is|call me at|here'?s my number|contact me)\b`)},
	{IntentAvailability, regexp.MustCompile(`(?i)\b(in stock|available|availability|when (will|can) (i|you)|lead time|ship(ping)?(\s+date)?)\b`)},
	{IntentPricing, regexp.MustCompile(`(?i)\b(price|pricing|cost|how much|discount|quote)\b`)},
	{IntentProductInquiry, regexp.MustCompile(`(?i)\b(feature|specs?|specification|tell me about|what is|does it|compare|difference between)\b`)},
	{IntentSmalltalk, regexp.MustCompile(`(?i)\b(how are you|what'?s up|thanks|thank you|lol|haha)\b`)},
}

// stageClassifyIntent assigns the first matching intent in intentRules,
// defaulting to IntentOther when nothing matches.
func (o *Orchestrator) stageClassifyIntent(state *TurnState) {
	start := time.Now()
	defer o.trackStage("classify_intent", start, state)

	for _, rule := range intentRules {
		if rule.regex.MatchString(state.IncomingText) {
			state.ClassifiedIntent = rule.intent
			return
		}
	}
	state.ClassifiedIntent = IntentOther
}
