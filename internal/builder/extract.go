package builder

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/salesagentco/platform/internal/domain"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	urlRe   = regexp.MustCompile(`https?://[^\s]+`)
	priceRe = regexp.MustCompile(`\$?(\d+(?:\.\d{1,2})?)`)

	toneKeywords = map[string]domain.Tone{
		"friendly":     domain.ToneFriendly,
		"professional": domain.ToneProfessional,
		"formal":       domain.ToneFormal,
		"casual":       domain.ToneCasual,
		"laid back":    domain.ToneCasual,
		"laid-back":    domain.ToneCasual,
		"corporate":    domain.ToneFormal,
	}
)

// extractEmails returns every email address found in text.
func extractEmails(text string) []string {
	return dedupe(emailRe.FindAllString(text, -1))
}

// extractURLs returns every URL found in text.
func extractURLs(text string) []string {
	return dedupe(urlRe.FindAllString(text, -1))
}

// extractTone matches the first known tone keyword appearing in text,
// ordered so more specific multi-word phrases are tried before bare words.
func extractTone(text string) (domain.Tone, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range []string{"laid back", "laid-back", "friendly", "professional", "formal", "casual", "corporate"} {
		if strings.Contains(lower, phrase) {
			return toneKeywords[phrase], true
		}
	}
	return "", false
}

// extractPrice pulls the first decimal number (optionally $-prefixed) out of
// text, returning 0 and false if none is present.
func extractPrice(text string) (float64, bool) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// extractCompanyName takes the builder's targeted "what's your company
// called" question-answer pairing at face value: the whole reply, trimmed,
// up to the first sentence terminator. The builder only asks this question
// once per phase, so there is no ambiguity to resolve here.
func extractCompanyName(text string) string {
	trimmed := strings.TrimSpace(text)
	if idx := strings.IndexAny(trimmed, ".\n"); idx > 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}

func isNegative(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch lower {
	case "no", "none", "n/a", "na", "skip", "no thanks", "nope":
		return true
	}
	return strings.Contains(lower, "skip this") || strings.Contains(lower, "no products")
}

// isFinishSignal reports whether text asks to end the training phase and
// proceed to materialization. Distinct from isNegative: "skip" means "skip
// this step," while "done" means "I'm finished adding artifacts."
func isFinishSignal(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch lower {
	case "done", "finish", "that's all", "thats all", "no more", "complete":
		return true
	}
	return isNegative(text)
}
