package services

import (
	"strings"
	"unicode"

	"github.com/yungbote/skillscope-backend/internal/types"
)

// Fallback heuristic detection. Pure in-memory phrase matching against the
// embedded policy table; runs when the model-based classifier errors, times
// out, or returns garbage. Tuned for recall over precision.

// detectWithFallback checks the message against every category and returns
// the highest-priority hit. Homicidal outranks suicidal outranks language.
func detectWithFallback(p *SafetyPolicy, message string) SafetyVerdict {
	normalized := normalizeForMatching(message)
	if normalized == "" {
		return SafetyVerdict{Category: SafetyCategoryNone, Source: VerdictSourceFallback}
	}

	for _, category := range []string{
		types.IncidentTypeHomicidal,
		types.IncidentTypeSuicidal,
		types.IncidentTypeInappropriateLanguage,
	} {
		if matchesAnyPhrase(normalized, p.Phrases(category)) {
			return SafetyVerdict{
				Flagged:    true,
				Category:   category,
				Confidence: fallbackConfidence(category),
				Source:     VerdictSourceFallback,
			}
		}
	}

	return SafetyVerdict{Category: SafetyCategoryNone, Source: VerdictSourceFallback}
}

func matchesAnyPhrase(normalized string, phrases []string) bool {
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// normalizeForMatching lowercases and collapses every run of punctuation or
// whitespace into a single space, so "kill,myself!!" still matches.
func normalizeForMatching(message string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(message)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '\'' {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Phrase hits are strong signals for ideation categories; profanity matching
// is looser, so it carries a lower score.
func fallbackConfidence(category string) float64 {
	switch category {
	case types.IncidentTypeHomicidal, types.IncidentTypeSuicidal:
		return 0.95
	default:
		return 0.85
	}
}
