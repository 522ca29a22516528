package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/skillscope-backend/internal/logger"
	"github.com/yungbote/skillscope-backend/internal/openai"
	"github.com/yungbote/skillscope-backend/internal/types"
)

const SafetyCategoryNone = "none"

const (
	VerdictSourcePrimary  = "primary"
	VerdictSourceFallback = "fallback"
)

// SafetyVerdict is transient: produced per turn, referenced by the incident
// it may cause, never stored on its own.
type SafetyVerdict struct {
	Flagged    bool
	Category   string
	Confidence float64
	Source     string
}

// SafetyClassifier gates every student message. It has no error return on
// purpose: the gate cannot fail open, so every failure mode resolves to a
// verdict. Primary path is the model; the phrase-table heuristic substitutes
// when the model errors, times out, or returns garbage.
type SafetyClassifier interface {
	Classify(ctx context.Context, message string, recentHistory []types.ConversationMessage) SafetyVerdict
}

type safetyClassifier struct {
	log     *logger.Logger
	ai      openai.Client
	policy  *SafetyPolicy
	timeout time.Duration
}

func NewSafetyClassifier(log *logger.Logger, ai openai.Client, policy *SafetyPolicy, timeout time.Duration) SafetyClassifier {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &safetyClassifier{
		log:     log.With("service", "SafetyClassifier"),
		ai:      ai,
		policy:  policy,
		timeout: timeout,
	}
}

func (c *safetyClassifier) Classify(ctx context.Context, message string, recentHistory []types.ConversationMessage) (verdict SafetyVerdict) {
	// Last line of defense: a panic anywhere below (including the fallback)
	// resolves toward flagged, never toward safe.
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Safety classification panicked; failing closed", "panic", fmt.Sprint(r))
			verdict = failClosedVerdict()
		}
	}()

	primary, err := c.classifyPrimary(ctx, message, recentHistory)
	if err == nil {
		return primary
	}
	c.log.Warn("Primary safety classifier unavailable; using heuristic fallback",
		"error", fmt.Errorf("%w: %v", ErrClassifierUnavailable, err).Error(),
	)

	if c.policy == nil {
		c.log.Error("Safety policy missing; failing closed")
		return failClosedVerdict()
	}
	return detectWithFallback(c.policy, message)
}

func failClosedVerdict() SafetyVerdict {
	return SafetyVerdict{
		Flagged:    true,
		Category:   types.IncidentTypeInappropriateLanguage,
		Confidence: 0,
		Source:     VerdictSourceFallback,
	}
}

// safetyVerdictSchema keeps the two risk families independently addressable
// in one call: ideation and language have different false-positive
// tolerances and different fixed responses.
func safetyVerdictSchema() map[string]any {
	confidence := map[string]any{"type": "number", "minimum": 0, "maximum": 1}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"homicidal":               map[string]any{"type": "boolean"},
			"homicidal_confidence":    confidence,
			"suicidal":                map[string]any{"type": "boolean"},
			"suicidal_confidence":     confidence,
			"inappropriate":           map[string]any{"type": "boolean"},
			"inappropriate_confidence": confidence,
		},
		"required": []string{
			"homicidal", "homicidal_confidence",
			"suicidal", "suicidal_confidence",
			"inappropriate", "inappropriate_confidence",
		},
		"additionalProperties": false,
	}
}

const safetyClassifierSystemPrompt = `You are a safety reviewer for a school platform used by minors. Review the student's latest message for three independent risks:
1. homicidal: any intent, desire, or plan to hurt or kill another person.
2. suicidal: any intent, desire, or plan of self-harm, suicide, or statements of wanting to die.
3. inappropriate: profanity, slurs, harassment, or abusive language directed at anyone.
Judge the latest message in the context of the recent conversation. Ambiguity about harm must be flagged. Figurative phrases with no plausible harm reading ("this assignment is killing me") are not flagged.`

func (c *safetyClassifier) classifyPrimary(ctx context.Context, message string, recentHistory []types.ConversationMessage) (SafetyVerdict, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var prompt strings.Builder
	if len(recentHistory) > 0 {
		prompt.WriteString("Recent conversation:\n")
		for _, m := range recentHistory {
			fmt.Fprintf(&prompt, "%s: %s\n", m.Role, m.Content)
		}
		prompt.WriteString("\n")
	}
	fmt.Fprintf(&prompt, "Latest student message:\n%s", message)

	raw, err := c.ai.GenerateJSON(callCtx, safetyClassifierSystemPrompt, prompt.String(), "safety_verdict", safetyVerdictSchema())
	if err != nil {
		return SafetyVerdict{}, err
	}
	return c.parsePrimaryVerdict(raw)
}

// parsePrimaryVerdict validates shape and value ranges; a malformed payload
// is an error so the caller routes to the fallback detector.
func (c *safetyClassifier) parsePrimaryVerdict(raw map[string]any) (SafetyVerdict, error) {
	homicidal, ok := boolField(raw, "homicidal")
	if !ok {
		return SafetyVerdict{}, fmt.Errorf("missing homicidal field")
	}
	suicidal, ok := boolField(raw, "suicidal")
	if !ok {
		return SafetyVerdict{}, fmt.Errorf("missing suicidal field")
	}
	inappropriate, ok := boolField(raw, "inappropriate")
	if !ok {
		return SafetyVerdict{}, fmt.Errorf("missing inappropriate field")
	}

	homicidalConf := clampConfidence(numberField(raw, "homicidal_confidence"))
	suicidalConf := clampConfidence(numberField(raw, "suicidal_confidence"))
	inappropriateConf := clampConfidence(numberField(raw, "inappropriate_confidence"))

	// A true boolean flags the turn no matter how low the confidence lands.
	switch {
	case homicidal:
		return SafetyVerdict{Flagged: true, Category: types.IncidentTypeHomicidal, Confidence: homicidalConf, Source: VerdictSourcePrimary}, nil
	case suicidal:
		return SafetyVerdict{Flagged: true, Category: types.IncidentTypeSuicidal, Confidence: suicidalConf, Source: VerdictSourcePrimary}, nil
	case inappropriate:
		return SafetyVerdict{Flagged: true, Category: types.IncidentTypeInappropriateLanguage, Confidence: inappropriateConf, Source: VerdictSourcePrimary}, nil
	default:
		return SafetyVerdict{Category: SafetyCategoryNone, Source: VerdictSourcePrimary}, nil
	}
}

func boolField(raw map[string]any, key string) (bool, bool) {
	v, ok := raw[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func numberField(raw map[string]any, key string) float64 {
	switch v := raw[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
