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

// DefaultEncouragement substitutes for the tutor reply when the generator is
// unavailable or its output cannot be salvaged. The session stays active so
// the student can retry.
const DefaultEncouragement = "Thanks for sharing that. Could you tell me a bit more about a specific time you used this skill, and what happened as a result?"

// Evaluation is a suggested rubric placement with the model's confidence.
type Evaluation struct {
	Level      string  `json:"level"`
	Confidence float64 `json:"confidence"`
}

// GeneratorResult is the validated output of one tutor turn.
type GeneratorResult struct {
	Response            string
	SuggestedEvaluation *Evaluation
	ShouldTerminate     bool
}

type TutorResponseGenerator interface {
	Generate(ctx context.Context, skill *types.ComponentSkill, history []types.ConversationMessage, current *Evaluation, isFinalTurn bool) (*GeneratorResult, error)
}

type tutorResponseGenerator struct {
	log     *logger.Logger
	ai      openai.Client
	timeout time.Duration
}

func NewTutorResponseGenerator(log *logger.Logger, ai openai.Client, timeout time.Duration) TutorResponseGenerator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &tutorResponseGenerator{
		log:     log.With("service", "TutorResponseGenerator"),
		ai:      ai,
		timeout: timeout,
	}
}

func tutorResultSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"response": map[string]any{"type": "string"},
			"self_assessed_level": map[string]any{
				"type": "string",
				"enum": []string{types.LevelEmerging, types.LevelDeveloping, types.LevelProficient, types.LevelApplying, ""},
			},
			"confidence":       map[string]any{"type": "number"},
			"should_terminate": map[string]any{"type": "boolean"},
		},
		"required":             []string{"response", "self_assessed_level", "confidence", "should_terminate"},
		"additionalProperties": false,
	}
}

func (g *tutorResponseGenerator) Generate(ctx context.Context, skill *types.ComponentSkill, history []types.ConversationMessage, current *Evaluation, isFinalTurn bool) (*GeneratorResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	system := buildTutorSystemPrompt(skill, isFinalTurn)
	user := buildTutorUserPrompt(history, current)

	raw, err := g.ai.GenerateJSON(callCtx, system, user, "tutor_turn", tutorResultSchema())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}

	result, parseErr := parseGeneratorPayload(raw)
	if parseErr == nil {
		return result, nil
	}

	// One schema-constrained re-parse before giving up on this turn.
	g.log.Warn("Tutor payload failed validation; re-requesting", "error", parseErr.Error())
	raw, err = g.ai.GenerateJSON(callCtx, system, user, "tutor_turn", tutorResultSchema())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}
	result, parseErr = parseGeneratorPayload(raw)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGeneratorOutput, parseErr)
	}
	return result, nil
}

// parseGeneratorPayload validates shape and value ranges. The level must be
// one of the four canonical rubric levels or it is dropped entirely; the
// confidence is clamped to [0,1]; an empty response is substituted.
func parseGeneratorPayload(raw map[string]any) (*GeneratorResult, error) {
	if raw == nil {
		return nil, fmt.Errorf("empty payload")
	}

	responseVal, ok := raw["response"]
	if !ok {
		return nil, fmt.Errorf("missing response field")
	}
	response, ok := responseVal.(string)
	if !ok {
		return nil, fmt.Errorf("response is not a string")
	}
	if strings.TrimSpace(response) == "" {
		response = DefaultEncouragement
	}

	shouldTerminate, _ := boolField(raw, "should_terminate")

	result := &GeneratorResult{
		Response:        response,
		ShouldTerminate: shouldTerminate,
	}

	if levelVal, ok := raw["self_assessed_level"].(string); ok {
		level := strings.ToLower(strings.TrimSpace(levelVal))
		if types.RubricLevelRank(level) >= 0 {
			result.SuggestedEvaluation = &Evaluation{
				Level:      level,
				Confidence: clampConfidence(numberField(raw, "confidence")),
			}
		}
	}

	return result, nil
}

func buildTutorSystemPrompt(skill *types.ComponentSkill, isFinalTurn bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a supportive tutor guiding a student through a self-evaluation of the skill %q.\n", skill.Name)
	if strings.TrimSpace(skill.Description) != "" {
		fmt.Fprintf(&b, "Skill description: %s\n", skill.Description)
	}
	b.WriteString("\nRubric levels, lowest to highest:\n")
	for _, level := range []string{types.LevelEmerging, types.LevelDeveloping, types.LevelProficient, types.LevelApplying} {
		fmt.Fprintf(&b, "- %s: %s\n", level, skill.RubricText(level))
	}

	b.WriteString(`
Structure every reply with:
1. Strengths you noticed in the student's latest message.
2. Constructive critique: at least two concrete gaps, each tied to the rubric language above.
3. Concrete next steps the student could take.
`)
	if isFinalTurn {
		b.WriteString(`4. A concluding summary of the whole conversation. This is the final exchange: do NOT ask any follow-up question, and end with an encouraging statement, not a question.
`)
	} else {
		b.WriteString(`4. Exactly one follow-up question that draws out specific evidence.
`)
	}

	b.WriteString(`
Evidence rules for the suggested rubric level:
- A claim of "proficient" requires specific, contextual evidence: a named situation with a concrete outcome.
- A claim of "applying" additionally requires evidence of impact on others (teaching, leading, changing how a group worked).
- If the student claims a level without that evidence, state plainly that the evidence currently supports a lower level, name the gap, and name what evidence would justify the claimed level. Set self_assessed_level to the level the evidence supports, not the level claimed.
- Set self_assessed_level to "" only when there is not yet enough signal for any placement.
`)
	return b.String()
}

func buildTutorUserPrompt(history []types.ConversationMessage, current *Evaluation) string {
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	if current != nil {
		fmt.Fprintf(&b, "\nCurrent working evaluation: %s (confidence %.2f)\n", current.Level, current.Confidence)
	}
	b.WriteString("\nRespond to the latest student message.")
	return b.String()
}
