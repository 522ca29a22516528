package services

import (
	"fmt"
	"strings"

	"github.com/yungbote/skillscope-backend/internal/types"
)

// Rubric calibration. The generator is instructed to demand evidence, but
// its suggestion is not trusted: the engine re-checks the student's own
// words before a level is stored. A claim of proficient needs specific,
// contextual evidence; applying additionally needs impact on others. When
// the check fails the level is corrected downward, never upward.

type CalibrationResult struct {
	Evaluation Evaluation
	Demoted    bool
	Gap        string
}

// calibrateEvaluation re-checks a suggested evaluation against the evidence
// in the student's messages. The returned level is never above the claim.
func calibrateEvaluation(claim Evaluation, studentEvidence string) CalibrationResult {
	rank := types.RubricLevelRank(claim.Level)
	if rank < 0 {
		// Invalid levels are dropped before this point; treat defensively.
		return CalibrationResult{Evaluation: Evaluation{Level: types.LevelEmerging, Confidence: claim.Confidence}}
	}

	specific := hasSpecificEvidence(studentEvidence)
	impact := hasImpactEvidence(studentEvidence)

	switch claim.Level {
	case types.LevelApplying:
		if specific && impact {
			return CalibrationResult{Evaluation: claim}
		}
		if specific {
			return CalibrationResult{
				Evaluation: Evaluation{Level: types.LevelProficient, Confidence: claim.Confidence},
				Demoted:    true,
				Gap:        fmt.Sprintf("The evidence so far supports %q rather than %q: there is a concrete example, but not yet a time this skill changed an outcome for other people.", types.LevelProficient, types.LevelApplying),
			}
		}
		return CalibrationResult{
			Evaluation: Evaluation{Level: types.LevelDeveloping, Confidence: claim.Confidence},
			Demoted:    true,
			Gap:        fmt.Sprintf("The evidence so far supports %q rather than %q: a specific situation with a concrete outcome, plus an example of impact on others, would justify the higher level.", types.LevelDeveloping, types.LevelApplying),
		}
	case types.LevelProficient:
		if specific {
			return CalibrationResult{Evaluation: claim}
		}
		return CalibrationResult{
			Evaluation: Evaluation{Level: types.LevelDeveloping, Confidence: claim.Confidence},
			Demoted:    true,
			Gap:        fmt.Sprintf("The evidence so far supports %q rather than %q: naming a specific situation and what came of it would justify the higher level.", types.LevelDeveloping, types.LevelProficient),
		}
	default:
		// emerging / developing claims carry no evidence bar.
		return CalibrationResult{Evaluation: claim}
	}
}

// Markers of a named, specific situation rather than a generic assertion.
var specificEvidenceMarkers = []string{
	"for example", "for instance", "one time", "last week", "last month",
	"last year", "yesterday", "when i", "when we", "when my", "during",
	"in my", "on my", "we built", "i built", "i made", "we made",
	"i organized", "we organized", "which led to", "resulted in",
	"as a result", "so that", "because of that", "the outcome",
	"it worked", "we finished", "we won", "i presented", "project",
}

// Markers of impact on other people, required for an applying placement.
var impactEvidenceMarkers = []string{
	"helped", "taught", "showed them", "showed my", "mentored", "led the",
	"led my", "led our", "my team", "our team", "my group", "our group",
	"classmates", "each other", "together we", "encouraged", "explained to",
	"organized the", "coordinated", "resolved the", "brought everyone",
}

func hasSpecificEvidence(text string) bool {
	normalized := strings.ToLower(text)
	if len(strings.Fields(normalized)) < 8 {
		return false
	}
	return containsAnyMarker(normalized, specificEvidenceMarkers)
}

func hasImpactEvidence(text string) bool {
	normalized := strings.ToLower(text)
	return containsAnyMarker(normalized, impactEvidenceMarkers)
}

func containsAnyMarker(normalized string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// studentEvidenceText concatenates the student side of the conversation.
func studentEvidenceText(history []types.ConversationMessage) string {
	var b strings.Builder
	for _, m := range history {
		if m.Role != types.MessageRoleStudent {
			continue
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
