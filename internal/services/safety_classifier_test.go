package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/yungbote/skillscope-backend/internal/types"
)

func safeVerdictPayload() map[string]any {
	return map[string]any{
		"homicidal": false, "homicidal_confidence": 0.01,
		"suicidal": false, "suicidal_confidence": 0.02,
		"inappropriate": false, "inappropriate_confidence": 0.03,
	}
}

func TestClassify_PrimarySafeVerdict(t *testing.T) {
	policy, err := LoadSafetyPolicy()
	if err != nil {
		t.Fatalf("failed to load safety policy: %v", err)
	}
	ai := &fakeAIClient{jsonCall: func(int) (map[string]any, error) {
		return safeVerdictPayload(), nil
	}}
	classifier := NewSafetyClassifier(testLogger(t), ai, policy, time.Second)

	verdict := classifier.Classify(context.Background(), "I helped my group with the project", nil)
	if verdict.Flagged {
		t.Fatalf("expected safe verdict, got flagged %q", verdict.Category)
	}
	if verdict.Source != VerdictSourcePrimary {
		t.Fatalf("expected primary source, got %q", verdict.Source)
	}
}

func TestClassify_PrimaryFlagsRegardlessOfLowConfidence(t *testing.T) {
	policy, err := LoadSafetyPolicy()
	if err != nil {
		t.Fatalf("failed to load safety policy: %v", err)
	}
	payload := safeVerdictPayload()
	payload["suicidal"] = true
	payload["suicidal_confidence"] = 0.05
	ai := &fakeAIClient{jsonCall: func(int) (map[string]any, error) {
		return payload, nil
	}}
	classifier := NewSafetyClassifier(testLogger(t), ai, policy, time.Second)

	verdict := classifier.Classify(context.Background(), "ambiguous message", nil)
	if !verdict.Flagged {
		t.Fatalf("expected flagged verdict")
	}
	if verdict.Category != types.IncidentTypeSuicidal {
		t.Fatalf("expected suicidal category, got %q", verdict.Category)
	}
	if verdict.Confidence != 0.05 {
		t.Fatalf("expected confidence 0.05, got %v", verdict.Confidence)
	}
}

func TestClassify_FallbackWhenPrimaryErrors(t *testing.T) {
	policy, err := LoadSafetyPolicy()
	if err != nil {
		t.Fatalf("failed to load safety policy: %v", err)
	}
	ai := &fakeAIClient{jsonCall: func(int) (map[string]any, error) {
		return nil, fmt.Errorf("model unavailable")
	}}
	classifier := NewSafetyClassifier(testLogger(t), ai, policy, time.Second)

	verdict := classifier.Classify(context.Background(), "i want to kill myself", nil)
	if !verdict.Flagged {
		t.Fatalf("expected fallback to flag the message")
	}
	if verdict.Category != types.IncidentTypeSuicidal {
		t.Fatalf("expected suicidal category, got %q", verdict.Category)
	}
	if verdict.Source != VerdictSourceFallback {
		t.Fatalf("expected fallback source, got %q", verdict.Source)
	}
}

func TestClassify_FallbackWhenPrimaryPayloadMalformed(t *testing.T) {
	policy, err := LoadSafetyPolicy()
	if err != nil {
		t.Fatalf("failed to load safety policy: %v", err)
	}
	ai := &fakeAIClient{jsonCall: func(int) (map[string]any, error) {
		// Missing the required boolean fields.
		return map[string]any{"verdict": "fine"}, nil
	}}
	classifier := NewSafetyClassifier(testLogger(t), ai, policy, time.Second)

	verdict := classifier.Classify(context.Background(), "this whole thing is shit", nil)
	if !verdict.Flagged {
		t.Fatalf("expected fallback to flag profanity")
	}
	if verdict.Category != types.IncidentTypeInappropriateLanguage {
		t.Fatalf("expected language category, got %q", verdict.Category)
	}
	if verdict.Source != VerdictSourceFallback {
		t.Fatalf("expected fallback source, got %q", verdict.Source)
	}
}

func TestClassify_CleanMessageSurvivesPrimaryOutage(t *testing.T) {
	policy, err := LoadSafetyPolicy()
	if err != nil {
		t.Fatalf("failed to load safety policy: %v", err)
	}
	ai := &fakeAIClient{jsonCall: func(int) (map[string]any, error) {
		return nil, fmt.Errorf("timeout")
	}}
	classifier := NewSafetyClassifier(testLogger(t), ai, policy, time.Second)

	verdict := classifier.Classify(context.Background(), "I organized our study group last month", nil)
	if verdict.Flagged {
		t.Fatalf("clean message should pass on the fallback path, got %q", verdict.Category)
	}
	if verdict.Source != VerdictSourceFallback {
		t.Fatalf("expected fallback source, got %q", verdict.Source)
	}
}

func TestClassify_FailsClosedWhenBothPathsUnusable(t *testing.T) {
	ai := &fakeAIClient{jsonCall: func(int) (map[string]any, error) {
		return nil, fmt.Errorf("model unavailable")
	}}
	// No policy: the fallback cannot run either.
	classifier := NewSafetyClassifier(testLogger(t), ai, nil, time.Second)

	verdict := classifier.Classify(context.Background(), "anything at all", nil)
	if !verdict.Flagged {
		t.Fatalf("expected fail-closed verdict to be flagged")
	}
	if verdict.Category != types.IncidentTypeInappropriateLanguage {
		t.Fatalf("expected fail-closed category %q, got %q", types.IncidentTypeInappropriateLanguage, verdict.Category)
	}
}

func TestParsePrimaryVerdict_ClampsConfidence(t *testing.T) {
	c := &safetyClassifier{log: testLogger(t)}
	payload := safeVerdictPayload()
	payload["homicidal"] = true
	payload["homicidal_confidence"] = 3.7

	verdict, err := c.parsePrimaryVerdict(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Confidence != 1 {
		t.Fatalf("expected clamped confidence 1, got %v", verdict.Confidence)
	}
	if verdict.Category != types.IncidentTypeHomicidal {
		t.Fatalf("expected homicidal, got %q", verdict.Category)
	}
}
