package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/skillscope-backend/internal/repos"
	"github.com/yungbote/skillscope-backend/internal/types"
)

type selfEvalFixture struct {
	svc         SelfEvaluationService
	skill       *types.ComponentSkill
	sessionRepo *fakeSessionRepo
	generator   *fakeGenerator
	classifier  *fakeClassifier
	escalation  *fakeEscalation
	studentID   uuid.UUID
}

func newSelfEvalFixture(t *testing.T) *selfEvalFixture {
	t.Helper()
	skill := testSkill()
	f := &selfEvalFixture{
		skill:       skill,
		sessionRepo: newFakeSessionRepo(),
		generator:   &fakeGenerator{},
		classifier:  &fakeClassifier{verdict: SafetyVerdict{Category: SafetyCategoryNone, Source: VerdictSourcePrimary}},
		escalation:  &fakeEscalation{},
		studentID:   uuid.New(),
	}
	f.svc = NewSelfEvaluationService(
		testDB(t),
		testLogger(t),
		SelfEvaluationConfig{MaxStudentTurns: 3, ClassifierTimeout: time.Second, GeneratorTimeout: time.Second},
		newFakeSkillRepo(skill),
		f.sessionRepo,
		NewLocalSessionLocker(),
		f.classifier,
		f.generator,
		f.escalation,
	)
	return f
}

func (f *selfEvalFixture) queueGeneration(result *GeneratorResult) {
	f.generator.results = append(f.generator.results, generatorStep{result: result})
}

func (f *selfEvalFixture) queueGenerationError(err error) {
	f.generator.results = append(f.generator.results, generatorStep{err: err})
}

func plainReply(text string) *GeneratorResult {
	return &GeneratorResult{Response: text}
}

func TestStartSession_CreatesActiveSessionWithOpeningMessage(t *testing.T) {
	f := newSelfEvalFixture(t)

	session, err := f.svc.StartSession(context.Background(), f.studentID, f.skill.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Status != types.SessionStatusActive {
		t.Fatalf("expected active session, got %q", session.Status)
	}
	if session.StudentTurnCount != 0 {
		t.Fatalf("expected zero turns, got %d", session.StudentTurnCount)
	}
	if len(session.Messages) != 1 || session.Messages[0].Role != types.MessageRoleTutor {
		t.Fatalf("expected exactly one opening tutor message, got %+v", session.Messages)
	}
	if !strings.Contains(session.Messages[0].Content, f.skill.Name) {
		t.Fatalf("opening message should reference the skill, got %q", session.Messages[0].Content)
	}
}

func TestStartSession_UnknownSkillFails(t *testing.T) {
	f := newSelfEvalFixture(t)

	_, err := f.svc.StartSession(context.Background(), f.studentID, uuid.New())
	if !errors.Is(err, repos.ErrSkillNotFound) {
		t.Fatalf("expected ErrSkillNotFound, got %v", err)
	}
}

func TestGetSession_OwnershipEnforced(t *testing.T) {
	f := newSelfEvalFixture(t)
	session, err := f.svc.StartSession(context.Background(), f.studentID, f.skill.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.svc.GetSession(context.Background(), session.ID, f.studentID); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
	if _, err := f.svc.GetSession(context.Background(), session.ID, uuid.New()); !errors.Is(err, repos.ErrSessionNotFound) {
		t.Fatalf("foreign student must not see the session, got %v", err)
	}
}

func TestProcessTurn_IncrementsCountAndPersistsBothMessages(t *testing.T) {
	f := newSelfEvalFixture(t)
	session, _ := f.svc.StartSession(context.Background(), f.studentID, f.skill.ID)
	f.queueGeneration(plainReply("Tell me more."))

	result, err := f.svc.ProcessTurn(context.Background(), session.ID, f.studentID, "I think I'm developing.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != TurnOutcomeSafeContinue {
		t.Fatalf("expected safe_continue, got %q", result.Outcome)
	}
	if result.SessionStatus != types.SessionStatusActive {
		t.Fatalf("expected session to stay active, got %q", result.SessionStatus)
	}

	stored := f.sessionRepo.stored(session.ID)
	if stored.StudentTurnCount != 1 {
		t.Fatalf("expected turn count 1, got %d", stored.StudentTurnCount)
	}
	msgs := f.sessionRepo.storedMessages(session.ID)
	if len(msgs) != 3 {
		t.Fatalf("expected opening + student + tutor, got %d messages", len(msgs))
	}
	if msgs[1].Role != types.MessageRoleStudent || msgs[2].Role != types.MessageRoleTutor {
		t.Fatalf("messages persisted out of order: %+v", msgs)
	}
	if msgs[1].Position != 1 || msgs[2].Position != 2 {
		t.Fatalf("positions must be contiguous, got %d and %d", msgs[1].Position, msgs[2].Position)
	}
}

func TestProcessTurn_ThirdTurnTerminatesNormally(t *testing.T) {
	f := newSelfEvalFixture(t)
	session, _ := f.svc.StartSession(context.Background(), f.studentID, f.skill.ID)
	f.queueGeneration(plainReply("First."))
	f.queueGeneration(plainReply("Second."))
	f.queueGeneration(plainReply("Closing summary."))

	for i := 0; i < 2; i++ {
		result, err := f.svc.ProcessTurn(context.Background(), session.ID, f.studentID, "another answer")
		if err != nil {
			t.Fatalf("turn %d failed: %v", i+1, err)
		}
		if result.IsFinalTurn {
			t.Fatalf("turn %d must not be final", i+1)
		}
		if result.SessionStatus != types.SessionStatusActive {
			t.Fatalf("turn %d should leave the session active", i+1)
		}
	}

	final, err := f.svc.ProcessTurn(context.Background(), session.ID, f.studentID, "my last answer")
	if err != nil {
		t.Fatalf("final turn failed: %v", err)
	}
	if !final.IsFinalTurn {
		t.Fatalf("third turn must be final")
	}
	if final.Outcome != TurnOutcomeSafeTerminate {
		t.Fatalf("expected safe_terminate, got %q", final.Outcome)
	}
	if final.SessionStatus != types.SessionStatusTerminatedNormal {
		t.Fatalf("expected terminated_normal, got %q", final.SessionStatus)
	}

	stored := f.sessionRepo.stored(session.ID)
	if stored.StudentTurnCount != 3 {
		t.Fatalf("expected 3 turns recorded, got %d", stored.StudentTurnCount)
	}
	if stored.Status != types.SessionStatusTerminatedNormal {
		t.Fatalf("terminal state not persisted, got %q", stored.Status)
	}
}

func TestProcessTurn_ClosedSessionRejectedWithoutSideEffects(t *testing.T) {
	f := newSelfEvalFixture(t)
	session, _ := f.svc.StartSession(context.Background(), f.studentID, f.skill.ID)
	f.queueGeneration(&GeneratorResult{Response: "Done.", ShouldTerminate: true})

	if _, err := f.svc.ProcessTurn(context.Background(), session.ID, f.studentID, "answer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before := len(f.sessionRepo.storedMessages(session.ID))
	_, err := f.svc.ProcessTurn(context.Background(), session.ID, f.studentID, "one more")
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if got := len(f.sessionRepo.storedMessages(session.ID)); got != before {
		t.Fatalf("rejected turn must not persist messages: %d -> %d", before, got)
	}
	if len(f.escalation.escalations()) != 0 {
		t.Fatalf("rejected turn must not escalate")
	}
}

func TestProcessTurn_FlaggedMessageTerminatesAndEscalatesOnce(t *testing.T) {
	f := newSelfEvalFixture(t)
	f.classifier.verdict = SafetyVerdict{
		Flagged:    true,
		Category:   types.IncidentTypeSuicidal,
		Confidence: 0.97,
		Source:     VerdictSourcePrimary,
	}
	session, _ := f.svc.StartSession(context.Background(), f.studentID, f.skill.ID)

	result, err := f.svc.ProcessTurn(context.Background(), session.ID, f.studentID, "i want to end it all")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != TurnOutcomeUnsafeTerminate {
		t.Fatalf("expected unsafe_terminate, got %q", result.Outcome)
	}
	if result.TutorResponse != CrisisResourceResponse {
		t.Fatalf("flagged ideation must get the fixed crisis response, got %q", result.TutorResponse)
	}

	stored := f.sessionRepo.stored(session.ID)
	if stored.Status != types.SessionStatusTerminatedSafety {
		t.Fatalf("expected terminated_safety, got %q", stored.Status)
	}

	escalations := f.escalation.escalations()
	if len(escalations) != 1 {
		t.Fatalf("expected exactly one escalation, got %d", len(escalations))
	}
	if escalations[0].IncidentType != types.IncidentTypeSuicidal {
		t.Fatalf("escalation carries wrong category %q", escalations[0].IncidentType)
	}
	if escalations[0].Message != "i want to end it all" {
		t.Fatalf("escalation must carry the triggering message")
	}
	if len(f.escalation.dispatches()) != 1 {
		t.Fatalf("expected the notification fan-out to be dispatched once")
	}

	// A retry against the terminated session is rejected and does not open
	// a second incident.
	if _, err := f.svc.ProcessTurn(context.Background(), session.ID, f.studentID, "hello?"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on retry, got %v", err)
	}
	if len(f.escalation.escalations()) != 1 {
		t.Fatalf("retry produced a duplicate escalation")
	}
}

func TestProcessTurn_InappropriateLanguageGetsConductNotice(t *testing.T) {
	f := newSelfEvalFixture(t)
	f.classifier.verdict = SafetyVerdict{
		Flagged:    true,
		Category:   types.IncidentTypeInappropriateLanguage,
		Confidence: 0.85,
		Source:     VerdictSourceFallback,
	}
	session, _ := f.svc.StartSession(context.Background(), f.studentID, f.skill.ID)

	result, err := f.svc.ProcessTurn(context.Background(), session.ID, f.studentID, "this is shit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TutorResponse != ConductNoticeResponse {
		t.Fatalf("expected conduct notice, got %q", result.TutorResponse)
	}
	if result.SessionStatus != types.SessionStatusTerminatedSafety {
		t.Fatalf("expected terminated_safety, got %q", result.SessionStatus)
	}
}

func TestProcessTurn_GeneratorFailureDoesNotConsumeTurn(t *testing.T) {
	f := newSelfEvalFixture(t)
	session, _ := f.svc.StartSession(context.Background(), f.studentID, f.skill.ID)
	f.queueGenerationError(ErrGeneratorUnavailable)
	f.queueGeneration(plainReply("Back online."))

	result, err := f.svc.ProcessTurn(context.Background(), session.ID, f.studentID, "my answer")
	if err != nil {
		t.Fatalf("generator outage must be a soft failure: %v", err)
	}
	if result.TutorResponse != DefaultEncouragement {
		t.Fatalf("expected default encouragement, got %q", result.TutorResponse)
	}
	if result.SessionStatus != types.SessionStatusActive {
		t.Fatalf("session must stay active, got %q", result.SessionStatus)
	}

	stored := f.sessionRepo.stored(session.ID)
	if stored.StudentTurnCount != 0 {
		t.Fatalf("failed turn must not be counted, got %d", stored.StudentTurnCount)
	}
	if got := len(f.sessionRepo.storedMessages(session.ID)); got != 1 {
		t.Fatalf("failed turn must not persist messages, got %d", got)
	}

	// The same turn submitted again goes through.
	retry, err := f.svc.ProcessTurn(context.Background(), session.ID, f.studentID, "my answer")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retry.TutorResponse != "Back online." {
		t.Fatalf("expected generated reply on retry, got %q", retry.TutorResponse)
	}
	if f.sessionRepo.stored(session.ID).StudentTurnCount != 1 {
		t.Fatalf("retry should count as the first turn")
	}
}

func TestProcessTurn_CalibrationDemotesUnevidencedClaim(t *testing.T) {
	f := newSelfEvalFixture(t)
	session, _ := f.svc.StartSession(context.Background(), f.studentID, f.skill.ID)
	f.queueGeneration(&GeneratorResult{
		Response:            "You sound confident.",
		SuggestedEvaluation: &Evaluation{Level: types.LevelApplying, Confidence: 0.9},
	})

	result, err := f.svc.ProcessTurn(context.Background(), session.ID, f.studentID, "I am just great at this, everyone always says so.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Evaluation == nil {
		t.Fatalf("expected a stored evaluation")
	}
	if result.Evaluation.Level == types.LevelApplying {
		t.Fatalf("unevidenced applying claim must be demoted")
	}
	if types.RubricLevelRank(result.Evaluation.Level) > types.RubricLevelRank(types.LevelApplying) {
		t.Fatalf("stored level may never exceed the claim")
	}
	if !strings.Contains(result.TutorResponse, "evidence so far supports") {
		t.Fatalf("demotion must be explained to the student, got %q", result.TutorResponse)
	}

	stored := f.sessionRepo.stored(session.ID)
	if stored.CurrentLevel == nil || *stored.CurrentLevel != result.Evaluation.Level {
		t.Fatalf("calibrated level not persisted")
	}
}

func TestProcessTurn_EvidencedClaimHolds(t *testing.T) {
	f := newSelfEvalFixture(t)
	session, _ := f.svc.StartSession(context.Background(), f.studentID, f.skill.ID)
	f.queueGeneration(&GeneratorResult{
		Response:            "That's a strong example.",
		SuggestedEvaluation: &Evaluation{Level: types.LevelProficient, Confidence: 0.8},
	})

	result, err := f.svc.ProcessTurn(context.Background(), session.ID, f.studentID,
		"For example last week I built the study schedule for our exam and we finished every topic on time.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Evaluation == nil || result.Evaluation.Level != types.LevelProficient {
		t.Fatalf("evidenced proficient claim should hold, got %+v", result.Evaluation)
	}
	if result.TutorResponse != "That's a strong example." {
		t.Fatalf("no gap should be appended, got %q", result.TutorResponse)
	}
}

func TestProcessTurn_GeneratorTerminationEndsSessionEarly(t *testing.T) {
	f := newSelfEvalFixture(t)
	session, _ := f.svc.StartSession(context.Background(), f.studentID, f.skill.ID)
	f.queueGeneration(&GeneratorResult{Response: "We have enough to wrap up.", ShouldTerminate: true})

	result, err := f.svc.ProcessTurn(context.Background(), session.ID, f.studentID, "first answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != TurnOutcomeSafeTerminate {
		t.Fatalf("expected safe_terminate, got %q", result.Outcome)
	}
	if result.IsFinalTurn {
		t.Fatalf("early termination is not the cap turn")
	}
	if f.sessionRepo.stored(session.ID).Status != types.SessionStatusTerminatedNormal {
		t.Fatalf("early termination must persist terminated_normal")
	}
}

func TestProcessTurn_ForeignStudentRejected(t *testing.T) {
	f := newSelfEvalFixture(t)
	session, _ := f.svc.StartSession(context.Background(), f.studentID, f.skill.ID)

	_, err := f.svc.ProcessTurn(context.Background(), session.ID, uuid.New(), "hello")
	if !errors.Is(err, repos.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for a foreign student, got %v", err)
	}
}

func TestProcessTurn_IncidentWriteFailureLeavesSessionOpenForRetry(t *testing.T) {
	f := newSelfEvalFixture(t)
	f.classifier.verdict = SafetyVerdict{Flagged: true, Category: types.IncidentTypeHomicidal, Source: VerdictSourcePrimary}
	f.escalation.recordFailures = 1
	session, _ := f.svc.StartSession(context.Background(), f.studentID, f.skill.ID)

	_, err := f.svc.ProcessTurn(context.Background(), session.ID, f.studentID, "flagged")
	if err == nil {
		t.Fatalf("expected the failed incident write to surface")
	}

	// The termination rolled back with the incident: the session is still
	// open, nothing was persisted, and nothing was dispatched.
	stored := f.sessionRepo.stored(session.ID)
	if stored.Status != types.SessionStatusActive {
		t.Fatalf("failed incident write must leave the session active, got %q", stored.Status)
	}
	if stored.StudentTurnCount != 0 {
		t.Fatalf("rolled-back turn must not be counted, got %d", stored.StudentTurnCount)
	}
	if got := len(f.sessionRepo.storedMessages(session.ID)); got != 1 {
		t.Fatalf("rolled-back turn must not persist messages, got %d", got)
	}
	if len(f.escalation.dispatches()) != 0 {
		t.Fatalf("no fan-out may run without a durable incident")
	}

	// The resubmitted turn records the incident and terminates.
	result, err := f.svc.ProcessTurn(context.Background(), session.ID, f.studentID, "flagged")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if result.SessionStatus != types.SessionStatusTerminatedSafety {
		t.Fatalf("expected terminated_safety on retry, got %q", result.SessionStatus)
	}
	if len(f.escalation.escalations()) != 1 {
		t.Fatalf("expected exactly one recorded incident, got %d", len(f.escalation.escalations()))
	}
	if len(f.escalation.dispatches()) != 1 {
		t.Fatalf("expected exactly one fan-out dispatch, got %d", len(f.escalation.dispatches()))
	}
}
