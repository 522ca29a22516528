package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/skillscope-backend/internal/logger"
	"github.com/yungbote/skillscope-backend/internal/repos"
	"github.com/yungbote/skillscope-backend/internal/types"
)

// Fixed, non-generative safety responses. Model output is never used on a
// flagged turn.
const (
	CrisisResourceResponse = "Thank you for telling me. I'm not able to continue this conversation, but what you shared matters and you deserve support right now. Please talk to a trusted adult, a teacher, or a school counselor as soon as you can. If you are in the United States you can call or text 988 to reach the Suicide & Crisis Lifeline at any time. A teacher at your school has been notified so someone can check in with you."

	ConductNoticeResponse = "This conversation has been ended because the language used isn't appropriate for this space. A teacher has been notified. When you're ready to continue working on your skills respectfully, you can start a new self-evaluation."
)

type TurnOutcome string

const (
	TurnOutcomeSafeContinue    TurnOutcome = "safe_continue"
	TurnOutcomeSafeTerminate   TurnOutcome = "safe_terminate"
	TurnOutcomeUnsafeTerminate TurnOutcome = "unsafe_terminate"
)

// TurnResult is the tagged outcome of one processed turn.
type TurnResult struct {
	SessionID     uuid.UUID   `json:"session_id"`
	TutorResponse string      `json:"tutor_response"`
	Evaluation    *Evaluation `json:"evaluation,omitempty"`
	Outcome       TurnOutcome `json:"outcome"`
	SessionStatus string      `json:"session_status"`
	IsFinalTurn   bool        `json:"is_final_turn"`
}

// SelfEvaluationConfig is passed explicitly into the engine; there is no
// ambient configuration.
type SelfEvaluationConfig struct {
	// MaxStudentTurns bounds the dialogue; the turn that reaches it is the
	// final turn.
	MaxStudentTurns int

	ClassifierTimeout time.Duration
	GeneratorTimeout  time.Duration
}

func DefaultSelfEvaluationConfig() SelfEvaluationConfig {
	return SelfEvaluationConfig{
		MaxStudentTurns:   3,
		ClassifierTimeout: 8 * time.Second,
		GeneratorTimeout:  30 * time.Second,
	}
}

type SelfEvaluationService interface {
	StartSession(ctx context.Context, studentID uuid.UUID, skillID uuid.UUID) (*types.SelfEvaluationSession, error)
	GetSession(ctx context.Context, sessionID uuid.UUID, studentID uuid.UUID) (*types.SelfEvaluationSession, error)
	ProcessTurn(ctx context.Context, sessionID uuid.UUID, studentID uuid.UUID, studentMessage string) (*TurnResult, error)
}

type selfEvaluationService struct {
	db          *gorm.DB
	log         *logger.Logger
	cfg         SelfEvaluationConfig
	skillRepo   repos.ComponentSkillRepo
	sessionRepo repos.SelfEvaluationSessionRepo
	locker      SessionLocker
	classifier  SafetyClassifier
	generator   TutorResponseGenerator
	escalation  EscalationService
}

func NewSelfEvaluationService(
	db *gorm.DB,
	log *logger.Logger,
	cfg SelfEvaluationConfig,
	skillRepo repos.ComponentSkillRepo,
	sessionRepo repos.SelfEvaluationSessionRepo,
	locker SessionLocker,
	classifier SafetyClassifier,
	generator TutorResponseGenerator,
	escalation EscalationService,
) SelfEvaluationService {
	if cfg.MaxStudentTurns <= 0 {
		cfg.MaxStudentTurns = 3
	}
	return &selfEvaluationService{
		db:          db,
		log:         log.With("service", "SelfEvaluationService"),
		cfg:         cfg,
		skillRepo:   skillRepo,
		sessionRepo: sessionRepo,
		locker:      locker,
		classifier:  classifier,
		generator:   generator,
		escalation:  escalation,
	}
}

func (s *selfEvaluationService) StartSession(ctx context.Context, studentID uuid.UUID, skillID uuid.UUID) (*types.SelfEvaluationSession, error) {
	skill, err := s.skillRepo.GetByID(ctx, nil, skillID)
	if err != nil {
		return nil, err
	}

	session := &types.SelfEvaluationSession{
		ID:        uuid.New(),
		StudentID: studentID,
		SkillID:   skillID,
		Status:    types.SessionStatusActive,
	}
	opening := &types.ConversationMessage{
		ID:        uuid.New(),
		SessionID: session.ID,
		Role:      types.MessageRoleTutor,
		Content:   openingTutorMessage(skill),
		Position:  0,
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.sessionRepo.Create(ctx, tx, []*types.SelfEvaluationSession{session}); err != nil {
			return err
		}
		return s.sessionRepo.AppendMessages(ctx, tx, []*types.ConversationMessage{opening})
	}); err != nil {
		return nil, fmt.Errorf("create self-evaluation session: %w", err)
	}

	session.Messages = []types.ConversationMessage{*opening}
	session.Skill = skill
	return session, nil
}

func (s *selfEvaluationService) GetSession(ctx context.Context, sessionID uuid.UUID, studentID uuid.UUID) (*types.SelfEvaluationSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	if session.StudentID != studentID {
		return nil, repos.ErrSessionNotFound
	}
	return session, nil
}

// ProcessTurn runs one student turn through the pipeline: safety gate, then
// tutor generation, then calibration. Turns for the same session serialize
// behind a per-session lock.
func (s *selfEvaluationService) ProcessTurn(ctx context.Context, sessionID uuid.UUID, studentID uuid.UUID, studentMessage string) (*TurnResult, error) {
	release, err := s.locker.Acquire(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	defer release()

	session, err := s.sessionRepo.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	if session.StudentID != studentID {
		return nil, repos.ErrSessionNotFound
	}
	if !session.IsActive() {
		return nil, fmt.Errorf("%w: status is %s", ErrSessionClosed, session.Status)
	}

	skill, err := s.skillRepo.GetByID(ctx, nil, session.SkillID)
	if err != nil {
		return nil, err
	}

	studentMsg := types.ConversationMessage{
		ID:        uuid.New(),
		SessionID: session.ID,
		Role:      types.MessageRoleStudent,
		Content:   studentMessage,
		Position:  len(session.Messages),
	}
	history := append(append([]types.ConversationMessage{}, session.Messages...), studentMsg)
	turnCount := session.StudentTurnCount + 1

	// Safety gate. Empty messages are checked like any other; the classifier
	// cannot error, only degrade to the heuristic path.
	verdict := s.classifier.Classify(ctx, studentMessage, recentHistory(session.Messages))

	if verdict.Flagged {
		return s.terminateForSafety(ctx, session, skill, studentMsg, history, turnCount, verdict)
	}

	isFinalTurn := turnCount >= s.cfg.MaxStudentTurns

	currentEval := sessionEvaluation(session)
	genResult, genErr := s.generator.Generate(ctx, skill, history, currentEval, isFinalTurn)
	if genErr != nil {
		// Soft failure: nothing is persisted, the session stays active, and
		// the student can submit the same turn again.
		s.log.Warn("Tutor generation failed; turn not consumed",
			"session_id", session.ID,
			"error", genErr,
		)
		return &TurnResult{
			SessionID:     session.ID,
			TutorResponse: DefaultEncouragement,
			Evaluation:    currentEval,
			Outcome:       TurnOutcomeSafeContinue,
			SessionStatus: types.SessionStatusActive,
		}, nil
	}

	response := genResult.Response
	evaluation := currentEval
	if genResult.SuggestedEvaluation != nil {
		calibrated := calibrateEvaluation(*genResult.SuggestedEvaluation, studentEvidenceText(history))
		if calibrated.Demoted {
			s.log.Info("Calibration demoted suggested level",
				"session_id", session.ID,
				"claimed", genResult.SuggestedEvaluation.Level,
				"stored", calibrated.Evaluation.Level,
			)
			response = appendGapExplanation(response, calibrated.Gap)
		}
		evaluation = &calibrated.Evaluation
	}

	status := types.SessionStatusActive
	outcome := TurnOutcomeSafeContinue
	if isFinalTurn || genResult.ShouldTerminate {
		status = types.SessionStatusTerminatedNormal
		outcome = TurnOutcomeSafeTerminate
	}

	tutorMsg := types.ConversationMessage{
		ID:        uuid.New(),
		SessionID: session.ID,
		Role:      types.MessageRoleTutor,
		Content:   response,
		Position:  studentMsg.Position + 1,
	}

	session.StudentTurnCount = turnCount
	session.Status = status
	applyEvaluation(session, evaluation)

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.sessionRepo.AppendMessages(ctx, tx, []*types.ConversationMessage{&studentMsg, &tutorMsg}); err != nil {
			return err
		}
		return s.sessionRepo.Save(ctx, tx, session)
	}); err != nil {
		return nil, fmt.Errorf("persist turn: %w", err)
	}

	return &TurnResult{
		SessionID:     session.ID,
		TutorResponse: response,
		Evaluation:    evaluation,
		Outcome:       outcome,
		SessionStatus: status,
		IsFinalTurn:   isFinalTurn,
	}, nil
}

// terminateForSafety is the flagged path: the termination and the incident
// commit in one transaction, so a failed incident write leaves the session
// active and the resubmitted turn runs the whole flagged path again. The
// caller gets a fixed response for the category, never model output.
func (s *selfEvaluationService) terminateForSafety(
	ctx context.Context,
	session *types.SelfEvaluationSession,
	skill *types.ComponentSkill,
	studentMsg types.ConversationMessage,
	history []types.ConversationMessage,
	turnCount int,
	verdict SafetyVerdict,
) (*TurnResult, error) {
	response := fixedSafetyResponse(verdict.Category)
	tutorMsg := types.ConversationMessage{
		ID:        uuid.New(),
		SessionID: session.ID,
		Role:      types.MessageRoleTutor,
		Content:   response,
		Position:  studentMsg.Position + 1,
	}

	session.StudentTurnCount = turnCount
	session.Status = types.SessionStatusTerminatedSafety

	snapshot := append(append([]types.ConversationMessage{}, history...), tutorMsg)
	sessionID := session.ID
	skillID := skill.ID

	var incident *types.SafetyIncident
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		incident, err = s.escalation.RecordIncident(ctx, tx, EscalationInput{
			StudentID:    session.StudentID,
			SkillID:      &skillID,
			SessionID:    &sessionID,
			IncidentType: verdict.Category,
			Message:      studentMsg.Content,
			Conversation: snapshot,
		})
		if err != nil {
			return err
		}
		if err := s.sessionRepo.AppendMessages(ctx, tx, []*types.ConversationMessage{&studentMsg, &tutorMsg}); err != nil {
			return err
		}
		return s.sessionRepo.Save(ctx, tx, session)
	}); err != nil {
		return nil, fmt.Errorf("persist safety termination: %w", err)
	}

	s.log.Warn("Session terminated by safety gate",
		"session_id", session.ID,
		"student_id", session.StudentID,
		"category", verdict.Category,
		"verdict_source", verdict.Source,
		"confidence", verdict.Confidence,
	)

	s.escalation.Dispatch(ctx, incident)

	return &TurnResult{
		SessionID:     session.ID,
		TutorResponse: response,
		Evaluation:    sessionEvaluation(session),
		Outcome:       TurnOutcomeUnsafeTerminate,
		SessionStatus: types.SessionStatusTerminatedSafety,
	}, nil
}

func fixedSafetyResponse(category string) string {
	switch category {
	case types.IncidentTypeHomicidal, types.IncidentTypeSuicidal:
		return CrisisResourceResponse
	default:
		return ConductNoticeResponse
	}
}

func sessionEvaluation(session *types.SelfEvaluationSession) *Evaluation {
	if session.CurrentLevel == nil {
		return nil
	}
	eval := &Evaluation{Level: *session.CurrentLevel}
	if session.CurrentConfidence != nil {
		eval.Confidence = *session.CurrentConfidence
	}
	return eval
}

func applyEvaluation(session *types.SelfEvaluationSession, eval *Evaluation) {
	if eval == nil {
		return
	}
	level := eval.Level
	confidence := eval.Confidence
	session.CurrentLevel = &level
	session.CurrentConfidence = &confidence
}

func appendGapExplanation(response, gap string) string {
	if gap == "" {
		return response
	}
	if strings.Contains(strings.ToLower(response), "evidence currently supports") {
		return response
	}
	return strings.TrimRight(response, " \n") + "\n\n" + gap
}

// recentHistory bounds the context passed to the classifier.
func recentHistory(messages []types.ConversationMessage) []types.ConversationMessage {
	const window = 6
	if len(messages) <= window {
		return messages
	}
	return messages[len(messages)-window:]
}

func openingTutorMessage(skill *types.ComponentSkill) string {
	return fmt.Sprintf(
		"Let's reflect on %s together. Think about how you've used this skill recently. Where would you place yourself right now, and what makes you say so? Try to describe a specific moment, not just a general feeling.",
		skill.Name,
	)
}
