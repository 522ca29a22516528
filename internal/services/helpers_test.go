package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/skillscope-backend/internal/logger"
	"github.com/yungbote/skillscope-backend/internal/repos"
	"github.com/yungbote/skillscope-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	return log
}

// testDB opens an in-memory database. Repos in these tests are in-memory
// fakes; the handle only backs the transaction wrapper.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return db
}

func testSkill() *types.ComponentSkill {
	return &types.ComponentSkill{
		ID:               uuid.New(),
		Name:             "Collaboration",
		Description:      "Working productively with others.",
		RubricEmerging:   "Participates when prompted.",
		RubricDeveloping: "Contributes to group work with support.",
		RubricProficient: "Contributes reliably and independently.",
		RubricApplying:   "Lifts the performance of the whole group.",
	}
}

// ---- openai fake ----

type fakeAIClient struct {
	mu       sync.Mutex
	jsonCall func(call int) (map[string]any, error)
	calls    int
}

func (f *fakeAIClient) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()
	return f.jsonCall(call)
}

func (f *fakeAIClient) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (f *fakeAIClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ---- repo fakes ----

type fakeSkillRepo struct {
	skills map[uuid.UUID]*types.ComponentSkill
}

func newFakeSkillRepo(skills ...*types.ComponentSkill) *fakeSkillRepo {
	r := &fakeSkillRepo{skills: make(map[uuid.UUID]*types.ComponentSkill)}
	for _, s := range skills {
		r.skills[s.ID] = s
	}
	return r
}

func (r *fakeSkillRepo) Create(ctx context.Context, tx *gorm.DB, skills []*types.ComponentSkill) ([]*types.ComponentSkill, error) {
	for _, s := range skills {
		r.skills[s.ID] = s
	}
	return skills, nil
}

func (r *fakeSkillRepo) GetByID(ctx context.Context, tx *gorm.DB, skillID uuid.UUID) (*types.ComponentSkill, error) {
	s, ok := r.skills[skillID]
	if !ok {
		return nil, repos.ErrSkillNotFound
	}
	return s, nil
}

func (r *fakeSkillRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.ComponentSkill, error) {
	out := make([]*types.ComponentSkill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	return out, nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*types.SelfEvaluationSession
	messages map[uuid.UUID][]types.ConversationMessage
	saveErr  error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: make(map[uuid.UUID]*types.SelfEvaluationSession),
		messages: make(map[uuid.UUID][]types.ConversationMessage),
	}
}

func (r *fakeSessionRepo) Create(ctx context.Context, tx *gorm.DB, sessions []*types.SelfEvaluationSession) ([]*types.SelfEvaluationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range sessions {
		copied := *s
		r.sessions[s.ID] = &copied
	}
	return sessions, nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.SelfEvaluationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, repos.ErrSessionNotFound
	}
	copied := *s
	copied.Messages = append([]types.ConversationMessage{}, r.messages[sessionID]...)
	return &copied, nil
}

func (r *fakeSessionRepo) Save(ctx context.Context, tx *gorm.DB, session *types.SelfEvaluationSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	stored, ok := r.sessions[session.ID]
	if !ok {
		return repos.ErrSessionNotFound
	}
	stored.Status = session.Status
	stored.StudentTurnCount = session.StudentTurnCount
	stored.CurrentLevel = session.CurrentLevel
	stored.CurrentConfidence = session.CurrentConfidence
	return nil
}

func (r *fakeSessionRepo) AppendMessages(ctx context.Context, tx *gorm.DB, messages []*types.ConversationMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range messages {
		r.messages[m.SessionID] = append(r.messages[m.SessionID], *m)
	}
	return nil
}

func (r *fakeSessionRepo) storedMessages(sessionID uuid.UUID) []types.ConversationMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ConversationMessage{}, r.messages[sessionID]...)
}

func (r *fakeSessionRepo) stored(sessionID uuid.UUID) *types.SelfEvaluationSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[sessionID]
	if s == nil {
		return nil
	}
	copied := *s
	return &copied
}

type fakeUserRepo struct {
	mu             sync.Mutex
	supervisors    []*types.User
	supervisorsErr error
	// lookupFailures counts down; EligibleSupervisors fails until it
	// reaches zero.
	lookupFailures int
}

func (r *fakeUserRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
	return users, nil
}

func (r *fakeUserRepo) GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) GetByEmails(ctx context.Context, tx *gorm.DB, userEmails []string) ([]*types.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) EmailExists(ctx context.Context, tx *gorm.DB, userEmail string) (bool, error) {
	return false, nil
}

func (r *fakeUserRepo) EligibleSupervisors(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookupFailures > 0 {
		r.lookupFailures--
		return nil, fmt.Errorf("supervisor lookup failed")
	}
	if r.supervisorsErr != nil {
		return nil, r.supervisorsErr
	}
	return r.supervisors, nil
}

type fakeIncidentRepo struct {
	mu        sync.Mutex
	incidents []*types.SafetyIncident
	createErr error
}

func (r *fakeIncidentRepo) Create(ctx context.Context, tx *gorm.DB, incidents []*types.SafetyIncident) ([]*types.SafetyIncident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.incidents = append(r.incidents, incidents...)
	return incidents, nil
}

func (r *fakeIncidentRepo) GetByID(ctx context.Context, tx *gorm.DB, incidentID uuid.UUID) (*types.SafetyIncident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inc := range r.incidents {
		if inc.ID == incidentID {
			return inc, nil
		}
	}
	return nil, fmt.Errorf("incident not found")
}

func (r *fakeIncidentRepo) ListForTeacher(ctx context.Context, tx *gorm.DB, teacherID uuid.UUID, unresolvedOnly bool) ([]*types.SafetyIncident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.SafetyIncident{}, r.incidents...), nil
}

func (r *fakeIncidentRepo) MarkResolved(ctx context.Context, tx *gorm.DB, incidentID uuid.UUID, reviewerID uuid.UUID) error {
	return nil
}

func (r *fakeIncidentRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.incidents)
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications []*types.Notification
	// failuresFor counts down per teacher; each Create against that teacher
	// fails until the counter reaches zero.
	failuresFor map[uuid.UUID]int
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{failuresFor: make(map[uuid.UUID]int)}
}

func (r *fakeNotificationRepo) Create(ctx context.Context, tx *gorm.DB, notifications []*types.Notification) ([]*types.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range notifications {
		if remaining := r.failuresFor[n.TeacherID]; remaining > 0 {
			r.failuresFor[n.TeacherID] = remaining - 1
			return nil, fmt.Errorf("simulated insert failure")
		}
	}
	r.notifications = append(r.notifications, notifications...)
	return notifications, nil
}

func (r *fakeNotificationRepo) ListByTeacher(ctx context.Context, tx *gorm.DB, teacherID uuid.UUID, unreadOnly bool) ([]*types.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Notification
	for _, n := range r.notifications {
		if n.TeacherID == teacherID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, tx *gorm.DB, notificationID uuid.UUID, teacherID uuid.UUID) error {
	return nil
}

func (r *fakeNotificationRepo) all() []*types.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.Notification{}, r.notifications...)
}

// ---- pipeline fakes ----

type fakeClassifier struct {
	verdict SafetyVerdict
}

func (f *fakeClassifier) Classify(ctx context.Context, message string, recentHistory []types.ConversationMessage) SafetyVerdict {
	return f.verdict
}

type fakeGenerator struct {
	mu      sync.Mutex
	results []generatorStep
	calls   int
}

type generatorStep struct {
	result *GeneratorResult
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, skill *types.ComponentSkill, history []types.ConversationMessage, current *Evaluation, isFinalTurn bool) (*GeneratorResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.results) {
		return nil, fmt.Errorf("unexpected generator call %d", f.calls)
	}
	step := f.results[f.calls]
	f.calls++
	return step.result, step.err
}

type fakeEscalation struct {
	mu         sync.Mutex
	inputs     []EscalationInput
	dispatched []*types.SafetyIncident
	// recordFailures counts down; RecordIncident fails until it reaches zero.
	recordFailures int
}

func (f *fakeEscalation) RecordIncident(ctx context.Context, tx *gorm.DB, input EscalationInput) (*types.SafetyIncident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordFailures > 0 {
		f.recordFailures--
		return nil, fmt.Errorf("incident store down")
	}
	f.inputs = append(f.inputs, input)
	return &types.SafetyIncident{ID: uuid.New(), StudentID: input.StudentID, IncidentType: input.IncidentType}, nil
}

func (f *fakeEscalation) Dispatch(ctx context.Context, incident *types.SafetyIncident) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, incident)
}

func (f *fakeEscalation) escalations() []EscalationInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]EscalationInput{}, f.inputs...)
}

func (f *fakeEscalation) dispatches() []*types.SafetyIncident {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.SafetyIncident{}, f.dispatched...)
}
