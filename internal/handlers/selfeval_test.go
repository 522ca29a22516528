package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/skillscope-backend/internal/repos"
	"github.com/yungbote/skillscope-backend/internal/requestdata"
	"github.com/yungbote/skillscope-backend/internal/services"
	"github.com/yungbote/skillscope-backend/internal/types"
)

type stubSelfEvalService struct {
	turnResult *services.TurnResult
	turnErr    error
}

func (s *stubSelfEvalService) StartSession(ctx context.Context, studentID uuid.UUID, skillID uuid.UUID) (*types.SelfEvaluationSession, error) {
	return &types.SelfEvaluationSession{ID: uuid.New(), StudentID: studentID, SkillID: skillID, Status: types.SessionStatusActive}, nil
}

func (s *stubSelfEvalService) GetSession(ctx context.Context, sessionID uuid.UUID, studentID uuid.UUID) (*types.SelfEvaluationSession, error) {
	return nil, repos.ErrSessionNotFound
}

func (s *stubSelfEvalService) ProcessTurn(ctx context.Context, sessionID uuid.UUID, studentID uuid.UUID, studentMessage string) (*services.TurnResult, error) {
	return s.turnResult, s.turnErr
}

func submitTurn(t *testing.T, svc services.SelfEvaluationService, sessionID string, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{
			UserID: uuid.New(),
			Role:   types.RoleStudent,
		})
		c.Request = c.Request.WithContext(ctx)
	})
	router.POST("/api/self-evaluations/:id/turns", NewSelfEvalHandler(svc).SubmitTurn)

	req := httptest.NewRequest(http.MethodPost, "/api/self-evaluations/"+sessionID+"/turns", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitTurn_ReturnsTurnResult(t *testing.T) {
	sessionID := uuid.New()
	svc := &stubSelfEvalService{turnResult: &services.TurnResult{
		SessionID:     sessionID,
		TutorResponse: "Keep going.",
		Outcome:       services.TurnOutcomeSafeContinue,
		SessionStatus: types.SessionStatusActive,
	}}

	w := submitTurn(t, svc, sessionID.String(), `{"message":"my answer"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Keep going.") {
		t.Fatalf("response body missing tutor reply: %s", w.Body.String())
	}
}

func TestSubmitTurn_ClosedSessionIsConflict(t *testing.T) {
	svc := &stubSelfEvalService{turnErr: services.ErrSessionClosed}

	w := submitTurn(t, svc, uuid.New().String(), `{"message":"late answer"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitTurn_UnknownSessionIsNotFound(t *testing.T) {
	svc := &stubSelfEvalService{turnErr: repos.ErrSessionNotFound}

	w := submitTurn(t, svc, uuid.New().String(), `{"message":"hello"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitTurn_BadInputIsRejected(t *testing.T) {
	svc := &stubSelfEvalService{}

	if w := submitTurn(t, svc, "not-a-uuid", `{"message":"x"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad session id, got %d", w.Code)
	}
	if w := submitTurn(t, svc, uuid.New().String(), `{"message":`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", w.Code)
	}
}
