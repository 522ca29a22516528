package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/skillscope-backend/internal/logger"
	"github.com/yungbote/skillscope-backend/internal/repos"
	"github.com/yungbote/skillscope-backend/internal/sendgrid"
	"github.com/yungbote/skillscope-backend/internal/sse"
	"github.com/yungbote/skillscope-backend/internal/types"
)

type EscalationInput struct {
	StudentID    uuid.UUID
	TeacherID    *uuid.UUID
	SkillID      *uuid.UUID
	SessionID    *uuid.UUID
	IncidentType string
	Message      string
	Conversation []types.ConversationMessage
}

// EscalationService records safety incidents and notifies every eligible
// teacher. RecordIncident joins the caller's transaction so the incident
// commits or rolls back together with whatever state change triggered it.
// Dispatch runs detached and never delays the student-facing response.
type EscalationService interface {
	RecordIncident(ctx context.Context, tx *gorm.DB, input EscalationInput) (*types.SafetyIncident, error)
	Dispatch(ctx context.Context, incident *types.SafetyIncident)
}

type escalationService struct {
	log              *logger.Logger
	userRepo         repos.UserRepo
	incidentRepo     repos.SafetyIncidentRepo
	notificationRepo repos.NotificationRepo
	hub              *sse.SSEHub
	mailer           sendgrid.Client
}

// NewEscalationService wires the gateway. mailer may be nil; email delivery
// is then skipped.
func NewEscalationService(
	log *logger.Logger,
	userRepo repos.UserRepo,
	incidentRepo repos.SafetyIncidentRepo,
	notificationRepo repos.NotificationRepo,
	hub *sse.SSEHub,
	mailer sendgrid.Client,
) EscalationService {
	return &escalationService{
		log:              log.With("service", "EscalationService"),
		userRepo:         userRepo,
		incidentRepo:     incidentRepo,
		notificationRepo: notificationRepo,
		hub:              hub,
		mailer:           mailer,
	}
}

func (s *escalationService) RecordIncident(ctx context.Context, tx *gorm.DB, input EscalationInput) (*types.SafetyIncident, error) {
	snapshot, err := json.Marshal(input.Conversation)
	if err != nil {
		snapshot = []byte("[]")
		s.log.Error("Failed to snapshot conversation for incident", "error", err)
	}

	incident := &types.SafetyIncident{
		ID:                   uuid.New(),
		StudentID:            input.StudentID,
		TeacherID:            input.TeacherID,
		SkillID:              input.SkillID,
		SessionID:            input.SessionID,
		IncidentType:         input.IncidentType,
		Message:              input.Message,
		Severity:             types.IncidentSeverityFor(input.IncidentType),
		ConversationSnapshot: snapshot,
	}

	if _, err := s.incidentRepo.Create(ctx, tx, []*types.SafetyIncident{incident}); err != nil {
		return nil, fmt.Errorf("persist safety incident: %w", err)
	}
	s.log.Info("Safety incident recorded",
		"incident_id", incident.ID,
		"student_id", input.StudentID,
		"incident_type", input.IncidentType,
		"severity", incident.Severity,
	)
	return incident, nil
}

func (s *escalationService) Dispatch(ctx context.Context, incident *types.SafetyIncident) {
	go s.dispatch(context.WithoutCancel(ctx), incident)
}

// dispatch resolves the eligible reviewers and fans the notifications out.
// The lookup gets the same one-retry treatment as per-recipient delivery; a
// lookup that fails twice leaves the incident standing unnotified.
func (s *escalationService) dispatch(ctx context.Context, incident *types.SafetyIncident) {
	teachers, err := s.userRepo.EligibleSupervisors(ctx, nil, incident.StudentID)
	if err != nil {
		time.Sleep(250 * time.Millisecond)
		teachers, err = s.userRepo.EligibleSupervisors(ctx, nil, incident.StudentID)
	}
	if err != nil {
		s.log.Error("Failed to resolve eligible supervisors after retry; incident stands unnotified",
			"incident_id", incident.ID, "error", err)
		return
	}
	if len(teachers) == 0 {
		s.log.Error("Operational gap: incident has no eligible reviewer",
			"incident_id", incident.ID,
			"student_id", incident.StudentID,
			"error", ErrNoEligibleReviewer.Error(),
		)
		return
	}

	s.notifyTeachers(ctx, incident, teachers)
}

// notifyTeachers fans out one notification per teacher. Deliveries are
// independent: a failure for one recipient is retried once, then logged,
// and never rolls back the incident or the other notifications.
func (s *escalationService) notifyTeachers(ctx context.Context, incident *types.SafetyIncident, teachers []*types.User) {
	summary := incidentSummary(incident)

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, teacher := range teachers {
		g.Go(func() error {
			s.notifyOne(groupCtx, incident, teacher, summary)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *escalationService) notifyOne(ctx context.Context, incident *types.SafetyIncident, teacher *types.User, summary string) {
	notification := &types.Notification{
		ID:         uuid.New(),
		TeacherID:  teacher.ID,
		IncidentID: incident.ID,
		Summary:    summary,
	}

	_, err := s.notificationRepo.Create(ctx, nil, []*types.Notification{notification})
	if err != nil {
		time.Sleep(250 * time.Millisecond)
		_, err = s.notificationRepo.Create(ctx, nil, []*types.Notification{notification})
	}
	if err != nil {
		s.log.Error("Notification delivery failed after retry",
			"incident_id", incident.ID,
			"teacher_id", teacher.ID,
			"error", fmt.Errorf("%w: %v", ErrNotificationDeliveryFailed, err).Error(),
		)
		return
	}

	if s.hub != nil {
		s.hub.Broadcast(sse.SSEMessage{
			Channel: teacher.ID.String(),
			Event:   sse.SSEEventSafetyNotification,
			Data: map[string]any{
				"notification_id": notification.ID,
				"incident_id":     incident.ID,
				"severity":        incident.Severity,
				"summary":         summary,
			},
		})
	}

	if s.mailer != nil && teacher.Email != "" {
		mailErr := s.mailer.Send(ctx, sendgrid.SendEmailRequest{
			To:      []sendgrid.EmailAddress{{Email: teacher.Email, Name: teacher.FirstName + " " + teacher.LastName}},
			Subject: fmt.Sprintf("[%s] Student safety incident requires review", incident.Severity),
			Text:    summary,
		})
		if mailErr != nil {
			s.log.Warn("Incident email delivery failed",
				"incident_id", incident.ID,
				"teacher_id", teacher.ID,
				"error", mailErr,
			)
		}
	}
}

func incidentSummary(incident *types.SafetyIncident) string {
	return fmt.Sprintf(
		"A student message was flagged as %s (severity: %s) during a self-evaluation session. Please review the incident and follow your school's safety protocol.",
		incident.IncidentType, incident.Severity,
	)
}
