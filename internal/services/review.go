package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/skillscope-backend/internal/logger"
	"github.com/yungbote/skillscope-backend/internal/repos"
	"github.com/yungbote/skillscope-backend/internal/sse"
	"github.com/yungbote/skillscope-backend/internal/types"
)

// ReviewService is the teacher-facing side of escalation: reading
// notifications and resolving incidents. Resolution is strictly a human
// action; the dialogue engine never touches an incident after creation.
type ReviewService interface {
	ListNotifications(ctx context.Context, teacherID uuid.UUID, unreadOnly bool) ([]*types.Notification, error)
	MarkNotificationRead(ctx context.Context, teacherID uuid.UUID, notificationID uuid.UUID) error
	ListIncidents(ctx context.Context, teacherID uuid.UUID, unresolvedOnly bool) ([]*types.SafetyIncident, error)
	ResolveIncident(ctx context.Context, teacherID uuid.UUID, incidentID uuid.UUID) error
}

type reviewService struct {
	db               *gorm.DB
	log              *logger.Logger
	incidentRepo     repos.SafetyIncidentRepo
	notificationRepo repos.NotificationRepo
	hub              *sse.SSEHub
}

func NewReviewService(
	db *gorm.DB,
	log *logger.Logger,
	incidentRepo repos.SafetyIncidentRepo,
	notificationRepo repos.NotificationRepo,
	hub *sse.SSEHub,
) ReviewService {
	return &reviewService{
		db:               db,
		log:              log.With("service", "ReviewService"),
		incidentRepo:     incidentRepo,
		notificationRepo: notificationRepo,
		hub:              hub,
	}
}

func (s *reviewService) ListNotifications(ctx context.Context, teacherID uuid.UUID, unreadOnly bool) ([]*types.Notification, error) {
	return s.notificationRepo.ListByTeacher(ctx, nil, teacherID, unreadOnly)
}

func (s *reviewService) MarkNotificationRead(ctx context.Context, teacherID uuid.UUID, notificationID uuid.UUID) error {
	return s.notificationRepo.MarkRead(ctx, nil, notificationID, teacherID)
}

func (s *reviewService) ListIncidents(ctx context.Context, teacherID uuid.UUID, unresolvedOnly bool) ([]*types.SafetyIncident, error) {
	return s.incidentRepo.ListForTeacher(ctx, nil, teacherID, unresolvedOnly)
}

func (s *reviewService) ResolveIncident(ctx context.Context, teacherID uuid.UUID, incidentID uuid.UUID) error {
	incident, err := s.incidentRepo.GetByID(ctx, nil, incidentID)
	if err != nil {
		return fmt.Errorf("incident not found: %w", err)
	}
	if incident.Resolved {
		return nil
	}

	if err := s.incidentRepo.MarkResolved(ctx, nil, incidentID, teacherID); err != nil {
		return fmt.Errorf("resolve incident: %w", err)
	}
	s.log.Info("Safety incident resolved", "incident_id", incidentID, "reviewer_id", teacherID)

	if s.hub != nil {
		s.hub.Broadcast(sse.SSEMessage{
			Channel: teacherID.String(),
			Event:   sse.SSEEventIncidentResolved,
			Data:    map[string]any{"incident_id": incidentID},
		})
	}
	return nil
}
