package service

import (
	"context"
	"fmt"

	"github.com/G1r1shCodes/BimaBot/internal/application/dispatcher"
	"github.com/G1r1shCodes/BimaBot/internal/application/port"
	"github.com/G1r1shCodes/BimaBot/internal/domain/event"
)

// NotificationService tells operators when sessions finish
type NotificationService interface {
	// NotifyFinished sends the outcome of a terminal session
	NotifyFinished(ctx context.Context, sessionID string) error

	// Register subscribes the service to completed and failed events
	Register(d dispatcher.Dispatcher)
}

type notificationServiceImpl struct {
	sessionRepo port.SessionRepository
	notifier    port.SessionNotifier
	logger      Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	sessionRepo port.SessionRepository,
	notifier port.SessionNotifier,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		sessionRepo: sessionRepo,
		notifier:    notifier,
		logger:      logger,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	handler := func(ctx context.Context, evt *event.Event) error {
		return s.NotifyFinished(ctx, evt.SessionID)
	}
	d.SubscribeNamed(event.TypeSessionCompleted, "notify_completed", handler)
	d.SubscribeNamed(event.TypeSessionFailed, "notify_failed", handler)
}

func (s *notificationServiceImpl) NotifyFinished(ctx context.Context, sessionID string) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		s.logger.Error("Failed to get session", "error", err, "audit_id", sessionID)
		return fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("notify %s: session not found", sessionID)
	}
	if !session.IsTerminal() {
		return nil
	}

	if err := s.notifier.NotifySessionFinished(ctx, session); err != nil {
		s.logger.Error("Failed to send session notification", "error", err, "audit_id", sessionID)
		return fmt.Errorf("notify session: %w", err)
	}

	s.logger.Info("Session notification sent", "audit_id", sessionID, "status", session.Status)
	return nil
}
