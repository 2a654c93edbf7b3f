package notifications

import (
	"context"
	"log/slog"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	DefaultFrom string
}

func New(store StoreAPI, mailer Mailer, from string) *Service {
	if from == "" {
		from = "no-reply@example.com"
	}
	return &Service{store: store, Mailer: mailer, DefaultFrom: from}
}

// Create stores an in-app notification and mails a copy when a mailer is configured. Mail
// failures are logged and never fail the call.
func (s *Service) Create(ctx context.Context, userID, ntype, title, body string) error {
	if err := s.store.CreateNotification(ctx, userID, ntype, title, body); err != nil {
		return err
	}
	if s.Mailer == nil {
		return nil
	}

	email, err := s.store.UserEmail(ctx, userID)
	if err != nil {
		slog.Warn("notification email lookup failed", "userId", userID, "err", err)
		return nil
	}
	if email == "" {
		return nil
	}
	if err := s.Mailer.Send(ctx, s.DefaultFrom, email, title, body); err != nil {
		slog.Warn("notification email send failed", "userId", userID, "err", err)
	}
	return nil
}

// NotifyMany notifies each user once and keeps going past individual failures.
func (s *Service) NotifyMany(ctx context.Context, userIDs []string, ntype, title, body string) int {
	sent := 0
	seen := map[string]struct{}{}
	for _, userID := range userIDs {
		if userID == "" {
			continue
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		if err := s.Create(ctx, userID, ntype, title, body); err != nil {
			slog.Warn("notification create failed", "userId", userID, "type", ntype, "err", err)
			continue
		}
		sent++
	}
	return sent
}

// NotifyRole notifies every active user holding role.
func (s *Service) NotifyRole(ctx context.Context, role, ntype, title, body string) (int, error) {
	userIDs, err := s.store.UserIDsByRole(ctx, role)
	if err != nil {
		return 0, err
	}
	return s.NotifyMany(ctx, userIDs, ntype, title, body), nil
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, userID, limit, offset)
}

func (s *Service) Count(ctx context.Context, userID string) (int, error) {
	return s.store.CountNotifications(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.store.MarkRead(ctx, userID, notificationID)
}
