package notification

import (
	"log/slog"
	"time"
)

// Repository defines the data access methods for notifications.
type Repository interface {
	Create(notifications []*Notification) error
	ListForUser(userID int64, limit, offset int) ([]*Notification, error)
	MarkRead(id, userID int64, at time.Time) error
}

// UserDirectory resolves notification recipients from the platform's user
// store. Read-only: user accounts are owned by the external auth service.
type UserDirectory interface {
	AdminUserIDs(organizationID int64) ([]int64, error)
}

type Service struct {
	repo   Repository
	users  UserDirectory
	logger *slog.Logger
}

func NewService(repo Repository, users UserDirectory, logger *slog.Logger) *Service {
	return &Service{repo: repo, users: users, logger: logger}
}

// NotifyUsers fans one message out to a set of users. Notification failures
// are logged, never propagated: a missed message must not disturb payroll.
func (s *Service) NotifyUsers(organizationID int64, userIDs []int64, notifType, title, message string) {
	if len(userIDs) == 0 {
		return
	}

	notifications := make([]*Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		notifications = append(notifications, &Notification{
			UserID:         userID,
			OrganizationID: organizationID,
			Type:           notifType,
			Title:          title,
			Message:        message,
		})
	}

	if err := s.repo.Create(notifications); err != nil {
		s.logger.Error("failed to create notifications",
			"error", err, "org_id", organizationID, "type", notifType, "recipients", len(userIDs))
		return
	}

	s.logger.Info("notifications created",
		"org_id", organizationID, "type", notifType, "recipients", len(userIDs))
}

// NotifyAdmins sends a message to every admin of an organization.
func (s *Service) NotifyAdmins(organizationID int64, notifType, title, message string) {
	adminIDs, err := s.users.AdminUserIDs(organizationID)
	if err != nil {
		s.logger.Error("failed to resolve admin recipients", "error", err, "org_id", organizationID)
		return
	}
	s.NotifyUsers(organizationID, adminIDs, notifType, title, message)
}

func (s *Service) ListForUser(userID int64, limit, offset int) ([]*Notification, error) {
	return s.repo.ListForUser(userID, limit, offset)
}

func (s *Service) MarkRead(id, userID int64) error {
	return s.repo.MarkRead(id, userID, time.Now())
}
