package notification_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payroll-engine/internal/core/events"
	"github.com/frahmantamala/payroll-engine/internal/notification"
)

func TestNotification(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Notification Suite")
}

// Mock repository for testing
type mockNotificationRepository struct {
	created     []*notification.Notification
	createError error
}

func (m *mockNotificationRepository) Create(notifications []*notification.Notification) error {
	if m.createError != nil {
		return m.createError
	}
	m.created = append(m.created, notifications...)
	return nil
}

func (m *mockNotificationRepository) ListForUser(userID int64, limit, offset int) ([]*notification.Notification, error) {
	var result []*notification.Notification
	for _, n := range m.created {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	return result, nil
}

func (m *mockNotificationRepository) MarkRead(id, userID int64, at time.Time) error {
	for _, n := range m.created {
		if n.ID == id && n.UserID == userID {
			n.ReadAt = &at
			return nil
		}
	}
	return notification.ErrNotificationNotFound
}

type mockUserDirectory struct {
	admins    map[int64][]int64
	listError error
}

func (m *mockUserDirectory) AdminUserIDs(organizationID int64) ([]int64, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	return m.admins[organizationID], nil
}

var _ = Describe("NotificationService", func() {
	var (
		service  *notification.Service
		mockRepo *mockNotificationRepository
		users    *mockUserDirectory
	)

	BeforeEach(func() {
		mockRepo = &mockNotificationRepository{}
		users = &mockUserDirectory{admins: map[int64][]int64{1: {10, 11}}}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = notification.NewService(mockRepo, users, logger)
	})

	Describe("NotifyUsers", func() {
		It("fans one message out to every recipient", func() {
			service.NotifyUsers(1, []int64{101, 102},
				notification.TypePayslipAvailable, "Payslip available", "Your payslip is ready")

			Expect(mockRepo.created).To(HaveLen(2))
			Expect(mockRepo.created[0].UserID).To(Equal(int64(101)))
			Expect(mockRepo.created[1].UserID).To(Equal(int64(102)))
			Expect(mockRepo.created[0].Type).To(Equal(notification.TypePayslipAvailable))
		})

		It("does nothing without recipients", func() {
			service.NotifyUsers(1, nil, notification.TypePayslipAvailable, "t", "m")
			Expect(mockRepo.created).To(BeEmpty())
		})

		It("swallows store failures", func() {
			mockRepo.createError = errors.New("database error")
			service.NotifyUsers(1, []int64{101}, notification.TypePayslipAvailable, "t", "m")
			Expect(mockRepo.created).To(BeEmpty())
		})
	})

	Describe("NotifyAdmins", func() {
		It("resolves recipients from the user directory", func() {
			service.NotifyAdmins(1, notification.TypePayrollPendingApproval, "Payroll pending approval", "run ready")

			Expect(mockRepo.created).To(HaveLen(2))
			Expect(mockRepo.created[0].UserID).To(Equal(int64(10)))
		})

		It("swallows directory failures", func() {
			users.listError = errors.New("database error")
			service.NotifyAdmins(1, notification.TypePayrollPendingApproval, "t", "m")
			Expect(mockRepo.created).To(BeEmpty())
		})
	})

	Describe("EventHandler", func() {
		var handler *notification.EventHandler

		BeforeEach(func() {
			logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
			handler = notification.NewEventHandler(service, logger)
		})

		It("notifies admins when a run awaits review", func() {
			event := events.NewPayrollCalculatedEvent(42, 1, 800_000, 640_000, 800_000, 2, 1)

			err := handler.HandlePayrollEvent(context.Background(), event)
			Expect(err).ToNot(HaveOccurred())

			Expect(mockRepo.created).To(HaveLen(2))
			Expect(mockRepo.created[0].Type).To(Equal(notification.TypePayrollPendingApproval))
			Expect(mockRepo.created[0].Message).To(ContainSubstring("1 failed"))
		})

		It("notifies paid employees when a run completes", func() {
			event := events.NewPayrollProcessedEvent(42, 1, "2025-02-01", "2025-02-28", []int64{101})

			err := handler.HandlePayrollEvent(context.Background(), event)
			Expect(err).ToNot(HaveOccurred())

			Expect(mockRepo.created).To(HaveLen(1))
			Expect(mockRepo.created[0].UserID).To(Equal(int64(101)))
			Expect(mockRepo.created[0].Type).To(Equal(notification.TypePayslipAvailable))
		})

		It("ignores event types it does not handle", func() {
			event := events.NewPayrollApprovedEvent(42, 1, 10)

			err := handler.HandlePayrollEvent(context.Background(), event)
			Expect(err).ToNot(HaveOccurred())
			Expect(mockRepo.created).To(BeEmpty())
		})
	})

	Describe("MarkRead", func() {
		It("stamps the read time for the owning user", func() {
			service.NotifyUsers(1, []int64{101}, notification.TypePayslipAvailable, "t", "m")
			mockRepo.created[0].ID = 1

			Expect(service.MarkRead(1, 101)).To(Succeed())
			Expect(mockRepo.created[0].ReadAt).ToNot(BeNil())
		})

		It("refuses another user's notification", func() {
			service.NotifyUsers(1, []int64{101}, notification.TypePayslipAvailable, "t", "m")
			mockRepo.created[0].ID = 1

			err := service.MarkRead(1, 999)
			Expect(err).To(MatchError(notification.ErrNotificationNotFound))
		})
	})
})
