package notification

import (
	"errors"
	"time"
)

const (
	TypePayrollPendingApproval = "payroll_pending_approval"
	TypePayslipAvailable       = "payslip_available"
)

// Notification is one in-app message for a user. Delivery to external
// channels rides the outbox relay, not these rows.
type Notification struct {
	ID             int64      `json:"id" gorm:"primaryKey"`
	UserID         int64      `json:"user_id" gorm:"column:user_id;not null"`
	OrganizationID int64      `json:"organization_id" gorm:"column:organization_id;not null"`
	Type           string     `json:"type" gorm:"column:type;not null"`
	Title          string     `json:"title" gorm:"column:title;not null"`
	Message        string     `json:"message" gorm:"column:message"`
	ReadAt         *time.Time `json:"read_at,omitempty" gorm:"column:read_at"`
	CreatedAt      time.Time  `json:"created_at" gorm:"column:created_at;default:now()"`
}

func (Notification) TableName() string {
	return "notifications"
}

var ErrNotificationNotFound = errors.New("notification not found")
