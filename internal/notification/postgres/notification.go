package postgres

import (
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/payroll-engine/internal/notification"
)

// NotificationRepository implements notification.Repository using GORM.
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(notifications []*notification.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.Create(&notifications).Error
}

func (r *NotificationRepository) ListForUser(userID int64, limit, offset int) ([]*notification.Notification, error) {
	var notifications []*notification.Notification
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	return notifications, err
}

func (r *NotificationRepository) MarkRead(id, userID int64, at time.Time) error {
	result := r.db.Model(&notification.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notification.ErrNotificationNotFound
	}
	return nil
}

// AdminUserIDs resolves admin accounts for an organization from the platform
// user store. Rows there are owned by the external auth service; this is a
// read-only view.
func (r *NotificationRepository) AdminUserIDs(organizationID int64) ([]int64, error) {
	var ids []int64
	err := r.db.Raw(
		`SELECT id FROM users WHERE organization_id = ? AND is_admin = true`,
		organizationID).Scan(&ids).Error
	return ids, err
}
