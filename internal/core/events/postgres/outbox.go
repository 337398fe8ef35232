package postgres

import (
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/payroll-engine/internal/core/events"
)

// OutboxRepository implements events.OutboxRepository using GORM.
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) events.OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Pending(limit int) ([]*events.DomainEvent, error) {
	var pending []*events.DomainEvent
	err := r.db.Where("dispatched_at IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&pending).Error
	return pending, err
}

func (r *OutboxRepository) MarkDispatched(id int64, at time.Time) error {
	return r.db.Model(&events.DomainEvent{}).
		Where("id = ?", id).
		Update("dispatched_at", at).Error
}
