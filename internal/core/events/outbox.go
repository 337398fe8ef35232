package events

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventPayload is the outbox payload stored as a JSON column.
type EventPayload map[string]interface{}

func (p EventPayload) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (p *EventPayload) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported payload column type %T", value)
	}
}

// DomainEvent is a transactional outbox row: written in the same transaction
// as the state change it describes, relayed asynchronously with at-least-once
// delivery. Consumers must tolerate duplicates.
type DomainEvent struct {
	ID             int64        `json:"id" gorm:"primaryKey"`
	OrganizationID int64        `json:"organization_id" gorm:"column:organization_id"`
	EventType      string       `json:"event_type" gorm:"column:event_type;not null"`
	AggregateType  string       `json:"aggregate_type" gorm:"column:aggregate_type;not null"`
	AggregateID    int64        `json:"aggregate_id" gorm:"column:aggregate_id;not null"`
	EventPayload   EventPayload `json:"payload" gorm:"column:payload"`
	DispatchedAt   *time.Time   `json:"dispatched_at,omitempty" gorm:"column:dispatched_at"`
	CreatedAt      time.Time    `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (DomainEvent) TableName() string {
	return "domain_events"
}

// NewDomainEvent builds a pending outbox row.
func NewDomainEvent(organizationID int64, eventType, aggregateType string, aggregateID int64, payload EventPayload) *DomainEvent {
	return &DomainEvent{
		OrganizationID: organizationID,
		EventType:      eventType,
		AggregateType:  aggregateType,
		AggregateID:    aggregateID,
		EventPayload:   payload,
	}
}

// ToBusEvent adapts an outbox row for the in-process bus.
func (e *DomainEvent) ToBusEvent() BaseEvent {
	return BaseEvent{
		ID:        fmt.Sprintf("outbox-%d", e.ID),
		Type:      e.EventType,
		Timestamp: e.CreatedAt,
		Data: map[string]interface{}{
			"organization_id": e.OrganizationID,
			"aggregate_type":  e.AggregateType,
			"aggregate_id":    e.AggregateID,
			"payload":         map[string]interface{}(e.EventPayload),
		},
	}
}

// OutboxRepository is the relay worker's view of the domain_events table.
type OutboxRepository interface {
	Pending(limit int) ([]*DomainEvent, error)
	MarkDispatched(id int64, at time.Time) error
}
