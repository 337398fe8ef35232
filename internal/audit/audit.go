package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Changes holds the audited change set as a JSON column.
type Changes map[string]interface{}

func (c Changes) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (c *Changes) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("unsupported changes column type %T", value)
	}
}

// Log is one audit record. Entries are written inside the same transaction as
// the state change they describe.
type Log struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	OrganizationID int64     `json:"organization_id" gorm:"column:organization_id"`
	UserID         *int64    `json:"user_id,omitempty" gorm:"column:user_id"`
	Action         string    `json:"action" gorm:"column:action;not null"`
	ResourceType   string    `json:"resource_type" gorm:"column:resource_type;not null"`
	ResourceID     int64     `json:"resource_id" gorm:"column:resource_id"`
	Changes        Changes   `json:"changes,omitempty" gorm:"column:changes"`
	IPAddress      *string   `json:"ip_address,omitempty" gorm:"column:ip_address"`
	UserAgent      *string   `json:"user_agent,omitempty" gorm:"column:user_agent"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Log) TableName() string {
	return "audit_logs"
}

// NewLog builds an audit entry for an actor-initiated change.
func NewLog(organizationID int64, userID *int64, action, resourceType string, resourceID int64, changes Changes) *Log {
	return &Log{
		OrganizationID: organizationID,
		UserID:         userID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Changes:        changes,
	}
}
