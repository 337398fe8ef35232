package compensation

import (
	"errors"
	"time"
)

type PayFrequency string

const (
	FrequencyMonthly  PayFrequency = "MONTHLY"
	FrequencyBiweekly PayFrequency = "BIWEEKLY"
	FrequencyWeekly   PayFrequency = "WEEKLY"
	FrequencyAnnual   PayFrequency = "ANNUAL"
)

// Compensation is one link in an employee's supersession chain. Exactly one
// record per employee has IsCurrent=true; creating a new record flips the
// prior current row in the same transaction and links it via PreviousID.
type Compensation struct {
	ID            int64        `json:"id" gorm:"primaryKey"`
	EmployeeID    int64        `json:"employee_id" gorm:"column:employee_id;not null"`
	AmountMinor   int64        `json:"amount_minor" gorm:"column:amount_minor;not null"`
	Currency      string       `json:"currency" gorm:"column:currency;not null"`
	PayFrequency  PayFrequency `json:"pay_frequency" gorm:"column:pay_frequency;not null"`
	EffectiveDate time.Time    `json:"effective_date" gorm:"column:effective_date;not null"`
	IsCurrent     bool         `json:"is_current" gorm:"column:is_current;default:true"`
	PreviousID    *int64       `json:"previous_id,omitempty" gorm:"column:previous_id"`
	CreatedAt     time.Time    `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt     time.Time    `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (Compensation) TableName() string {
	return "compensations"
}

var (
	ErrCompensationNotFound = errors.New("compensation not found")
	ErrNoCurrentRecord      = errors.New("employee has no current compensation")
)
