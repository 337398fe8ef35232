package employee

import (
	"errors"
	"time"
)

type Status string

const (
	StatusOnboarding Status = "ONBOARDING"
	StatusActive     Status = "ACTIVE"
	StatusOnLeave    Status = "ON_LEAVE"
	StatusTerminated Status = "TERMINATED"
)

// PayableStatuses are the statuses included in a payroll calculation pass.
var PayableStatuses = []Status{StatusActive, StatusOnboarding, StatusOnLeave}

// Employee is the directory record the payroll engine consumes. User accounts
// and onboarding flows are owned elsewhere; UserID links to the platform user
// when one exists.
type Employee struct {
	ID                int64     `json:"id" gorm:"primaryKey"`
	OrganizationID    int64     `json:"organization_id" gorm:"column:organization_id;not null"`
	UserID            *int64    `json:"user_id,omitempty" gorm:"column:user_id"`
	FirstName         string    `json:"first_name" gorm:"column:first_name;not null"`
	LastName          string    `json:"last_name" gorm:"column:last_name;not null"`
	Email             string    `json:"email" gorm:"column:email;not null"`
	EmploymentCountry string    `json:"employment_country" gorm:"column:employment_country;not null"`
	Status            Status    `json:"status" gorm:"column:status;default:ONBOARDING"`
	CreatedAt         time.Time `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (Employee) TableName() string {
	return "employees"
}

func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

var ErrEmployeeNotFound = errors.New("employee not found")
