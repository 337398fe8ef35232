package employee

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/payroll-engine/internal"
)

// Repository defines the data access methods for the employee directory.
type Repository interface {
	Create(emp *Employee) error
	GetByID(id int64) (*Employee, error)
	ListByOrganization(organizationID int64, limit, offset int) ([]*Employee, error)
	ListByStatuses(organizationID int64, statuses []Status) ([]*Employee, error)
}

// CreateEmployeeDTO is the minimal directory record; full onboarding lives in
// the surrounding platform.
type CreateEmployeeDTO struct {
	OrganizationID    int64  `json:"organization_id" validate:"required"`
	UserID            *int64 `json:"user_id,omitempty"`
	FirstName         string `json:"first_name" validate:"required"`
	LastName          string `json:"last_name" validate:"required"`
	Email             string `json:"email" validate:"required,email"`
	EmploymentCountry string `json:"employment_country" validate:"required,len=2"`
	Status            Status `json:"status,omitempty"`
}

func (dto CreateEmployeeDTO) Validate() error {
	if err := dto.validate(); err != nil {
		return internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}
	return nil
}

func (dto CreateEmployeeDTO) validate() error {
	if dto.OrganizationID <= 0 {
		return errors.New("organization_id is required")
	}
	if dto.FirstName == "" || dto.LastName == "" {
		return errors.New("first_name and last_name are required")
	}
	if !strings.Contains(dto.Email, "@") {
		return errors.New("email is invalid")
	}
	if len(dto.EmploymentCountry) != 2 {
		return errors.New("employment_country must be a two-letter ISO code")
	}
	switch dto.Status {
	case "", StatusOnboarding, StatusActive, StatusOnLeave, StatusTerminated:
	default:
		return fmt.Errorf("unknown status %q", dto.Status)
	}
	return nil
}

// Service exposes the employee directory contract the payroll engine
// consumes.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) CreateEmployee(dto CreateEmployeeDTO) (*Employee, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("employee validation failed", "error", err, "org_id", dto.OrganizationID)
		return nil, err
	}

	status := dto.Status
	if status == "" {
		status = StatusOnboarding
	}

	emp := &Employee{
		OrganizationID:    dto.OrganizationID,
		UserID:            dto.UserID,
		FirstName:         dto.FirstName,
		LastName:          dto.LastName,
		Email:             dto.Email,
		EmploymentCountry: strings.ToUpper(dto.EmploymentCountry),
		Status:            status,
	}

	if err := s.repo.Create(emp); err != nil {
		s.logger.Error("failed to create employee", "error", err, "org_id", dto.OrganizationID)
		return nil, err
	}

	s.logger.Info("employee created",
		"employee_id", emp.ID,
		"org_id", emp.OrganizationID,
		"country", emp.EmploymentCountry)

	return emp, nil
}

func (s *Service) GetEmployee(id int64) (*Employee, error) {
	return s.repo.GetByID(id)
}

func (s *Service) ListEmployees(organizationID int64, limit, offset int) ([]*Employee, error) {
	return s.repo.ListByOrganization(organizationID, limit, offset)
}

// ActiveEmployees returns the employees a payroll run must settle: those in
// ACTIVE, ONBOARDING, or ON_LEAVE status.
func (s *Service) ActiveEmployees(organizationID int64) ([]*Employee, error) {
	employees, err := s.repo.ListByStatuses(organizationID, PayableStatuses)
	if err != nil {
		s.logger.Error("failed to list active employees", "error", err, "org_id", organizationID)
		return nil, err
	}
	return employees, nil
}
