package compensation

import (
	"log/slog"
	"time"
)

// Repository defines the data access methods for compensation records.
type Repository interface {
	Create(comp *Compensation) error
	GetByID(id int64) (*Compensation, error)
	CurrentFor(employeeID int64, asOf time.Time) (*Compensation, error)
	ListForEmployee(employeeID int64) ([]*Compensation, error)
	Supersede(next *Compensation) error
}

// Service maintains each employee's compensation supersession chain.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// SetCompensation records a new current compensation for an employee. The
// prior current record, if any, is flipped to non-current in the same
// transaction and linked via previous_id.
func (s *Service) SetCompensation(dto CreateCompensationDTO) (*Compensation, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("compensation validation failed", "error", err, "employee_id", dto.EmployeeID)
		return nil, err
	}

	next := dto.ToCompensation()
	if err := s.repo.Supersede(next); err != nil {
		s.logger.Error("failed to supersede compensation", "error", err, "employee_id", dto.EmployeeID)
		return nil, err
	}

	s.logger.Info("compensation recorded",
		"compensation_id", next.ID,
		"employee_id", next.EmployeeID,
		"amount_minor", next.AmountMinor,
		"currency", next.Currency)

	return next, nil
}

// CurrentFor returns the compensation in force for an employee as of a date.
// The payroll engine consumes this as its compensation source; a missing
// record is reported as ErrNoCurrentRecord, not invented as zero.
func (s *Service) CurrentFor(employeeID int64, asOf time.Time) (*Compensation, error) {
	comp, err := s.repo.CurrentFor(employeeID, asOf)
	if err != nil {
		return nil, err
	}
	return comp, nil
}

func (s *Service) History(employeeID int64) ([]*Compensation, error) {
	return s.repo.ListForEmployee(employeeID)
}
