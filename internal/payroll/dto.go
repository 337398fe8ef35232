package payroll

import (
	"errors"
	"strings"
	"time"

	"github.com/frahmantamala/payroll-engine/internal"
)

// CreateRunDTO declares a pay period. OrganizationID may be omitted, in which
// case the run is created for the actor's own organization.
type CreateRunDTO struct {
	OrganizationID int64     `json:"organization_id,omitempty"`
	PeriodStart    time.Time `json:"period_start" validate:"required"`
	PeriodEnd      time.Time `json:"period_end" validate:"required"`
	PayDate        time.Time `json:"pay_date" validate:"required"`
	Currency       string    `json:"currency,omitempty"`
}

// Validate checks period coherence. Overlap with existing runs is not
// enforced; repeated periods recalculate against the same YTD window.
func (dto CreateRunDTO) Validate() error {
	if err := dto.validate(); err != nil {
		return internal.NewValidationError(err.Error(), internal.ErrCodeInvalidPeriod)
	}
	return nil
}

func (dto CreateRunDTO) validate() error {
	if dto.PeriodStart.IsZero() || dto.PeriodEnd.IsZero() {
		return errors.New("period_start and period_end are required")
	}
	if !dto.PeriodStart.Before(dto.PeriodEnd) {
		return errors.New("period_start must precede period_end")
	}
	if dto.PayDate.IsZero() {
		return errors.New("pay_date is required")
	}
	if dto.PayDate.Before(dto.PeriodStart) {
		return errors.New("pay_date must not precede period_start")
	}
	if dto.Currency != "" && len(dto.Currency) != 3 {
		return errors.New("currency must be a three-letter ISO code")
	}
	return nil
}

func (dto CreateRunDTO) currencyOrDefault() string {
	if dto.Currency == "" {
		return "USD"
	}
	return strings.ToUpper(dto.Currency)
}
