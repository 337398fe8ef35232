package compensation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payroll-engine/internal"
	"github.com/frahmantamala/payroll-engine/internal/money"
)

// CreateCompensationDTO takes the amount as a major-unit decimal string;
// conversion to minor units happens here, at the presentation boundary.
type CreateCompensationDTO struct {
	EmployeeID    int64        `json:"employee_id" validate:"required"`
	Amount        string       `json:"amount" validate:"required"`
	Currency      string       `json:"currency" validate:"required,len=3"`
	PayFrequency  PayFrequency `json:"pay_frequency" validate:"required"`
	EffectiveDate time.Time    `json:"effective_date" validate:"required"`
}

var validFrequencies = map[PayFrequency]bool{
	FrequencyMonthly: true, FrequencyBiweekly: true,
	FrequencyWeekly: true, FrequencyAnnual: true,
}

// Validate rejects malformed amounts here rather than letting the permissive
// money primitive silently turn them into zero.
func (dto CreateCompensationDTO) Validate() error {
	if err := dto.validate(); err != nil {
		return internal.NewValidationError(err.Error(), internal.ErrCodeInvalidAmount)
	}
	return nil
}

func (dto CreateCompensationDTO) validate() error {
	if dto.EmployeeID <= 0 {
		return errors.New("employee_id is required")
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(dto.Amount))
	if err != nil {
		return fmt.Errorf("amount %q is not a valid decimal", dto.Amount)
	}
	if amount.Sign() <= 0 {
		return errors.New("amount must be greater than 0")
	}

	if len(dto.Currency) != 3 {
		return errors.New("currency must be a three-letter ISO code")
	}
	if !validFrequencies[dto.PayFrequency] {
		return fmt.Errorf("unknown pay_frequency %q", dto.PayFrequency)
	}
	if dto.EffectiveDate.IsZero() {
		return errors.New("effective_date is required")
	}

	return nil
}

// ToCompensation converts a validated DTO into the next chain record.
func (dto CreateCompensationDTO) ToCompensation() *Compensation {
	return &Compensation{
		EmployeeID:    dto.EmployeeID,
		AmountMinor:   money.ToMinor(dto.Amount),
		Currency:      strings.ToUpper(dto.Currency),
		PayFrequency:  dto.PayFrequency,
		EffectiveDate: dto.EffectiveDate,
		IsCurrent:     true,
	}
}
