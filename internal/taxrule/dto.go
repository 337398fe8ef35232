package taxrule

import (
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/payroll-engine/internal"
)

// CreateTaxRuleDTO is the request payload for creating (or superseding) a rule.
type CreateTaxRuleDTO struct {
	CountryCode      string          `json:"country_code" validate:"required,len=2"`
	RegionCode       *string         `json:"region_code,omitempty"`
	TaxType          TaxType         `json:"tax_type" validate:"required"`
	PaidBy           PaidBy          `json:"paid_by" validate:"required"`
	CalculationType  CalculationType `json:"calculation_type" validate:"required"`
	Brackets         Brackets        `json:"brackets" validate:"required"`
	WageBaseCapMinor *int64          `json:"wage_base_cap_minor,omitempty"`
	EffectiveDate    time.Time       `json:"effective_date" validate:"required"`
	ExpirationDate   *time.Time      `json:"expiration_date,omitempty"`
}

var validTaxTypes = map[TaxType]bool{
	TaxTypeIncome: true, TaxTypeSocialSecurity: true, TaxTypeMedicare: true,
	TaxTypeUnemployment: true, TaxTypePension: true, TaxTypeLocal: true, TaxTypeOther: true,
}

var validPaidBy = map[PaidBy]bool{
	PaidByEmployee: true, PaidByEmployer: true, PaidByBoth: true,
}

var validCalculationTypes = map[CalculationType]bool{
	CalculationProgressiveBracket: true, CalculationFlatRate: true,
	CalculationFlatAmount: true, CalculationWageBaseCap: true,
}

// Validate checks enum membership and bracket shape. The evaluator trusts
// bracket order, so ordering is enforced here at the creation boundary.
func (dto CreateTaxRuleDTO) Validate() error {
	if err := dto.validate(); err != nil {
		return internal.NewValidationError(err.Error(), internal.ErrCodeInvalidBrackets)
	}
	return nil
}

func (dto CreateTaxRuleDTO) validate() error {
	if len(dto.CountryCode) != 2 {
		return errors.New("country_code must be a two-letter ISO code")
	}
	if !validTaxTypes[dto.TaxType] {
		return fmt.Errorf("unknown tax_type %q", dto.TaxType)
	}
	if !validPaidBy[dto.PaidBy] {
		return fmt.Errorf("unknown paid_by %q", dto.PaidBy)
	}
	if !validCalculationTypes[dto.CalculationType] {
		return fmt.Errorf("unknown calculation_type %q", dto.CalculationType)
	}
	if dto.EffectiveDate.IsZero() {
		return errors.New("effective_date is required")
	}
	if dto.ExpirationDate != nil && dto.ExpirationDate.Before(dto.EffectiveDate) {
		return errors.New("expiration_date must not precede effective_date")
	}
	if len(dto.Brackets) == 0 {
		return errors.New("at least one bracket is required")
	}

	switch dto.CalculationType {
	case CalculationProgressiveBracket:
		return validateProgressiveBrackets(dto.Brackets)
	case CalculationFlatRate:
		if dto.Brackets[0].Rate == nil {
			return errors.New("flat-rate rules require brackets[0].rate")
		}
	case CalculationFlatAmount:
		if dto.Brackets[0].FlatAmount == nil {
			return errors.New("flat-amount rules require brackets[0].flatAmount")
		}
	case CalculationWageBaseCap:
		if dto.Brackets[0].Rate == nil {
			return errors.New("wage-base-cap rules require brackets[0].rate")
		}
		if dto.WageBaseCapMinor == nil || *dto.WageBaseCapMinor <= 0 {
			return errors.New("wage-base-cap rules require a positive wage_base_cap_minor")
		}
	}

	return nil
}

// validateProgressiveBrackets requires ascending, non-overlapping brackets so
// the evaluator can walk them in input order.
func validateProgressiveBrackets(brackets Brackets) error {
	prevMax := 0.0
	for i, b := range brackets {
		min := 0.0
		if b.Min != nil {
			min = *b.Min
		}
		if min < 0 {
			return fmt.Errorf("brackets[%d].min must not be negative", i)
		}
		if i > 0 && min < prevMax {
			return fmt.Errorf("brackets[%d] overlaps the previous bracket", i)
		}
		if b.Max != nil {
			if *b.Max <= min {
				return fmt.Errorf("brackets[%d].max must exceed its min", i)
			}
			prevMax = *b.Max
		} else if i != len(brackets)-1 {
			return fmt.Errorf("brackets[%d] is unbounded but not the last bracket", i)
		}
		if b.Rate == nil && b.FlatAmount == nil {
			return fmt.Errorf("brackets[%d] must set rate or flatAmount", i)
		}
	}
	return nil
}

// ToRule builds the immutable rule row from a validated DTO.
func (dto CreateTaxRuleDTO) ToRule() *TaxRule {
	return &TaxRule{
		CountryCode:      dto.CountryCode,
		RegionCode:       dto.RegionCode,
		TaxType:          dto.TaxType,
		PaidBy:           dto.PaidBy,
		CalculationType:  dto.CalculationType,
		Brackets:         dto.Brackets,
		WageBaseCapMinor: dto.WageBaseCapMinor,
		EffectiveDate:    dto.EffectiveDate,
		ExpirationDate:   dto.ExpirationDate,
		IsActive:         true,
	}
}
