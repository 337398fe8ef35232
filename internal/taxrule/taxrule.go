package taxrule

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type TaxType string

const (
	TaxTypeIncome         TaxType = "INCOME"
	TaxTypeSocialSecurity TaxType = "SOCIAL_SECURITY"
	TaxTypeMedicare       TaxType = "MEDICARE"
	TaxTypeUnemployment   TaxType = "UNEMPLOYMENT"
	TaxTypePension        TaxType = "PENSION"
	TaxTypeLocal          TaxType = "LOCAL"
	TaxTypeOther          TaxType = "OTHER"
)

type PaidBy string

const (
	PaidByEmployee PaidBy = "EMPLOYEE"
	PaidByEmployer PaidBy = "EMPLOYER"
	PaidByBoth     PaidBy = "BOTH"
)

type CalculationType string

const (
	CalculationProgressiveBracket CalculationType = "PROGRESSIVE_BRACKET"
	CalculationFlatRate           CalculationType = "FLAT_RATE"
	CalculationFlatAmount         CalculationType = "FLAT_AMOUNT"
	CalculationWageBaseCap        CalculationType = "WAGE_BASE_CAP"
)

// Bracket bounds and rates are expressed in major units. Missing fields are
// treated as zero by the evaluator, never as faults.
type Bracket struct {
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`
	Rate       *float64 `json:"rate,omitempty"`
	FlatAmount *float64 `json:"flatAmount,omitempty"`
}

// Brackets is stored as a JSON column.
type Brackets []Bracket

func (b Brackets) Value() (driver.Value, error) {
	if b == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (b *Brackets) Scan(value interface{}) error {
	if value == nil {
		*b = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	default:
		return fmt.Errorf("unsupported brackets column type %T", value)
	}
}

// TaxRule is immutable once a calculated payroll item references it; edits
// supersede the row with a new one so prior items keep their inputs.
type TaxRule struct {
	ID               int64           `json:"id" gorm:"primaryKey"`
	CountryCode      string          `json:"country_code" gorm:"column:country_code;not null"`
	RegionCode       *string         `json:"region_code,omitempty" gorm:"column:region_code"`
	TaxType          TaxType         `json:"tax_type" gorm:"column:tax_type;not null"`
	PaidBy           PaidBy          `json:"paid_by" gorm:"column:paid_by;not null"`
	CalculationType  CalculationType `json:"calculation_type" gorm:"column:calculation_type;not null"`
	Brackets         Brackets        `json:"brackets" gorm:"column:brackets"`
	WageBaseCapMinor *int64          `json:"wage_base_cap_minor,omitempty" gorm:"column:wage_base_cap_minor"`
	EffectiveDate    time.Time       `json:"effective_date" gorm:"column:effective_date;not null"`
	ExpirationDate   *time.Time      `json:"expiration_date,omitempty" gorm:"column:expiration_date"`
	IsActive         bool            `json:"is_active" gorm:"column:is_active;default:true"`
	CreatedAt        time.Time       `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt        time.Time       `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (TaxRule) TableName() string {
	return "tax_rules"
}

// AppliesTo reports whether the rule is in force for a pay period.
func (r *TaxRule) AppliesTo(periodStart, periodEnd time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.EffectiveDate.After(periodEnd) {
		return false
	}
	if r.ExpirationDate != nil && r.ExpirationDate.Before(periodStart) {
		return false
	}
	return true
}

var (
	ErrTaxRuleNotFound = errors.New("tax rule not found")
	ErrTaxRuleInactive = errors.New("tax rule is already inactive")
)
