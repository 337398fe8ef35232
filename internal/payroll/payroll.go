package payroll

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Run lifecycle. COMPLETED is terminal; there is no run-level failed state:
// per-employee failures live on items while the run still advances.
const (
	RunStatusDraft           = "DRAFT"
	RunStatusCalculating     = "CALCULATING"
	RunStatusPendingApproval = "PENDING_APPROVAL"
	RunStatusApproved        = "APPROVED"
	RunStatusProcessing      = "PROCESSING"
	RunStatusCompleted       = "COMPLETED"
)

const (
	ItemStatusCalculated = "CALCULATED"
	ItemStatusFailed     = "FAILED"
	ItemStatusApproved   = "APPROVED"
	ItemStatusPaid       = "PAID"
)

// Run owns the payroll lifecycle for one pay period. Totals are derived:
// each calculation pass recomputes them wholesale from the items, never
// patches them incrementally.
type Run struct {
	ID                     int64      `json:"id" gorm:"primaryKey"`
	OrganizationID         int64      `json:"organization_id" gorm:"column:organization_id;not null"`
	PeriodStart            time.Time  `json:"period_start" gorm:"column:period_start;not null"`
	PeriodEnd              time.Time  `json:"period_end" gorm:"column:period_end;not null"`
	PayDate                time.Time  `json:"pay_date" gorm:"column:pay_date;not null"`
	Currency               string     `json:"currency" gorm:"column:currency;default:USD"`
	Status                 string     `json:"status" gorm:"column:status;default:DRAFT"`
	TotalGrossMinor        int64      `json:"total_gross_minor" gorm:"column:total_gross_minor;default:0"`
	TotalNetMinor          int64      `json:"total_net_minor" gorm:"column:total_net_minor;default:0"`
	TotalEmployerCostMinor int64      `json:"total_employer_cost_minor" gorm:"column:total_employer_cost_minor;default:0"`
	ApprovedByID           *int64     `json:"approved_by_id,omitempty" gorm:"column:approved_by_id"`
	ApprovedAt             *time.Time `json:"approved_at,omitempty" gorm:"column:approved_at"`
	ProcessedAt            *time.Time `json:"processed_at,omitempty" gorm:"column:processed_at"`
	CreatedAt              time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Run) TableName() string {
	return "payroll_runs"
}

// CanCalculate permits the initial pass from DRAFT and re-entrant full
// recomputes from PENDING_APPROVAL.
func (r *Run) CanCalculate() bool {
	return r.Status == RunStatusDraft || r.Status == RunStatusPendingApproval
}

func (r *Run) CanApprove() bool {
	return r.Status == RunStatusPendingApproval
}

func (r *Run) CanProcess() bool {
	return r.Status == RunStatusApproved
}

// TaxLine is one tax applied to an item, in rule input order.
type TaxLine struct {
	TaxType             string `json:"tax_type"`
	EmployeeAmountMinor int64  `json:"employee_amount_minor"`
	EmployerAmountMinor int64  `json:"employer_amount_minor"`
}

// TaxLines is stored as a JSON column.
type TaxLines []TaxLine

func (t TaxLines) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (t *TaxLines) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("unsupported taxes column type %T", value)
	}
}

// Item is one (run, employee) settlement record. A calculation pass
// overwrites it deterministically; once the run leaves PENDING_APPROVAL the
// item is read-only except for the PAID transition. YTDGrossMinor and
// YTDTaxMinor snapshot post-this-item year-to-date totals.
type Item struct {
	ID                    int64      `json:"id" gorm:"primaryKey"`
	PayrollRunID          int64      `json:"payroll_run_id" gorm:"column:payroll_run_id;not null;uniqueIndex:idx_run_employee"`
	EmployeeID            int64      `json:"employee_id" gorm:"column:employee_id;not null;uniqueIndex:idx_run_employee"`
	BaseSalaryMinor       int64      `json:"base_salary_minor" gorm:"column:base_salary_minor;default:0"`
	OvertimeMinor         int64      `json:"overtime_minor" gorm:"column:overtime_minor;default:0"`
	BonusMinor            int64      `json:"bonus_minor" gorm:"column:bonus_minor;default:0"`
	CommissionMinor       int64      `json:"commission_minor" gorm:"column:commission_minor;default:0"`
	AllowancesMinor       int64      `json:"allowances_minor" gorm:"column:allowances_minor;default:0"`
	GrossPayMinor         int64      `json:"gross_pay_minor" gorm:"column:gross_pay_minor;default:0"`
	TaxableIncomeMinor    int64      `json:"taxable_income_minor" gorm:"column:taxable_income_minor;default:0"`
	Taxes                 TaxLines   `json:"taxes" gorm:"column:taxes"`
	TotalEmployeeTaxMinor int64      `json:"total_employee_tax_minor" gorm:"column:total_employee_tax_minor;default:0"`
	TotalEmployerTaxMinor int64      `json:"total_employer_tax_minor" gorm:"column:total_employer_tax_minor;default:0"`
	NetPayMinor           int64      `json:"net_pay_minor" gorm:"column:net_pay_minor;default:0"`
	YTDGrossMinor         int64      `json:"ytd_gross_minor" gorm:"column:ytd_gross_minor;default:0"`
	YTDTaxMinor           int64      `json:"ytd_tax_minor" gorm:"column:ytd_tax_minor;default:0"`
	Currency              string     `json:"currency" gorm:"column:currency;not null"`
	Status                string     `json:"status" gorm:"column:status;not null"`
	ErrorReason           *string    `json:"error_reason,omitempty" gorm:"column:error_reason"`
	PayslipURL            *string    `json:"payslip_url,omitempty" gorm:"column:payslip_url"`
	ApprovedByID          *int64     `json:"approved_by_id,omitempty" gorm:"column:approved_by_id"`
	ApprovedAt            *time.Time `json:"approved_at,omitempty" gorm:"column:approved_at"`
	PaidAt                *time.Time `json:"paid_at,omitempty" gorm:"column:paid_at"`
	CreatedAt             time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Item) TableName() string {
	return "payroll_items"
}

// FailedItem builds the zeroed ledger record for an employee whose
// calculation could not complete.
func FailedItem(runID, employeeID int64, currency, reason string) *Item {
	return &Item{
		PayrollRunID: runID,
		EmployeeID:   employeeID,
		Taxes:        TaxLines{},
		Currency:     currency,
		Status:       ItemStatusFailed,
		ErrorReason:  &reason,
	}
}

// Domain errors
var (
	ErrRunNotFound      = errors.New("payroll run not found")
	ErrInvalidRunStatus = errors.New("invalid payroll run status for this operation")
)
