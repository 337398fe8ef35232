package postgres

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/payroll-engine/internal/audit"
	"github.com/frahmantamala/payroll-engine/internal/core/events"
	"github.com/frahmantamala/payroll-engine/internal/payroll"
)

// PayrollRepository implements payroll.Repository using GORM. Audit logs and
// outbox events go through the same handle so they join the surrounding
// transaction.
type PayrollRepository struct {
	db *gorm.DB
}

func NewPayrollRepository(db *gorm.DB) payroll.Repository {
	return &PayrollRepository{db: db}
}

// Transaction yields a repository bound to one database transaction.
func (r *PayrollRepository) Transaction(fn func(tx payroll.Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&PayrollRepository{db: tx})
	})
}

func (r *PayrollRepository) CreateRun(run *payroll.Run) error {
	return r.db.Create(run).Error
}

func (r *PayrollRepository) GetRun(id int64) (*payroll.Run, error) {
	var run payroll.Run
	err := r.db.Where("id = ?", id).First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, payroll.ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// GetRunForUpdate serializes concurrent transitions against the same run via
// a row lock. Only meaningful inside Transaction.
func (r *PayrollRepository) GetRunForUpdate(id int64) (*payroll.Run, error) {
	var run payroll.Run
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, payroll.ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (r *PayrollRepository) UpdateRun(run *payroll.Run) error {
	run.UpdatedAt = time.Now()
	return r.db.Save(run).Error
}

func (r *PayrollRepository) ListRuns(organizationID int64, limit, offset int) ([]*payroll.Run, error) {
	var runs []*payroll.Run
	err := r.db.Where("organization_id = ?", organizationID).
		Order("period_start DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error
	return runs, err
}

// itemUpsertColumns are the fields a recalculation pass may overwrite.
var itemUpsertColumns = []string{
	"base_salary_minor", "overtime_minor", "bonus_minor", "commission_minor",
	"allowances_minor", "gross_pay_minor", "taxable_income_minor", "taxes",
	"total_employee_tax_minor", "total_employer_tax_minor", "net_pay_minor",
	"ytd_gross_minor", "ytd_tax_minor", "currency", "status", "error_reason",
	"updated_at",
}

// UpsertItem is idempotent on the (run, employee) pair: a second calculation
// pass overwrites the prior item deterministically.
func (r *PayrollRepository) UpsertItem(item *payroll.Item) error {
	item.UpdatedAt = time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payroll_run_id"}, {Name: "employee_id"}},
		DoUpdates: clause.AssignmentColumns(itemUpsertColumns),
	}).Create(item).Error
}

func (r *PayrollRepository) ListItems(runID int64) ([]*payroll.Item, error) {
	var items []*payroll.Item
	err := r.db.Where("payroll_run_id = ?", runID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *PayrollRepository) ListItemsByStatus(runID int64, status string) ([]*payroll.Item, error) {
	var items []*payroll.Item
	err := r.db.Where("payroll_run_id = ? AND status = ?", runID, status).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *PayrollRepository) UpdateItem(item *payroll.Item) error {
	item.UpdatedAt = time.Now()
	return r.db.Save(item).Error
}

// ApproveCalculatedItems flips CALCULATED items to APPROVED; FAILED items
// remain failed.
func (r *PayrollRepository) ApproveCalculatedItems(runID, approverID int64, at time.Time) (int64, error) {
	result := r.db.Model(&payroll.Item{}).
		Where("payroll_run_id = ? AND status = ?", runID, payroll.ItemStatusCalculated).
		Updates(map[string]interface{}{
			"status":         payroll.ItemStatusApproved,
			"approved_by_id": approverID,
			"approved_at":    at,
			"updated_at":     time.Now(),
		})
	return result.RowsAffected, result.Error
}

// YTDTotals sums this employee's prior items for the calendar year. The
// upper bound is exclusive, so a run never counts itself while being
// recalculated.
func (r *PayrollRepository) YTDTotals(employeeID, organizationID int64, from, before time.Time) (payroll.YTDTotals, error) {
	var totals payroll.YTDTotals

	row := r.db.Table("payroll_items").
		Select("COALESCE(SUM(payroll_items.gross_pay_minor), 0), COALESCE(SUM(payroll_items.total_employee_tax_minor), 0)").
		Joins("JOIN payroll_runs ON payroll_runs.id = payroll_items.payroll_run_id").
		Where("payroll_items.employee_id = ?", employeeID).
		Where("payroll_runs.organization_id = ?", organizationID).
		Where("payroll_runs.period_start >= ? AND payroll_runs.period_start < ?", from, before).
		Where("payroll_items.status IN ?", []string{
			payroll.ItemStatusCalculated, payroll.ItemStatusApproved, payroll.ItemStatusPaid,
		}).
		Row()

	if err := row.Scan(&totals.GrossMinor, &totals.TaxMinor); err != nil {
		return payroll.YTDTotals{}, err
	}
	return totals, nil
}

func (r *PayrollRepository) AppendAuditLog(entry *audit.Log) error {
	return r.db.Create(entry).Error
}

func (r *PayrollRepository) AppendEvent(event *events.DomainEvent) error {
	return r.db.Create(event).Error
}
