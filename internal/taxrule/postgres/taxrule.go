package postgres

import (
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/payroll-engine/internal/taxrule"
)

// TaxRuleRepository implements the taxrule.Repository interface using GORM.
type TaxRuleRepository struct {
	db *gorm.DB
}

func NewTaxRuleRepository(db *gorm.DB) taxrule.Repository {
	return &TaxRuleRepository{db: db}
}

func (r *TaxRuleRepository) Create(rule *taxrule.TaxRule) error {
	return r.db.Create(rule).Error
}

func (r *TaxRuleRepository) GetByID(id int64) (*taxrule.TaxRule, error) {
	var rule taxrule.TaxRule
	err := r.db.Where("id = ?", id).First(&rule).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, taxrule.ErrTaxRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

func (r *TaxRuleRepository) List(limit, offset int) ([]*taxrule.TaxRule, error) {
	var rules []*taxrule.TaxRule
	err := r.db.Order("country_code ASC, tax_type ASC, effective_date DESC").
		Limit(limit).
		Offset(offset).
		Find(&rules).Error
	return rules, err
}

// ActiveForPeriod returns rules whose validity window intersects the pay
// period: effective on or before period end, not expired before period start.
func (r *TaxRuleRepository) ActiveForPeriod(periodStart, periodEnd time.Time) ([]*taxrule.TaxRule, error) {
	var rules []*taxrule.TaxRule
	err := r.db.
		Where("is_active = ?", true).
		Where("effective_date <= ?", periodEnd).
		Where("expiration_date IS NULL OR expiration_date >= ?", periodStart).
		Order("country_code ASC, id ASC").
		Find(&rules).Error
	return rules, err
}

func (r *TaxRuleRepository) Deactivate(id int64, at time.Time) error {
	return r.db.Model(&taxrule.TaxRule{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": at,
		}).Error
}

// Supersede deactivates the old rule and inserts its replacement atomically.
func (r *TaxRuleRepository) Supersede(oldID int64, next *taxrule.TaxRule) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&taxrule.TaxRule{}).
			Where("id = ?", oldID).
			Updates(map[string]interface{}{
				"is_active":  false,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}
		return tx.Create(next).Error
	})
}
