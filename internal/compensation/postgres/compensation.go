package postgres

import (
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/payroll-engine/internal/compensation"
)

// CompensationRepository implements compensation.Repository using GORM.
type CompensationRepository struct {
	db *gorm.DB
}

func NewCompensationRepository(db *gorm.DB) compensation.Repository {
	return &CompensationRepository{db: db}
}

func (r *CompensationRepository) Create(comp *compensation.Compensation) error {
	return r.db.Create(comp).Error
}

func (r *CompensationRepository) GetByID(id int64) (*compensation.Compensation, error) {
	var comp compensation.Compensation
	err := r.db.Where("id = ?", id).First(&comp).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, compensation.ErrCompensationNotFound
		}
		return nil, err
	}
	return &comp, nil
}

// CurrentFor returns the current record effective on or before asOf.
func (r *CompensationRepository) CurrentFor(employeeID int64, asOf time.Time) (*compensation.Compensation, error) {
	var comp compensation.Compensation
	err := r.db.
		Where("employee_id = ? AND is_current = ? AND effective_date <= ?", employeeID, true, asOf).
		Order("effective_date DESC").
		First(&comp).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, compensation.ErrNoCurrentRecord
		}
		return nil, err
	}
	return &comp, nil
}

func (r *CompensationRepository) ListForEmployee(employeeID int64) ([]*compensation.Compensation, error) {
	var comps []*compensation.Compensation
	err := r.db.Where("employee_id = ?", employeeID).
		Order("effective_date DESC").
		Find(&comps).Error
	return comps, err
}

// Supersede flips the prior current record and inserts the next one in a
// single transaction, preserving the chain invariant.
func (r *CompensationRepository) Supersede(next *compensation.Compensation) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var prior compensation.Compensation
		err := tx.Where("employee_id = ? AND is_current = ?", next.EmployeeID, true).
			Order("effective_date DESC").
			First(&prior).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}

		if err == nil {
			if err := tx.Model(&compensation.Compensation{}).
				Where("id = ?", prior.ID).
				Updates(map[string]interface{}{
					"is_current": false,
					"updated_at": time.Now(),
				}).Error; err != nil {
				return err
			}
			next.PreviousID = &prior.ID
		}

		return tx.Create(next).Error
	})
}
