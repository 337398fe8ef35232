package postgres

import (
	"gorm.io/gorm"

	"github.com/frahmantamala/payroll-engine/internal/employee"
)

// EmployeeRepository implements employee.Repository using GORM.
type EmployeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) employee.Repository {
	return &EmployeeRepository{db: db}
}

func (r *EmployeeRepository) Create(emp *employee.Employee) error {
	return r.db.Create(emp).Error
}

func (r *EmployeeRepository) GetByID(id int64) (*employee.Employee, error) {
	var emp employee.Employee
	err := r.db.Where("id = ?", id).First(&emp).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, employee.ErrEmployeeNotFound
		}
		return nil, err
	}
	return &emp, nil
}

func (r *EmployeeRepository) ListByOrganization(organizationID int64, limit, offset int) ([]*employee.Employee, error) {
	var employees []*employee.Employee
	err := r.db.Where("organization_id = ?", organizationID).
		Order("last_name ASC, first_name ASC").
		Limit(limit).
		Offset(offset).
		Find(&employees).Error
	return employees, err
}

func (r *EmployeeRepository) ListByStatuses(organizationID int64, statuses []employee.Status) ([]*employee.Employee, error) {
	var employees []*employee.Employee
	err := r.db.Where("organization_id = ? AND status IN ?", organizationID, statuses).
		Order("id ASC").
		Find(&employees).Error
	return employees, err
}
