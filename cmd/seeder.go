package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/frahmantamala/payroll-engine/internal/compensation"
	"github.com/frahmantamala/payroll-engine/internal/employee"
	"github.com/frahmantamala/payroll-engine/internal/taxrule"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			for _, table := range []string{
				"notifications", "domain_events", "audit_logs",
				"payroll_items", "payroll_runs",
				"compensations", "tax_rules", "employees", "users",
			} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		const orgID = 1

		// Users are owned by the platform auth service; these rows exist so
		// notifications have recipients in development.
		users := []struct {
			Email   string
			Name    string
			IsAdmin bool
		}{
			{"admin@acme.test", "Ava Admin", true},
			{"jordan@acme.test", "Jordan Lee", false},
			{"sam@acme.test", "Sam Carter", false},
		}
		userIDs := make(map[string]int64, len(users))
		for _, u := range users {
			var id int64
			err := db.Raw("SELECT id FROM users WHERE email = ?", u.Email).Row().Scan(&id)
			if err != nil {
				if err := db.Exec(
					"INSERT INTO users (email, name, organization_id, is_admin, created_at, updated_at) VALUES (?, ?, ?, ?, now(), now())",
					u.Email, u.Name, orgID, u.IsAdmin).Error; err != nil {
					log.Fatalf("failed to insert user %s: %v", u.Email, err)
				}
				if err := db.Raw("SELECT id FROM users WHERE email = ?", u.Email).Row().Scan(&id); err != nil {
					log.Fatalf("failed to look up user %s: %v", u.Email, err)
				}
				fmt.Println("Seeded user:", u.Email)
			}
			userIDs[u.Email] = id
		}

		employees := []struct {
			First, Last, Email string
			UserEmail          string
			AnnualSalaryMinor  int64
		}{
			{"Jordan", "Lee", "jordan@acme.test", "jordan@acme.test", 9_600_000},
			{"Sam", "Carter", "sam@acme.test", "sam@acme.test", 14_400_000},
			{"Riley", "Nguyen", "riley@acme.test", "", 7_200_000},
		}

		for _, e := range employees {
			var existing employee.Employee
			err := db.Where("email = ?", e.Email).First(&existing).Error
			if err == nil {
				continue
			}
			if err != gorm.ErrRecordNotFound {
				log.Fatalf("failed to look up employee %s: %v", e.Email, err)
			}

			emp := &employee.Employee{
				OrganizationID:    orgID,
				FirstName:         e.First,
				LastName:          e.Last,
				Email:             e.Email,
				EmploymentCountry: "US",
				Status:            employee.StatusActive,
			}
			if e.UserEmail != "" {
				uid := userIDs[e.UserEmail]
				emp.UserID = &uid
			}
			if err := db.Create(emp).Error; err != nil {
				log.Fatalf("failed to insert employee %s: %v", e.Email, err)
			}

			comp := &compensation.Compensation{
				EmployeeID:    emp.ID,
				AmountMinor:   e.AnnualSalaryMinor / 12,
				Currency:      "USD",
				PayFrequency:  compensation.FrequencyMonthly,
				EffectiveDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				IsCurrent:     true,
			}
			if err := db.Create(comp).Error; err != nil {
				log.Fatalf("failed to insert compensation for %s: %v", e.Email, err)
			}

			fmt.Printf("Seeded employee: %s %s (%s)\n", e.First, e.Last, e.Email)
		}

		seedTaxRules(db)

		fmt.Println("Seed completed")
	},
}

func floatPtr(v float64) *float64 { return &v }

func seedTaxRules(db *gorm.DB) {
	effective := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ssCap := int64(16_860_000)

	rules := []*taxrule.TaxRule{
		{
			CountryCode:     "US",
			TaxType:         taxrule.TaxTypeIncome,
			PaidBy:          taxrule.PaidByEmployee,
			CalculationType: taxrule.CalculationFlatRate,
			Brackets:        taxrule.Brackets{{Rate: floatPtr(0.2)}},
			EffectiveDate:   effective,
			IsActive:        true,
		},
		{
			CountryCode:      "US",
			TaxType:          taxrule.TaxTypeSocialSecurity,
			PaidBy:           taxrule.PaidByBoth,
			CalculationType:  taxrule.CalculationWageBaseCap,
			Brackets:         taxrule.Brackets{{Rate: floatPtr(0.062)}},
			WageBaseCapMinor: &ssCap,
			EffectiveDate:    effective,
			IsActive:         true,
		},
		{
			CountryCode:     "US",
			TaxType:         taxrule.TaxTypeMedicare,
			PaidBy:          taxrule.PaidByBoth,
			CalculationType: taxrule.CalculationFlatRate,
			Brackets:        taxrule.Brackets{{Rate: floatPtr(0.0145)}},
			EffectiveDate:   effective,
			IsActive:        true,
		},
	}

	for _, rule := range rules {
		var count int64
		if err := db.Model(&taxrule.TaxRule{}).
			Where("country_code = ? AND tax_type = ? AND is_active = true", rule.CountryCode, rule.TaxType).
			Count(&count).Error; err != nil {
			log.Fatalf("failed to check tax rule %s: %v", rule.TaxType, err)
		}
		if count > 0 {
			continue
		}
		if err := db.Create(rule).Error; err != nil {
			log.Fatalf("failed to insert tax rule %s: %v", rule.TaxType, err)
		}
		fmt.Printf("Seeded tax rule: %s %s\n", rule.CountryCode, rule.TaxType)
	}
}
