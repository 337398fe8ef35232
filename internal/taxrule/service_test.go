package taxrule_test

import (
	"errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payroll-engine/internal/taxrule"
)

// Mock repository for testing
type mockTaxRuleRepository struct {
	rules       map[int64]*taxrule.TaxRule
	createError error
	nextID      int64
}

func newMockTaxRuleRepository() *mockTaxRuleRepository {
	return &mockTaxRuleRepository{
		rules:  make(map[int64]*taxrule.TaxRule),
		nextID: 1,
	}
}

func (m *mockTaxRuleRepository) Create(rule *taxrule.TaxRule) error {
	if m.createError != nil {
		return m.createError
	}
	rule.ID = m.nextID
	m.nextID++
	rule.CreatedAt = time.Now()
	m.rules[rule.ID] = rule
	return nil
}

func (m *mockTaxRuleRepository) GetByID(id int64) (*taxrule.TaxRule, error) {
	rule, exists := m.rules[id]
	if !exists {
		return nil, errors.New("not found")
	}
	return rule, nil
}

func (m *mockTaxRuleRepository) List(limit, offset int) ([]*taxrule.TaxRule, error) {
	all := make([]*taxrule.TaxRule, 0, len(m.rules))
	for _, rule := range m.rules {
		all = append(all, rule)
	}
	return all, nil
}

func (m *mockTaxRuleRepository) ActiveForPeriod(periodStart, periodEnd time.Time) ([]*taxrule.TaxRule, error) {
	var active []*taxrule.TaxRule
	for _, rule := range m.rules {
		if rule.AppliesTo(periodStart, periodEnd) {
			active = append(active, rule)
		}
	}
	return active, nil
}

func (m *mockTaxRuleRepository) Deactivate(id int64, at time.Time) error {
	rule, exists := m.rules[id]
	if !exists {
		return errors.New("not found")
	}
	rule.IsActive = false
	rule.ExpirationDate = &at
	return nil
}

func (m *mockTaxRuleRepository) Supersede(oldID int64, next *taxrule.TaxRule) error {
	old, exists := m.rules[oldID]
	if !exists {
		return errors.New("not found")
	}
	old.IsActive = false
	return m.Create(next)
}

func validRuleDTO() taxrule.CreateTaxRuleDTO {
	return taxrule.CreateTaxRuleDTO{
		CountryCode:     "US",
		TaxType:         taxrule.TaxTypeIncome,
		PaidBy:          taxrule.PaidByEmployee,
		CalculationType: taxrule.CalculationFlatRate,
		Brackets:        taxrule.Brackets{{Rate: floatPtr(0.2)}},
		EffectiveDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

var _ = Describe("TaxRuleService", func() {
	var (
		service  *taxrule.Service
		mockRepo *mockTaxRuleRepository
	)

	BeforeEach(func() {
		mockRepo = newMockTaxRuleRepository()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = taxrule.NewService(mockRepo, logger)
	})

	Describe("CreateRule", func() {
		It("creates an active rule from a valid DTO", func() {
			rule, err := service.CreateRule(validRuleDTO())

			Expect(err).ToNot(HaveOccurred())
			Expect(rule.ID).To(BeNumerically(">", 0))
			Expect(rule.IsActive).To(BeTrue())
			Expect(rule.CountryCode).To(Equal("US"))
		})

		It("rejects unknown enum values", func() {
			dto := validRuleDTO()
			dto.CalculationType = "PERCENTAGE"

			_, err := service.CreateRule(dto)
			Expect(err).To(HaveOccurred())
		})

		It("rejects flat-rate rules without a rate", func() {
			dto := validRuleDTO()
			dto.Brackets = taxrule.Brackets{{}}

			_, err := service.CreateRule(dto)
			Expect(err).To(HaveOccurred())
		})

		It("rejects wage-base-cap rules without a cap", func() {
			dto := validRuleDTO()
			dto.CalculationType = taxrule.CalculationWageBaseCap
			dto.Brackets = taxrule.Brackets{{Rate: floatPtr(0.062)}}

			_, err := service.CreateRule(dto)
			Expect(err).To(HaveOccurred())
		})

		Context("progressive bracket validation", func() {
			progressiveDTO := func(brackets taxrule.Brackets) taxrule.CreateTaxRuleDTO {
				dto := validRuleDTO()
				dto.CalculationType = taxrule.CalculationProgressiveBracket
				dto.Brackets = brackets
				return dto
			}

			It("accepts ascending non-overlapping brackets", func() {
				_, err := service.CreateRule(progressiveDTO(taxrule.Brackets{
					{Min: floatPtr(0), Max: floatPtr(10000), Rate: floatPtr(0.1)},
					{Min: floatPtr(10000), Rate: floatPtr(0.2)},
				}))
				Expect(err).ToNot(HaveOccurred())
			})

			It("rejects overlapping brackets", func() {
				_, err := service.CreateRule(progressiveDTO(taxrule.Brackets{
					{Min: floatPtr(0), Max: floatPtr(10000), Rate: floatPtr(0.1)},
					{Min: floatPtr(5000), Rate: floatPtr(0.2)},
				}))
				Expect(err).To(HaveOccurred())
			})

			It("rejects an unbounded bracket that is not last", func() {
				_, err := service.CreateRule(progressiveDTO(taxrule.Brackets{
					{Min: floatPtr(0), Rate: floatPtr(0.1)},
					{Min: floatPtr(10000), Max: floatPtr(20000), Rate: floatPtr(0.2)},
				}))
				Expect(err).To(HaveOccurred())
			})

			It("rejects brackets with neither rate nor flat amount", func() {
				_, err := service.CreateRule(progressiveDTO(taxrule.Brackets{
					{Min: floatPtr(0), Max: floatPtr(10000)},
				}))
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("UpdateRule", func() {
		It("supersedes the old rule with a new row", func() {
			created, err := service.CreateRule(validRuleDTO())
			Expect(err).ToNot(HaveOccurred())

			dto := validRuleDTO()
			dto.Brackets = taxrule.Brackets{{Rate: floatPtr(0.25)}}
			next, err := service.UpdateRule(created.ID, dto)

			Expect(err).ToNot(HaveOccurred())
			Expect(next.ID).ToNot(Equal(created.ID))
			Expect(next.IsActive).To(BeTrue())

			old, err := mockRepo.GetByID(created.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(old.IsActive).To(BeFalse())
		})

		It("refuses to supersede an inactive rule", func() {
			created, err := service.CreateRule(validRuleDTO())
			Expect(err).ToNot(HaveOccurred())
			Expect(service.DeactivateRule(created.ID)).To(Succeed())

			_, err = service.UpdateRule(created.ID, validRuleDTO())
			Expect(err).To(MatchError(taxrule.ErrTaxRuleInactive))
		})

		It("reports a missing rule", func() {
			_, err := service.UpdateRule(999, validRuleDTO())
			Expect(err).To(MatchError(taxrule.ErrTaxRuleNotFound))
		})
	})

	Describe("ActiveRulesFor", func() {
		It("returns only rules in force for the period", func() {
			_, err := service.CreateRule(validRuleDTO())
			Expect(err).ToNot(HaveOccurred())

			expired := validRuleDTO()
			expiration := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
			expired.ExpirationDate = &expiration
			_, err = service.CreateRule(expired)
			Expect(err).ToNot(HaveOccurred())

			active, err := service.ActiveRulesFor(
				time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))

			Expect(err).ToNot(HaveOccurred())
			Expect(active).To(HaveLen(1))
		})
	})
})
