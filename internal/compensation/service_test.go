package compensation_test

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payroll-engine/internal/compensation"
)

func TestCompensation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Compensation Suite")
}

// Mock repository for testing
type mockCompensationRepository struct {
	records        map[int64]*compensation.Compensation
	supersedeError error
	nextID         int64
}

func newMockCompensationRepository() *mockCompensationRepository {
	return &mockCompensationRepository{
		records: make(map[int64]*compensation.Compensation),
		nextID:  1,
	}
}

func (m *mockCompensationRepository) Create(comp *compensation.Compensation) error {
	comp.ID = m.nextID
	m.nextID++
	m.records[comp.ID] = comp
	return nil
}

func (m *mockCompensationRepository) GetByID(id int64) (*compensation.Compensation, error) {
	comp, exists := m.records[id]
	if !exists {
		return nil, compensation.ErrCompensationNotFound
	}
	return comp, nil
}

func (m *mockCompensationRepository) CurrentFor(employeeID int64, asOf time.Time) (*compensation.Compensation, error) {
	for _, comp := range m.records {
		if comp.EmployeeID == employeeID && comp.IsCurrent && !comp.EffectiveDate.After(asOf) {
			return comp, nil
		}
	}
	return nil, compensation.ErrNoCurrentRecord
}

func (m *mockCompensationRepository) ListForEmployee(employeeID int64) ([]*compensation.Compensation, error) {
	var history []*compensation.Compensation
	for _, comp := range m.records {
		if comp.EmployeeID == employeeID {
			history = append(history, comp)
		}
	}
	return history, nil
}

func (m *mockCompensationRepository) Supersede(next *compensation.Compensation) error {
	if m.supersedeError != nil {
		return m.supersedeError
	}
	for _, comp := range m.records {
		if comp.EmployeeID == next.EmployeeID && comp.IsCurrent {
			comp.IsCurrent = false
			prevID := comp.ID
			next.PreviousID = &prevID
		}
	}
	return m.Create(next)
}

var _ = Describe("CompensationService", func() {
	var (
		service  *compensation.Service
		mockRepo *mockCompensationRepository
	)

	validDTO := func() compensation.CreateCompensationDTO {
		return compensation.CreateCompensationDTO{
			EmployeeID:    1,
			Amount:        "5000.00",
			Currency:      "usd",
			PayFrequency:  compensation.FrequencyMonthly,
			EffectiveDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}
	}

	BeforeEach(func() {
		mockRepo = newMockCompensationRepository()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = compensation.NewService(mockRepo, logger)
	})

	Describe("SetCompensation", func() {
		It("stores the amount in minor units with uppercased currency", func() {
			comp, err := service.SetCompensation(validDTO())

			Expect(err).ToNot(HaveOccurred())
			Expect(comp.AmountMinor).To(Equal(int64(500_000)))
			Expect(comp.Currency).To(Equal("USD"))
			Expect(comp.IsCurrent).To(BeTrue())
			Expect(comp.PreviousID).To(BeNil())
		})

		It("flips the prior current record and links the chain", func() {
			first, err := service.SetCompensation(validDTO())
			Expect(err).ToNot(HaveOccurred())

			dto := validDTO()
			dto.Amount = "5500.00"
			dto.EffectiveDate = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
			second, err := service.SetCompensation(dto)

			Expect(err).ToNot(HaveOccurred())
			Expect(second.PreviousID).ToNot(BeNil())
			Expect(*second.PreviousID).To(Equal(first.ID))

			old, err := mockRepo.GetByID(first.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(old.IsCurrent).To(BeFalse())
		})

		It("rejects a malformed amount instead of storing zero", func() {
			dto := validDTO()
			dto.Amount = "abc"

			_, err := service.SetCompensation(dto)
			Expect(err).To(HaveOccurred())
		})

		It("rejects non-positive amounts", func() {
			dto := validDTO()
			dto.Amount = "0"

			_, err := service.SetCompensation(dto)
			Expect(err).To(HaveOccurred())
		})

		It("rejects an unknown pay frequency", func() {
			dto := validDTO()
			dto.PayFrequency = "DAILY"

			_, err := service.SetCompensation(dto)
			Expect(err).To(HaveOccurred())
		})

		It("propagates repository errors", func() {
			mockRepo.supersedeError = errors.New("database error")

			_, err := service.SetCompensation(validDTO())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("CurrentFor", func() {
		It("returns the record in force as of the date", func() {
			_, err := service.SetCompensation(validDTO())
			Expect(err).ToNot(HaveOccurred())

			comp, err := service.CurrentFor(1, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
			Expect(err).ToNot(HaveOccurred())
			Expect(comp.AmountMinor).To(Equal(int64(500_000)))
		})

		It("reports a missing record instead of inventing zero", func() {
			_, err := service.CurrentFor(42, time.Now())
			Expect(err).To(MatchError(compensation.ErrNoCurrentRecord))
		})
	})
})
