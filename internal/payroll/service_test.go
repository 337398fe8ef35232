package payroll_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payroll-engine/internal/audit"
	"github.com/frahmantamala/payroll-engine/internal/auth"
	"github.com/frahmantamala/payroll-engine/internal/compensation"
	"github.com/frahmantamala/payroll-engine/internal/core/events"
	"github.com/frahmantamala/payroll-engine/internal/employee"
	"github.com/frahmantamala/payroll-engine/internal/payroll"
	"github.com/frahmantamala/payroll-engine/internal/taxrule"
)

func TestPayroll(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Payroll Suite")
}

func floatPtr(f float64) *float64 { return &f }
func int64Ptr(i int64) *int64     { return &i }

// Mock repository. Transaction snapshots the stores before running the
// closure and restores them when it fails, so rollback behavior is
// observable in tests.
type mockPayrollRepository struct {
	runs        map[int64]*payroll.Run
	items       map[string]*payroll.Item
	auditLogs   []*audit.Log
	events      []*events.DomainEvent
	nextRunID   int64
	nextItemID  int64
	upsertError error
	updateError error
}

func newMockPayrollRepository() *mockPayrollRepository {
	return &mockPayrollRepository{
		runs:       make(map[int64]*payroll.Run),
		items:      make(map[string]*payroll.Item),
		nextRunID:  1,
		nextItemID: 1,
	}
}

func itemKey(runID, employeeID int64) string {
	return fmt.Sprintf("%d/%d", runID, employeeID)
}

func copyRun(run *payroll.Run) *payroll.Run {
	clone := *run
	return &clone
}

func copyItem(item *payroll.Item) *payroll.Item {
	clone := *item
	clone.Taxes = append(payroll.TaxLines(nil), item.Taxes...)
	return &clone
}

func (m *mockPayrollRepository) Transaction(fn func(tx payroll.Repository) error) error {
	savedRuns := make(map[int64]*payroll.Run, len(m.runs))
	for id, run := range m.runs {
		savedRuns[id] = copyRun(run)
	}
	savedItems := make(map[string]*payroll.Item, len(m.items))
	for key, item := range m.items {
		savedItems[key] = copyItem(item)
	}
	savedAudit := append([]*audit.Log(nil), m.auditLogs...)
	savedEvents := append([]*events.DomainEvent(nil), m.events...)
	savedRunID, savedItemID := m.nextRunID, m.nextItemID

	if err := fn(m); err != nil {
		m.runs = savedRuns
		m.items = savedItems
		m.auditLogs = savedAudit
		m.events = savedEvents
		m.nextRunID, m.nextItemID = savedRunID, savedItemID
		return err
	}
	return nil
}

func (m *mockPayrollRepository) CreateRun(run *payroll.Run) error {
	run.ID = m.nextRunID
	m.nextRunID++
	m.runs[run.ID] = copyRun(run)
	return nil
}

func (m *mockPayrollRepository) GetRun(id int64) (*payroll.Run, error) {
	run, exists := m.runs[id]
	if !exists {
		return nil, payroll.ErrRunNotFound
	}
	return copyRun(run), nil
}

func (m *mockPayrollRepository) GetRunForUpdate(id int64) (*payroll.Run, error) {
	return m.GetRun(id)
}

func (m *mockPayrollRepository) UpdateRun(run *payroll.Run) error {
	if m.updateError != nil {
		return m.updateError
	}
	if _, exists := m.runs[run.ID]; !exists {
		return payroll.ErrRunNotFound
	}
	m.runs[run.ID] = copyRun(run)
	return nil
}

func (m *mockPayrollRepository) ListRuns(organizationID int64, limit, offset int) ([]*payroll.Run, error) {
	var result []*payroll.Run
	for _, run := range m.runs {
		if run.OrganizationID == organizationID {
			result = append(result, copyRun(run))
		}
	}
	return result, nil
}

func (m *mockPayrollRepository) UpsertItem(item *payroll.Item) error {
	if m.upsertError != nil {
		return m.upsertError
	}
	key := itemKey(item.PayrollRunID, item.EmployeeID)
	if existing, exists := m.items[key]; exists {
		item.ID = existing.ID
	} else {
		item.ID = m.nextItemID
		m.nextItemID++
	}
	m.items[key] = copyItem(item)
	return nil
}

func (m *mockPayrollRepository) ListItems(runID int64) ([]*payroll.Item, error) {
	var result []*payroll.Item
	for _, item := range m.items {
		if item.PayrollRunID == runID {
			result = append(result, copyItem(item))
		}
	}
	return result, nil
}

func (m *mockPayrollRepository) ListItemsByStatus(runID int64, status string) ([]*payroll.Item, error) {
	var result []*payroll.Item
	for _, item := range m.items {
		if item.PayrollRunID == runID && item.Status == status {
			result = append(result, copyItem(item))
		}
	}
	return result, nil
}

func (m *mockPayrollRepository) UpdateItem(item *payroll.Item) error {
	m.items[itemKey(item.PayrollRunID, item.EmployeeID)] = copyItem(item)
	return nil
}

func (m *mockPayrollRepository) ApproveCalculatedItems(runID, approverID int64, at time.Time) (int64, error) {
	var approved int64
	for _, item := range m.items {
		if item.PayrollRunID == runID && item.Status == payroll.ItemStatusCalculated {
			item.Status = payroll.ItemStatusApproved
			item.ApprovedByID = &approverID
			item.ApprovedAt = &at
			approved++
		}
	}
	return approved, nil
}

func (m *mockPayrollRepository) YTDTotals(employeeID, organizationID int64, from, before time.Time) (payroll.YTDTotals, error) {
	var totals payroll.YTDTotals
	for _, item := range m.items {
		if item.EmployeeID != employeeID || item.Status == payroll.ItemStatusFailed {
			continue
		}
		run, exists := m.runs[item.PayrollRunID]
		if !exists || run.OrganizationID != organizationID {
			continue
		}
		if run.PeriodStart.Before(from) || !run.PeriodStart.Before(before) {
			continue
		}
		totals.GrossMinor += item.GrossPayMinor
		totals.TaxMinor += item.TotalEmployeeTaxMinor
	}
	return totals, nil
}

func (m *mockPayrollRepository) AppendAuditLog(entry *audit.Log) error {
	m.auditLogs = append(m.auditLogs, entry)
	return nil
}

func (m *mockPayrollRepository) AppendEvent(event *events.DomainEvent) error {
	m.events = append(m.events, event)
	return nil
}

func (m *mockPayrollRepository) itemFor(runID, employeeID int64) *payroll.Item {
	return m.items[itemKey(runID, employeeID)]
}

type mockDirectory struct {
	employees map[int64]*employee.Employee
	listError error
}

func (m *mockDirectory) ActiveEmployees(organizationID int64) ([]*employee.Employee, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	var result []*employee.Employee
	for _, emp := range m.employees {
		if emp.OrganizationID == organizationID {
			result = append(result, emp)
		}
	}
	return result, nil
}

func (m *mockDirectory) GetEmployee(id int64) (*employee.Employee, error) {
	emp, exists := m.employees[id]
	if !exists {
		return nil, employee.ErrEmployeeNotFound
	}
	return emp, nil
}

type mockCompensationSource struct {
	records map[int64]*compensation.Compensation
}

func (m *mockCompensationSource) CurrentFor(employeeID int64, asOf time.Time) (*compensation.Compensation, error) {
	comp, exists := m.records[employeeID]
	if !exists {
		return nil, compensation.ErrNoCurrentRecord
	}
	return comp, nil
}

type mockTaxRuleSource struct {
	rules []*taxrule.TaxRule
}

func (m *mockTaxRuleSource) ActiveRulesFor(periodStart, periodEnd time.Time) ([]*taxrule.TaxRule, error) {
	return m.rules, nil
}

type mockDocumentGenerator struct {
	generateError error
	generated     int
}

func (m *mockDocumentGenerator) GeneratePayslip(item *payroll.Item, emp *employee.Employee, run *payroll.Run) (string, error) {
	if m.generateError != nil {
		return "", m.generateError
	}
	m.generated++
	return fmt.Sprintf("/api/v1/documents/payslips/payslip-%d-%d.txt", run.ID, emp.ID), nil
}

type mockEventBus struct {
	published    []events.Event
	publishError error
}

func (m *mockEventBus) Publish(ctx context.Context, event events.Event) error {
	if m.publishError != nil {
		return m.publishError
	}
	m.published = append(m.published, event)
	return nil
}

var _ = Describe("PayrollService", func() {
	var (
		service       *payroll.Service
		mockRepo      *mockPayrollRepository
		directory     *mockDirectory
		compensations *mockCompensationSource
		taxRules      *mockTaxRuleSource
		documents     *mockDocumentGenerator
		bus           *mockEventBus
		actor         *auth.User
	)

	periodStart := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	payDate := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)

	runDTO := func() payroll.CreateRunDTO {
		return payroll.CreateRunDTO{
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			PayDate:     payDate,
		}
	}

	flatIncomeTax := func(rate float64) *taxrule.TaxRule {
		return &taxrule.TaxRule{
			ID:              1,
			CountryCode:     "US",
			TaxType:         taxrule.TaxTypeIncome,
			PaidBy:          taxrule.PaidByEmployee,
			CalculationType: taxrule.CalculationFlatRate,
			Brackets:        taxrule.Brackets{{Rate: floatPtr(rate)}},
			EffectiveDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			IsActive:        true,
		}
	}

	addEmployee := func(id int64, userID *int64) {
		directory.employees[id] = &employee.Employee{
			ID:                id,
			OrganizationID:    1,
			UserID:            userID,
			FirstName:         "Employee",
			LastName:          fmt.Sprintf("%d", id),
			Email:             fmt.Sprintf("emp%d@acme.test", id),
			EmploymentCountry: "US",
			Status:            employee.StatusActive,
		}
	}

	addCompensation := func(employeeID, amountMinor int64) {
		compensations.records[employeeID] = &compensation.Compensation{
			ID:            employeeID,
			EmployeeID:    employeeID,
			AmountMinor:   amountMinor,
			Currency:      "USD",
			PayFrequency:  compensation.FrequencyMonthly,
			EffectiveDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			IsCurrent:     true,
		}
	}

	BeforeEach(func() {
		mockRepo = newMockPayrollRepository()
		directory = &mockDirectory{employees: make(map[int64]*employee.Employee)}
		compensations = &mockCompensationSource{records: make(map[int64]*compensation.Compensation)}
		taxRules = &mockTaxRuleSource{rules: []*taxrule.TaxRule{flatIncomeTax(0.2)}}
		documents = &mockDocumentGenerator{}
		bus = &mockEventBus{}
		actor = &auth.User{
			ID:             10,
			Email:          "admin@acme.test",
			OrganizationID: 1,
			Permissions:    []string{auth.PermissionManagePayroll, auth.PermissionApprovePayroll, auth.PermissionProcessPayroll},
		}

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = payroll.NewService(mockRepo, directory, compensations, taxRules, documents, bus, logger)
	})

	createDraftRun := func() *payroll.Run {
		run, err := service.CreateRun(actor, runDTO())
		Expect(err).ToNot(HaveOccurred())
		return run
	}

	Describe("CreateRun", func() {
		It("creates a draft run with an audit trail", func() {
			run := createDraftRun()

			Expect(run.Status).To(Equal(payroll.RunStatusDraft))
			Expect(run.OrganizationID).To(Equal(int64(1)))
			Expect(run.Currency).To(Equal("USD"))
			Expect(mockRepo.auditLogs).To(HaveLen(1))
			Expect(mockRepo.auditLogs[0].Action).To(Equal("payroll.run.created"))
		})

		It("rejects an inverted period", func() {
			dto := runDTO()
			dto.PeriodStart, dto.PeriodEnd = dto.PeriodEnd, dto.PeriodStart

			_, err := service.CreateRun(actor, dto)
			Expect(err).To(HaveOccurred())
		})

		It("refuses to create a run for another organization", func() {
			dto := runDTO()
			dto.OrganizationID = 2

			_, err := service.CreateRun(actor, dto)
			Expect(err).To(MatchError(payroll.ErrWrongOrganization))
		})

		It("lets an admin create a run for another organization", func() {
			actor.Permissions = []string{auth.PermissionAdmin}
			dto := runDTO()
			dto.OrganizationID = 2

			run, err := service.CreateRun(actor, dto)
			Expect(err).ToNot(HaveOccurred())
			Expect(run.OrganizationID).To(Equal(int64(2)))
		})
	})

	Describe("Calculate", func() {
		BeforeEach(func() {
			addEmployee(1, int64Ptr(101))
			addEmployee(2, int64Ptr(102))
			addCompensation(1, 500_000)
			addCompensation(2, 300_000)
		})

		It("derives per-employee items and run totals", func() {
			run := createDraftRun()

			calculated, err := service.Calculate(actor, run.ID)
			Expect(err).ToNot(HaveOccurred())

			Expect(calculated.Status).To(Equal(payroll.RunStatusPendingApproval))
			Expect(calculated.TotalGrossMinor).To(Equal(int64(800_000)))
			Expect(calculated.TotalNetMinor).To(Equal(int64(640_000)))
			Expect(calculated.TotalEmployerCostMinor).To(Equal(int64(800_000)))

			item := mockRepo.itemFor(run.ID, 1)
			Expect(item).ToNot(BeNil())
			Expect(item.Status).To(Equal(payroll.ItemStatusCalculated))
			Expect(item.GrossPayMinor).To(Equal(int64(500_000)))
			Expect(item.TotalEmployeeTaxMinor).To(Equal(int64(100_000)))
			Expect(item.NetPayMinor).To(Equal(int64(400_000)))
			Expect(item.Taxes).To(HaveLen(1))
			Expect(item.Taxes[0].TaxType).To(Equal("INCOME"))

			Expect(bus.published).To(HaveLen(1))
			event, ok := bus.published[0].(*events.PayrollCalculatedEvent)
			Expect(ok).To(BeTrue())
			Expect(event.CalculatedItems).To(Equal(2))
			Expect(event.FailedItems).To(Equal(0))
			Expect(mockRepo.events).To(HaveLen(1))
		})

		It("recalculates idempotently without duplicating items", func() {
			run := createDraftRun()

			first, err := service.Calculate(actor, run.ID)
			Expect(err).ToNot(HaveOccurred())

			second, err := service.Calculate(actor, run.ID)
			Expect(err).ToNot(HaveOccurred())

			Expect(second.TotalGrossMinor).To(Equal(first.TotalGrossMinor))
			Expect(second.TotalNetMinor).To(Equal(first.TotalNetMinor))
			items, err := mockRepo.ListItems(run.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(items).To(HaveLen(2))
		})

		It("reflects a compensation correction on recalculation", func() {
			run := createDraftRun()

			_, err := service.Calculate(actor, run.ID)
			Expect(err).ToNot(HaveOccurred())

			addCompensation(1, 600_000)
			recalculated, err := service.Calculate(actor, run.ID)
			Expect(err).ToNot(HaveOccurred())

			Expect(recalculated.TotalGrossMinor).To(Equal(int64(900_000)))
			Expect(mockRepo.itemFor(run.ID, 1).GrossPayMinor).To(Equal(int64(600_000)))
		})

		It("records a failed item for an employee with no compensation and keeps going", func() {
			delete(compensations.records, 2)
			run := createDraftRun()

			calculated, err := service.Calculate(actor, run.ID)
			Expect(err).ToNot(HaveOccurred())

			Expect(calculated.Status).To(Equal(payroll.RunStatusPendingApproval))
			Expect(calculated.TotalGrossMinor).To(Equal(int64(500_000)))

			failed := mockRepo.itemFor(run.ID, 2)
			Expect(failed.Status).To(Equal(payroll.ItemStatusFailed))
			Expect(failed.GrossPayMinor).To(BeZero())
			Expect(failed.ErrorReason).ToNot(BeNil())
			Expect(*failed.ErrorReason).To(ContainSubstring("compensation"))

			event := bus.published[0].(*events.PayrollCalculatedEvent)
			Expect(event.CalculatedItems).To(Equal(1))
			Expect(event.FailedItems).To(Equal(1))
		})

		It("carries year-to-date totals across runs", func() {
			janStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			janRun, err := service.CreateRun(actor, payroll.CreateRunDTO{
				PeriodStart: janStart,
				PeriodEnd:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
				PayDate:     time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC),
			})
			Expect(err).ToNot(HaveOccurred())
			_, err = service.Calculate(actor, janRun.ID)
			Expect(err).ToNot(HaveOccurred())

			febRun := createDraftRun()
			_, err = service.Calculate(actor, febRun.ID)
			Expect(err).ToNot(HaveOccurred())

			janItem := mockRepo.itemFor(janRun.ID, 1)
			febItem := mockRepo.itemFor(febRun.ID, 1)
			Expect(janItem.YTDGrossMinor).To(Equal(int64(500_000)))
			Expect(febItem.YTDGrossMinor).To(Equal(int64(1_000_000)))
			Expect(febItem.YTDTaxMinor).To(Equal(int64(200_000)))
		})

		It("rejects calculation outside DRAFT and PENDING_APPROVAL", func() {
			run := createDraftRun()
			_, err := service.Calculate(actor, run.ID)
			Expect(err).ToNot(HaveOccurred())
			_, err = service.Approve(actor, run.ID)
			Expect(err).ToNot(HaveOccurred())

			_, err = service.Calculate(actor, run.ID)
			Expect(err).To(MatchError(payroll.ErrInvalidRunStatus))
		})

		It("rolls the whole transition back on a store failure", func() {
			run := createDraftRun()
			mockRepo.upsertError = errors.New("database error")

			_, err := service.Calculate(actor, run.ID)
			Expect(err).To(HaveOccurred())

			stored, err := mockRepo.GetRun(run.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(stored.Status).To(Equal(payroll.RunStatusDraft))
			items, err := mockRepo.ListItems(run.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(items).To(BeEmpty())
		})

		It("denies access from another organization", func() {
			run := createDraftRun()
			outsider := &auth.User{ID: 99, OrganizationID: 2, Permissions: []string{auth.PermissionManagePayroll}}

			_, err := service.Calculate(outsider, run.ID)
			Expect(err).To(MatchError(payroll.ErrWrongOrganization))
		})
	})

	Describe("Approve", func() {
		BeforeEach(func() {
			addEmployee(1, int64Ptr(101))
			addEmployee(2, int64Ptr(102))
			addCompensation(1, 500_000)
		})

		It("approves the run and its calculated items, leaving failed items alone", func() {
			run := createDraftRun()
			_, err := service.Calculate(actor, run.ID)
			Expect(err).ToNot(HaveOccurred())

			approved, err := service.Approve(actor, run.ID)
			Expect(err).ToNot(HaveOccurred())

			Expect(approved.Status).To(Equal(payroll.RunStatusApproved))
			Expect(approved.ApprovedByID).ToNot(BeNil())
			Expect(*approved.ApprovedByID).To(Equal(actor.ID))
			Expect(approved.ApprovedAt).ToNot(BeNil())

			Expect(mockRepo.itemFor(run.ID, 1).Status).To(Equal(payroll.ItemStatusApproved))
			Expect(mockRepo.itemFor(run.ID, 2).Status).To(Equal(payroll.ItemStatusFailed))

			event, ok := bus.published[len(bus.published)-1].(*events.PayrollApprovedEvent)
			Expect(ok).To(BeTrue())
			Expect(event.ApprovedByID).To(Equal(actor.ID))
		})

		It("rejects approval of a draft run", func() {
			run := createDraftRun()

			_, err := service.Approve(actor, run.ID)
			Expect(err).To(MatchError(payroll.ErrInvalidRunStatus))
		})
	})

	Describe("Process", func() {
		var run *payroll.Run

		BeforeEach(func() {
			addEmployee(1, int64Ptr(101))
			addEmployee(2, nil)
			addCompensation(1, 500_000)
			addCompensation(2, 300_000)

			run = createDraftRun()
			_, err := service.Calculate(actor, run.ID)
			Expect(err).ToNot(HaveOccurred())
			_, err = service.Approve(actor, run.ID)
			Expect(err).ToNot(HaveOccurred())
		})

		It("pays approved items, attaches payslips, and completes the run", func() {
			processed, err := service.Process(actor, run.ID)
			Expect(err).ToNot(HaveOccurred())

			Expect(processed.Status).To(Equal(payroll.RunStatusCompleted))
			Expect(processed.ProcessedAt).ToNot(BeNil())
			Expect(documents.generated).To(Equal(2))

			for _, employeeID := range []int64{1, 2} {
				item := mockRepo.itemFor(run.ID, employeeID)
				Expect(item.Status).To(Equal(payroll.ItemStatusPaid))
				Expect(item.PaidAt).ToNot(BeNil())
				Expect(item.PayslipURL).ToNot(BeNil())
				Expect(*item.PayslipURL).To(ContainSubstring("/documents/payslips/"))
			}

			event, ok := bus.published[len(bus.published)-1].(*events.PayrollProcessedEvent)
			Expect(ok).To(BeTrue())
			// Only employees with a linked user account get notified.
			Expect(event.PaidUserIDs).To(Equal([]int64{101}))
		})

		It("rolls back and leaves the run approved when payslip generation fails", func() {
			documents.generateError = errors.New("disk full")

			_, err := service.Process(actor, run.ID)
			Expect(err).To(HaveOccurred())

			stored, err := mockRepo.GetRun(run.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(stored.Status).To(Equal(payroll.RunStatusApproved))
			Expect(stored.ProcessedAt).To(BeNil())

			item := mockRepo.itemFor(run.ID, 1)
			Expect(item.Status).To(Equal(payroll.ItemStatusApproved))
			Expect(item.PayslipURL).To(BeNil())
		})

		It("rejects processing a run that is not approved", func() {
			other := createDraftRun()

			_, err := service.Process(actor, other.ID)
			Expect(err).To(MatchError(payroll.ErrInvalidRunStatus))
		})
	})

	Describe("GetRun and ListItems", func() {
		It("reports a missing run", func() {
			_, err := service.GetRun(actor, 999)
			Expect(err).To(MatchError(payroll.ErrRunNotFound))
		})

		It("denies item access across organizations", func() {
			run := createDraftRun()
			outsider := &auth.User{ID: 99, OrganizationID: 2, Permissions: []string{auth.PermissionViewPayroll}}

			_, err := service.ListItems(outsider, run.ID)
			Expect(err).To(MatchError(payroll.ErrWrongOrganization))
		})

		It("lets an admin read across organizations", func() {
			run := createDraftRun()
			admin := &auth.User{ID: 99, OrganizationID: 2, Permissions: []string{auth.PermissionAdmin}}

			fetched, err := service.GetRun(admin, run.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(fetched.ID).To(Equal(run.ID))
		})
	})
})
