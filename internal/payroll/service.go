package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/payroll-engine/internal/audit"
	"github.com/frahmantamala/payroll-engine/internal/auth"
	"github.com/frahmantamala/payroll-engine/internal/compensation"
	"github.com/frahmantamala/payroll-engine/internal/core/events"
	"github.com/frahmantamala/payroll-engine/internal/employee"
	"github.com/frahmantamala/payroll-engine/internal/money"
	"github.com/frahmantamala/payroll-engine/internal/taxrule"
)

// Repository is the persistent ledger for runs and items. Transaction yields
// a Repository bound to one database transaction; every write inside the
// closure commits or rolls back together.
type Repository interface {
	Transaction(fn func(tx Repository) error) error

	CreateRun(run *Run) error
	GetRun(id int64) (*Run, error)
	// GetRunForUpdate takes a row lock so concurrent transitions against the
	// same run serialize. Valid only inside Transaction.
	GetRunForUpdate(id int64) (*Run, error)
	UpdateRun(run *Run) error
	ListRuns(organizationID int64, limit, offset int) ([]*Run, error)

	UpsertItem(item *Item) error
	ListItems(runID int64) ([]*Item, error)
	ListItemsByStatus(runID int64, status string) ([]*Item, error)
	UpdateItem(item *Item) error
	ApproveCalculatedItems(runID, approverID int64, at time.Time) (int64, error)

	// YTDTotals sums gross and employee tax over this employee's items in
	// runs with period_start in [from, before), excluding FAILED items.
	YTDTotals(employeeID, organizationID int64, from, before time.Time) (YTDTotals, error)

	AppendAuditLog(entry *audit.Log) error
	AppendEvent(event *events.DomainEvent) error
}

// EmployeeDirectory resolves who gets settled: active employees for
// calculation, single lookups for payslips.
type EmployeeDirectory interface {
	ActiveEmployees(organizationID int64) ([]*employee.Employee, error)
	GetEmployee(id int64) (*employee.Employee, error)
}

// CompensationSource resolves the compensation in force for an employee as of
// the run's period end.
type CompensationSource interface {
	CurrentFor(employeeID int64, asOf time.Time) (*compensation.Compensation, error)
}

// TaxRuleSource loads the rule set once per transition; the result is held
// fixed even if rules are edited concurrently.
type TaxRuleSource interface {
	ActiveRulesFor(periodStart, periodEnd time.Time) ([]*taxrule.TaxRule, error)
}

// DocumentGenerator produces the settlement document for a paid item. A
// failure here is fatal to the whole process transition.
type DocumentGenerator interface {
	GeneratePayslip(item *Item, emp *employee.Employee, run *Run) (string, error)
}

// EventPublisher is the in-process bus; publishing happens after commit and
// must never roll back a settlement.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

var ErrWrongOrganization = errors.New("payroll run belongs to another organization")

// Service is the settlement orchestrator: it advances runs through the
// lifecycle, wrapping each transition in a single transaction.
type Service struct {
	repo          Repository
	directory     EmployeeDirectory
	compensations CompensationSource
	taxRules      TaxRuleSource
	documents     DocumentGenerator
	bus           EventPublisher
	logger        *slog.Logger
}

func NewService(
	repo Repository,
	directory EmployeeDirectory,
	compensations CompensationSource,
	taxRules TaxRuleSource,
	documents DocumentGenerator,
	bus EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:          repo,
		directory:     directory,
		compensations: compensations,
		taxRules:      taxRules,
		documents:     documents,
		bus:           bus,
		logger:        logger,
	}
}

// CreateRun creates a run in DRAFT for the declared period.
func (s *Service) CreateRun(actor *auth.User, dto CreateRunDTO) (*Run, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("payroll run validation failed", "error", err, "actor_id", actor.ID)
		return nil, err
	}

	organizationID := actor.OrganizationID
	if dto.OrganizationID != 0 && dto.OrganizationID != actor.OrganizationID {
		if !actor.HasPermission(auth.PermissionAdmin) {
			return nil, ErrWrongOrganization
		}
		organizationID = dto.OrganizationID
	}

	run := &Run{
		OrganizationID: organizationID,
		PeriodStart:    dto.PeriodStart,
		PeriodEnd:      dto.PeriodEnd,
		PayDate:        dto.PayDate,
		Currency:       dto.currencyOrDefault(),
		Status:         RunStatusDraft,
	}

	err := s.repo.Transaction(func(tx Repository) error {
		if err := tx.CreateRun(run); err != nil {
			return err
		}
		return tx.AppendAuditLog(audit.NewLog(organizationID, &actor.ID,
			"payroll.run.created", "PayrollRun", run.ID, audit.Changes{
				"period_start": run.PeriodStart,
				"period_end":   run.PeriodEnd,
				"pay_date":     run.PayDate,
				"currency":     run.Currency,
			}))
	})
	if err != nil {
		s.logger.Error("failed to create payroll run", "error", err, "org_id", organizationID)
		return nil, err
	}

	s.logger.Info("payroll run created",
		"run_id", run.ID,
		"org_id", organizationID,
		"period_start", run.PeriodStart,
		"period_end", run.PeriodEnd)

	return run, nil
}

// Calculate turns the declared period into per-employee settlement figures.
// Re-entrant: a second pass on a PENDING_APPROVAL run re-derives every item
// and the run totals from scratch, so rule or compensation corrections are
// reliably reflected. Per-employee failures are recorded on items and never
// abort the pass; infrastructure failures roll the whole transition back.
func (s *Service) Calculate(actor *auth.User, runID int64) (*Run, error) {
	run, err := s.getAuthorized(actor, runID)
	if err != nil {
		return nil, err
	}
	if !run.CanCalculate() {
		return nil, ErrInvalidRunStatus
	}

	employees, err := s.directory.ActiveEmployees(run.OrganizationID)
	if err != nil {
		return nil, err
	}

	// Rules are read once and held fixed for the whole transition.
	rules, err := s.taxRules.ActiveRulesFor(run.PeriodStart, run.PeriodEnd)
	if err != nil {
		return nil, err
	}

	var calculatedEvent *events.PayrollCalculatedEvent

	err = s.repo.Transaction(func(tx Repository) error {
		locked, err := tx.GetRunForUpdate(runID)
		if err != nil {
			return err
		}
		if !locked.CanCalculate() {
			return ErrInvalidRunStatus
		}

		locked.Status = RunStatusCalculating
		if err := tx.UpdateRun(locked); err != nil {
			return err
		}

		var totalGross, totalNet, totalEmployerCost int64
		calculated, failed := 0, 0

		for _, emp := range employees {
			item, err := s.settleEmployee(tx, locked, emp, rulesForCountry(rules, emp.EmploymentCountry))
			if err != nil {
				return err
			}

			if item.Status == ItemStatusCalculated {
				totalGross += item.GrossPayMinor
				totalNet += item.NetPayMinor
				totalEmployerCost += item.GrossPayMinor + item.TotalEmployerTaxMinor
				calculated++
			} else {
				failed++
			}
		}

		locked.Status = RunStatusPendingApproval
		locked.TotalGrossMinor = totalGross
		locked.TotalNetMinor = totalNet
		locked.TotalEmployerCostMinor = totalEmployerCost
		if err := tx.UpdateRun(locked); err != nil {
			return err
		}

		if err := tx.AppendAuditLog(audit.NewLog(locked.OrganizationID, &actor.ID,
			"payroll.run.calculated", "PayrollRun", locked.ID, audit.Changes{
				"total_gross_minor":         totalGross,
				"total_net_minor":           totalNet,
				"total_employer_cost_minor": totalEmployerCost,
				"calculated_items":          calculated,
				"failed_items":              failed,
			})); err != nil {
			return err
		}

		if err := tx.AppendEvent(events.NewDomainEvent(locked.OrganizationID,
			events.EventTypePayrollCalculated, "PayrollRun", locked.ID,
			events.EventPayload{"payroll_run_id": locked.ID})); err != nil {
			return err
		}

		calculatedEvent = events.NewPayrollCalculatedEvent(
			locked.ID, locked.OrganizationID,
			totalGross, totalNet, totalEmployerCost,
			calculated, failed)

		return nil
	})
	if err != nil {
		s.logger.Error("payroll calculation failed", "error", err, "run_id", runID)
		return nil, err
	}

	s.logger.Info("payroll run calculated",
		"run_id", runID,
		"employees", len(employees),
		"calculated_items", calculatedEvent.CalculatedItems,
		"failed_items", calculatedEvent.FailedItems,
		"total_gross_minor", calculatedEvent.TotalGrossMinor)

	// Review notifications ride the bus, outside the settlement transaction.
	if err := s.bus.Publish(context.Background(), calculatedEvent); err != nil {
		s.logger.Error("failed to publish calculation event", "error", err, "run_id", runID)
	}

	return s.repo.GetRun(runID)
}

// settleEmployee upserts one ledger record. Missing compensation and
// evaluation failures produce a FAILED item; only store errors propagate.
func (s *Service) settleEmployee(tx Repository, run *Run, emp *employee.Employee, rules []*taxrule.TaxRule) (*Item, error) {
	comp, err := s.compensations.CurrentFor(emp.ID, run.PeriodEnd)
	if err != nil {
		if errors.Is(err, compensation.ErrNoCurrentRecord) {
			item := FailedItem(run.ID, emp.ID, run.Currency, "missing current compensation")
			if err := tx.UpsertItem(item); err != nil {
				return nil, err
			}
			s.logger.Warn("employee skipped: no current compensation",
				"run_id", run.ID, "employee_id", emp.ID)
			return item, nil
		}
		return nil, err
	}

	ytd, err := tx.YTDTotals(emp.ID, run.OrganizationID, yearStart(run.PeriodStart), run.PeriodStart)
	if err != nil {
		return nil, err
	}

	item, evalErr := buildItem(run, emp.ID, comp, rules, ytd)
	if evalErr != nil {
		s.logger.Warn("employee settlement failed",
			"run_id", run.ID, "employee_id", emp.ID, "error", evalErr)
		item = FailedItem(run.ID, emp.ID, run.Currency, evalErr.Error())
	}

	if err := tx.UpsertItem(item); err != nil {
		return nil, err
	}
	return item, nil
}

// buildItem computes the gross-to-net figures for one employee. A panic from
// a malformed rule is confined to this employee.
func buildItem(run *Run, employeeID int64, comp *compensation.Compensation, rules []*taxrule.TaxRule, ytd YTDTotals) (item *Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			item = nil
			err = fmt.Errorf("tax evaluation failed: %v", r)
		}
	}()

	base := comp.AmountMinor
	var overtime, bonus, commission, allowances int64

	gross := money.Sum(base, overtime, bonus, commission, allowances)
	taxable := gross

	taxes := make(TaxLines, 0, len(rules))
	var employeeTax, employerTax int64
	for _, rule := range rules {
		amounts := taxrule.Evaluate(rule, taxable, ytd.GrossMinor)
		employeeTax += amounts.EmployeeMinor
		employerTax += amounts.EmployerMinor
		taxes = append(taxes, TaxLine{
			TaxType:             string(rule.TaxType),
			EmployeeAmountMinor: amounts.EmployeeMinor,
			EmployerAmountMinor: amounts.EmployerMinor,
		})
	}

	net := gross - employeeTax

	return &Item{
		PayrollRunID:          run.ID,
		EmployeeID:            employeeID,
		BaseSalaryMinor:       base,
		OvertimeMinor:         overtime,
		BonusMinor:            bonus,
		CommissionMinor:       commission,
		AllowancesMinor:       allowances,
		GrossPayMinor:         gross,
		TaxableIncomeMinor:    taxable,
		Taxes:                 taxes,
		TotalEmployeeTaxMinor: employeeTax,
		TotalEmployerTaxMinor: employerTax,
		NetPayMinor:           net,
		YTDGrossMinor:         ytd.GrossMinor + gross,
		YTDTaxMinor:           ytd.TaxMinor + employeeTax,
		Currency:              comp.Currency,
		Status:                ItemStatusCalculated,
	}, nil
}

func rulesForCountry(rules []*taxrule.TaxRule, countryCode string) []*taxrule.TaxRule {
	matched := make([]*taxrule.TaxRule, 0, len(rules))
	for _, rule := range rules {
		if rule.CountryCode == countryCode {
			matched = append(matched, rule)
		}
	}
	return matched
}

// Approve flips the run and its CALCULATED items to APPROVED. FAILED items
// are left untouched.
func (s *Service) Approve(actor *auth.User, runID int64) (*Run, error) {
	run, err := s.getAuthorized(actor, runID)
	if err != nil {
		return nil, err
	}
	if !run.CanApprove() {
		return nil, ErrInvalidRunStatus
	}

	var approvedEvent *events.PayrollApprovedEvent

	err = s.repo.Transaction(func(tx Repository) error {
		locked, err := tx.GetRunForUpdate(runID)
		if err != nil {
			return err
		}
		if !locked.CanApprove() {
			return ErrInvalidRunStatus
		}

		now := time.Now()
		locked.Status = RunStatusApproved
		locked.ApprovedByID = &actor.ID
		locked.ApprovedAt = &now
		if err := tx.UpdateRun(locked); err != nil {
			return err
		}

		approvedItems, err := tx.ApproveCalculatedItems(runID, actor.ID, now)
		if err != nil {
			return err
		}

		if err := tx.AppendAuditLog(audit.NewLog(locked.OrganizationID, &actor.ID,
			"payroll.run.approved", "PayrollRun", runID, audit.Changes{
				"approved_items": approvedItems,
			})); err != nil {
			return err
		}

		if err := tx.AppendEvent(events.NewDomainEvent(locked.OrganizationID,
			events.EventTypePayrollApproved, "PayrollRun", runID,
			events.EventPayload{"payroll_run_id": runID})); err != nil {
			return err
		}

		approvedEvent = events.NewPayrollApprovedEvent(runID, locked.OrganizationID, actor.ID)
		return nil
	})
	if err != nil {
		s.logger.Error("payroll approval failed", "error", err, "run_id", runID)
		return nil, err
	}

	s.logger.Info("payroll run approved", "run_id", runID, "approver_id", actor.ID)

	if err := s.bus.Publish(context.Background(), approvedEvent); err != nil {
		s.logger.Error("failed to publish approval event", "error", err, "run_id", runID)
	}

	return s.repo.GetRun(runID)
}

// Process settles every APPROVED item: generate its payslip, mark it PAID,
// then complete the run. A document-generation failure aborts the whole
// transition and the transaction rolls back, leaving the run APPROVED.
func (s *Service) Process(actor *auth.User, runID int64) (*Run, error) {
	run, err := s.getAuthorized(actor, runID)
	if err != nil {
		return nil, err
	}
	if !run.CanProcess() {
		return nil, ErrInvalidRunStatus
	}

	var processedEvent *events.PayrollProcessedEvent

	err = s.repo.Transaction(func(tx Repository) error {
		locked, err := tx.GetRunForUpdate(runID)
		if err != nil {
			return err
		}
		if !locked.CanProcess() {
			return ErrInvalidRunStatus
		}

		locked.Status = RunStatusProcessing
		if err := tx.UpdateRun(locked); err != nil {
			return err
		}

		items, err := tx.ListItemsByStatus(runID, ItemStatusApproved)
		if err != nil {
			return err
		}

		var paidUserIDs []int64
		for _, item := range items {
			emp, err := s.directory.GetEmployee(item.EmployeeID)
			if err != nil {
				return err
			}

			payslipURL, err := s.documents.GeneratePayslip(item, emp, locked)
			if err != nil {
				return fmt.Errorf("generate payslip for item %d: %w", item.ID, err)
			}

			now := time.Now()
			item.Status = ItemStatusPaid
			item.PaidAt = &now
			item.PayslipURL = &payslipURL
			if err := tx.UpdateItem(item); err != nil {
				return err
			}

			if emp.UserID != nil {
				paidUserIDs = append(paidUserIDs, *emp.UserID)
			}
		}

		now := time.Now()
		locked.Status = RunStatusCompleted
		locked.ProcessedAt = &now
		if err := tx.UpdateRun(locked); err != nil {
			return err
		}

		if err := tx.AppendAuditLog(audit.NewLog(locked.OrganizationID, &actor.ID,
			"payroll.run.processed", "PayrollRun", runID, audit.Changes{
				"paid_items": len(items),
			})); err != nil {
			return err
		}

		if err := tx.AppendEvent(events.NewDomainEvent(locked.OrganizationID,
			events.EventTypePayrollProcessed, "PayrollRun", runID,
			events.EventPayload{"payroll_run_id": runID})); err != nil {
			return err
		}

		processedEvent = events.NewPayrollProcessedEvent(
			runID, locked.OrganizationID,
			locked.PeriodStart.Format("2006-01-02"),
			locked.PeriodEnd.Format("2006-01-02"),
			paidUserIDs)

		return nil
	})
	if err != nil {
		s.logger.Error("payroll processing failed", "error", err, "run_id", runID)
		return nil, err
	}

	s.logger.Info("payroll run processed", "run_id", runID)

	if err := s.bus.Publish(context.Background(), processedEvent); err != nil {
		s.logger.Error("failed to publish processed event", "error", err, "run_id", runID)
	}

	return s.repo.GetRun(runID)
}

func (s *Service) GetRun(actor *auth.User, runID int64) (*Run, error) {
	return s.getAuthorized(actor, runID)
}

func (s *Service) ListRuns(actor *auth.User, limit, offset int) ([]*Run, error) {
	return s.repo.ListRuns(actor.OrganizationID, limit, offset)
}

func (s *Service) ListItems(actor *auth.User, runID int64) ([]*Item, error) {
	if _, err := s.getAuthorized(actor, runID); err != nil {
		return nil, err
	}
	return s.repo.ListItems(runID)
}

func (s *Service) getAuthorized(actor *auth.User, runID int64) (*Run, error) {
	run, err := s.repo.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run.OrganizationID != actor.OrganizationID && !actor.HasPermission(auth.PermissionAdmin) {
		return nil, ErrWrongOrganization
	}
	return run, nil
}
