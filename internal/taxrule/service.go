package taxrule

import (
	"log/slog"
	"time"
)

// Repository defines the data access methods for tax rules.
type Repository interface {
	Create(rule *TaxRule) error
	GetByID(id int64) (*TaxRule, error)
	List(limit, offset int) ([]*TaxRule, error)
	ActiveForPeriod(periodStart, periodEnd time.Time) ([]*TaxRule, error)
	Deactivate(id int64, at time.Time) error
	Supersede(oldID int64, next *TaxRule) error
}

// Service handles tax rule management. Rules are never edited in place: an
// update deactivates the old row and inserts a replacement, so payroll items
// calculated against the old rule keep their computed values.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) CreateRule(dto CreateTaxRuleDTO) (*TaxRule, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("tax rule validation failed", "error", err, "country", dto.CountryCode)
		return nil, err
	}

	rule := dto.ToRule()
	if err := s.repo.Create(rule); err != nil {
		s.logger.Error("failed to create tax rule", "error", err, "country", dto.CountryCode)
		return nil, err
	}

	s.logger.Info("tax rule created",
		"rule_id", rule.ID,
		"country", rule.CountryCode,
		"tax_type", rule.TaxType,
		"calculation_type", rule.CalculationType)

	return rule, nil
}

// UpdateRule supersedes an existing rule with a new row.
func (s *Service) UpdateRule(id int64, dto CreateTaxRuleDTO) (*TaxRule, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("tax rule validation failed", "error", err, "rule_id", id)
		return nil, err
	}

	existing, err := s.repo.GetByID(id)
	if err != nil {
		return nil, ErrTaxRuleNotFound
	}
	if !existing.IsActive {
		return nil, ErrTaxRuleInactive
	}

	next := dto.ToRule()
	if err := s.repo.Supersede(existing.ID, next); err != nil {
		s.logger.Error("failed to supersede tax rule", "error", err, "rule_id", id)
		return nil, err
	}

	s.logger.Info("tax rule superseded",
		"old_rule_id", existing.ID,
		"new_rule_id", next.ID,
		"country", next.CountryCode)

	return next, nil
}

func (s *Service) DeactivateRule(id int64) error {
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return ErrTaxRuleNotFound
	}
	if !existing.IsActive {
		return ErrTaxRuleInactive
	}

	if err := s.repo.Deactivate(id, time.Now()); err != nil {
		s.logger.Error("failed to deactivate tax rule", "error", err, "rule_id", id)
		return err
	}

	s.logger.Info("tax rule deactivated", "rule_id", id)
	return nil
}

func (s *Service) ListRules(limit, offset int) ([]*TaxRule, error) {
	return s.repo.List(limit, offset)
}

// ActiveRulesFor returns the rules in force for a pay period. The settlement
// orchestrator calls this once per calculation pass and holds the result
// fixed for the duration of the transition.
func (s *Service) ActiveRulesFor(periodStart, periodEnd time.Time) ([]*TaxRule, error) {
	rules, err := s.repo.ActiveForPeriod(periodStart, periodEnd)
	if err != nil {
		s.logger.Error("failed to load active tax rules", "error", err)
		return nil, err
	}
	return rules, nil
}
