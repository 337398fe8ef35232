package taxrule

import (
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payroll-engine/internal/money"
)

// TaxAmounts is the evaluator result, split by who bears the tax.
type TaxAmounts struct {
	EmployeeMinor int64
	EmployerMinor int64
}

// Evaluate computes the tax a rule levies on a taxable amount, given the
// employee's year-to-date gross. Pure function: no I/O, no side effects, and
// malformed brackets contribute zero rather than failing.
//
// The computation runs in major-unit decimal arithmetic and is rounded back
// to minor units exactly once, at the end. Attribution to employee/employer
// follows PaidBy regardless of calculation type.
func Evaluate(rule *TaxRule, taxableMinor, ytdGrossMinor int64) TaxAmounts {
	taxableMajor := money.ToMajor(taxableMinor)

	var taxMajor decimal.Decimal

	switch rule.CalculationType {
	case CalculationProgressiveBracket:
		taxMajor = progressiveTax(rule.Brackets, taxableMajor)

	case CalculationFlatRate:
		taxMajor = taxableMajor.Mul(bracketRate(rule.Brackets))

	case CalculationFlatAmount:
		taxMajor = bracketFlatAmount(rule.Brackets)

	case CalculationWageBaseCap:
		var capMinor int64
		if rule.WageBaseCapMinor != nil {
			capMinor = *rule.WageBaseCapMinor
		}
		remaining := money.ToMajor(capMinor).Sub(money.ToMajor(ytdGrossMinor))
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		taxMajor = decimal.Min(taxableMajor, remaining).Mul(bracketRate(rule.Brackets))
	}

	taxMinor := money.RoundMajor(taxMajor)

	switch rule.PaidBy {
	case PaidByEmployee:
		return TaxAmounts{EmployeeMinor: taxMinor}
	case PaidByEmployer:
		return TaxAmounts{EmployerMinor: taxMinor}
	default:
		return TaxAmounts{EmployeeMinor: taxMinor, EmployerMinor: taxMinor}
	}
}

// progressiveTax walks brackets in input order. Ascending, non-overlapping
// order is a precondition enforced when rules are created, not here.
func progressiveTax(brackets Brackets, taxableMajor decimal.Decimal) decimal.Decimal {
	tax := decimal.Zero

	for _, bracket := range brackets {
		min := decimal.Zero
		if bracket.Min != nil {
			min = decimal.NewFromFloat(*bracket.Min)
		}

		if taxableMajor.LessThanOrEqual(min) {
			continue
		}

		max := taxableMajor
		if bracket.Max != nil {
			max = decimal.NewFromFloat(*bracket.Max)
		}

		slice := decimal.Min(taxableMajor, max).Sub(min)
		if slice.Sign() <= 0 {
			continue
		}

		rate := decimal.Zero
		if bracket.Rate != nil {
			rate = decimal.NewFromFloat(*bracket.Rate)
		}

		flat := decimal.Zero
		if bracket.FlatAmount != nil {
			flat = decimal.NewFromFloat(*bracket.FlatAmount)
		}

		tax = tax.Add(slice.Mul(rate)).Add(flat)
	}

	return tax
}

func bracketRate(brackets Brackets) decimal.Decimal {
	if len(brackets) == 0 || brackets[0].Rate == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*brackets[0].Rate)
}

func bracketFlatAmount(brackets Brackets) decimal.Decimal {
	if len(brackets) == 0 || brackets[0].FlatAmount == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*brackets[0].FlatAmount)
}
