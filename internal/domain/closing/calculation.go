package closing

import "github.com/bpo/cashclosing/internal/domain/shared/valueobject"

// DefaultToleranceCents absorbs rounding noise: |divergence| up to one cent is no divergence
const DefaultToleranceCents int64 = 1

// DefaultMinorLimitCents separates minor from significant divergences (R$ 10,00)
const DefaultMinorLimitCents int64 = 1000

// DivergenceLevel classifies the size of a divergence
type DivergenceLevel string

const (
	DivergenceLevelNone        DivergenceLevel = "none"
	DivergenceLevelMinor       DivergenceLevel = "minor"
	DivergenceLevelSignificant DivergenceLevel = "significant"
)

// ExpectedClosingBalance derives the till balance from recorded flows.
// Only cash sales pass through the till; the other six methods never do.
func ExpectedClosingBalance(f ClosingFields) valueobject.Money {
	return f.OpeningBalance.
		MustAdd(f.SupplyAmount).
		MustAdd(f.Sales.Cash).
		MustSubtract(f.WithdrawalAmount)
}

// Divergence is reported minus expected; negative means cash is missing
func Divergence(f ClosingFields) valueobject.Money {
	return f.ReportedClosingBalance.MustSubtract(ExpectedClosingBalance(f))
}

// DivergencePolicy holds the thresholds used to classify divergences
type DivergencePolicy struct {
	ToleranceCents  int64
	MinorLimitCents int64
}

// DefaultDivergencePolicy returns the one-cent tolerance policy
func DefaultDivergencePolicy() DivergencePolicy {
	return DivergencePolicy{
		ToleranceCents:  DefaultToleranceCents,
		MinorLimitCents: DefaultMinorLimitCents,
	}
}

// DivergenceDisclosure is surfaced to the submitter when the counted balance
// does not match the expected one. It is informational and never blocks.
type DivergenceDisclosure struct {
	Expected   valueobject.Money `json:"expected"`
	Reported   valueobject.Money `json:"reported"`
	Difference valueobject.Money `json:"difference"`
	Triggered  bool              `json:"triggered"`
	Level      DivergenceLevel   `json:"level"`
}

// Classify returns the level for a signed divergence
func (p DivergencePolicy) Classify(divergence valueobject.Money) DivergenceLevel {
	abs := divergence.Abs().Cents()
	switch {
	case abs <= p.ToleranceCents:
		return DivergenceLevelNone
	case p.MinorLimitCents > 0 && abs <= p.MinorLimitCents:
		return DivergenceLevelMinor
	default:
		return DivergenceLevelSignificant
	}
}

// Disclose computes expected, reported and the signed difference
func (p DivergencePolicy) Disclose(f ClosingFields) DivergenceDisclosure {
	expected := ExpectedClosingBalance(f)
	diff := f.ReportedClosingBalance.MustSubtract(expected)
	level := p.Classify(diff)
	return DivergenceDisclosure{
		Expected:   expected,
		Reported:   f.ReportedClosingBalance,
		Difference: diff,
		Triggered:  level != DivergenceLevelNone,
		Level:      level,
	}
}

// Totals is the live calculation shown while a closing is being filled in
type Totals struct {
	SalesTotal             valueobject.Money    `json:"sales_total"`
	ExpectedClosingBalance valueobject.Money    `json:"expected_closing_balance"`
	Disclosure             DivergenceDisclosure `json:"divergence"`
}

// ComputeTotals runs every calculation over the fields
func (p DivergencePolicy) ComputeTotals(f ClosingFields) Totals {
	disclosure := p.Disclose(f)
	return Totals{
		SalesTotal:             f.Sales.Total(),
		ExpectedClosingBalance: disclosure.Expected,
		Disclosure:             disclosure,
	}
}
