package schedule

import "math"

const (
	// BalanceTolerance is the accepted distance of the percentage sum to 100.
	BalanceTolerance = 0.01
	// CoverageTolerance absorbs rounding when comparing scheduled HT against
	// the billable lines, in currency units.
	CoverageTolerance = 1.0
	// DefaultDepositPercentage applies when a quote has no deposit percentage.
	DefaultDepositPercentage = 30.0
)

// Summary is the derived, read-only health of a schedule.
type Summary struct {
	Count              int     `json:"count"`
	TotalPercentage    float64 `json:"total_percentage"`
	TotalHT            float64 `json:"total_ht"`
	TotalTTC           float64 `json:"total_ttc"`
	IsBalanced         bool    `json:"is_balanced"`
	IncludedLinesTotal float64 `json:"included_lines_total"`
	MissingAmount      float64 `json:"missing_amount"`
	HasCoverageGap     bool    `json:"has_coverage_gap"`
	DepositAmount      float64 `json:"deposit_amount"`
}

// Summarize computes totals, balance, coverage and deposit for list.
func Summarize(list []Installment, doc Document, lines []LineItem) Summary {
	s := Summary{Count: len(list)}
	for _, inst := range list {
		s.TotalPercentage += inst.Percentage
		s.TotalHT += inst.AmountHT
		s.TotalTTC += inst.AmountTTC
	}
	s.IsBalanced = math.Abs(s.TotalPercentage-100) < BalanceTolerance

	s.IncludedLinesTotal = IncludedLinesTotal(lines)
	s.MissingAmount = math.Max(0, s.IncludedLinesTotal-s.TotalHT)
	s.HasCoverageGap = s.MissingAmount > CoverageTolerance
	s.DepositAmount = DepositAmount(list, doc)
	return s
}

// IncludedLinesTotal sums the amounts of included, non-discount lines.
func IncludedLinesTotal(lines []LineItem) float64 {
	var total float64
	for _, l := range lines {
		if l.billable() {
			total += l.Amount
		}
	}
	return total
}

// DepositAmount is the first installment's HT when the quote requires a
// deposit and the schedule carries amounts; otherwise the deposit percentage
// of the quote total.
func DepositAmount(list []Installment, doc Document) float64 {
	if doc.RequiresDeposit {
		for _, inst := range list {
			if inst.AmountHT > 0 {
				return list[0].AmountHT
			}
		}
	}
	pct := DefaultDepositPercentage
	if doc.DepositPercentage != nil {
		pct = *doc.DepositPercentage
	}
	return doc.TotalAmount * pct / 100
}
