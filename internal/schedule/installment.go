// Package schedule computes and maintains the payment schedule ("échéancier")
// of a quote: the list of installments invoiced against the quote's pre-tax
// total.
//
// Every operation is a pure transformation returning a new list; callers own
// the state and persist it. Balance and coverage checks are advisory.
package schedule

import "time"

// Line item types understood by the generation strategies.
const (
	LineTypePhase    = "phase"
	LineTypeGroup    = "group"
	LineTypeDiscount = "discount"
)

// DateLayout is the calendar date format of PlannedDate.
const DateLayout = "2006-01-02"

// Installment is one scheduled invoice of a quote.
type Installment struct {
	ID             string   `json:"id"`
	ScheduleNumber int      `json:"schedule_number"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Percentage     float64  `json:"percentage"`
	AmountHT       float64  `json:"amount_ht"`
	AmountTTC      float64  `json:"amount_ttc"`
	VATRate        float64  `json:"vat_rate"`
	PlannedDate    string   `json:"planned_date,omitempty"`
	Milestone      string   `json:"milestone,omitempty"`
	PhaseIDs       []string `json:"phase_ids,omitempty"`
}

// Document carries the quote fields the engine reads.
type Document struct {
	TotalAmount       float64
	VATRate           float64
	ExpectedStartDate *time.Time
	RequiresDeposit   bool
	// DepositPercentage is nil when unset; DefaultDepositPercentage applies.
	DepositPercentage *float64
}

// LineItem is the read-only view of a quote line used for generation and
// coverage.
type LineItem struct {
	ID               string
	Amount           float64
	IsIncluded       bool
	LineType         string
	GroupID          *string
	PhaseName        string
	PhaseDescription string
}

// billable reports whether the line counts towards the schedule.
func (l LineItem) billable() bool {
	return l.IsIncluded && l.LineType != LineTypeDiscount
}

// Patch is a partial installment update. Nil fields are left untouched.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Percentage  *float64  `json:"percentage,omitempty"`
	AmountHT    *float64  `json:"amount_ht,omitempty"`
	VATRate     *float64  `json:"vat_rate,omitempty"`
	PlannedDate *string   `json:"planned_date,omitempty"`
	Milestone   *string   `json:"milestone,omitempty"`
	PhaseIDs    *[]string `json:"phase_ids,omitempty"`
}

// TTC returns ht with vatRate percent of VAT added.
func TTC(ht, vatRate float64) float64 {
	return ht * (1 + vatRate/100)
}

// share returns amount as a percentage of total, or 0 for a non-positive total.
func share(amount, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return amount / total * 100
}

// renumber rewrites ScheduleNumber as 1..N in list order.
func renumber(list []Installment) []Installment {
	for i := range list {
		list[i].ScheduleNumber = i + 1
	}
	return list
}

// clone copies list so callers never observe in-place mutation.
func clone(list []Installment) []Installment {
	out := make([]Installment, len(list))
	copy(out, list)
	for i := range out {
		if out[i].PhaseIDs != nil {
			out[i].PhaseIDs = append([]string(nil), out[i].PhaseIDs...)
		}
	}
	return out
}
