package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/go-echeancier/i18n"
	"github.com/google/uuid"
)

// ErrInvalidCount is returned by the split strategies for a count below 1.
var ErrInvalidCount = errors.New("installment count must be at least 1")

// Engine builds and edits schedules. Its fields are the only ambient inputs
// (identifiers, clock, labels); the zero value is not usable, use NewEngine.
type Engine struct {
	NewID func() string
	Now   func() time.Time
	Lang  string
}

// NewEngine returns an engine using random UUIDs, the wall clock and French
// labels.
func NewEngine() *Engine {
	return &Engine{NewID: uuid.NewString, Now: time.Now, Lang: i18n.DefaultLang}
}

// WithLang returns a copy of e rendering month labels in lang.
func (e *Engine) WithLang(lang string) *Engine {
	c := *e
	c.Lang = lang
	return &c
}

func (e *Engine) installment(number int, title string, pct, ht, vatRate float64) Installment {
	return Installment{
		ID:             e.NewID(),
		ScheduleNumber: number,
		Title:          title,
		Percentage:     pct,
		AmountHT:       ht,
		AmountTTC:      TTC(ht, vatRate),
		VATRate:        vatRate,
	}
}

// GenerateFromPhases emits one installment per included phase line. With no
// billable line at all it emits a single global deposit; with billable lines
// but no phase among them the result is empty.
func (e *Engine) GenerateFromPhases(lines []LineItem, totalAmount, vatRate float64) []Installment {
	var billable []LineItem
	for _, l := range lines {
		if l.billable() {
			billable = append(billable, l)
		}
	}
	if len(billable) == 0 {
		inst := e.installment(1, "Acompte global", 100, totalAmount, vatRate)
		inst.Milestone = "Signature du contrat"
		return []Installment{inst}
	}

	out := make([]Installment, 0, len(billable))
	for _, l := range billable {
		if l.LineType != LineTypePhase {
			continue
		}
		inst := e.installment(len(out)+1, "Acompte "+l.PhaseName, share(l.Amount, totalAmount), l.Amount, vatRate)
		inst.Milestone = l.PhaseName
		inst.PhaseIDs = []string{l.ID}
		out = append(out, inst)
	}
	return out
}

// GenerateFromGroups emits one installment per group line, summing the
// billable lines attached to it, plus a trailing "Autres prestations"
// installment for billable lines outside any existing group. Without any group line it is
// GenerateFromPhases.
func (e *Engine) GenerateFromGroups(lines []LineItem, totalAmount, vatRate float64) []Installment {
	var groups []LineItem
	known := make(map[string]bool)
	for _, l := range lines {
		if l.LineType == LineTypeGroup {
			groups = append(groups, l)
			known[l.ID] = true
		}
	}
	if len(groups) == 0 {
		return e.GenerateFromPhases(lines, totalAmount, vatRate)
	}

	out := make([]Installment, 0, len(groups)+1)
	for gi, g := range groups {
		var (
			ids   []string
			total float64
		)
		for _, l := range lines {
			if l.billable() && l.GroupID != nil && *l.GroupID == g.ID {
				ids = append(ids, l.ID)
				total += l.Amount
			}
		}
		name := g.PhaseName
		if name == "" {
			name = fmt.Sprintf("Groupe %d", gi+1)
		}
		inst := e.installment(len(out)+1, "Acompte "+name, share(total, totalAmount), total, vatRate)
		inst.PhaseIDs = ids
		out = append(out, inst)
	}

	var (
		ids   []string
		total float64
	)
	for _, l := range lines {
		grouped := l.GroupID != nil && known[*l.GroupID]
		if l.billable() && !grouped && l.LineType != LineTypeGroup {
			ids = append(ids, l.ID)
			total += l.Amount
		}
	}
	if total > 0 {
		inst := e.installment(len(out)+1, "Autres prestations", share(total, totalAmount), total, vatRate)
		inst.PhaseIDs = ids
		out = append(out, inst)
	}
	return out
}

// splitPercentages spreads 100 % over count whole percentages; the first
// share absorbs the remainder of the integer division so the sum is exact.
func splitPercentages(count int) []float64 {
	base := 100 / count
	remainder := 100 - base*count
	out := make([]float64, count)
	for i := range out {
		out[i] = float64(base)
	}
	out[0] += float64(remainder)
	return out
}

// GenerateEqualSplit emits count installments of (nearly) equal percentage.
func (e *Engine) GenerateEqualSplit(count int, totalAmount, vatRate float64) ([]Installment, error) {
	if count < 1 {
		return nil, fmt.Errorf("equal split of %d: %w", count, ErrInvalidCount)
	}
	out := make([]Installment, 0, count)
	for i, pct := range splitPercentages(count) {
		out = append(out, e.installment(i+1, fmt.Sprintf("Acompte %d", i+1), pct, totalAmount*pct/100, vatRate))
	}
	return out, nil
}

// GenerateMonthlySplit emits one installment per month starting with the
// month of startDate, each planned on the last day of its month.
func (e *Engine) GenerateMonthlySplit(months int, totalAmount, vatRate float64, startDate time.Time) ([]Installment, error) {
	if months < 1 {
		return nil, fmt.Errorf("monthly split of %d: %w", months, ErrInvalidCount)
	}
	year, month, _ := startDate.Date()
	out := make([]Installment, 0, months)
	for i, pct := range splitPercentages(months) {
		first := time.Date(year, month+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		last := first.AddDate(0, 1, -1)
		inst := e.installment(i+1, fmt.Sprintf("Facture mois %d", i+1), pct, totalAmount*pct/100, vatRate)
		inst.PlannedDate = last.Format(DateLayout)
		inst.Milestone = i18n.MonthYear(e.Lang, first)
		out = append(out, inst)
	}
	return out, nil
}

// StartDate resolves the first month of a monthly split: the requested date,
// else the document's expected start, else today.
func (e *Engine) StartDate(doc Document, requested *time.Time) time.Time {
	if requested != nil && !requested.IsZero() {
		return *requested
	}
	if doc.ExpectedStartDate != nil && !doc.ExpectedStartDate.IsZero() {
		return *doc.ExpectedStartDate
	}
	return e.Now()
}
