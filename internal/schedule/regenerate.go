package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Strategy names a generation strategy.
type Strategy string

const (
	StrategyPhases  Strategy = "phases"
	StrategyGroups  Strategy = "groups"
	StrategyEqual   Strategy = "equal"
	StrategyMonthly Strategy = "monthly"
)

var (
	// ErrUnknownStrategy is returned for a strategy Regenerate does not know.
	ErrUnknownStrategy = errors.New("unknown schedule strategy")
	// ErrConfirmationRequired guards the replacement of a non-empty schedule.
	ErrConfirmationRequired = errors.New("replacing the existing schedule requires confirmation")
)

// Request selects a strategy and its parameters.
type Request struct {
	Strategy Strategy
	Count    int
	Months   int
	Start    *time.Time
}

// Regenerate replaces current with a freshly generated schedule. It is the only
// destructive entry point: a non-empty current list is discarded only when
// confirmed is true.
func (e *Engine) Regenerate(current []Installment, doc Document, lines []LineItem, req Request, confirmed bool) ([]Installment, error) {
	if len(current) > 0 && !confirmed {
		return nil, ErrConfirmationRequired
	}
	switch req.Strategy {
	case StrategyPhases:
		return e.GenerateFromPhases(lines, doc.TotalAmount, doc.VATRate), nil
	case StrategyGroups:
		return e.GenerateFromGroups(lines, doc.TotalAmount, doc.VATRate), nil
	case StrategyEqual:
		return e.GenerateEqualSplit(req.Count, doc.TotalAmount, doc.VATRate)
	case StrategyMonthly:
		return e.GenerateMonthlySplit(req.Months, doc.TotalAmount, doc.VATRate, e.StartDate(doc, req.Start))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, req.Strategy)
	}
}
