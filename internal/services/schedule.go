package services

import (
	"context"
	"errors"

	"github.com/diewo77/go-echeancier/i18n"
	"github.com/diewo77/go-echeancier/internal/db"
	"github.com/diewo77/go-echeancier/internal/logger"
	"github.com/diewo77/go-echeancier/internal/metrics"
	"github.com/diewo77/go-echeancier/internal/models"
	"github.com/diewo77/go-echeancier/internal/schedule"
	"go.uber.org/zap"
)

// ErrInstallmentNotFound is returned when an edit targets an id the schedule
// does not contain. Nothing is saved in that case.
var ErrInstallmentNotFound = errors.New("installment not found")

// DocumentStore loads quotes and saves partial updates under a version check.
type DocumentStore interface {
	Load(ctx context.Context, id uint) (*models.Quote, error)
	Save(ctx context.Context, id uint, patch db.QuotePatch, version int) (int, error)
}

// LineItemProvider lists the lines of a quote in display order.
type LineItemProvider interface {
	ListLines(ctx context.Context, quoteID uint) ([]models.QuoteLine, error)
}

// Warning is an advisory message about the schedule. It never blocks a save.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Display holds the summary amounts formatted for the request language.
type Display struct {
	TotalHT       string `json:"total_ht"`
	TotalTTC      string `json:"total_ttc"`
	MissingAmount string `json:"missing_amount"`
	DepositAmount string `json:"deposit_amount"`
}

// ScheduleView is a quote's schedule together with its derived state.
type ScheduleView struct {
	QuoteID      uint                   `json:"quote_id"`
	Version      int                    `json:"version"`
	Installments []schedule.Installment `json:"installments"`
	Summary      schedule.Summary       `json:"summary"`
	Display      Display                `json:"display"`
	Warnings     []Warning              `json:"warnings"`
}

// ScheduleService loads a quote, runs an engine operation on its schedule and
// saves the result.
type ScheduleService struct {
	store   DocumentStore
	lines   LineItemProvider
	engine  *schedule.Engine
	log     *zap.Logger
	metrics *metrics.Schedule
}

func NewScheduleService(store DocumentStore, lines LineItemProvider, engine *schedule.Engine, log *zap.Logger, m *metrics.Schedule) *ScheduleService {
	if engine == nil {
		engine = schedule.NewEngine()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ScheduleService{store: store, lines: lines, engine: engine, log: log, metrics: m}
}

// Get returns the current schedule of a quote.
func (s *ScheduleService) Get(ctx context.Context, quoteID uint) (*ScheduleView, error) {
	q, err := s.store.Load(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	lines, err := s.lineItems(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	return buildView(i18n.LangFromContext(ctx), q, lines), nil
}

// Regenerate replaces the schedule using req. A non-empty schedule is only
// replaced when confirmed is true.
func (s *ScheduleService) Regenerate(ctx context.Context, quoteID uint, expected int, req schedule.Request, confirmed bool) (*ScheduleView, error) {
	return s.mutate(ctx, quoteID, expected, "generate", string(req.Strategy),
		func(e *schedule.Engine, q *models.Quote, lines []schedule.LineItem) ([]schedule.Installment, error) {
			return e.Regenerate(q.Schedule(), q.Document(), lines, req, confirmed)
		})
}

// Add appends an empty installment.
func (s *ScheduleService) Add(ctx context.Context, quoteID uint, expected int) (*ScheduleView, error) {
	return s.mutate(ctx, quoteID, expected, "add", "",
		func(e *schedule.Engine, q *models.Quote, _ []schedule.LineItem) ([]schedule.Installment, error) {
			return e.AddInstallment(q.Schedule(), q.VATRate), nil
		})
}

// Remove deletes an installment and renumbers the rest.
func (s *ScheduleService) Remove(ctx context.Context, quoteID uint, expected int, installmentID string) (*ScheduleView, error) {
	return s.mutate(ctx, quoteID, expected, "remove", "",
		func(_ *schedule.Engine, q *models.Quote, _ []schedule.LineItem) ([]schedule.Installment, error) {
			if !contains(q.Schedule(), installmentID) {
				return nil, ErrInstallmentNotFound
			}
			return schedule.RemoveInstallment(q.Schedule(), installmentID), nil
		})
}

// Update applies patch to one installment, recomputing its amounts.
func (s *ScheduleService) Update(ctx context.Context, quoteID uint, expected int, installmentID string, patch schedule.Patch) (*ScheduleView, error) {
	return s.mutate(ctx, quoteID, expected, "update", "",
		func(_ *schedule.Engine, q *models.Quote, _ []schedule.LineItem) ([]schedule.Installment, error) {
			if !contains(q.Schedule(), installmentID) {
				return nil, ErrInstallmentNotFound
			}
			return schedule.UpdateInstallment(q.Schedule(), installmentID, patch, q.TotalAmount), nil
		})
}

// Move puts an installment at a 1-based position and renumbers.
func (s *ScheduleService) Move(ctx context.Context, quoteID uint, expected int, installmentID string, position int) (*ScheduleView, error) {
	return s.mutate(ctx, quoteID, expected, "move", "",
		func(_ *schedule.Engine, q *models.Quote, _ []schedule.LineItem) ([]schedule.Installment, error) {
			if !contains(q.Schedule(), installmentID) {
				return nil, ErrInstallmentNotFound
			}
			return schedule.MoveInstallment(q.Schedule(), installmentID, position), nil
		})
}

type editFunc func(e *schedule.Engine, q *models.Quote, lines []schedule.LineItem) ([]schedule.Installment, error)

// mutate runs fn against the stored quote and saves its result. expected is
// the version the caller last saw; 0 skips the caller-side check, the store
// still rejects a concurrent write between load and save.
func (s *ScheduleService) mutate(ctx context.Context, quoteID uint, expected int, op, strategy string, fn editFunc) (*ScheduleView, error) {
	log := logger.FromContextOr(ctx, s.log).With(zap.Uint("quote_id", quoteID), zap.String("operation", op))
	lang := i18n.LangFromContext(ctx)

	q, err := s.store.Load(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if expected > 0 && expected != q.Version {
		s.metrics.Conflict()
		log.Warn("stale schedule version", zap.Int("expected", expected), zap.Int("current", q.Version))
		return nil, db.ErrVersionConflict
	}
	lines, err := s.lineItems(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	list, err := fn(s.engine.WithLang(lang), q, lines)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []schedule.Installment{}
	}

	version, err := s.store.Save(ctx, quoteID, db.QuotePatch{InvoiceSchedule: &list}, q.Version)
	if err != nil {
		if errors.Is(err, db.ErrVersionConflict) {
			s.metrics.Conflict()
			log.Warn("schedule save lost a concurrent update", zap.Int("version", q.Version))
		}
		return nil, err
	}
	q.InvoiceSchedule = list
	q.Version = version

	view := buildView(lang, q, lines)
	s.metrics.Operation(op, strategy)
	s.metrics.Saved(view.Summary.Count, view.Summary.IsBalanced, view.Summary.HasCoverageGap)
	log.Info("schedule saved",
		zap.String("strategy", strategy),
		zap.Int("version", version),
		zap.Int("installments", view.Summary.Count),
		zap.Bool("balanced", view.Summary.IsBalanced),
		zap.Bool("coverage_gap", view.Summary.HasCoverageGap),
	)
	return view, nil
}

func (s *ScheduleService) lineItems(ctx context.Context, quoteID uint) ([]schedule.LineItem, error) {
	lines, err := s.lines.ListLines(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	return models.LineItems(lines), nil
}

func buildView(lang string, q *models.Quote, lines []schedule.LineItem) *ScheduleView {
	list := q.Schedule()
	if list == nil {
		list = []schedule.Installment{}
	}
	sum := schedule.Summarize(list, q.Document(), lines)
	return &ScheduleView{
		QuoteID:      q.ID,
		Version:      q.Version,
		Installments: list,
		Summary:      sum,
		Display: Display{
			TotalHT:       i18n.FormatMoney(lang, sum.TotalHT),
			TotalTTC:      i18n.FormatMoney(lang, sum.TotalTTC),
			MissingAmount: i18n.FormatMoney(lang, sum.MissingAmount),
			DepositAmount: i18n.FormatMoney(lang, sum.DepositAmount),
		},
		Warnings: warnings(lang, sum),
	}
}

// warnings lists the advisory problems of a schedule.
func warnings(lang string, sum schedule.Summary) []Warning {
	out := []Warning{}
	if sum.Count == 0 {
		out = append(out, Warning{Code: "schedule_empty", Message: i18n.T(lang, "schedule_empty")})
	} else if !sum.IsBalanced {
		out = append(out, Warning{
			Code:    "schedule_unbalanced",
			Message: i18n.Tf(lang, "schedule_unbalanced", i18n.FormatPercent(lang, sum.TotalPercentage)),
		})
	}
	if sum.HasCoverageGap {
		out = append(out, Warning{
			Code:    "coverage_gap",
			Message: i18n.Tf(lang, "coverage_gap", i18n.FormatMoney(lang, sum.MissingAmount)),
		})
	}
	return out
}

func contains(list []schedule.Installment, id string) bool {
	for _, inst := range list {
		if inst.ID == id {
			return true
		}
	}
	return false
}
