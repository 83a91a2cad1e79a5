package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/go-echeancier/internal/models"
	"github.com/diewo77/go-echeancier/internal/schedule"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrQuoteNotFound   = errors.New("quote not found")
	ErrVersionConflict = errors.New("quote was modified by another writer")
)

// QuoteStore loads and saves quotes and lists their lines.
type QuoteStore struct {
	db *gorm.DB
}

// NewQuoteStore returns a store backed by db.
func NewQuoteStore(db *gorm.DB) *QuoteStore {
	return &QuoteStore{db: db}
}

// Load returns the quote without its lines.
func (s *QuoteStore) Load(ctx context.Context, id uint) (*models.Quote, error) {
	var q models.Quote
	if err := s.db.WithContext(ctx).First(&q, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuoteNotFound
		}
		return nil, fmt.Errorf("load quote %d: %w", id, err)
	}
	return &q, nil
}

// ListLines returns the quote lines in display order.
func (s *QuoteStore) ListLines(ctx context.Context, quoteID uint) ([]models.QuoteLine, error) {
	var lines []models.QuoteLine
	err := s.db.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Order("position ASC, created_at ASC").
		Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("list lines of quote %d: %w", quoteID, err)
	}
	return lines, nil
}

// QuotePatch lists the quote fields a save may change. Nil fields are left
// untouched; the Clear flags set nullable columns back to NULL.
type QuotePatch struct {
	Title                  *string
	ClientName             *string
	TotalAmount            *float64
	VATRate                *float64
	ExpectedStartDate      *time.Time
	ClearExpectedStartDate bool
	RequiresDeposit        *bool
	DepositPercentage      *float64
	ClearDepositPercentage bool
	InvoiceSchedule        *[]schedule.Installment
}

func (p QuotePatch) columns() map[string]any {
	cols := map[string]any{}
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.ClientName != nil {
		cols["client_name"] = *p.ClientName
	}
	if p.TotalAmount != nil {
		cols["total_amount"] = *p.TotalAmount
	}
	if p.VATRate != nil {
		cols["vat_rate"] = *p.VATRate
	}
	if p.ClearExpectedStartDate {
		cols["expected_start_date"] = nil
	} else if p.ExpectedStartDate != nil {
		cols["expected_start_date"] = *p.ExpectedStartDate
	}
	if p.RequiresDeposit != nil {
		cols["requires_deposit"] = *p.RequiresDeposit
	}
	if p.ClearDepositPercentage {
		cols["deposit_percentage"] = nil
	} else if p.DepositPercentage != nil {
		cols["deposit_percentage"] = *p.DepositPercentage
	}
	if p.InvoiceSchedule != nil {
		list := *p.InvoiceSchedule
		if list == nil {
			list = []schedule.Installment{}
		}
		cols["invoice_schedule"] = datatypes.JSONSlice[schedule.Installment](list)
	}
	return cols
}

// Save applies patch to the quote if its version still equals version, and
// returns the new version. A stale version yields ErrVersionConflict.
func (s *QuoteStore) Save(ctx context.Context, id uint, patch QuotePatch, version int) (int, error) {
	cols := patch.columns()
	cols["version"] = gorm.Expr("version + 1")

	res := s.db.WithContext(ctx).Model(&models.Quote{}).
		Where("id = ? AND version = ?", id, version).
		Updates(cols)
	if res.Error != nil {
		return 0, fmt.Errorf("save quote %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Quote{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return 0, fmt.Errorf("save quote %d: %w", id, err)
		}
		if n == 0 {
			return 0, ErrQuoteNotFound
		}
		return 0, ErrVersionConflict
	}
	return version + 1, nil
}

// CreateQuote numbers the quote for the given year and inserts it with its
// lines.
func (s *QuoteStore) CreateQuote(ctx context.Context, q *models.Quote, year int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if q.Number == "" {
			number, err := models.GenerateQuoteNumber(tx, year)
			if err != nil {
				return fmt.Errorf("generate quote number: %w", err)
			}
			q.Number = number
		}
		if err := tx.Create(q).Error; err != nil {
			return fmt.Errorf("create quote: %w", err)
		}
		return nil
	})
}
