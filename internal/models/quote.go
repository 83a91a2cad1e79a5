package models

import (
	"fmt"
	"time"

	"github.com/diewo77/go-echeancier/internal/schedule"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Quote represents a commercial document (devis) and its payment schedule.
type Quote struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Quote identification
	Number     string `gorm:"size:50;uniqueIndex" json:"number"`
	Title      string `gorm:"size:255;not null" json:"title"`
	ClientName string `gorm:"size:255" json:"client_name,omitempty"`

	// Amounts. VATRate is a percentage (20 for 20 %).
	TotalAmount float64 `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	VATRate     float64 `gorm:"type:decimal(5,2);not null" json:"vat_rate"`

	ExpectedStartDate *time.Time `gorm:"type:date" json:"expected_start_date,omitempty"`

	// Deposit
	RequiresDeposit   bool     `gorm:"not null" json:"requires_deposit"`
	DepositPercentage *float64 `gorm:"type:decimal(5,2)" json:"deposit_percentage,omitempty"`

	// Ordered installments, stored as a JSON array.
	InvoiceSchedule datatypes.JSONSlice[schedule.Installment] `json:"invoice_schedule"`

	// Version is bumped on every save; writers compare it to detect lost updates.
	Version int `gorm:"not null;default:1" json:"version"`

	Lines []QuoteLine `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
}

// Document returns the fields the schedule engine reads.
func (q *Quote) Document() schedule.Document {
	return schedule.Document{
		TotalAmount:       q.TotalAmount,
		VATRate:           q.VATRate,
		ExpectedStartDate: q.ExpectedStartDate,
		RequiresDeposit:   q.RequiresDeposit,
		DepositPercentage: q.DepositPercentage,
	}
}

// Schedule returns the installments as a plain slice.
func (q *Quote) Schedule() []schedule.Installment {
	return []schedule.Installment(q.InvoiceSchedule)
}

// Line types accepted on a quote line.
const (
	LineTypePhase    = schedule.LineTypePhase
	LineTypeGroup    = schedule.LineTypeGroup
	LineTypeDiscount = schedule.LineTypeDiscount
	LineTypeService  = "service"
)

// ValidLineType reports whether t is a known line type.
func ValidLineType(t string) bool {
	switch t {
	case LineTypePhase, LineTypeGroup, LineTypeDiscount, LineTypeService:
		return true
	}
	return false
}

// QuoteLine represents a line item on a quote. Group lines head the lines
// whose GroupID points at them.
type QuoteLine struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	QuoteID  uint `gorm:"index;not null" json:"quote_id"`
	Position int  `gorm:"default:0" json:"position"`

	LineType         string  `gorm:"size:20;not null" json:"line_type"`
	PhaseName        string  `gorm:"size:255" json:"phase_name,omitempty"`
	PhaseDescription string  `gorm:"type:text" json:"phase_description,omitempty"`
	Amount           float64 `gorm:"type:decimal(12,2);not null" json:"amount"`
	IsIncluded       bool    `gorm:"not null" json:"is_included"`
	GroupID          *string `gorm:"size:36;index" json:"group_id,omitempty"`
}

// BeforeCreate assigns a UUID to lines created without an id.
func (l *QuoteLine) BeforeCreate(_ *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// LineItem returns the engine view of the line.
func (l *QuoteLine) LineItem() schedule.LineItem {
	return schedule.LineItem{
		ID:               l.ID,
		Amount:           l.Amount,
		IsIncluded:       l.IsIncluded,
		LineType:         l.LineType,
		GroupID:          l.GroupID,
		PhaseName:        l.PhaseName,
		PhaseDescription: l.PhaseDescription,
	}
}

// LineItems converts lines for the engine, preserving order.
func LineItems(lines []QuoteLine) []schedule.LineItem {
	out := make([]schedule.LineItem, len(lines))
	for i := range lines {
		out[i] = lines[i].LineItem()
	}
	return out
}

// GenerateQuoteNumber generates the next quote number of a year.
// Format: DEV-YYYY-NNNN (e.g., DEV-2025-0001)
func GenerateQuoteNumber(db *gorm.DB, year int) (string, error) {
	var count int64
	prefix := fmt.Sprintf("DEV-%d-", year)
	err := db.Model(&Quote{}).Unscoped().
		Where("number LIKE ?", prefix+"%").
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

// BeforeCreate stores an empty schedule rather than NULL.
func (q *Quote) BeforeCreate(_ *gorm.DB) error {
	if q.InvoiceSchedule == nil {
		q.InvoiceSchedule = datatypes.JSONSlice[schedule.Installment]{}
	}
	if q.Version == 0 {
		q.Version = 1
	}
	return nil
}
