package db

import (
	"errors"
	"fmt"

	"github.com/diewo77/go-echeancier/internal/models"
	"gorm.io/gorm"
)

// DemoQuoteNumber identifies the quote created by Seed.
const DemoQuoteNumber = "DEV-0001"

// Seed inserts a demo quote with three phases when it is missing. Running it
// twice leaves a single demo quote.
func Seed(db *gorm.DB) error {
	var existing models.Quote
	err := db.Where("number = ?", DemoQuoteNumber).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup demo quote: %w", err)
	}

	q := models.Quote{
		Number:      DemoQuoteNumber,
		Title:       "Rénovation maison individuelle",
		ClientName:  "Client démo",
		TotalAmount: 10000,
		VATRate:     20,
		Lines: []models.QuoteLine{
			{Position: 1, LineType: models.LineTypePhase, PhaseName: "Esquisse", PhaseDescription: "Relevés et premières intentions", Amount: 4000, IsIncluded: true},
			{Position: 2, LineType: models.LineTypePhase, PhaseName: "APS", PhaseDescription: "Avant-projet sommaire", Amount: 3000, IsIncluded: true},
			{Position: 3, LineType: models.LineTypePhase, PhaseName: "APD", PhaseDescription: "Avant-projet définitif", Amount: 3000, IsIncluded: true},
		},
	}
	if err := db.Create(&q).Error; err != nil {
		return fmt.Errorf("create demo quote: %w", err)
	}
	return nil
}
