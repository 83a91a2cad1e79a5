package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/diewo77/go-echeancier/httpx"
	"github.com/diewo77/go-echeancier/internal/models"
	"github.com/diewo77/go-echeancier/validation"
	"gorm.io/gorm"
)

var lineTypes = []string{models.LineTypePhase, models.LineTypeGroup, models.LineTypeDiscount, models.LineTypeService}

type lineRequest struct {
	LineType         *string          `json:"line_type"`
	PhaseName        *string          `json:"phase_name"`
	PhaseDescription *string          `json:"phase_description"`
	Amount           *float64         `json:"amount"`
	IsIncluded       *bool            `json:"is_included"`
	GroupID          optional[string] `json:"group_id"`
	Position         *int             `json:"position"`
}

// apply merges req onto line.
func (req *lineRequest) apply(line *models.QuoteLine) {
	if req.LineType != nil {
		line.LineType = strings.TrimSpace(*req.LineType)
	}
	if req.PhaseName != nil {
		line.PhaseName = strings.TrimSpace(*req.PhaseName)
	}
	if req.PhaseDescription != nil {
		line.PhaseDescription = *req.PhaseDescription
	}
	if req.Amount != nil {
		line.Amount = *req.Amount
	}
	if req.IsIncluded != nil {
		line.IsIncluded = *req.IsIncluded
	}
	if req.GroupID.Set {
		line.GroupID = req.GroupID.Value
	}
	if req.Position != nil {
		line.Position = *req.Position
	}
}

// validateLine checks line once the request has been merged onto it.
func (h *QuoteHandler) validateLine(ctx context.Context, line *models.QuoteLine) (validation.Violations, error) {
	v := make(validation.Violations)
	validation.OneOf("line_type", line.LineType, "invalid_line_type", lineTypes, v)
	if line.LineType != models.LineTypeDiscount {
		validation.NonNegativeFloat("amount", line.Amount, v)
	}
	if line.GroupID != nil {
		if *line.GroupID == line.ID || line.LineType == models.LineTypeGroup {
			v["group_id"] = "unknown_group"
			return v, nil
		}
		var n int64
		err := h.DB.WithContext(ctx).Model(&models.QuoteLine{}).
			Where("id = ? AND quote_id = ? AND line_type = ?", *line.GroupID, line.QuoteID, models.LineTypeGroup).
			Count(&n).Error
		if err != nil {
			return nil, err
		}
		if n == 0 {
			v["group_id"] = "unknown_group"
		}
	}
	return v, nil
}

func (h *QuoteHandler) loadLine(ctx context.Context, quoteID uint, lineID string) (*models.QuoteLine, error) {
	var line models.QuoteLine
	err := h.DB.WithContext(ctx).Where("id = ? AND quote_id = ?", lineID, quoteID).First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errLineNotFound
		}
		return nil, err
	}
	return &line, nil
}

// ListLines: GET /quotes/{id}/lines
func (h *QuoteHandler) ListLines(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.Store.Load(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	lines, err := h.Store.ListLines(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if lines == nil {
		lines = []models.QuoteLine{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": lines})
}

// CreateLine: POST /quotes/{id}/lines. Lines are included unless stated
// otherwise and appended after the last position.
func (h *QuoteHandler) CreateLine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req lineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.Store.Load(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	line := models.QuoteLine{QuoteID: id, IsIncluded: true}
	req.apply(&line)
	v, err := h.validateLine(r.Context(), &line)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !v.Empty() {
		writeViolations(w, r, v)
		return
	}
	if req.Position == nil {
		var last int
		if err := h.DB.WithContext(r.Context()).Model(&models.QuoteLine{}).
			Where("quote_id = ?", id).
			Select("COALESCE(MAX(position), 0)").Scan(&last).Error; err != nil {
			writeError(w, r, err)
			return
		}
		line.Position = last + 1
	}
	if err := h.DB.WithContext(r.Context()).Create(&line).Error; err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, line)
}

// UpdateLine: PATCH /quotes/{id}/lines/{line_id}
func (h *QuoteHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req lineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	line, err := h.loadLine(r.Context(), id, r.PathValue("line_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	wasGroup := line.LineType == models.LineTypeGroup
	req.apply(line)
	v, err := h.validateLine(r.Context(), line)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !v.Empty() {
		writeViolations(w, r, v)
		return
	}
	err = h.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if wasGroup && line.LineType != models.LineTypeGroup {
			if err := ungroupMembers(tx, id, line.ID); err != nil {
				return err
			}
		}
		return tx.Save(line).Error
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

// ungroupMembers clears group_id on the lines that point at groupID.
func ungroupMembers(tx *gorm.DB, quoteID uint, groupID string) error {
	return tx.Model(&models.QuoteLine{}).
		Where("quote_id = ? AND group_id = ?", quoteID, groupID).
		Update("group_id", nil).Error
}

// DeleteLine: DELETE /quotes/{id}/lines/{line_id}. Members of a deleted group
// become ungrouped.
func (h *QuoteHandler) DeleteLine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	line, err := h.loadLine(r.Context(), id, r.PathValue("line_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	err = h.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if line.LineType == models.LineTypeGroup {
			if err := ungroupMembers(tx, id, line.ID); err != nil {
				return err
			}
		}
		return tx.Delete(line).Error
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
