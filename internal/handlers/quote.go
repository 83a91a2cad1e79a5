package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-echeancier/httpx"
	"github.com/diewo77/go-echeancier/internal/db"
	"github.com/diewo77/go-echeancier/internal/models"
	"github.com/diewo77/go-echeancier/internal/schedule"
	"github.com/diewo77/go-echeancier/validation"
	"gorm.io/gorm"
)

// QuoteHandler serves quote and quote line CRUD as JSON.
type QuoteHandler struct {
	DB             *gorm.DB
	Store          *db.QuoteStore
	DefaultVATRate float64
	Now            func() time.Time
}

func NewQuoteHandler(gdb *gorm.DB, store *db.QuoteStore, defaultVATRate float64) *QuoteHandler {
	return &QuoteHandler{DB: gdb, Store: store, DefaultVATRate: defaultVATRate, Now: time.Now}
}

type quoteRequest struct {
	Title             *string           `json:"title"`
	ClientName        *string           `json:"client_name"`
	TotalAmount       *float64          `json:"total_amount"`
	VATRate           *float64          `json:"vat_rate"`
	ExpectedStartDate optional[string]  `json:"expected_start_date"`
	RequiresDeposit   *bool             `json:"requires_deposit"`
	DepositPercentage optional[float64] `json:"deposit_percentage"`
}

// validate checks the fields present in req. On create, title is required.
func (req *quoteRequest) validate(create bool) (validation.Violations, *time.Time) {
	v := make(validation.Violations)
	if create || req.Title != nil {
		title := ""
		if req.Title != nil {
			title = *req.Title
		}
		validation.Required("title", title, v)
	}
	if req.TotalAmount != nil {
		validation.NonNegativeFloat("total_amount", *req.TotalAmount, v)
	}
	if req.VATRate != nil {
		validation.RangeFloat("vat_rate", *req.VATRate, 0, 100, v)
	}
	if req.DepositPercentage.Value != nil {
		validation.RangeFloat("deposit_percentage", *req.DepositPercentage.Value, 0, 100, v)
	}
	var start *time.Time
	if req.ExpectedStartDate.Value != nil {
		start = validation.Date("expected_start_date", *req.ExpectedStartDate.Value, schedule.DateLayout, v)
	}
	return v, start
}

// List: GET /quotes
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			offset = (n - 1) * limit
		}
	}
	dbq := h.DB.WithContext(r.Context()).Model(&models.Quote{})
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		dbq = dbq.Where("lower(title) LIKE ? OR lower(number) LIKE ? OR lower(client_name) LIKE ?", like, like, like)
	}
	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		writeError(w, r, err)
		return
	}
	quotes := []models.Quote{}
	if err := dbq.Order("id desc").Limit(limit).Offset(offset).Find(&quotes).Error; err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": quotes, "total": total, "limit": limit, "offset": offset})
}

// Create: POST /quotes
func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, start := req.validate(true)
	if !v.Empty() {
		writeViolations(w, r, v)
		return
	}

	q := models.Quote{
		Title:             strings.TrimSpace(*req.Title),
		VATRate:           h.DefaultVATRate,
		ExpectedStartDate: start,
		DepositPercentage: req.DepositPercentage.Value,
	}
	if req.ClientName != nil {
		q.ClientName = strings.TrimSpace(*req.ClientName)
	}
	if req.TotalAmount != nil {
		q.TotalAmount = *req.TotalAmount
	}
	if req.VATRate != nil {
		q.VATRate = *req.VATRate
	}
	if req.RequiresDeposit != nil {
		q.RequiresDeposit = *req.RequiresDeposit
	}
	if err := h.Store.CreateQuote(r.Context(), &q, h.Now().Year()); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.SetETag(w, q.Version)
	httpx.JSON(w, http.StatusCreated, q)
}

// View: GET /quotes/{id}
func (h *QuoteHandler) View(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.Store.Load(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lines, err := h.Store.ListLines(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q.Lines = lines
	httpx.SetETag(w, q.Version)
	httpx.JSON(w, http.StatusOK, q)
}

// Update: PATCH /quotes/{id}. Totals, VAT and deposit settings change under
// the same version check as schedule edits.
func (h *QuoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	expected, err := httpx.IfMatch(r)
	if err != nil {
		respondError(w, langOf(r), http.StatusBadRequest, "invalid_if_match", nil)
		return
	}
	var req quoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, start := req.validate(false)
	if !v.Empty() {
		writeViolations(w, r, v)
		return
	}

	current, err := h.Store.Load(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if expected == 0 {
		expected = current.Version
	}

	patch := db.QuotePatch{
		ClientName:      req.ClientName,
		TotalAmount:     req.TotalAmount,
		VATRate:         req.VATRate,
		RequiresDeposit: req.RequiresDeposit,
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		patch.Title = &title
	}
	if req.ExpectedStartDate.Set {
		patch.ExpectedStartDate = start
		patch.ClearExpectedStartDate = start == nil
	}
	if req.DepositPercentage.Set {
		patch.DepositPercentage = req.DepositPercentage.Value
		patch.ClearDepositPercentage = req.DepositPercentage.Value == nil
	}
	if _, err := h.Store.Save(r.Context(), id, patch, expected); err != nil {
		writeError(w, r, err)
		return
	}
	h.View(w, r)
}

// Delete: DELETE /quotes/{id}
func (h *QuoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res := h.DB.WithContext(r.Context()).Delete(&models.Quote{}, id)
	if res.Error != nil {
		writeError(w, r, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		writeError(w, r, db.ErrQuoteNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var errLineNotFound = errors.New("quote line not found")

// Register mounts the quote and line routes on mux.
func (h *QuoteHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /quotes", h.List)
	mux.HandleFunc("POST /quotes", h.Create)
	mux.HandleFunc("GET /quotes/{id}", h.View)
	mux.HandleFunc("PATCH /quotes/{id}", h.Update)
	mux.HandleFunc("DELETE /quotes/{id}", h.Delete)
	mux.HandleFunc("GET /quotes/{id}/lines", h.ListLines)
	mux.HandleFunc("POST /quotes/{id}/lines", h.CreateLine)
	mux.HandleFunc("PATCH /quotes/{id}/lines/{line_id}", h.UpdateLine)
	mux.HandleFunc("DELETE /quotes/{id}/lines/{line_id}", h.DeleteLine)
}
