package handlers

import (
	"net/http"

	"github.com/diewo77/go-echeancier/httpx"
	"github.com/diewo77/go-echeancier/internal/schedule"
	"github.com/diewo77/go-echeancier/internal/services"
	"github.com/diewo77/go-echeancier/validation"
)

// maxInstallments bounds the equal and monthly split counts.
const maxInstallments = 120

// ScheduleHandler exposes a quote's payment schedule.
type ScheduleHandler struct {
	Svc *services.ScheduleService
}

func NewScheduleHandler(svc *services.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{Svc: svc}
}

type generateRequest struct {
	Strategy  string `json:"strategy"`
	Count     int    `json:"count"`
	Months    int    `json:"months"`
	StartDate string `json:"start_date"`
	Confirm   bool   `json:"confirm"`
}

func (req *generateRequest) toRequest() (schedule.Request, validation.Violations) {
	v := make(validation.Violations)
	out := schedule.Request{Strategy: schedule.Strategy(req.Strategy), Count: req.Count, Months: req.Months}
	validation.OneOf("strategy", req.Strategy, "invalid_strategy", []string{
		string(schedule.StrategyPhases),
		string(schedule.StrategyGroups),
		string(schedule.StrategyEqual),
		string(schedule.StrategyMonthly),
	}, v)
	switch out.Strategy {
	case schedule.StrategyEqual:
		validation.RangeInt("count", req.Count, 1, maxInstallments, v)
	case schedule.StrategyMonthly:
		validation.RangeInt("months", req.Months, 1, maxInstallments, v)
		out.Start = validation.Date("start_date", req.StartDate, schedule.DateLayout, v)
	}
	return out, v
}

type moveRequest struct {
	Position int `json:"position"`
}

// target parses the quote id and the If-Match version shared by every route.
func target(w http.ResponseWriter, r *http.Request) (uint, int, bool) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return 0, 0, false
	}
	expected, err := httpx.IfMatch(r)
	if err != nil {
		respondError(w, langOf(r), http.StatusBadRequest, "invalid_if_match", nil)
		return 0, 0, false
	}
	return id, expected, true
}

func respondView(w http.ResponseWriter, status int, view *services.ScheduleView) {
	httpx.SetETag(w, view.Version)
	httpx.JSON(w, status, view)
}

// Get: GET /quotes/{id}/schedule
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondView(w, http.StatusOK, view)
}

// Generate: POST /quotes/{id}/schedule/generate. Replacing a non-empty
// schedule answers 409 unless the body carries "confirm": true.
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	id, expected, ok := target(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sreq, v := req.toRequest()
	if !v.Empty() {
		writeViolations(w, r, v)
		return
	}
	view, err := h.Svc.Regenerate(r.Context(), id, expected, sreq, req.Confirm)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondView(w, http.StatusOK, view)
}

// Add: POST /quotes/{id}/schedule/installments
func (h *ScheduleHandler) Add(w http.ResponseWriter, r *http.Request) {
	id, expected, ok := target(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Add(r.Context(), id, expected)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondView(w, http.StatusCreated, view)
}

// Update: PATCH /quotes/{id}/schedule/installments/{installment_id}
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, expected, ok := target(w, r)
	if !ok {
		return
	}
	var patch schedule.Patch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	v := make(validation.Violations)
	if patch.Percentage != nil {
		validation.NonNegativeFloat("percentage", *patch.Percentage, v)
	}
	if patch.AmountHT != nil {
		validation.NonNegativeFloat("amount_ht", *patch.AmountHT, v)
	}
	if patch.VATRate != nil {
		validation.RangeFloat("vat_rate", *patch.VATRate, 0, 100, v)
	}
	if patch.PlannedDate != nil {
		validation.Date("planned_date", *patch.PlannedDate, schedule.DateLayout, v)
	}
	if !v.Empty() {
		writeViolations(w, r, v)
		return
	}
	view, err := h.Svc.Update(r.Context(), id, expected, r.PathValue("installment_id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondView(w, http.StatusOK, view)
}

// Remove: DELETE /quotes/{id}/schedule/installments/{installment_id}
func (h *ScheduleHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, expected, ok := target(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Remove(r.Context(), id, expected, r.PathValue("installment_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondView(w, http.StatusOK, view)
}

// Move: POST /quotes/{id}/schedule/installments/{installment_id}/move
func (h *ScheduleHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, expected, ok := target(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v := make(validation.Violations)
	if req.Position < 1 {
		v["position"] = "out_of_range"
	}
	if !v.Empty() {
		writeViolations(w, r, v)
		return
	}
	view, err := h.Svc.Move(r.Context(), id, expected, r.PathValue("installment_id"), req.Position)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondView(w, http.StatusOK, view)
}

// Register mounts the schedule routes on mux.
func (h *ScheduleHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /quotes/{id}/schedule", h.Get)
	mux.HandleFunc("POST /quotes/{id}/schedule/generate", h.Generate)
	mux.HandleFunc("POST /quotes/{id}/schedule/installments", h.Add)
	mux.HandleFunc("PATCH /quotes/{id}/schedule/installments/{installment_id}", h.Update)
	mux.HandleFunc("DELETE /quotes/{id}/schedule/installments/{installment_id}", h.Remove)
	mux.HandleFunc("POST /quotes/{id}/schedule/installments/{installment_id}/move", h.Move)
}
