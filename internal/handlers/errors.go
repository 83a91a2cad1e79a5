package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diewo77/go-echeancier/httpx"
	"github.com/diewo77/go-echeancier/i18n"
	"github.com/diewo77/go-echeancier/internal/db"
	"github.com/diewo77/go-echeancier/internal/logger"
	"github.com/diewo77/go-echeancier/internal/schedule"
	"github.com/diewo77/go-echeancier/internal/services"
	"github.com/diewo77/go-echeancier/validation"
	"go.uber.org/zap"
)

// writeError maps domain errors onto HTTP statuses and translated messages.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	lang := langOf(r)
	switch {
	case errors.Is(err, db.ErrQuoteNotFound), errors.Is(err, services.ErrInstallmentNotFound), errors.Is(err, errLineNotFound):
		respondError(w, lang, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, db.ErrVersionConflict):
		respondError(w, lang, http.StatusConflict, "version_conflict", nil)
	case errors.Is(err, schedule.ErrConfirmationRequired):
		respondError(w, lang, http.StatusConflict, "confirmation_required", nil)
	case errors.Is(err, schedule.ErrInvalidCount):
		writeViolations(w, r, validation.Violations{"count": "out_of_range"})
	case errors.Is(err, schedule.ErrUnknownStrategy):
		writeViolations(w, r, validation.Violations{"strategy": "invalid_strategy"})
	case errors.Is(err, httpx.ErrInvalidID):
		respondError(w, lang, http.StatusBadRequest, "invalid_id", nil)
	case errors.Is(err, httpx.ErrInvalidJSON):
		respondError(w, lang, http.StatusBadRequest, "invalid_json", nil)
	default:
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err))
		respondError(w, lang, http.StatusInternalServerError, "internal_error", nil)
	}
}

// writeViolations answers 422 with the violation codes and their translations.
func writeViolations(w http.ResponseWriter, r *http.Request, v validation.Violations) {
	lang := langOf(r)
	respondError(w, lang, http.StatusUnprocessableEntity, "validation_failed", map[string]any{
		"fields":   v,
		"messages": v.Translate(func(code string) string { return i18n.T(lang, code) }),
	})
}

func langOf(r *http.Request) string {
	return i18n.LangFromContext(r.Context())
}

func respondError(w http.ResponseWriter, lang string, status int, code string, details any) {
	httpx.JSONErrorMessage(w, status, code, i18n.T(lang, code), details)
}

// optional distinguishes an absent JSON field from an explicit null.
type optional[T any] struct {
	Set   bool
	Value *T
}

func (o *optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}
