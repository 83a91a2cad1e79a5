// Package i18n holds the translations, language detection and the locale-aware
// money and date formatting used by the API and the schedule engine.
package i18n

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLang is used whenever no supported language can be detected.
const DefaultLang = "fr"

type langKey struct{}

var supported = []language.Tag{language.French, language.English}

var matcher = language.NewMatcher(supported)

// WithLang returns a copy of ctx carrying lang.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langKey{}, Normalize(lang))
}

// LangFromContext returns the language stored by WithLang, defaulting to fr.
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(langKey{}).(string); ok && lang != "" {
		return lang
	}
	return DefaultLang
}

// Normalize maps any tag ("en-GB", "FR") onto a supported base language.
func Normalize(lang string) string {
	return DetectLanguage(lang)
}

// DetectLanguage picks the best supported language from an Accept-Language
// header value.
func DetectLanguage(header string) string {
	if lang, ok := Match(header); ok {
		return lang
	}
	return DefaultLang
}

// Match returns the supported base language closest to header, and false
// when none of its tags matches.
func Match(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return "", false
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return "", false
	}
	base, _ := supported[idx].Base()
	return base.String(), true
}

var translations = map[string]map[string]string{
	"fr": {
		"required":              "Requis",
		"must_be_positive":      "Doit être positif",
		"out_of_range":          "Hors limites",
		"invalid_date":          "Date invalide",
		"invalid_line_type":     "Type de ligne invalide",
		"unknown_group":         "Groupe inconnu",
		"schedule_empty":        "Aucun échéancier défini",
		"schedule_unbalanced":   "La somme des pourcentages est de %s %% au lieu de 100 %%",
		"coverage_gap":          "Il manque %s HT pour couvrir les lignes incluses",
		"confirmation_required": "L'échéancier existant sera remplacé, confirmation requise",
		"version_conflict":      "Le devis a été modifié entre-temps",
		"not_found":             "Introuvable",
		"validation_failed":     "Données invalides",
		"invalid_json":          "Corps JSON invalide",
		"invalid_id":            "Identifiant invalide",
		"invalid_strategy":      "Stratégie inconnue",
		"invalid_if_match":      "En-tête If-Match invalide",
		"internal_error":        "Erreur interne",
	},
	"en": {
		"required":              "Required",
		"must_be_positive":      "Must be positive",
		"out_of_range":          "Out of range",
		"invalid_date":          "Invalid date",
		"invalid_line_type":     "Invalid line type",
		"unknown_group":         "Unknown group",
		"schedule_empty":        "No payment schedule defined",
		"schedule_unbalanced":   "Percentages add up to %s %% instead of 100 %%",
		"coverage_gap":          "%s excl. VAT is missing to cover the included lines",
		"confirmation_required": "The existing schedule will be replaced, confirmation required",
		"version_conflict":      "The quote was modified in the meantime",
		"not_found":             "Not found",
		"validation_failed":     "Invalid data",
		"invalid_json":          "Invalid JSON body",
		"invalid_id":            "Invalid identifier",
		"invalid_strategy":      "Unknown strategy",
		"invalid_if_match":      "Invalid If-Match header",
		"internal_error":        "Internal error",
	},
}

// T translates code into lang, falling back to French and then to the code.
func T(lang, code string) string {
	if m, ok := translations[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := translations[DefaultLang][code]; ok {
		return s
	}
	return code
}

// Tf translates code and formats it with args.
func Tf(lang, code string, args ...any) string {
	return fmt.Sprintf(T(lang, code), args...)
}

var monthNames = map[string][12]string{
	"fr": {"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"},
	"en": {"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
}

// MonthYear renders t as a long month name followed by the year
// ("janvier 2025", "January 2025").
func MonthYear(lang string, t time.Time) string {
	names, ok := monthNames[lang]
	if !ok {
		names = monthNames[DefaultLang]
	}
	return fmt.Sprintf("%s %d", names[t.Month()-1], t.Year())
}

// FormatMoney renders a euro amount rounded to the cent with the locale's
// grouping and decimal separators.
func FormatMoney(lang string, amount float64) string {
	d := decimal.NewFromFloat(amount).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	tag := language.French
	if lang == "en" {
		tag = language.English
	}
	num := message.NewPrinter(tag).Sprintf("%.2f", d.InexactFloat64())
	if lang == "en" {
		return sign + "€" + num
	}
	return sign + num + " €"
}

// FormatPercent renders a percentage with at most two decimals.
func FormatPercent(lang string, pct float64) string {
	s := decimal.NewFromFloat(pct).Round(2).String()
	if lang != "en" {
		s = strings.Replace(s, ".", ",", 1)
	}
	return s
}
