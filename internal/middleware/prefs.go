// Package middleware holds HTTP middleware shared by the API routes.
package middleware

import (
	"net/http"

	"github.com/diewo77/go-echeancier/i18n"
)

// Prefs resolves the response language (query > cookie > Accept-Language >
// fallback) and stores it in the request context. A supported language given
// in the query is remembered in a cookie for ~30 days; an unsupported one is
// ignored.
func Prefs(fallback string) func(http.Handler) http.Handler {
	fallback = i18n.Normalize(fallback)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := ""
			if ql, ok := i18n.Match(r.URL.Query().Get("lang")); ok {
				lang = ql
				http.SetCookie(w, &http.Cookie{Name: "lang", Value: lang, Path: "/", MaxAge: 86400 * 30})
			}
			if lang == "" {
				if c, err := r.Cookie("lang"); err == nil && isSupported(c.Value) {
					lang = c.Value
				}
			}
			if lang == "" {
				lang, _ = i18n.Match(r.Header.Get("Accept-Language"))
			}
			if lang == "" {
				lang = fallback
			}
			next.ServeHTTP(w, r.WithContext(i18n.WithLang(r.Context(), lang)))
		})
	}
}

func isSupported(lang string) bool {
	return lang == "fr" || lang == "en"
}
