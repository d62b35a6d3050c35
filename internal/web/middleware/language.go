package middleware

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"

	webcontext "github.com/conduit-lang/conduit-admin/internal/web/context"
)

// LanguageCookie is the cookie remembering the chosen interface language
const LanguageCookie = "language"

// LanguageConfig configures language resolution
type LanguageConfig struct {
	// QueryParam overrides everything else when present, default "language"
	QueryParam string

	// CookieName defaults to LanguageCookie
	CookieName string

	// CookiePath scopes the cookie, default "/"
	CookiePath string
}

// Language resolves the interface language as query parameter, then cookie,
// then the first Accept-Language tag. The result is stored in the request
// context and remembered in a cookie. Nothing is stored when none resolve.
func Language(config LanguageConfig) Middleware {
	if config.QueryParam == "" {
		config.QueryParam = "language"
	}
	if config.CookieName == "" {
		config.CookieName = LanguageCookie
	}
	if config.CookiePath == "" {
		config.CookiePath = "/"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := ResolveLanguage(r, config.QueryParam, config.CookieName)
			if lang != "" {
				r = r.WithContext(webcontext.SetLanguage(r.Context(), lang))
				http.SetCookie(w, &http.Cookie{
					Name:     config.CookieName,
					Value:    lang,
					Path:     config.CookiePath,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ResolveLanguage returns the normalized language for r, or "" when unset
func ResolveLanguage(r *http.Request, queryParam, cookieName string) string {
	if lang := r.URL.Query().Get(queryParam); lang != "" {
		return NormalizeLanguage(lang)
	}
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return NormalizeLanguage(c.Value)
	}
	if header := r.Header.Get("Accept-Language"); header != "" {
		tags, _, err := language.ParseAcceptLanguage(header)
		if err == nil && len(tags) > 0 {
			return NormalizeLanguage(tags[0].String())
		}
		first := strings.TrimSpace(strings.SplitN(strings.SplitN(header, ",", 2)[0], ";", 2)[0])
		if first != "" && first != "*" {
			return NormalizeLanguage(first)
		}
	}
	return ""
}

// NormalizeLanguage converts BCP 47 separators to the locale form, fr-FR becomes fr_FR
func NormalizeLanguage(lang string) string {
	return strings.ReplaceAll(strings.TrimSpace(lang), "-", "_")
}
