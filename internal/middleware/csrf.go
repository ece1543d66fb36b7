package middleware

import (
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	csrfCookieName = "csrf_token"
	// CSRFHeader is the request header htmx sends the token in.
	CSRFHeader    = "X-CSRF-Token"
	csrfFormField = "csrf_token"
)

// CSRF issues a double-submit cookie tied to the session token and verifies
// unsafe requests carry the same token in a header or form field.
func CSRF(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := GetSession(r)
			token := s.CSRFToken
			if token == "" {
				token = newCSRFToken()
				s.CSRFToken = token
				s.MarkDirty()
			}

			if c, err := r.Cookie(csrfCookieName); err != nil || c.Value != token {
				http.SetCookie(w, &http.Cookie{
					Name:     csrfCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: false,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
					Expires:  time.Now().Add(24 * time.Hour),
				})
			}

			if !isSafeMethod(r.Method) {
				submitted := r.Header.Get(CSRFHeader)
				if submitted == "" {
					submitted = r.PostFormValue(csrfFormField)
				}
				if submitted == "" || submitted != token {
					WriteError(w, r, http.StatusForbidden, "invalid CSRF token")
					return
				}
				if c, err := r.Cookie(csrfCookieName); err != nil || c.Value != token {
					WriteError(w, r, http.StatusForbidden, "invalid CSRF token")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CSRFToken returns the token templates embed for htmx requests.
func CSRFToken(r *http.Request) string {
	return GetSession(r).CSRFToken
}

func newCSRFToken() string {
	return hex.EncodeToString(securecookie.GenerateRandomKey(16))
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
