package middleware

import (
	"net/http"

	"finitefield.org/mercadito/internal/platform/httpx"
)

// WriteError answers htmx requests with the JSON error envelope the client
// script can surface, and plain text otherwise.
func WriteError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	if IsHTMX(r.Context()) {
		httpx.WriteError(r.Context(), w, httpx.FromStatus(code, msg))
		return
	}
	http.Error(w, msg, code)
}
