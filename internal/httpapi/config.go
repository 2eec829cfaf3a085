package httpapi

import (
	"net/http"

	"github.com/go-chi/cors"
)

// Origins allowed to read the control API from a browser. Empty means no CORS
// headers are sent and only same-origin pages can read it.
var corsOrigins []string

// SetCORSOrigins sets the browser origins allowed to call the control API.
// The API is read-only, so only GET and OPTIONS are ever allowed.
func SetCORSOrigins(origins []string) {
	corsOrigins = append([]string(nil), origins...)
}

func corsMiddleware() func(http.Handler) http.Handler {
	if len(corsOrigins) == 0 {
		return nil
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Log-Level"},
		MaxAge:         300,
	})
}
