package middleware

import (
	"net/http"
	"strings"
)

const corsMaxAge = "600"

// CORS answers browser preflights and decorates responses for the listed
// origins. A single "*" entry allows any origin.
func CORS(allowOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowOrigins))
	for _, o := range allowOrigins {
		allowed[strings.ToLower(strings.TrimSpace(o))] = struct{}{}
	}
	_, allowAll := allowed["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if _, ok := allowed[strings.ToLower(origin)]; ok || allowAll {
					h := w.Header()
					// Reflect the origin rather than "*" so credentialed requests work.
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
					h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
					h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+HeaderCorrelationID)
					h.Set("Access-Control-Expose-Headers", HeaderCorrelationID)
					h.Set("Access-Control-Max-Age", corsMaxAge)
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
