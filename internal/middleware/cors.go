package middleware

import (
	"net/http"
)

// CORS allows any origin to call the detection service (spec.md §6: "CORS
// allows all origins on the detection service"). There is no session or
// bearer-token surface here, so the only header a client ever needs to set
// is Content-Type.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Allow any origin, including a bare "null" origin from file://.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
