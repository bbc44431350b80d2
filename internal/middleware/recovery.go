package middleware

import (
	"log"
	"net/http"
	"runtime/debug"
)

// Recovery is a middleware that recovers from panics in status-API
// handlers.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC: %v\n%s", err, debug.Stack())

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"success":false,"error":{"message":"internal server error"}}`))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
