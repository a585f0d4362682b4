package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",       // local dev
	"https://domeo.ru",            // storefront
	"https://admin.domeo.ru",      // back office UI
	"https://backoffice.domeo.ru", // back office UI (legacy host)
}

// CORS returns middleware that applies the API's allowed origin policy.
// Extra origins extend the default list.
func CORS(extra ...string) func(http.Handler) http.Handler {
	origins := append(append([]string{}, defaultCORSOrigins...), extra...)
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", IdempotencyHeader, "X-Request-Id", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
