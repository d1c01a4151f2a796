/**
 * @description
 * This file sets up the HTTP router for the streaming-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies middleware for logging, CORS, and authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// LedgerRoutes creates and returns a new router for the streaming service.
func LedgerRoutes(h *LedgerHandlers, jwksURL string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		// Payment stream endpoints
		r.Post("/streams", h.CreateStreamHandler)
		r.Get("/streams/{streamID}", h.GetStreamHandler)
		r.Get("/streams/{streamID}/balance", h.GetStreamBalanceHandler)
		r.Post("/streams/{streamID}/withdraw", h.WithdrawFromStreamHandler)
		r.Delete("/streams/{streamID}", h.CancelStreamHandler)

		// Subscription endpoints
		r.Post("/subscriptions", h.CreateSubscriptionHandler)
		r.Get("/subscriptions/{subscriptionID}", h.GetSubscriptionHandler)
		r.Post("/subscriptions/{subscriptionID}/topup", h.TopUpSubscriptionHandler)
		r.Post("/subscriptions/{subscriptionID}/settle", h.SettleSubscriptionHandler)
		r.Delete("/subscriptions/{subscriptionID}", h.CancelSubscriptionHandler)

		// Account endpoints
		r.Get("/accounts/me/balance", h.GetBalanceHandler)
		r.Post("/accounts/me/withdraw", h.WithdrawBalanceHandler)
		r.Get("/accounts/me/streams", h.ListStreamsHandler)
		r.Get("/accounts/me/subscriptions", h.ListSubscriptionsHandler)

		// Platform fee endpoints
		r.Get("/fee", h.GetFeeHandler)
		r.Put("/admin/fee", h.SetFeeHandler)
	})

	return r
}
