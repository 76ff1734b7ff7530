/**
 * @description
 * This file sets up the HTTP router for the payments-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// PaymentRoutes creates and returns a new router for the payments service.
func PaymentRoutes(h *PaymentHandlers, jwksURL, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Verification runs during onboarding, before the caller has a session.
	r.Post("/verification/send-code", h.SendVerificationCodeHandler)
	r.Post("/verification/verify-code", h.VerifyCodeHandler)

	// Processor callbacks authenticate with an HMAC signature, not a JWT.
	r.Post("/webhooks/deposits", h.DepositWebhookHandler)

	// Server-to-server surface for operations tooling and the scheduler.
	r.Route("/internal/deposits", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalAPIKey))
		r.Post("/{depositID}/reconcile", h.ReconcileDepositHandler)
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		r.Post("/deposits", h.InitiateDepositHandler)
		r.Get("/deposits", h.ListDepositsHandler)
		r.Get("/deposits/{depositID}", h.GetDepositStatusHandler)
	})

	return r
}
