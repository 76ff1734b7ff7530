/**
 * @description
 * This file contains the HTTP handlers for the payments-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application services, and writing the HTTP response. They act as
 * the bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dulu/payments-service/internal/app"
	"github.com/dulu/payments-service/internal/domain"
	"github.com/dulu/payments-service/internal/store"
)

// PaymentHandlers holds the application services that handlers will use.
type PaymentHandlers struct {
	payments      *app.Service
	verification  *app.VerificationService
	webhookSecret string
}

// NewPaymentHandlers creates a new instance of PaymentHandlers. webhookSecret
// may be empty, in which case webhook signatures are not enforced.
func NewPaymentHandlers(payments *app.Service, verification *app.VerificationService, webhookSecret string) *PaymentHandlers {
	return &PaymentHandlers{
		payments:      payments,
		verification:  verification,
		webhookSecret: webhookSecret,
	}
}

func (h *PaymentHandlers) authenticatedUserID(r *http.Request, w http.ResponseWriter) (uuid.UUID, bool) {
	userIDStr, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		log.Printf("level=warn component=api outcome=reject reason=invalid_user_id subject=%s", userIDStr)
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

// SendVerificationCodeHandler issues a one-time code to a phone number.
func (h *PaymentHandlers) SendVerificationCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.SendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=send_code outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.verification.SendCode(r.Context(), req.Phone, req.Channel)
	if err != nil {
		var cooldown *app.ErrResendCooldown
		switch {
		case errors.As(err, &cooldown):
			h.writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"error":                "A code was sent recently. Please wait before requesting another.",
				"next_allowed_send_at": cooldown.NextAllowedSendAt,
			})
		case errors.Is(err, app.ErrInvalidPhoneNumber), errors.Is(err, app.ErrUnsupportedChannel):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrCodeDelivery):
			log.Printf("level=error component=api endpoint=send_code outcome=failed reason=delivery err=%v", err)
			h.writeError(w, http.StatusBadGateway, "Could not deliver the verification code. Please try again.")
		default:
			log.Printf("level=error component=api endpoint=send_code outcome=failed err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// VerifyCodeHandler validates a submitted one-time code.
func (h *PaymentHandlers) VerifyCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=verify_code outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.verification.VerifyCode(r.Context(), req.Phone, req.Code); err != nil {
		switch {
		case errors.Is(err, app.ErrCodeInvalidOrExpired):
			h.writeError(w, http.StatusUnauthorized, "Verification code is invalid or has expired.")
		case errors.Is(err, app.ErrInvalidPhoneNumber):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("level=error component=api endpoint=verify_code outcome=failed err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// InitiateDepositHandler starts a mobile-money deposit for the authenticated user.
func (h *PaymentHandlers) InitiateDepositHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(r, w)
	if !ok {
		return
	}

	var req domain.InitiateDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=initiate_deposit outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	log.Printf("level=info component=api endpoint=initiate_deposit outcome=accepted user_id=%s amount=%d plan_id=%s", userID, req.Amount, req.PlanID)

	resp, err := h.payments.InitiateDeposit(r.Context(), userID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=initiate_deposit outcome=failed user_id=%s err=%v", userID, err)
		switch {
		case errors.Is(err, app.ErrInvalidAmount),
			errors.Is(err, app.ErrInvalidPhoneNumber),
			errors.Is(err, app.ErrUnknownCorrespondent),
			errors.Is(err, app.ErrMissingPlan):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrPlanNotFound):
			h.writeError(w, http.StatusNotFound, "Subscription plan not found")
		case errors.Is(err, app.ErrDepositSubmission):
			h.writeError(w, http.StatusBadGateway, "The payment processor could not accept the deposit. Please try again.")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, resp)
}

// GetDepositStatusHandler returns the current status of one deposit. With
// ?refresh=true a non-terminal record is re-checked against the processor first.
func (h *PaymentHandlers) GetDepositStatusHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticatedUserID(r, w); !ok {
		return
	}

	depositID := strings.TrimSpace(chi.URLParam(r, "depositID"))
	if depositID == "" {
		h.writeError(w, http.StatusBadRequest, "Deposit ID is required")
		return
	}

	refresh := strings.EqualFold(r.URL.Query().Get("refresh"), "true")

	resp, err := h.payments.CheckDepositStatus(r.Context(), depositID, refresh)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			h.writeError(w, http.StatusNotFound, "Deposit not found")
			return
		}
		log.Printf("level=error component=api endpoint=deposit_status outcome=failed deposit_id=%s err=%v", depositID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// ListDepositsHandler returns the authenticated user's deposit history.
func (h *PaymentHandlers) ListDepositsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(r, w)
	if !ok {
		return
	}

	limit, err := parseOptionalInt(r.URL.Query().Get("limit"), 20)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	offset, err := parseOptionalInt(r.URL.Query().Get("offset"), 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	deposits, err := h.payments.ListDeposits(r.Context(), userID, limit, offset)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_deposits outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, deposits)
}

func parseOptionalInt(raw string, defaultValue int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, errors.New("must be >= 0")
	}
	return value, nil
}

// writeJSON is a helper for writing JSON responses.
func (h *PaymentHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *PaymentHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
