/**
 * @description
 * This file defines the core domain models for the payments-service. These
 * structs represent the main entities and data transfer objects (DTOs) used
 * throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Using distinct types for API requests, database models, and external service
 *   payloads ensures clear separation of concerns and type safety.
 * - Amounts are stored as `int64` XAF. The CFA franc has no minor unit, so the
 *   stored integer is the face value.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Deposit statuses form a monotonic state machine:
// pending -> processing -> completed | failed, and pending -> failed.
// Terminal statuses are never overwritten.
const (
	DepositStatusPending    = "pending"
	DepositStatusProcessing = "processing"
	DepositStatusCompleted  = "completed"
	DepositStatusFailed     = "failed"
)

// Correspondent identifiers understood by the mobile-money processor.
const (
	CorrespondentOrange = "ORANGE_CMR"
	CorrespondentMTN    = "MTN_MOMO_CMR"
)

// IsTerminalDepositStatus reports whether a status permits no further transitions.
func IsTerminalDepositStatus(status string) bool {
	return status == DepositStatusCompleted || status == DepositStatusFailed
}

// PaymentTransaction is the central ledger record for a mobile-money deposit.
// It maps directly to the `payment_transactions` table.
type PaymentTransaction struct {
	ID            uuid.UUID              `json:"id"`
	DepositID     string                 `json:"deposit_id"`
	UserID        uuid.UUID              `json:"user_id"`
	PlanID        string                 `json:"plan_id"`
	Amount        int64                  `json:"amount"` // XAF
	Currency      string                 `json:"currency"`
	Correspondent string                 `json:"correspondent"`
	PhoneNumber   string                 `json:"phone_number"`
	Status        string                 `json:"status"`
	FailureReason *string                `json:"failure_reason,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// InitiateDepositRequest is the DTO for incoming deposit-initiation API requests.
// Correspondent is optional; when empty it is derived from the payer phone number.
type InitiateDepositRequest struct {
	Amount        int64  `json:"amount"` // XAF
	PhoneNumber   string `json:"phone_number"`
	Correspondent string `json:"correspondent,omitempty"`
	PlanID        string `json:"plan_id"`
	Description   string `json:"description,omitempty"`
	IsExtension   bool   `json:"is_extension,omitempty"`
}

// InitiateDepositResponse is returned to the mobile client immediately after a
// deposit has been submitted to the processor.
type InitiateDepositResponse struct {
	DepositID     string  `json:"deposit_id"`
	Status        string  `json:"status"`
	Correspondent string  `json:"correspondent"`
	Amount        int64   `json:"amount"`
	Currency      string  `json:"currency"`
	Message       string  `json:"message"`
	FailureReason *string `json:"failure_reason,omitempty"`
}

// DepositStatusResponse is the DTO for deposit status-poll API responses.
type DepositStatusResponse struct {
	DepositID     string     `json:"deposit_id"`
	Status        string     `json:"status"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	PlanID        string     `json:"plan_id"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// SubscriptionPlan represents a purchasable plan in the `subscription_plans` table.
type SubscriptionPlan struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PriceXAF     int64  `json:"price_xaf"`
	DurationDays int    `json:"duration_days"`
}

// Subscription represents a user's subscription period.
type Subscription struct {
	ID                 uuid.UUID `json:"id"`
	UserID             uuid.UUID `json:"user_id"`
	PlanID             string    `json:"plan_id"`
	Status             string    `json:"status"` // 'active', 'expired'
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	UpdatedAt          time.Time `json:"updated_at"`
}
