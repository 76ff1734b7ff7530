/**
 * @description
 * Webhook payloads received from the mobile-money processor and internal
 * events published to RabbitMQ for downstream consumers.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// DepositWebhookEvent is the callback payload the processor posts when a
// deposit changes state. Processor payloads name the merchant-side id either
// depositId or externalId depending on the callback flavor, with paymentId as
// the processor-side id. Correlation uses only these ids; no user-identifying
// field echoed by the processor is trusted.
type DepositWebhookEvent struct {
	DepositID     string `json:"depositId"`
	ExternalID    string `json:"externalId,omitempty"`
	PaymentID     string `json:"paymentId,omitempty"`
	Status        string `json:"status"`
	Amount        string `json:"amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
	Correspondent string `json:"correspondent,omitempty"`
	FailureReason string `json:"failureReason,omitempty"`
	Created       string `json:"created,omitempty"`
}

// CorrelationID returns the merchant-side deposit id regardless of which
// field the callback flavor carried it in.
func (e DepositWebhookEvent) CorrelationID() string {
	if e.DepositID != "" {
		return e.DepositID
	}
	if e.ExternalID != "" {
		return e.ExternalID
	}
	return e.PaymentID
}

// DepositLifecycleEvent is published to RabbitMQ when a deposit reaches a
// terminal state, so the notification pipeline can inform the user without
// this service owning message delivery.
type DepositLifecycleEvent struct {
	DepositID     string    `json:"deposit_id"`
	UserID        uuid.UUID `json:"user_id"`
	PlanID        string    `json:"plan_id"`
	Status        string    `json:"status"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	FailureReason string    `json:"failure_reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
