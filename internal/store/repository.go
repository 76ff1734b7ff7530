/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for
 * all data access operations required by the payments-service. By defining an
 * interface, we decouple the application's business logic from the specific
 * database implementation (PostgreSQL), making the code more modular and easier
 * to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dulu/payments-service/internal/domain"
)

var (
	ErrTransactionNotFound = errors.New("payment transaction not found")
	ErrPlanNotFound        = errors.New("subscription plan not found")
	ErrDuplicateDepositID  = errors.New("deposit id already exists")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Verification code methods.
	CreateVerificationCode(ctx context.Context, code *domain.VerificationCode) error
	// FindLatestVerificationCode returns the most recent code for the phone
	// regardless of state, or nil when none exists. Used for the server-side
	// resend cooldown.
	FindLatestVerificationCode(ctx context.Context, phone string) (*domain.VerificationCode, error)
	// ConsumeVerificationCode atomically marks the most recent matching,
	// unverified, unexpired code as verified. Returns false when no such code
	// exists; a code already consumed by a concurrent call also yields false.
	ConsumeVerificationCode(ctx context.Context, phone, code string, now time.Time) (bool, error)

	// Payment transaction methods.
	CreatePaymentTransaction(ctx context.Context, tx *domain.PaymentTransaction) error
	FindPaymentTransactionByDepositID(ctx context.Context, depositID string) (*domain.PaymentTransaction, error)
	ListPaymentTransactionsByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.PaymentTransaction, error)
	// Status transitions are conditional updates guarded on the current status
	// so that terminal states stay immutable and replayed webhooks become
	// idempotent no-ops. Each returns whether the transition happened.
	MarkDepositProcessing(ctx context.Context, depositID string) (bool, error)
	MarkDepositCompleted(ctx context.Context, depositID string) (bool, error)
	MarkDepositFailed(ctx context.Context, depositID, failureReason string) (bool, error)
	// AppendDepositMetadata merges the patch into the transaction's metadata
	// audit blob without touching status.
	AppendDepositMetadata(ctx context.Context, depositID string, patch map[string]interface{}) error

	// Subscription methods.
	GetPlanByID(ctx context.Context, planID string) (*domain.SubscriptionPlan, error)
	// ActivateSubscription starts or extends the user's subscription period by
	// the plan's duration, anchored on the later of now and the current period
	// end so an extension never loses remaining time.
	ActivateSubscription(ctx context.Context, userID uuid.UUID, planID string, durationDays int) (*domain.Subscription, error)
}
