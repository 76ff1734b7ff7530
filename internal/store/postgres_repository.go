/**
 * @description
 * This file implements the `Repository` interface against PostgreSQL using the
 * pgx driver. It contains all SQL queries for verification codes, payment
 * transactions, and subscriptions.
 *
 * @notes
 * - Status transitions and code consumption are single conditional UPDATEs so
 *   concurrent webhook deliveries or verify attempts cannot apply twice.
 * - Metadata is a JSONB column merged with `||` to preserve the audit trail.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dulu/payments-service/internal/domain"
)

// PostgresRepository is the pgx-backed implementation of Repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository backed by the given pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// --- Verification codes ---

// CreateVerificationCode inserts a freshly dispatched code.
func (r *PostgresRepository) CreateVerificationCode(ctx context.Context, code *domain.VerificationCode) error {
	query := `
        INSERT INTO verification_codes (id, phone, code, channel, verified, created_at, expires_at)
        VALUES ($1, $2, $3, $4, false, $5, $6)
    `
	_, err := r.db.Exec(ctx, query,
		code.ID, code.Phone, code.Code, code.Channel, code.CreatedAt, code.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert verification code: %w", err)
	}
	return nil
}

// FindLatestVerificationCode returns the newest code row for a phone, or nil.
func (r *PostgresRepository) FindLatestVerificationCode(ctx context.Context, phone string) (*domain.VerificationCode, error) {
	query := `
        SELECT id, phone, code, channel, verified, created_at, expires_at
        FROM verification_codes
        WHERE phone = $1
        ORDER BY created_at DESC
        LIMIT 1
    `
	var vc domain.VerificationCode
	err := r.db.QueryRow(ctx, query, phone).Scan(
		&vc.ID, &vc.Phone, &vc.Code, &vc.Channel, &vc.Verified, &vc.CreatedAt, &vc.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find latest verification code: %w", err)
	}
	return &vc, nil
}

// ConsumeVerificationCode performs the verify-and-mark step in one statement.
// The inner select pins the newest unverified, unexpired row for the phone
// without looking at the submitted value, so issuing a new code makes every
// older one unreachable; the submitted value must then match that single row.
// The outer `verified = false` guard makes the update a no-op if a concurrent
// call already consumed it.
func (r *PostgresRepository) ConsumeVerificationCode(ctx context.Context, phone, code string, now time.Time) (bool, error) {
	query := `
        UPDATE verification_codes
        SET verified = true
        WHERE id = (
            SELECT id FROM verification_codes
            WHERE phone = $1 AND verified = false AND expires_at > $3
            ORDER BY created_at DESC
            LIMIT 1
        )
        AND code = $2
        AND verified = false
    `
	tag, err := r.db.Exec(ctx, query, phone, code, now)
	if err != nil {
		return false, fmt.Errorf("consume verification code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// --- Payment transactions ---

// CreatePaymentTransaction writes the initial pending deposit record.
func (r *PostgresRepository) CreatePaymentTransaction(ctx context.Context, tx *domain.PaymentTransaction) error {
	metadata, err := json.Marshal(normalizeMetadata(tx.Metadata))
	if err != nil {
		return fmt.Errorf("marshal transaction metadata: %w", err)
	}

	query := `
        INSERT INTO payment_transactions
            (id, deposit_id, user_id, plan_id, amount, currency, correspondent, phone_number, status, metadata)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	_, err = r.db.Exec(ctx, query,
		tx.ID, tx.DepositID, tx.UserID, tx.PlanID, tx.Amount, tx.Currency,
		tx.Correspondent, tx.PhoneNumber, tx.Status, metadata,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateDepositID
		}
		return fmt.Errorf("insert payment transaction: %w", err)
	}
	return nil
}

const paymentTransactionColumns = `
    id, deposit_id, user_id, plan_id, amount, currency, correspondent,
    phone_number, status, failure_reason, metadata, created_at, updated_at
`

func scanPaymentTransaction(row pgx.Row) (*domain.PaymentTransaction, error) {
	var tx domain.PaymentTransaction
	var metadata []byte
	err := row.Scan(
		&tx.ID, &tx.DepositID, &tx.UserID, &tx.PlanID, &tx.Amount, &tx.Currency,
		&tx.Correspondent, &tx.PhoneNumber, &tx.Status, &tx.FailureReason,
		&metadata, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal transaction metadata: %w", err)
		}
	}
	return &tx, nil
}

// FindPaymentTransactionByDepositID looks up a deposit by its external correlation key.
func (r *PostgresRepository) FindPaymentTransactionByDepositID(ctx context.Context, depositID string) (*domain.PaymentTransaction, error) {
	query := `SELECT ` + paymentTransactionColumns + ` FROM payment_transactions WHERE deposit_id = $1`
	tx, err := scanPaymentTransaction(r.db.QueryRow(ctx, query, depositID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("find payment transaction: %w", err)
	}
	return tx, nil
}

// ListPaymentTransactionsByUserID returns a user's deposits, newest first.
func (r *PostgresRepository) ListPaymentTransactionsByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.PaymentTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := `
        SELECT ` + paymentTransactionColumns + `
        FROM payment_transactions
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list payment transactions: %w", err)
	}
	defer rows.Close()

	var result []domain.PaymentTransaction
	for rows.Next() {
		tx, err := scanPaymentTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment transaction: %w", err)
		}
		result = append(result, *tx)
	}
	return result, rows.Err()
}

// MarkDepositProcessing moves a pending deposit to processing.
func (r *PostgresRepository) MarkDepositProcessing(ctx context.Context, depositID string) (bool, error) {
	query := `
        UPDATE payment_transactions
        SET status = $1, updated_at = now()
        WHERE deposit_id = $2 AND status = $3
    `
	tag, err := r.db.Exec(ctx, query, domain.DepositStatusProcessing, depositID, domain.DepositStatusPending)
	if err != nil {
		return false, fmt.Errorf("mark deposit processing: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkDepositCompleted finalizes a deposit. The status guard excludes terminal
// states, so a replayed COMPLETED webhook reports no transition.
func (r *PostgresRepository) MarkDepositCompleted(ctx context.Context, depositID string) (bool, error) {
	query := `
        UPDATE payment_transactions
        SET status = $1, updated_at = now()
        WHERE deposit_id = $2 AND status NOT IN ($3, $4)
    `
	tag, err := r.db.Exec(ctx, query,
		domain.DepositStatusCompleted, depositID,
		domain.DepositStatusCompleted, domain.DepositStatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("mark deposit completed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkDepositFailed finalizes a failed deposit with its reason.
func (r *PostgresRepository) MarkDepositFailed(ctx context.Context, depositID, failureReason string) (bool, error) {
	query := `
        UPDATE payment_transactions
        SET status = $1, failure_reason = NULLIF($2, ''), updated_at = now()
        WHERE deposit_id = $3 AND status NOT IN ($4, $5)
    `
	tag, err := r.db.Exec(ctx, query,
		domain.DepositStatusFailed, failureReason, depositID,
		domain.DepositStatusCompleted, domain.DepositStatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("mark deposit failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AppendDepositMetadata merges the patch into the JSONB audit blob.
func (r *PostgresRepository) AppendDepositMetadata(ctx context.Context, depositID string, patch map[string]interface{}) error {
	if len(patch) == 0 {
		return nil
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal metadata patch: %w", err)
	}
	query := `
        UPDATE payment_transactions
        SET metadata = COALESCE(metadata, '{}'::jsonb) || $1::jsonb, updated_at = now()
        WHERE deposit_id = $2
    `
	tag, err := r.db.Exec(ctx, query, body, depositID)
	if err != nil {
		return fmt.Errorf("append deposit metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// --- Subscriptions ---

// GetPlanByID fetches a purchasable subscription plan.
func (r *PostgresRepository) GetPlanByID(ctx context.Context, planID string) (*domain.SubscriptionPlan, error) {
	query := `SELECT id, name, price_xaf, duration_days FROM subscription_plans WHERE id = $1`
	var plan domain.SubscriptionPlan
	err := r.db.QueryRow(ctx, query, planID).Scan(&plan.ID, &plan.Name, &plan.PriceXAF, &plan.DurationDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &plan, nil
}

// ActivateSubscription upserts the user's subscription, extending from the
// later of now and the current period end.
func (r *PostgresRepository) ActivateSubscription(ctx context.Context, userID uuid.UUID, planID string, durationDays int) (*domain.Subscription, error) {
	query := `
        INSERT INTO subscriptions (id, user_id, plan_id, status, current_period_start, current_period_end)
        VALUES ($1, $2, $3, 'active', now(), now() + make_interval(days => $4))
        ON CONFLICT (user_id) DO UPDATE SET
            plan_id = EXCLUDED.plan_id,
            status = 'active',
            current_period_end = GREATEST(subscriptions.current_period_end, now()) + make_interval(days => $4),
            updated_at = now()
        RETURNING id, user_id, plan_id, status, current_period_start, current_period_end, updated_at
    `
	var sub domain.Subscription
	err := r.db.QueryRow(ctx, query, uuid.New(), userID, planID, durationDays).Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("activate subscription: %w", err)
	}
	return &sub, nil
}

func normalizeMetadata(metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		return map[string]interface{}{}
	}
	return metadata
}
