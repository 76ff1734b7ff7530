/**
 * @description
 * Webhook reconciliation for deposits. The processor posts a callback whenever
 * a deposit changes state; this file matches the callback to the locally
 * tracked transaction by depositId and applies the status through the same
 * monotonic transition rules as the rest of the orchestrator.
 */

package app

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/dulu/payments-service/internal/domain"
	"github.com/dulu/payments-service/internal/store"
)

// ReconcileDepositWebhook applies an asynchronous processor callback to the
// tracked transaction. A nil return means the webhook can be acknowledged;
// reconciliation problems that warrant a processor retry return an error,
// although the HTTP layer acknowledges regardless once the payload parsed
// (internal failures are logged, not surfaced to the processor).
//
// Correlation uses only the event's deposit identifiers (depositId, or the
// externalId/paymentId aliases some callback flavors carry instead).
// User-identifying fields echoed by the processor are never trusted, so a
// forged or stale callback cannot mutate another user's record.
func (s *Service) ReconcileDepositWebhook(ctx context.Context, event domain.DepositWebhookEvent) error {
	depositID := strings.TrimSpace(event.CorrelationID())
	if depositID == "" {
		log.Printf("level=warn component=payments op=webhook msg=\"callback missing deposit identifier; ignored\"")
		return nil
	}

	tx, err := s.repo.FindPaymentTransactionByDepositID(ctx, depositID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			// Unknown deposit: log and acknowledge so the processor stops retrying.
			log.Printf("level=warn component=payments op=webhook deposit_id=%s msg=\"callback references unknown deposit; ignored\"", depositID)
			return nil
		}
		return err
	}

	log.Printf("level=info component=payments op=webhook deposit_id=%s status=%s", depositID, event.Status)

	return s.applyProcessorStatus(ctx, tx, event.Status, event.FailureReason)
}
