/**
 * @description
 * This file contains the core business logic for the payments-service. The
 * `Service` struct orchestrates mobile-money deposits, coordinating between the
 * database repository, the pawaPay processor client, and the message broker.
 *
 * Key features:
 * - Implements deposit initiation with a durable pending record written before
 *   any external call, so a failed network call still leaves an audit trail.
 * - Derives the mobile-money correspondent from the payer phone number when
 *   the caller does not supply one.
 * - Drives the monotonic status state machine through conditional repository
 *   updates; subscription activation happens exactly once per deposit.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For deposit and row identifiers.
 * - internal/domain, internal/msisdn, internal/store: Domain models and data access.
 * - pkg/pawapay, pkg/rabbitmq: External service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dulu/payments-service/internal/domain"
	"github.com/dulu/payments-service/internal/msisdn"
	"github.com/dulu/payments-service/internal/store"
	"github.com/dulu/payments-service/pkg/pawapay"
	"github.com/dulu/payments-service/pkg/rabbitmq"
)

const defaultCurrency = "XAF"

var (
	ErrInvalidAmount        = errors.New("amount must be a positive XAF value")
	ErrInvalidPhoneNumber   = errors.New("phone number must be a valid Cameroon mobile number in E.164 form")
	ErrUnknownCorrespondent = errors.New("unknown mobile-money correspondent")
	ErrMissingPlan          = errors.New("plan id is required")
	ErrDepositSubmission    = errors.New("deposit could not be submitted to the payment processor")
)

// DepositProcessor is the subset of the pawaPay client the orchestrator needs.
// It is an interface so tests can substitute a fake processor.
type DepositProcessor interface {
	InitiateDeposit(ctx context.Context, depositID string, amount int64, correspondent, payerMSISDN, statementDescription string) (*pawapay.DepositResponse, error)
	GetDepositStatus(ctx context.Context, depositID string) (*pawapay.DepositResponse, error)
}

// Service provides the core business logic for deposits.
type Service struct {
	repo          store.Repository
	processor     DepositProcessor
	eventProducer rabbitmq.Publisher
	brandName     string
}

// NewService creates a new payments service instance. brandName prefixes
// statement descriptions when the caller provides none.
func NewService(repo store.Repository, processor DepositProcessor, producer rabbitmq.Publisher, brandName string) *Service {
	if strings.TrimSpace(brandName) == "" {
		brandName = "DULU"
	}
	return &Service{
		repo:          repo,
		processor:     processor,
		eventProducer: producer,
		brandName:     brandName,
	}
}

// InitiateDeposit drives a mobile-money deposit from validation through the
// synchronous processor response. The transaction row is written in `pending`
// before the processor is called; every outcome of the external call is
// recorded on that row.
func (s *Service) InitiateDeposit(ctx context.Context, userID uuid.UUID, req domain.InitiateDepositRequest) (*domain.InitiateDepositResponse, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !msisdn.IsValidCameroonPhone(req.PhoneNumber) {
		return nil, ErrInvalidPhoneNumber
	}
	if strings.TrimSpace(req.PlanID) == "" {
		return nil, ErrMissingPlan
	}

	plan, err := s.repo.GetPlanByID(ctx, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	correspondent := strings.TrimSpace(req.Correspondent)
	if correspondent == "" {
		// Advisory derivation from the operator prefix; callers may override.
		correspondent = msisdn.ResolveCorrespondent(req.PhoneNumber)
	} else if correspondent != domain.CorrespondentOrange && correspondent != domain.CorrespondentMTN {
		return nil, ErrUnknownCorrespondent
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = s.brandName + " " + plan.Name
		if req.IsExtension {
			description += " Extension"
		}
	}
	statement := pawapay.SanitizeStatementDescription(description)

	depositID := uuid.NewString()
	txRecord := &domain.PaymentTransaction{
		ID:            uuid.New(),
		DepositID:     depositID,
		UserID:        userID,
		PlanID:        plan.ID,
		Amount:        req.Amount,
		Currency:      defaultCurrency,
		Correspondent: correspondent,
		PhoneNumber:   req.PhoneNumber,
		Status:        domain.DepositStatusPending,
		Metadata: map[string]interface{}{
			"statement_description": statement,
			"is_extension":          req.IsExtension,
			"plan_name":             plan.Name,
			"requested_description": req.Description,
		},
	}
	if err := s.repo.CreatePaymentTransaction(ctx, txRecord); err != nil {
		return nil, fmt.Errorf("failed to create payment transaction: %w", err)
	}

	log.Printf("level=info component=payments op=initiate_deposit deposit_id=%s user_id=%s correspondent=%s amount=%d", depositID, userID, correspondent, req.Amount)

	resp, err := s.processor.InitiateDeposit(ctx,
		depositID, req.Amount, correspondent,
		msisdn.InternationalNumber(req.PhoneNumber), statement,
	)
	if err != nil {
		// The pending row is never rolled back; it is moved to failed so the
		// attempt stays visible in the audit trail.
		reason := "processor call failed"
		var apiErr *pawapay.APIError
		if errors.As(err, &apiErr) {
			reason = fmt.Sprintf("processor returned status %d", apiErr.StatusCode)
			s.appendMetadata(ctx, depositID, map[string]interface{}{
				"error":            apiErr.Body,
				"processor_status": apiErr.StatusCode,
			})
		} else {
			s.appendMetadata(ctx, depositID, map[string]interface{}{"error": err.Error()})
		}
		if _, markErr := s.repo.MarkDepositFailed(ctx, depositID, reason); markErr != nil {
			log.Printf("level=error component=payments op=initiate_deposit deposit_id=%s msg=\"failed to mark deposit failed\" err=%v", depositID, markErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrDepositSubmission, err)
	}

	s.appendMetadata(ctx, depositID, map[string]interface{}{
		"processor_response": map[string]interface{}{
			"deposit_id": resp.DepositID,
			"status":     resp.Status,
			"created":    resp.Created,
			"reason":     resp.Reason(),
		},
	})

	if err := s.applyProcessorStatus(ctx, txRecord, resp.Status, resp.Reason()); err != nil {
		log.Printf("level=error component=payments op=initiate_deposit deposit_id=%s msg=\"status apply failed\" err=%v", depositID, err)
	}

	status := normalizeProcessorStatus(resp.Status)
	if status == "" {
		status = domain.DepositStatusPending
	}
	out := &domain.InitiateDepositResponse{
		DepositID:     depositID,
		Status:        status,
		Correspondent: correspondent,
		Amount:        req.Amount,
		Currency:      defaultCurrency,
		Message:       "Deposit initiated",
	}
	if status == domain.DepositStatusFailed {
		reason := resp.Reason()
		out.Message = "Deposit rejected by processor"
		if reason != "" {
			out.FailureReason = &reason
		}
	}
	return out, nil
}

// CheckDepositStatus reports a deposit's current state. When refresh is set
// and the local record is not terminal, the processor's status endpoint is
// polled and the result applied through the same transition rules as the
// webhook path.
func (s *Service) CheckDepositStatus(ctx context.Context, depositID string, refresh bool) (*domain.DepositStatusResponse, error) {
	tx, err := s.repo.FindPaymentTransactionByDepositID(ctx, depositID)
	if err != nil {
		return nil, err
	}

	if refresh && !domain.IsTerminalDepositStatus(tx.Status) {
		resp, pollErr := s.processor.GetDepositStatus(ctx, depositID)
		if pollErr != nil {
			log.Printf("level=warn component=payments op=check_deposit_status deposit_id=%s msg=\"status poll failed; serving local state\" err=%v", depositID, pollErr)
		} else {
			if err := s.applyProcessorStatus(ctx, tx, resp.Status, resp.Reason()); err != nil {
				log.Printf("level=error component=payments op=check_deposit_status deposit_id=%s msg=\"status apply failed\" err=%v", depositID, err)
			}
			tx, err = s.repo.FindPaymentTransactionByDepositID(ctx, depositID)
			if err != nil {
				return nil, err
			}
		}
	}

	out := &domain.DepositStatusResponse{
		DepositID:     tx.DepositID,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		PlanID:        tx.PlanID,
		FailureReason: tx.FailureReason,
		CreatedAt:     tx.CreatedAt,
	}
	if tx.Status == domain.DepositStatusCompleted {
		completedAt := tx.UpdatedAt
		out.CompletedAt = &completedAt
	}
	return out, nil
}

// ListDeposits returns a user's deposit history, newest first.
func (s *Service) ListDeposits(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.PaymentTransaction, error) {
	return s.repo.ListPaymentTransactionsByUserID(ctx, userID, limit, offset)
}

// applyProcessorStatus maps a processor status onto the local state machine.
// Every transition goes through a conditional repository update, so a stale or
// duplicate report of a terminal status is a no-op.
func (s *Service) applyProcessorStatus(ctx context.Context, tx *domain.PaymentTransaction, processorStatus, reason string) error {
	switch normalizeProcessorStatus(processorStatus) {
	case domain.DepositStatusProcessing:
		_, err := s.repo.MarkDepositProcessing(ctx, tx.DepositID)
		return err
	case domain.DepositStatusCompleted:
		return s.finalizeCompleted(ctx, tx)
	case domain.DepositStatusFailed:
		return s.finalizeFailed(ctx, tx, reason)
	default:
		log.Printf("level=warn component=payments op=apply_status deposit_id=%s msg=\"unrecognized processor status ignored\" status=%q", tx.DepositID, processorStatus)
		return nil
	}
}

// finalizeCompleted marks the deposit completed and, only when this call won
// the transition, activates the subscription and publishes the lifecycle
// event. Replayed completions are acknowledged without side effects.
func (s *Service) finalizeCompleted(ctx context.Context, tx *domain.PaymentTransaction) error {
	transitioned, err := s.repo.MarkDepositCompleted(ctx, tx.DepositID)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if !transitioned {
		log.Printf("level=info component=payments op=finalize deposit_id=%s msg=\"completed replay ignored\"", tx.DepositID)
		return nil
	}

	plan, err := s.repo.GetPlanByID(ctx, tx.PlanID)
	if err != nil {
		// The money has moved; activation must not be silently dropped.
		log.Printf("level=error component=payments op=finalize deposit_id=%s msg=\"plan lookup failed after completion; manual intervention required\" plan_id=%s err=%v", tx.DepositID, tx.PlanID, err)
	} else if _, err := s.repo.ActivateSubscription(ctx, tx.UserID, plan.ID, plan.DurationDays); err != nil {
		log.Printf("level=error component=payments op=finalize deposit_id=%s msg=\"subscription activation failed; manual intervention required\" user_id=%s err=%v", tx.DepositID, tx.UserID, err)
	}

	s.publishLifecycleEvent(ctx, tx, domain.DepositStatusCompleted, "")
	return nil
}

// finalizeFailed marks the deposit failed and publishes the failure event
// when this call won the transition.
func (s *Service) finalizeFailed(ctx context.Context, tx *domain.PaymentTransaction, reason string) error {
	transitioned, err := s.repo.MarkDepositFailed(ctx, tx.DepositID, reason)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if !transitioned {
		log.Printf("level=info component=payments op=finalize deposit_id=%s msg=\"failed replay ignored\"", tx.DepositID)
		return nil
	}
	if reason != "" {
		s.appendMetadata(ctx, tx.DepositID, map[string]interface{}{"failure_reason": reason})
	}
	s.publishLifecycleEvent(ctx, tx, domain.DepositStatusFailed, reason)
	return nil
}

func (s *Service) publishLifecycleEvent(ctx context.Context, tx *domain.PaymentTransaction, status, reason string) {
	if s.eventProducer == nil {
		return
	}
	event := domain.DepositLifecycleEvent{
		DepositID:     tx.DepositID,
		UserID:        tx.UserID,
		PlanID:        tx.PlanID,
		Status:        status,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		FailureReason: reason,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.eventProducer.PublishDepositLifecycleEvent(ctx, event); err != nil {
		log.Printf("level=warn component=payments op=publish_event deposit_id=%s msg=\"lifecycle event publish failed\" err=%v", tx.DepositID, err)
	}
}

func (s *Service) appendMetadata(ctx context.Context, depositID string, patch map[string]interface{}) {
	if err := s.repo.AppendDepositMetadata(ctx, depositID, patch); err != nil {
		log.Printf("level=warn component=payments op=append_metadata deposit_id=%s err=%v", depositID, err)
	}
}

// normalizeProcessorStatus maps processor vocabulary to local statuses.
func normalizeProcessorStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case pawapay.StatusAccepted, "SUBMITTED", "ENQUEUED", "PENDING", "PROCESSING":
		return domain.DepositStatusProcessing
	case pawapay.StatusCompleted:
		return domain.DepositStatusCompleted
	case pawapay.StatusRejected, pawapay.StatusFailed:
		return domain.DepositStatusFailed
	default:
		return ""
	}
}
