package app

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/dulu/payments-service/internal/domain"
)

func processingTransaction(repo *depositRepoStub) *domain.PaymentTransaction {
	tx := &domain.PaymentTransaction{
		ID:            uuid.New(),
		DepositID:     uuid.NewString(),
		UserID:        uuid.New(),
		PlanID:        "pro-monthly",
		Amount:        2500,
		Currency:      "XAF",
		Correspondent: domain.CorrespondentOrange,
		PhoneNumber:   "+237691234567",
		Status:        domain.DepositStatusProcessing,
	}
	repo.created = tx
	return tx
}

func TestReconcile_CompletedActivatesSubscriptionExactlyOnce(t *testing.T) {
	repo := newDepositRepoStub()
	tx := processingTransaction(repo)
	publisher := &publisherSpy{}
	svc := NewService(repo, &fakeProcessor{}, publisher, "DULU")

	event := domain.DepositWebhookEvent{DepositID: tx.DepositID, Status: "COMPLETED"}

	if err := svc.ReconcileDepositWebhook(context.Background(), event); err != nil {
		t.Fatalf("first delivery returned error: %v", err)
	}

	// Second delivery of the same webhook: the conditional update reports no
	// transition, so activation and publishing must not run again.
	repo.completedResult = false
	if err := svc.ReconcileDepositWebhook(context.Background(), event); err != nil {
		t.Fatalf("duplicate delivery returned error: %v", err)
	}

	if repo.activationCount != 1 {
		t.Fatalf("expected exactly one activation side effect, got %d", repo.activationCount)
	}
	if repo.activatedPlanID != "pro-monthly" {
		t.Fatalf("activation must use the transaction's plan, got %q", repo.activatedPlanID)
	}
	if len(publisher.events) != 1 || publisher.events[0].Status != domain.DepositStatusCompleted {
		t.Fatalf("expected exactly one completed lifecycle event, got %v", publisher.events)
	}
}

func TestReconcile_FailedPublishesFailureWithReason(t *testing.T) {
	repo := newDepositRepoStub()
	tx := processingTransaction(repo)
	publisher := &publisherSpy{}
	svc := NewService(repo, &fakeProcessor{}, publisher, "DULU")

	err := svc.ReconcileDepositWebhook(context.Background(), domain.DepositWebhookEvent{
		DepositID:     tx.DepositID,
		Status:        "FAILED",
		FailureReason: "PAYER_LIMIT_REACHED",
	})
	if err != nil {
		t.Fatalf("ReconcileDepositWebhook returned error: %v", err)
	}

	if len(repo.processed) != 1 || repo.processed[0] != "failed" {
		t.Fatalf("expected failed transition, got %v", repo.processed)
	}
	if repo.activationCount != 0 {
		t.Fatal("failed deposits must not activate subscriptions")
	}
	if len(publisher.events) != 1 || publisher.events[0].FailureReason != "PAYER_LIMIT_REACHED" {
		t.Fatalf("expected failure event carrying the reason, got %v", publisher.events)
	}
}

func TestReconcile_ProcessingUpdatesStatusOnly(t *testing.T) {
	repo := newDepositRepoStub()
	tx := processingTransaction(repo)
	tx.Status = domain.DepositStatusPending
	publisher := &publisherSpy{}
	svc := NewService(repo, &fakeProcessor{}, publisher, "DULU")

	err := svc.ReconcileDepositWebhook(context.Background(), domain.DepositWebhookEvent{
		DepositID: tx.DepositID,
		Status:    "ACCEPTED",
	})
	if err != nil {
		t.Fatalf("ReconcileDepositWebhook returned error: %v", err)
	}

	if len(repo.processed) != 1 || repo.processed[0] != "processing" {
		t.Fatalf("expected processing transition only, got %v", repo.processed)
	}
	if repo.activationCount != 0 || len(publisher.events) != 0 {
		t.Fatal("non-terminal webhook must not trigger terminal side effects")
	}
}

func TestReconcile_UnknownDepositIsAcknowledged(t *testing.T) {
	repo := newDepositRepoStub()
	svc := NewService(repo, &fakeProcessor{}, &publisherSpy{}, "DULU")

	err := svc.ReconcileDepositWebhook(context.Background(), domain.DepositWebhookEvent{
		DepositID: "never-issued",
		Status:    "COMPLETED",
	})
	if err != nil {
		t.Fatalf("unknown deposit must be acknowledged, got %v", err)
	}
	if len(repo.processed) != 0 {
		t.Fatalf("unknown deposit must not mutate state, got %v", repo.processed)
	}
}

func TestReconcile_UnrecognizedStatusIsLoggedAndIgnored(t *testing.T) {
	repo := newDepositRepoStub()
	tx := processingTransaction(repo)
	svc := NewService(repo, &fakeProcessor{}, &publisherSpy{}, "DULU")

	err := svc.ReconcileDepositWebhook(context.Background(), domain.DepositWebhookEvent{
		DepositID: tx.DepositID,
		Status:    "DUPLICATE_IGNORED",
	})
	if err != nil {
		t.Fatalf("unrecognized status must not error, got %v", err)
	}
	if len(repo.processed) != 0 {
		t.Fatalf("unrecognized status must not mutate state, got %v", repo.processed)
	}
}

func TestReconcile_ExternalIDAliasCorrelates(t *testing.T) {
	repo := newDepositRepoStub()
	tx := processingTransaction(repo)
	publisher := &publisherSpy{}
	svc := NewService(repo, &fakeProcessor{}, publisher, "DULU")

	// Some callback flavors carry the merchant-side id as externalId with a
	// processor-side paymentId alongside, and no depositId field at all.
	err := svc.ReconcileDepositWebhook(context.Background(), domain.DepositWebhookEvent{
		PaymentID:  "proc-55001",
		ExternalID: tx.DepositID,
		Status:     "COMPLETED",
	})
	if err != nil {
		t.Fatalf("ReconcileDepositWebhook returned error: %v", err)
	}

	if repo.activationCount != 1 {
		t.Fatalf("externalId-correlated completion must activate, got %d activations", repo.activationCount)
	}
	if len(publisher.events) != 1 || publisher.events[0].DepositID != tx.DepositID {
		t.Fatalf("lifecycle event must carry the merchant deposit id, got %v", publisher.events)
	}
}

func TestReconcile_MissingDepositIDIsIgnored(t *testing.T) {
	repo := newDepositRepoStub()
	svc := NewService(repo, &fakeProcessor{}, &publisherSpy{}, "DULU")

	if err := svc.ReconcileDepositWebhook(context.Background(), domain.DepositWebhookEvent{Status: "COMPLETED"}); err != nil {
		t.Fatalf("missing depositId must be ignored, got %v", err)
	}
}
