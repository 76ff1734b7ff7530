package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/dulu/payments-service/internal/app"
	"github.com/dulu/payments-service/internal/domain"
	"github.com/dulu/payments-service/pkg/pawapay"
)

// completedStatusProcessor reports every status poll as COMPLETED.
type completedStatusProcessor struct {
	noopProcessor

	statusCalls int
}

func (p *completedStatusProcessor) GetDepositStatus(ctx context.Context, depositID string) (*pawapay.DepositResponse, error) {
	p.statusCalls++
	return &pawapay.DepositResponse{DepositID: depositID, Status: pawapay.StatusCompleted}, nil
}

func internalReconcileRouter(repo *webhookRepoStub, processor app.DepositProcessor, internalKey string) http.Handler {
	payments := app.NewService(repo, processor, nil, "DULU")
	h := NewPaymentHandlers(payments, nil, "")
	return PaymentRoutes(h, "http://jwks.invalid", internalKey)
}

func TestInternalReconcile_RequiresAPIKey(t *testing.T) {
	router := internalReconcileRouter(&webhookRepoStub{}, noopProcessor{}, "sekret")

	req := httptest.NewRequest(http.MethodPost, "/internal/deposits/dep-1/reconcile", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key must be rejected, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/internal/deposits/dep-1/reconcile", nil)
	req.Header.Set("X-Internal-API-Key", "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key must be rejected, got %d", rec.Code)
	}
}

func TestInternalReconcile_DisabledWhenKeyUnconfigured(t *testing.T) {
	router := internalReconcileRouter(&webhookRepoStub{}, noopProcessor{}, "")

	req := httptest.NewRequest(http.MethodPost, "/internal/deposits/dep-1/reconcile", nil)
	req.Header.Set("X-Internal-API-Key", "anything")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured internal surface must be disabled, got %d", rec.Code)
	}
}

func TestInternalReconcile_RepollsAndAppliesTerminalStatus(t *testing.T) {
	repo := &webhookRepoStub{
		tx: &domain.PaymentTransaction{
			ID:        uuid.New(),
			DepositID: "dep-stuck",
			UserID:    uuid.New(),
			PlanID:    "pro-monthly",
			Amount:    2500,
			Currency:  "XAF",
			Status:    domain.DepositStatusProcessing,
		},
		completedResult: true,
	}
	processor := &completedStatusProcessor{}
	router := internalReconcileRouter(repo, processor, "sekret")

	req := httptest.NewRequest(http.MethodPost, "/internal/deposits/dep-stuck/reconcile", nil)
	req.Header.Set("X-Internal-API-Key", "sekret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if processor.statusCalls != 1 {
		t.Fatalf("expected one processor status poll, got %d", processor.statusCalls)
	}
	if repo.completedCalls != 1 {
		t.Fatalf("poll result must drive the completed transition, got %d calls", repo.completedCalls)
	}
	if repo.activationCount != 1 {
		t.Fatalf("a won completed transition must activate, got %d", repo.activationCount)
	}
}

func TestInternalReconcile_UnknownDepositIs404(t *testing.T) {
	router := internalReconcileRouter(&webhookRepoStub{}, noopProcessor{}, "sekret")

	req := httptest.NewRequest(http.MethodPost, "/internal/deposits/never-issued/reconcile", nil)
	req.Header.Set("X-Internal-API-Key", "sekret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown deposit, got %d", rec.Code)
	}
}
