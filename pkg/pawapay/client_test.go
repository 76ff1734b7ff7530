package pawapay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInitiateDeposit_BuildsWirePayload(t *testing.T) {
	var received DepositRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/deposits" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected auth header: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(DepositResponse{DepositID: received.DepositID, Status: StatusAccepted})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	resp, err := client.InitiateDeposit(context.Background(), "dep-123", 2500, "ORANGE_CMR", "237691234567", "DULU Pro (Extension)!")
	if err != nil {
		t.Fatalf("InitiateDeposit returned error: %v", err)
	}

	if resp.Status != StatusAccepted {
		t.Fatalf("expected ACCEPTED, got %q", resp.Status)
	}
	if received.Amount != "2500" {
		t.Errorf("expected amount as string 2500, got %q", received.Amount)
	}
	if received.Currency != "XAF" {
		t.Errorf("expected currency XAF, got %q", received.Currency)
	}
	if received.Payer.Type != "MSISDN" || received.Payer.Address.Value != "237691234567" {
		t.Errorf("unexpected payer: %+v", received.Payer)
	}
	if received.StatementDescription != "DULU Pro Extension" {
		t.Errorf("expected sanitized statement description, got %q", received.StatementDescription)
	}
}

func TestInitiateDeposit_NonSuccessStatusReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorMessage":"invalid correspondent"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	_, err := client.InitiateDeposit(context.Background(), "dep-456", 1000, "BOGUS", "237691234567", "DULU")
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", apiErr.StatusCode)
	}
	if apiErr.Body == "" {
		t.Error("expected error body to be preserved for audit metadata")
	}
}

func TestGetDepositStatus_DecodesArrayResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/deposits/dep-789" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`[{"depositId":"dep-789","status":"COMPLETED"}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	resp, err := client.GetDepositStatus(context.Background(), "dep-789")
	if err != nil {
		t.Fatalf("GetDepositStatus returned error: %v", err)
	}
	if resp.Status != StatusCompleted {
		t.Fatalf("expected COMPLETED, got %q", resp.Status)
	}
}

func TestDepositResponse_Reason(t *testing.T) {
	raw := `{"depositId":"d","status":"FAILED","failureReason":{"failureCode":"PAYER_LIMIT_REACHED","failureMessage":"limit reached"}}`
	var resp DepositResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := resp.Reason(); got != "PAYER_LIMIT_REACHED: limit reached" {
		t.Fatalf("unexpected reason: %q", got)
	}
}
