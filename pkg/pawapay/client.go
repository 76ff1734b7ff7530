/**
 * @description
 * This package provides a client for the pawaPay mobile-money deposits API.
 * It encapsulates the logic for making authenticated HTTP requests to the
 * processor's endpoints, building request payloads, and parsing responses.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package pawapay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

// Deposit statuses returned by the processor.
const (
	StatusAccepted  = "ACCEPTED"
	StatusRejected  = "REJECTED"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Client is a client for the pawaPay API.
type Client struct {
	BaseURL    string
	APIToken   string
	HTTPClient *http.Client
}

// NewClient creates a new pawaPay API client.
func NewClient(baseURL, apiToken string) *Client {
	return &Client{
		BaseURL:  baseURL,
		APIToken: apiToken,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// DepositRequest is the payload for initiating a deposit.
type DepositRequest struct {
	DepositID            string `json:"depositId"`
	Amount               string `json:"amount"`
	Currency             string `json:"currency"`
	Correspondent        string `json:"correspondent"`
	Payer                Payer  `json:"payer"`
	CustomerTimestamp    string `json:"customerTimestamp"`
	StatementDescription string `json:"statementDescription"`
}

// Payer identifies the paying mobile-money wallet by MSISDN.
type Payer struct {
	Type    string       `json:"type"`
	Address PayerAddress `json:"address"`
}

// PayerAddress holds the phone number without the leading plus.
type PayerAddress struct {
	Value string `json:"value"`
}

// DepositResponse is the response shape shared by the initiation and status endpoints.
type DepositResponse struct {
	DepositID       string `json:"depositId"`
	Status          string `json:"status"`
	Created         string `json:"created,omitempty"`
	RejectionReason *struct {
		RejectionCode    string `json:"rejectionCode"`
		RejectionMessage string `json:"rejectionMessage"`
	} `json:"rejectionReason,omitempty"`
	FailureReason *struct {
		FailureCode    string `json:"failureCode"`
		FailureMessage string `json:"failureMessage"`
	} `json:"failureReason,omitempty"`
}

// Reason flattens whichever rejection or failure detail the processor included.
func (r *DepositResponse) Reason() string {
	if r.RejectionReason != nil {
		return fmt.Sprintf("%s: %s", r.RejectionReason.RejectionCode, r.RejectionReason.RejectionMessage)
	}
	if r.FailureReason != nil {
		return fmt.Sprintf("%s: %s", r.FailureReason.FailureCode, r.FailureReason.FailureMessage)
	}
	return ""
}

// APIError represents a non-2xx response from the pawaPay API. The raw body is
// preserved so the orchestrator can record it in the transaction's audit metadata.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pawapay api error: status %d: %s", e.StatusCode, e.Body)
}

// InitiateDeposit submits a deposit to the processor. Amount is formatted as a
// string per the wire contract; XAF has no minor unit.
func (c *Client) InitiateDeposit(ctx context.Context, depositID string, amount int64, correspondent, payerMSISDN, statementDescription string) (*DepositResponse, error) {
	payload := DepositRequest{
		DepositID:            depositID,
		Amount:               strconv.FormatInt(amount, 10),
		Currency:             "XAF",
		Correspondent:        correspondent,
		Payer:                Payer{Type: "MSISDN", Address: PayerAddress{Value: payerMSISDN}},
		CustomerTimestamp:    time.Now().UTC().Format(time.RFC3339),
		StatementDescription: SanitizeStatementDescription(statementDescription),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal deposit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/deposits", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create deposit request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute deposit request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read deposit response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=pawapay_client op=initiate_deposit deposit_id=%s status=%d", depositID, resp.StatusCode)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var depositResp DepositResponse
	if err := json.Unmarshal(bodyBytes, &depositResp); err != nil {
		return nil, fmt.Errorf("failed to decode deposit response: %w", err)
	}
	return &depositResp, nil
}

// GetDepositStatus fetches the current state of a deposit. The processor
// returns a single-element array from this endpoint; a bare object is
// tolerated for forward compatibility.
func (c *Client) GetDepositStatus(ctx context.Context, depositID string) (*DepositResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/deposits/"+depositID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute status request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=pawapay_client op=get_deposit_status deposit_id=%s status=%d", depositID, resp.StatusCode)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var list []DepositResponse
	if err := json.Unmarshal(bodyBytes, &list); err == nil {
		if len(list) == 0 {
			return nil, fmt.Errorf("deposit %s not found at processor", depositID)
		}
		return &list[0], nil
	}

	var single DepositResponse
	if err := json.Unmarshal(bodyBytes, &single); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &single, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
}
