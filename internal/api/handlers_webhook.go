package api

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"hash"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/dulu/payments-service/internal/domain"
)

// webhookSignatureHeader carries an HMAC of the raw body. SHA-256 and the
// legacy SHA-1 digest are accepted, in hex or base64, with an optional
// "sha256="/"sha1=" prefix.
const webhookSignatureHeader = "X-Webhook-Signature"

// DepositWebhookHandler receives asynchronous deposit status callbacks from
// the payment processor. Once the payload is structurally parsed the handler
// always responds 200, even when internal reconciliation fails; failures are
// logged and the processor must not re-deliver. Correlation uses only the
// depositId carried in the payload, never any user-identifying field.
func (h *PaymentHandlers) DepositWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Printf("level=warn component=api endpoint=deposit_webhook outcome=reject reason=body_read err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	if h.webhookSecret != "" {
		signature := strings.TrimSpace(r.Header.Get(webhookSignatureHeader))
		if !validWebhookSignature(h.webhookSecret, body, signature) {
			log.Printf("level=warn component=api endpoint=deposit_webhook outcome=reject reason=bad_signature")
			h.writeError(w, http.StatusUnauthorized, "Invalid webhook signature")
			return
		}
	}

	var event domain.DepositWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=api endpoint=deposit_webhook outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	if err := h.payments.ReconcileDepositWebhook(r.Context(), event); err != nil {
		// Acknowledged regardless: a retry storm from the processor would not
		// help a reconciliation failure, and the record can still be repaired
		// through the status poll.
		log.Printf("level=error component=api endpoint=deposit_webhook outcome=reconcile_failed deposit_id=%s status=%s err=%v", event.DepositID, event.Status, err)
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func validWebhookSignature(secret string, body []byte, signature string) bool {
	provided, ok := decodeWebhookSignature(signature)
	if !ok {
		return false
	}
	for _, newHash := range []func() hash.Hash{sha256.New, sha1.New} {
		mac := hmac.New(newHash, []byte(secret))
		mac.Write(body)
		if hmac.Equal(mac.Sum(nil), provided) {
			return true
		}
	}
	return false
}

// decodeWebhookSignature accepts the digest in hex or base64, with or without
// a "sha256="/"sha1=" algorithm prefix.
func decodeWebhookSignature(signature string) ([]byte, bool) {
	s := strings.TrimSpace(signature)
	for _, prefix := range []string{"sha256=", "sha1="} {
		s = strings.TrimPrefix(s, prefix)
	}
	if s == "" {
		return nil, false
	}
	if b, err := hex.DecodeString(strings.ToLower(s)); err == nil {
		return b, true
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, true
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, true
	}
	return nil, false
}
