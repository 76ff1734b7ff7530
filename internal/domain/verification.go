/**
 * @description
 * Domain models for the phone verification engine: one-time codes delivered
 * over WhatsApp and consumed exactly once.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Verification channels. WhatsApp is the only channel in production today;
// the column is an enum so SMS can be added without a migration.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelSMS      = "sms"
)

// VerificationCode is a one-time code bound to a phone number. It maps to the
// `verification_codes` table. A row is written only after the code has been
// dispatched, and `verified` flips to true at most once.
type VerificationCode struct {
	ID        uuid.UUID `json:"id"`
	Phone     string    `json:"phone"`
	Code      string    `json:"-"`
	Channel   string    `json:"channel"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SendCodeRequest is the DTO for code-issuance API requests.
type SendCodeRequest struct {
	Phone   string `json:"phone"`
	Channel string `json:"channel,omitempty"`
}

// SendCodeResponse tells the client when the code expires and when a resend
// becomes possible, so countdown UI derives from server state instead of
// hard-coding its own window.
type SendCodeResponse struct {
	Success           bool      `json:"success"`
	MessageID         string    `json:"message_id,omitempty"`
	ExpiresAt         time.Time `json:"expires_at"`
	NextAllowedSendAt time.Time `json:"next_allowed_send_at"`
}

// VerifyCodeRequest is the DTO for code-verification API requests.
type VerifyCodeRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}
