/**
 * @description
 * The verification engine: issues one-time codes over WhatsApp, persists them
 * with a fixed expiry window, and validates submitted codes with single-use
 * semantics.
 *
 * Key invariants:
 * - A code row is persisted only after the messaging channel accepted the
 *   dispatch, so a code that was never delivered can never validate.
 * - Verification is one atomic conditional update in the repository; a code
 *   validates at most once even under concurrent verify attempts.
 * - The resend cooldown is enforced server-side from the stored creation
 *   timestamp, not left to client countdown UI.
 */

package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dulu/payments-service/internal/domain"
	"github.com/dulu/payments-service/internal/msisdn"
	"github.com/dulu/payments-service/internal/store"
)

var (
	ErrUnsupportedChannel = errors.New("unsupported verification channel")
	ErrCodeDelivery       = errors.New("verification code could not be delivered")
	// ErrCodeInvalidOrExpired deliberately collapses wrong, expired and
	// already-consumed codes into one opaque failure so responses do not aid
	// brute-force enumeration.
	ErrCodeInvalidOrExpired = errors.New("verification code is invalid or has expired")
)

// ErrResendCooldown is returned when a new send is requested before the
// cooldown since the previous send has elapsed.
type ErrResendCooldown struct {
	NextAllowedSendAt time.Time
}

func (e *ErrResendCooldown) Error() string {
	return fmt.Sprintf("please wait until %s before requesting a new code", e.NextAllowedSendAt.UTC().Format(time.RFC3339))
}

// CodeSender dispatches a one-time code over the messaging channel. It is an
// interface so tests can substitute a fake channel.
type CodeSender interface {
	SendCodeTemplate(ctx context.Context, toE164, code string) (string, error)
}

// SendRateLimiter caps sends per subject across instances. Implemented by
// RedisSendRateLimiter; nil disables the distributed limit.
type SendRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error)
}

// VerificationService issues and validates one-time codes.
type VerificationService struct {
	repo           store.Repository
	sender         CodeSender
	codeExpiry     time.Duration
	resendCooldown time.Duration

	rateLimiter      SendRateLimiter
	sendLimitPerHour int
}

// NewVerificationService creates a verification engine. codeExpiry is the
// authoritative validity window; resendCooldown gates how often a phone may
// request a new code.
func NewVerificationService(repo store.Repository, sender CodeSender, codeExpiry, resendCooldown time.Duration) *VerificationService {
	if codeExpiry <= 0 {
		codeExpiry = 15 * time.Minute
	}
	if resendCooldown <= 0 {
		resendCooldown = 5 * time.Minute
	}
	return &VerificationService{
		repo:           repo,
		sender:         sender,
		codeExpiry:     codeExpiry,
		resendCooldown: resendCooldown,
	}
}

// SetSendRateLimiter enables the distributed per-phone send cap.
func (v *VerificationService) SetSendRateLimiter(limiter SendRateLimiter, limitPerHour int) {
	v.rateLimiter = limiter
	v.sendLimitPerHour = limitPerHour
}

// SendCode generates a 6-digit code, dispatches it over the channel, and
// persists it with the configured expiry. The cooldown applies to the most
// recent code for the phone regardless of its state.
func (v *VerificationService) SendCode(ctx context.Context, phone, channel string) (*domain.SendCodeResponse, error) {
	phone = strings.TrimSpace(phone)
	if !msisdn.IsValidCameroonPhone(phone) {
		return nil, ErrInvalidPhoneNumber
	}
	if channel == "" {
		channel = domain.ChannelWhatsApp
	}
	if channel != domain.ChannelWhatsApp {
		return nil, ErrUnsupportedChannel
	}

	now := time.Now().UTC()

	latest, err := v.repo.FindLatestVerificationCode(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to check previous code: %w", err)
	}
	if latest != nil {
		nextAllowed := latest.CreatedAt.Add(v.resendCooldown)
		if now.Before(nextAllowed) {
			return nil, &ErrResendCooldown{NextAllowedSendAt: nextAllowed}
		}
	}

	if v.rateLimiter != nil && v.sendLimitPerHour > 0 {
		count, retryAfter, limitErr := v.rateLimiter.ConsumeRateLimit(ctx, "verification_send", phone, v.sendLimitPerHour, time.Hour)
		if limitErr != nil {
			// The DB cooldown still holds; a limiter outage must not block sends.
			log.Printf("level=warn component=verification op=send_code msg=\"rate limiter unavailable\" err=%v", limitErr)
		} else if count > v.sendLimitPerHour {
			return nil, &ErrResendCooldown{NextAllowedSendAt: now.Add(time.Duration(retryAfter) * time.Second)}
		}
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	// Dispatch before persisting: a code that was never delivered must never
	// be able to validate later.
	messageID, err := v.sender.SendCodeTemplate(ctx, phone, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodeDelivery, err)
	}

	record := &domain.VerificationCode{
		ID:        uuid.New(),
		Phone:     phone,
		Code:      code,
		Channel:   channel,
		CreatedAt: now,
		ExpiresAt: now.Add(v.codeExpiry),
	}
	if err := v.repo.CreateVerificationCode(ctx, record); err != nil {
		// Delivered but unrecorded: the code can never validate. Surfacing the
		// error lets the caller retry after the cooldown.
		log.Printf("level=error component=verification op=send_code phone=%s msg=\"code dispatched but persistence failed\" err=%v", phone, err)
		return nil, fmt.Errorf("failed to persist verification code: %w", err)
	}

	log.Printf("level=info component=verification op=send_code phone=%s channel=%s message_id=%s expires_at=%s", phone, channel, messageID, record.ExpiresAt.Format(time.RFC3339))

	return &domain.SendCodeResponse{
		Success:           true,
		MessageID:         messageID,
		ExpiresAt:         record.ExpiresAt,
		NextAllowedSendAt: now.Add(v.resendCooldown),
	}, nil
}

// VerifyCode consumes the most recent matching, unexpired, unverified code for
// the phone. All failure modes collapse into ErrCodeInvalidOrExpired.
func (v *VerificationService) VerifyCode(ctx context.Context, phone, code string) error {
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)
	if !msisdn.IsValidCameroonPhone(phone) {
		return ErrInvalidPhoneNumber
	}
	if !isSixDigits(code) {
		return ErrCodeInvalidOrExpired
	}

	consumed, err := v.repo.ConsumeVerificationCode(ctx, phone, code, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to verify code: %w", err)
	}
	if !consumed {
		return ErrCodeInvalidOrExpired
	}
	return nil
}

// generateCode draws a uniformly random 6-digit code from crypto/rand.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func isSixDigits(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
