package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dulu/payments-service/internal/domain"
	"github.com/dulu/payments-service/internal/store"
)

type fakeCodeSender struct {
	err       error
	sentTo    []string
	sentCodes []string
}

func (f *fakeCodeSender) SendCodeTemplate(ctx context.Context, toE164, code string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sentTo = append(f.sentTo, toE164)
	f.sentCodes = append(f.sentCodes, code)
	return "wamid.test", nil
}

// memoryVerificationRepo reproduces the SQL semantics of the verification
// queries in memory so engine-level scenarios can run end to end.
type memoryVerificationRepo struct {
	store.Repository

	mu    sync.Mutex
	codes []domain.VerificationCode
}

func (m *memoryVerificationRepo) CreateVerificationCode(ctx context.Context, code *domain.VerificationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, *code)
	return nil
}

func (m *memoryVerificationRepo) FindLatestVerificationCode(ctx context.Context, phone string) (*domain.VerificationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []domain.VerificationCode
	for _, c := range m.codes {
		if c.Phone == phone {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	latest := matches[0]
	return &latest, nil
}

func (m *memoryVerificationRepo) ConsumeVerificationCode(ctx context.Context, phone, code string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// The newest unverified, unexpired row is pinned first; the submitted
	// value must then match that row. Older codes are unreachable by value.
	best := -1
	for i, c := range m.codes {
		if c.Phone != phone || c.Verified || !c.ExpiresAt.After(now) {
			continue
		}
		if best == -1 || c.CreatedAt.After(m.codes[best].CreatedAt) {
			best = i
		}
	}
	if best == -1 || m.codes[best].Code != code {
		return false, nil
	}
	m.codes[best].Verified = true
	return true, nil
}

func TestSendCode_PersistsSixDigitCodeAfterDispatch(t *testing.T) {
	repo := &memoryVerificationRepo{}
	sender := &fakeCodeSender{}
	engine := NewVerificationService(repo, sender, 15*time.Minute, 5*time.Minute)

	resp, err := engine.SendCode(context.Background(), "+237691234567", "whatsapp")
	if err != nil {
		t.Fatalf("SendCode returned error: %v", err)
	}
	if !resp.Success || resp.MessageID != "wamid.test" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if len(repo.codes) != 1 {
		t.Fatalf("expected exactly one persisted code, got %d", len(repo.codes))
	}
	code := repo.codes[0]
	if code.Verified {
		t.Error("new code must start unverified")
	}
	if len(code.Code) != 6 || !isSixDigits(code.Code) {
		t.Errorf("expected 6-digit numeric code, got %q", code.Code)
	}
	window := code.ExpiresAt.Sub(code.CreatedAt)
	if window != 15*time.Minute {
		t.Errorf("expected 15m validity window, got %s", window)
	}
	if len(sender.sentCodes) != 1 || sender.sentCodes[0] != code.Code {
		t.Error("dispatched code must match the persisted code")
	}
}

func TestSendCode_NothingPersistedWhenDispatchFails(t *testing.T) {
	repo := &memoryVerificationRepo{}
	sender := &fakeCodeSender{err: errors.New("template not approved")}
	engine := NewVerificationService(repo, sender, 15*time.Minute, 5*time.Minute)

	_, err := engine.SendCode(context.Background(), "+237691234567", "whatsapp")
	if !errors.Is(err, ErrCodeDelivery) {
		t.Fatalf("expected ErrCodeDelivery, got %v", err)
	}
	if len(repo.codes) != 0 {
		t.Fatal("no code may be persisted when dispatch fails")
	}
}

func TestSendCode_CooldownBlocksResend(t *testing.T) {
	repo := &memoryVerificationRepo{}
	sender := &fakeCodeSender{}
	engine := NewVerificationService(repo, sender, 15*time.Minute, 5*time.Minute)

	if _, err := engine.SendCode(context.Background(), "+237691234567", "whatsapp"); err != nil {
		t.Fatalf("first send failed: %v", err)
	}

	_, err := engine.SendCode(context.Background(), "+237691234567", "whatsapp")
	var cooldown *ErrResendCooldown
	if !errors.As(err, &cooldown) {
		t.Fatalf("expected ErrResendCooldown, got %v", err)
	}
	if !cooldown.NextAllowedSendAt.After(time.Now().UTC()) {
		t.Error("cooldown deadline must be in the future")
	}
	if len(repo.codes) != 1 {
		t.Fatalf("cooldown-blocked send must not persist a code, have %d", len(repo.codes))
	}
}

func TestSendCode_RejectsInvalidPhoneAndChannel(t *testing.T) {
	repo := &memoryVerificationRepo{}
	sender := &fakeCodeSender{}
	engine := NewVerificationService(repo, sender, 15*time.Minute, 5*time.Minute)

	if _, err := engine.SendCode(context.Background(), "12345", "whatsapp"); !errors.Is(err, ErrInvalidPhoneNumber) {
		t.Fatalf("expected ErrInvalidPhoneNumber, got %v", err)
	}
	if _, err := engine.SendCode(context.Background(), "+237691234567", "carrier-pigeon"); !errors.Is(err, ErrUnsupportedChannel) {
		t.Fatalf("expected ErrUnsupportedChannel, got %v", err)
	}
	if len(sender.sentTo) != 0 {
		t.Fatal("validation failures must not reach the messaging channel")
	}
}

// Mirrors the full client journey: send, fail a wrong guess, verify, and
// confirm the code cannot be consumed a second time.
func TestVerificationScenario_SingleUseLifecycle(t *testing.T) {
	repo := &memoryVerificationRepo{}
	sender := &fakeCodeSender{}
	engine := NewVerificationService(repo, sender, 15*time.Minute, 5*time.Minute)
	ctx := context.Background()
	phone := "+237691234567"

	if _, err := engine.SendCode(ctx, phone, "whatsapp"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	issued := sender.sentCodes[0]

	wrong := "000000"
	if wrong == issued {
		wrong = "000001"
	}
	if err := engine.VerifyCode(ctx, phone, wrong); !errors.Is(err, ErrCodeInvalidOrExpired) {
		t.Fatalf("wrong code must fail opaquely, got %v", err)
	}

	if err := engine.VerifyCode(ctx, phone, issued); err != nil {
		t.Fatalf("verify with issued code failed: %v", err)
	}

	if err := engine.VerifyCode(ctx, phone, issued); !errors.Is(err, ErrCodeInvalidOrExpired) {
		t.Fatalf("second verify with same code must fail, got %v", err)
	}
}

func TestVerifyCode_ExpiredCodeFailsEvenWhenValueMatches(t *testing.T) {
	repo := &memoryVerificationRepo{}
	now := time.Now().UTC()
	repo.codes = append(repo.codes, domain.VerificationCode{
		Phone:     "+237691234567",
		Code:      "123456",
		Channel:   domain.ChannelWhatsApp,
		CreatedAt: now.Add(-20 * time.Minute),
		ExpiresAt: now.Add(-5 * time.Minute),
	})
	engine := NewVerificationService(repo, &fakeCodeSender{}, 15*time.Minute, 5*time.Minute)

	err := engine.VerifyCode(context.Background(), "+237691234567", "123456")
	if !errors.Is(err, ErrCodeInvalidOrExpired) {
		t.Fatalf("expected ErrCodeInvalidOrExpired for expired code, got %v", err)
	}
}

func TestVerifyCode_NewestCodeSupersedesOlderOnes(t *testing.T) {
	repo := &memoryVerificationRepo{}
	now := time.Now().UTC()
	repo.codes = append(repo.codes,
		domain.VerificationCode{
			Phone: "+237691234567", Code: "111111", Channel: domain.ChannelWhatsApp,
			CreatedAt: now.Add(-10 * time.Minute), ExpiresAt: now.Add(5 * time.Minute),
		},
		domain.VerificationCode{
			Phone: "+237691234567", Code: "222222", Channel: domain.ChannelWhatsApp,
			CreatedAt: now.Add(-1 * time.Minute), ExpiresAt: now.Add(14 * time.Minute),
		},
	)
	engine := NewVerificationService(repo, &fakeCodeSender{}, 15*time.Minute, 5*time.Minute)

	// Issuing a new code supersedes the old one: the old code must fail even
	// though it is unverified and unexpired, and the failed attempt must not
	// consume anything.
	if err := engine.VerifyCode(context.Background(), "+237691234567", "111111"); !errors.Is(err, ErrCodeInvalidOrExpired) {
		t.Fatalf("superseded code must fail opaquely, got %v", err)
	}
	for _, c := range repo.codes {
		if c.Verified {
			t.Fatal("a rejected attempt must not consume any code")
		}
	}

	if err := engine.VerifyCode(context.Background(), "+237691234567", "222222"); err != nil {
		t.Fatalf("newest code must verify, got %v", err)
	}
}
