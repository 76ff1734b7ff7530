package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_PlatformPortOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "10000")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "10000" {
		t.Fatalf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_OTPDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "OTP_EXPIRY_MINUTES")
	unsetEnvWithCleanup(t, "OTP_RESEND_COOLDOWN_SECONDS")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.OTPExpiryMinutes != 15 {
		t.Fatalf("expected 15 minute default expiry, got %d", cfg.OTPExpiryMinutes)
	}
	if cfg.OTPResendCooldownSeconds != 300 {
		t.Fatalf("expected 300 second default cooldown, got %d", cfg.OTPResendCooldownSeconds)
	}
}

func TestLoadConfig_InvalidOTPWindowsFallBackToDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "OTP_EXPIRY_MINUTES", "-3")
	setEnvWithCleanup(t, "OTP_RESEND_COOLDOWN_SECONDS", "0")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.OTPExpiryMinutes != 15 {
		t.Fatalf("expected coercion to 15 minutes, got %d", cfg.OTPExpiryMinutes)
	}
	if cfg.OTPResendCooldownSeconds != 300 {
		t.Fatalf("expected coercion to 300 seconds, got %d", cfg.OTPResendCooldownSeconds)
	}
}

func TestLoadConfig_BrandNameDefault(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "BRAND_NAME")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.BrandName != "DULU" {
		t.Fatalf("expected default brand name, got %q", cfg.BrandName)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
		}
	})
}
