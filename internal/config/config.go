/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the payments-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`

	PawaPayAPIBaseURL    string `mapstructure:"PAWAPAY_API_BASE_URL"`
	PawaPayAPIToken      string `mapstructure:"PAWAPAY_API_TOKEN"`
	PawaPayWebhookSecret string `mapstructure:"PAWAPAY_WEBHOOK_SECRET"`

	WhatsAppAPIBaseURL    string `mapstructure:"WHATSAPP_API_BASE_URL"`
	WhatsAppPhoneNumberID string `mapstructure:"WHATSAPP_PHONE_NUMBER_ID"`
	WhatsAppAccessToken   string `mapstructure:"WHATSAPP_ACCESS_TOKEN"`
	WhatsAppTemplateName  string `mapstructure:"WHATSAPP_TEMPLATE_NAME"`
	WhatsAppTemplateLang  string `mapstructure:"WHATSAPP_TEMPLATE_LANG"`

	JWKSURL        string `mapstructure:"JWKS_URL"`
	InternalAPIKey string `mapstructure:"INTERNAL_API_KEY"`
	BrandName      string `mapstructure:"BRAND_NAME"`

	OTPExpiryMinutes         int `mapstructure:"OTP_EXPIRY_MINUTES"`
	OTPResendCooldownSeconds int `mapstructure:"OTP_RESEND_COOLDOWN_SECONDS"`
	OTPSendLimitPerHour      int `mapstructure:"OTP_SEND_LIMIT_PER_HOUR"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "dulu:rate_limit")
	viper.SetDefault("PAWAPAY_API_BASE_URL", "https://api.pawapay.cloud")
	viper.SetDefault("WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v19.0")
	viper.SetDefault("WHATSAPP_TEMPLATE_NAME", "verification_code")
	viper.SetDefault("WHATSAPP_TEMPLATE_LANG", "fr")
	viper.SetDefault("BRAND_NAME", "DULU")
	viper.SetDefault("OTP_EXPIRY_MINUTES", 15)
	viper.SetDefault("OTP_RESEND_COOLDOWN_SECONDS", 300)
	viper.SetDefault("OTP_SEND_LIMIT_PER_HOUR", 5)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PAWAPAY_API_BASE_URL")
	_ = viper.BindEnv("PAWAPAY_API_TOKEN")
	_ = viper.BindEnv("PAWAPAY_WEBHOOK_SECRET")
	_ = viper.BindEnv("WHATSAPP_API_BASE_URL")
	_ = viper.BindEnv("WHATSAPP_PHONE_NUMBER_ID")
	_ = viper.BindEnv("WHATSAPP_ACCESS_TOKEN")
	_ = viper.BindEnv("WHATSAPP_TEMPLATE_NAME")
	_ = viper.BindEnv("WHATSAPP_TEMPLATE_LANG")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("BRAND_NAME")
	_ = viper.BindEnv("OTP_EXPIRY_MINUTES")
	_ = viper.BindEnv("OTP_RESEND_COOLDOWN_SECONDS")
	_ = viper.BindEnv("OTP_SEND_LIMIT_PER_HOUR")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	// Platform-provided PORT (Render, Railway) wins over SERVER_PORT.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "dulu:rate_limit"
	}
	config.BrandName = strings.TrimSpace(config.BrandName)
	if config.BrandName == "" {
		config.BrandName = "DULU"
	}

	if config.OTPExpiryMinutes <= 0 {
		config.OTPExpiryMinutes = 15
	}
	if config.OTPResendCooldownSeconds <= 0 {
		config.OTPResendCooldownSeconds = 300
	}
	if config.OTPSendLimitPerHour < 0 {
		config.OTPSendLimitPerHour = 0
	}

	return
}
