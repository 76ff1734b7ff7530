/**
 * @description
 * This is the main entry point for the payments-service. It is responsible for
 * initializing all components of the service, including configuration, database connection,
 * external API clients, message brokers, repositories, the core application services,
 * and the HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/pawapay: Client for the pawaPay mobile-money API.
 * - pkg/whatsapp: Client for the WhatsApp Cloud API.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dulu/payments-service/internal/api"
	"github.com/dulu/payments-service/internal/app"
	"github.com/dulu/payments-service/internal/config"
	"github.com/dulu/payments-service/internal/store"
	"github.com/dulu/payments-service/pkg/pawapay"
	"github.com/dulu/payments-service/pkg/rabbitmq"
	"github.com/dulu/payments-service/pkg/whatsapp"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.PawaPayAPIToken) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"processor api token must be configured\" env=PAWAPAY_API_TOKEN")
	}

	log.Printf("level=info component=bootstrap msg=\"starting payments-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 10
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts behind poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish deposit lifecycle events.
	// Missing RabbitMQ must not prevent payments from working.
	var eventProducer rabbitmq.Publisher
	rabbitProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		eventProducer = &rabbitmq.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		eventProducer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the client for the pawaPay mobile-money API.
	processorClient := pawapay.NewClient(cfg.PawaPayAPIBaseURL, cfg.PawaPayAPIToken)

	// Initialize the WhatsApp Cloud API client for verification codes.
	whatsappClient := whatsapp.NewClient(
		cfg.WhatsAppAPIBaseURL,
		cfg.WhatsAppPhoneNumberID,
		cfg.WhatsAppAccessToken,
		cfg.WhatsAppTemplateName,
		cfg.WhatsAppTemplateLang,
	)

	// Optional Redis connection for the distributed send rate limit.
	var redisClient *redis.Client
	if cfg.OTPSendLimitPerHour > 0 && cfg.RedisURL != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; send rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient = redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; send rate limiting disabled\" err=%v", pingErr)
				redisClient.Close()
				redisClient = nil
			} else {
				defer redisClient.Close()
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application services with their dependencies.
	paymentService := app.NewService(repository, processorClient, eventProducer, cfg.BrandName)
	verificationService := app.NewVerificationService(
		repository,
		whatsappClient,
		time.Duration(cfg.OTPExpiryMinutes)*time.Minute,
		time.Duration(cfg.OTPResendCooldownSeconds)*time.Second,
	)
	if redisClient != nil {
		verificationService.SetSendRateLimiter(
			app.NewRedisSendRateLimiter(redisClient, cfg.RedisRateLimitPrefix),
			cfg.OTPSendLimitPerHour,
		)
	}

	// Initialize the API handlers.
	paymentHandlers := api.NewPaymentHandlers(paymentService, verificationService, cfg.PawaPayWebhookSecret)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/payments", api.PaymentRoutes(paymentHandlers, cfg.JWKSURL, cfg.InternalAPIKey))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
