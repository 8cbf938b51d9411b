package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"waterworks/internal/audit"
	"waterworks/internal/auth"
	billingapp "waterworks/internal/billing/application"
	billingrepo "waterworks/internal/billing/infrastructure/postgres"
	billingexport "waterworks/internal/billing/interfaces/export"
	billinghttp "waterworks/internal/billing/interfaces/http"
	"waterworks/internal/notify"
	"waterworks/internal/observability/metrics"
	readingsapp "waterworks/internal/readings/application"
	readingsrepo "waterworks/internal/readings/infrastructure/postgres"
	readingshttp "waterworks/internal/readings/interfaces/http"
	"waterworks/internal/readings/interfaces/smartmeter"
	registryapp "waterworks/internal/registry/application"
	registryrepo "waterworks/internal/registry/infrastructure/postgres"
	registryhttp "waterworks/internal/registry/interfaces/http"
	"waterworks/internal/sequence"
	"waterworks/internal/settings"
	"waterworks/internal/vision"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)
	clock := billingapp.SystemClock{}

	allocator, err := sequence.NewAllocator(db)
	if err != nil {
		logger.Fatalf("sequence allocator error: %v", err)
	}

	settingsRepo := settings.NewRepository(db)
	settingsHandler, err := settings.NewHandler(settingsRepo, auditRepo, logger)
	if err != nil {
		logger.Fatalf("settings handler error: %v", err)
	}

	consumerRepo := registryrepo.NewConsumerRepository(db)
	consumerService, err := registryapp.NewConsumerService(consumerRepo, allocator)
	if err != nil {
		logger.Fatalf("consumer service error: %v", err)
	}
	billRepo := billingrepo.NewBillRepository(db)
	paymentRepo := billingrepo.NewPaymentRepository(db)

	sweepCfg, err := billingapp.LoadSweepConfig()
	if err != nil {
		logger.Fatalf("sweep config error: %v", err)
	}
	var notifier notify.Notifier
	if sweepCfg.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(sweepCfg.WebhookURL)
	}

	var billingOpts []billingapp.BillingOption
	var paymentOpts []billingapp.PaymentOption
	if notifier != nil {
		billingOpts = append(billingOpts, billingapp.WithBillingNotifier(notifier))
		paymentOpts = append(paymentOpts, billingapp.WithPaymentNotifier(notifier))
	}

	billingService, err := billingapp.NewBillingService(billRepo, consumerRepo, settingsRepo, allocator, clock, logger, billingOpts...)
	if err != nil {
		logger.Fatalf("billing service error: %v", err)
	}
	paymentService, err := billingapp.NewPaymentService(billRepo, paymentRepo, billingService, allocator, clock, logger, paymentOpts...)
	if err != nil {
		logger.Fatalf("payment service error: %v", err)
	}
	summaryService, err := billingapp.NewSummaryService(billRepo, paymentRepo, clock)
	if err != nil {
		logger.Fatalf("summary service error: %v", err)
	}

	consumerHandler, err := registryhttp.NewHandler(consumerService, summaryService, auditRepo)
	if err != nil {
		logger.Fatalf("consumer handler error: %v", err)
	}

	sweepService, err := billingapp.NewSweepService(billRepo, billingService, notifier, clock, logger)
	if err != nil {
		logger.Fatalf("sweep service error: %v", err)
	}

	billingHandler, err := billinghttp.NewHandler(billingService, paymentService, summaryService, sweepService, auditRepo)
	if err != nil {
		logger.Fatalf("billing handler error: %v", err)
	}
	exportHandler, err := billingexport.NewHandler(billRepo, billingService, paymentService, consumerRepo, clock)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}

	readingRepo := readingsrepo.NewReadingRepository(db)
	readingService, err := readingsapp.NewReadingService(readingRepo, consumerRepo, billingService, clock, logger)
	if err != nil {
		logger.Fatalf("reading service error: %v", err)
	}

	var meterReader readingshttp.MeterReader
	if cfg.VisionBaseURL != "" {
		visionClient, err := vision.NewClient(cfg.VisionBaseURL, cfg.VisionAPIKey)
		if err != nil {
			logger.Fatalf("vision client error: %v", err)
		}
		meterReader = visionClient
	}
	readingHandler, err := readingshttp.NewHandler(readingService, meterReader, auditRepo)
	if err != nil {
		logger.Fatalf("reading handler error: %v", err)
	}
	ingestHandler, err := smartmeter.NewIngestHandler(readingService, consumerService, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}

	if sweepCfg.Enabled {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(sweepCfg.Cron, func() {
			if _, err := sweepService.Run(context.Background()); err != nil {
				logger.Printf("scheduled penalty sweep error: %v", err)
			}
		}); err != nil {
			logger.Fatalf("sweep schedule %q error: %v", sweepCfg.Cron, err)
		}
		scheduler.Start()
		logger.Printf("penalty sweep scheduled: %s", sweepCfg.Cron)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), time.Duration(cfg.IngestSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/ingest/smart-meter", ingestAuth.Wrap(ingestHandler))
	mux.Handle("/api/v1/settings", settingsHandler)
	mux.Handle("/api/v1/consumers", consumerHandler)
	mux.Handle("/api/v1/consumers/", consumerHandler)
	mux.Handle("/api/v1/readings", readingHandler)
	mux.Handle("/api/v1/readings/", readingHandler)
	mux.HandleFunc("/api/v1/bills", billingHandler.Bills)
	mux.HandleFunc("/api/v1/bills/", billingHandler.Bills)
	mux.HandleFunc("/api/v1/payments", billingHandler.Payments)
	mux.HandleFunc("/api/v1/payments/", billingHandler.Payments)
	mux.HandleFunc("/api/v1/penalties/", billingHandler.Penalties)
	mux.Handle("/api/v1/exports/", exportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	JWTSecret         string
	IngestSecret      string
	IngestSkewSeconds int
	VisionBaseURL     string
	VisionAPIKey      string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:      getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestSkewSeconds: getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
		VisionBaseURL:     getenvDefault("VISION_BASE_URL", ""),
		VisionAPIKey:      getenvDefault("VISION_API_KEY", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
