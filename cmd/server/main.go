// Command server runs the order aggregation backend: an HTTP ingest for
// chat message events, the session/finalize pipeline, the order API, and
// the observability surface (/metrics, /health, OTLP traces).
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-order-backend/internal/classify"
	"github.com/tbourn/go-order-backend/internal/config"
	"github.com/tbourn/go-order-backend/internal/dataset"
	"github.com/tbourn/go-order-backend/internal/extract"
	"github.com/tbourn/go-order-backend/internal/finalize"
	httpapi "github.com/tbourn/go-order-backend/internal/http"
	"github.com/tbourn/go-order-backend/internal/observability"
	"github.com/tbourn/go-order-backend/internal/repo"
	"github.com/tbourn/go-order-backend/internal/services"
	"github.com/tbourn/go-order-backend/internal/session"
	"github.com/tbourn/go-order-backend/internal/sysutil"
	"github.com/tbourn/go-order-backend/internal/transport"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			log.Warn().Err(err).Msg("gorm tracing plugin failed")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	ds, err := dataset.NewWriter(cfg.DatasetDir, nil)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DatasetDir).Msg("dataset directory unavailable")
	}

	truncation := extract.TruncateHead
	if cfg.SpokenTruncation == "tail" {
		truncation = extract.TruncateTail
	}
	extractor := extract.New(
		extract.WithCountryCode(cfg.CountryCode),
		extract.WithPhoneDigits(cfg.PhoneDigits),
		extract.WithMinSpokenDigits(cfg.MinSpokenDigits),
		extract.WithTruncation(truncation),
	)

	keywords := classify.DefaultKeywords()
	if cfg.KeywordsPath != "" {
		kw, err := classify.LoadKeywords(cfg.KeywordsPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.KeywordsPath).Msg("keyword vocabulary load failed")
		}
		keywords = kw
	}
	rules := classify.NewRules(keywords)

	var backend classify.Backend
	if cfg.Classifier.Enabled() {
		backend = classify.NewAnthropicBackend(cfg.Classifier.APIKey, cfg.Classifier.Model)
		log.Info().Str("model", cfg.Classifier.Model).Msg("model classifier enabled")
	}
	classifier := classify.NewClassifier(rules, backend)
	classifier.Timeout = cfg.Classifier.Timeout

	engine := finalize.NewEngine(extractor, rules, nil)
	store := session.NewStore(cfg.SessionTTL, nil)
	sender := transport.NewSender(cfg.SenderURL)

	orderSvc := &services.OrderService{
		DB:           db,
		Extractor:    extractor,
		Rules:        rules,
		Engine:       engine,
		Dataset:      ds,
		Sender:       sender,
		TargetChatID: cfg.TargetChatID,
	}
	aggSvc := &services.AggregatorService{
		DB:            db,
		Store:         store,
		Extractor:     extractor,
		Classifier:    classifier,
		Engine:        engine,
		Dataset:       ds,
		Sender:        sender,
		Orders:        orderSvc,
		TargetChatID:  cfg.TargetChatID,
		AICheckChatID: cfg.AICheckChatID,
		ErrorChatID:   cfg.ErrorChatID,
		FinalizeDelay: cfg.FinalizeDelay,
	}
	defer aggSvc.Stop()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, aggSvc, orderSvc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped")
}
