// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the session staleness threshold, the
// finalize delay, extraction locale knobs, classifier credentials, and
// observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-order-backend/internal/sysutil"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// ClassifierConfig defines the optional language-model classification
// backend. When the API key is empty the backend is disabled and the
// rule-based classifier runs alone.
type ClassifierConfig struct {
	APIKey  string        // ANTHROPIC_API_KEY
	Model   string        // CLASSIFIER_MODEL
	Timeout time.Duration // CLASSIFIER_TIMEOUT
}

// Enabled reports whether the model backend should be constructed.
func (c ClassifierConfig) Enabled() bool { return strings.TrimSpace(c.APIKey) != "" }

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath        string        // SQLite path
	DatasetDir    string        // directory for NDJSON dataset files
	KeywordsPath  string        // optional keyword vocabulary JSON
	SessionTTL    time.Duration // idle time before a session is discarded
	FinalizeDelay time.Duration // settle time between trigger and emit

	// Extraction locale
	CountryCode      string // national dialing prefix, digits only
	PhoneDigits      int    // local phone number length
	MinSpokenDigits  int    // minimum spoken-digit run length
	SpokenTruncation string // head|tail window for overlong spoken runs

	// Routing
	TargetChatID  int64  // where finalized orders are sent (0 = source chat)
	AICheckChatID int64  // optional classifier-audit chat (0 = disabled)
	ErrorChatID   int64  // optional non-order capture chat (0 = disabled)
	SenderURL     string // outbound webhook endpoint of the chat transport

	// Classifier
	Classifier ClassifierConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS CORSConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath:        getenv("DB_PATH", "orders.db"),
		DatasetDir:    getenv("DATASET_DIR", "dataset"),
		KeywordsPath:  getenv("KEYWORDS_PATH", ""),
		SessionTTL:    getdur("SESSION_TTL", 120*time.Second),
		FinalizeDelay: getdur("FINALIZE_DELAY", 5*time.Second),

		// Extraction locale
		CountryCode:      getenv("COUNTRY_CODE", "998"),
		PhoneDigits:      getint("PHONE_DIGITS", 9),
		MinSpokenDigits:  getint("MIN_SPOKEN_DIGITS", 9),
		SpokenTruncation: strings.ToLower(getenv("SPOKEN_TRUNCATION", "head")),

		// Routing
		TargetChatID:  getint64("TARGET_CHAT_ID", 0),
		AICheckChatID: getint64("AI_CHECK_CHAT_ID", 0),
		ErrorChatID:   getint64("ERROR_CHAT_ID", 0),
		SenderURL:     getenv("SENDER_URL", ""),

		// Classifier
		Classifier: ClassifierConfig{
			APIKey:  getenv("ANTHROPIC_API_KEY", ""),
			Model:   getenv("CLASSIFIER_MODEL", "claude-3-5-haiku-latest"),
			Timeout: getdur("CLASSIFIER_TIMEOUT", 10*time.Second),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-order-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.DatasetDir) == "" {
		return cfg, errors.New("DATASET_DIR must not be empty")
	}
	if cfg.SessionTTL <= 0 {
		return cfg, errors.New("SESSION_TTL must be > 0")
	}
	if cfg.FinalizeDelay < 0 {
		return cfg, errors.New("FINALIZE_DELAY must be >= 0")
	}
	if digitsOnly(cfg.CountryCode) != cfg.CountryCode || cfg.CountryCode == "" {
		return cfg, errors.New("COUNTRY_CODE must be digits only")
	}
	if cfg.PhoneDigits <= 0 {
		return cfg, errors.New("PHONE_DIGITS must be > 0")
	}
	if cfg.MinSpokenDigits <= 0 {
		return cfg, errors.New("MIN_SPOKEN_DIGITS must be > 0")
	}
	switch cfg.SpokenTruncation {
	case "head", "tail":
	default:
		return cfg, errors.New("SPOKEN_TRUNCATION must be head or tail")
	}
	if cfg.Classifier.Timeout <= 0 {
		return cfg, errors.New("CLASSIFIER_TIMEOUT must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- env helpers ----

// getenv reads k, falling back to def when the variable is unset or blank.
func getenv(k, def string) string {
	return sysutil.FirstNonEmpty(os.Getenv(k), def)
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
