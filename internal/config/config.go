package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/kjannette/mtf-backend/internal/logging"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	// Server
	Port         int
	AppName      string
	APITokens    map[string]string // token -> owner
	DefaultOwner string
	CORSOrigins  []string
	Timezone     string
	WebhookURL   string

	// Storage
	Store      string
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Default charge parameters for new owners
	DefaultInterestRatePerDay float64
	DefaultBrokerageRate      float64
	DefaultPledgeCharges      float64
	DefaultUnpledgeCharges    float64

	// Market data
	NSEEnabled              bool
	NSEBaseURL              string
	YahooEnabled            bool
	PriceCacheSeconds       int
	PriceMinIntervalSeconds int
	CMPRefreshSchedule      string

	Log logging.LogConfig
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	tokens, err := parseTokens(envStr("API_TOKENS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:         envInt("PORT", 3001),
		AppName:      envStr("APP_NAME", "MTFLedger"),
		APITokens:    tokens,
		DefaultOwner: envStr("DEFAULT_OWNER", "default"),
		CORSOrigins:  envList("CORS_ALLOW_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}),
		Timezone:     envStr("TIMEZONE", "Asia/Kolkata"),
		WebhookURL:   envStr("WEBHOOK_URL", ""),

		Store:      strings.ToLower(envStr("STORE", StorePostgres)),
		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "mtf_ledger"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),

		DefaultInterestRatePerDay: envFloat("DEFAULT_INTEREST_RATE_PER_DAY", 0.0005),
		DefaultBrokerageRate:      envFloat("DEFAULT_BROKERAGE_RATE", 0),
		DefaultPledgeCharges:      envFloat("DEFAULT_PLEDGE_CHARGES", 20),
		DefaultUnpledgeCharges:    envFloat("DEFAULT_UNPLEDGE_CHARGES", 20),

		NSEEnabled:              envBool("NSE_ENABLED", true),
		NSEBaseURL:              envStr("NSE_BASE_URL", "https://www.nseindia.com"),
		YahooEnabled:            envBool("YAHOO_ENABLED", true),
		PriceCacheSeconds:       envInt("PRICE_CACHE_SECONDS", 300),
		PriceMinIntervalSeconds: envInt("PRICE_MIN_INTERVAL_SECONDS", 2),
		CMPRefreshSchedule:      os.Getenv("CMP_REFRESH_SCHEDULE"),

		Log: logging.LogConfig{
			Level:      envStr("LOG_LEVEL", "info"),
			Console:    envBool("LOG_CONSOLE", true),
			FilePath:   envStr("LOG_FILE", ""),
			MaxSize:    envInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 5),
			MaxAge:     envInt("LOG_MAX_AGE_DAYS", 30),
		},
	}
	if _, set := os.LookupEnv("CMP_REFRESH_SCHEDULE"); !set {
		cfg.CMPRefreshSchedule = "@every 30m"
	}

	return cfg, nil
}

func (c *Config) Validate(log zerolog.Logger) error {
	var errs []string

	if c.Store != StorePostgres && c.Store != StoreMemory {
		errs = append(errs, fmt.Sprintf("STORE must be %q or %q", StorePostgres, StoreMemory))
	}
	if c.Store == StorePostgres && c.DBUser == "" {
		errs = append(errs, "DB_USER is required when STORE=postgres")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("TIMEZONE %q: %v", c.Timezone, err))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, "PORT must be between 1 and 65535")
	}
	if c.DefaultInterestRatePerDay < 0 || c.DefaultBrokerageRate < 0 ||
		c.DefaultPledgeCharges < 0 || c.DefaultUnpledgeCharges < 0 {
		errs = append(errs, "DEFAULT_* charge parameters cannot be negative")
	}
	if !c.NSEEnabled && !c.YahooEnabled {
		log.Warn().Msg("NSE_ENABLED and YAHOO_ENABLED are both false, CMP refresh is disabled")
	}
	if len(c.APITokens) == 0 {
		log.Warn().Str("owner", c.DefaultOwner).Msg("API_TOKENS not set, REST API has no authentication")
	}
	if c.Store == StoreMemory {
		log.Warn().Msg("STORE=memory, trades are lost on restart")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Print(log zerolog.Logger) {
	log.Info().
		Str("app", c.AppName).
		Int("port", c.Port).
		Str("store", c.Store).
		Str("timezone", c.Timezone).
		Int("owners", len(c.APITokens)).
		Strs("cors", c.CORSOrigins).
		Msg("Configuration loaded")
	log.Info().
		Float64("interestPerDay", c.DefaultInterestRatePerDay).
		Float64("brokerage", c.DefaultBrokerageRate).
		Float64("pledge", c.DefaultPledgeCharges).
		Float64("unpledge", c.DefaultUnpledgeCharges).
		Msg("Default charge parameters")
	log.Info().
		Str("nse", boolLabel(c.NSEEnabled, c.NSEBaseURL, "disabled")).
		Str("yahoo", boolLabel(c.YahooEnabled, "enabled", "disabled")).
		Int("cacheSeconds", c.PriceCacheSeconds).
		Str("cmpRefresh", boolLabel(c.CMPRefreshSchedule != "", c.CMPRefreshSchedule, "disabled")).
		Str("webhook", boolLabel(c.WebhookURL != "", "configured", "not set")).
		Msg("Market data")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseTokens reads "owner=token,owner2=token2".
func parseTokens(raw string) (map[string]string, error) {
	tokens := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		owner, token, ok := strings.Cut(pair, "=")
		owner, token = strings.TrimSpace(owner), strings.TrimSpace(token)
		if !ok || owner == "" || token == "" {
			return nil, fmt.Errorf("API_TOKENS: malformed entry %q, want owner=token", pair)
		}
		tokens[token] = owner
	}
	return tokens, nil
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
