package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the API reads from the environment.
type Config struct {
	Port         string
	DatabaseURL  string
	DBMaxIdle    int
	DBMaxOpen    int
	DBMaxLife    time.Duration
	JWTSecret    string
	JWTTTL       time.Duration
	AllowOrigins []string
	LogLevel     string

	// AdminEmails registers matching accounts as administrators.
	AdminEmails []string

	RedisURL      string
	StatsCacheTTL time.Duration

	VoteRateLimit VoteRateLimit

	Twilio TwilioConfig
}

type VoteRateLimit struct {
	PerSecond float64
	Burst     int
}

// TwilioConfig is optional; SMS notifications are disabled when AccountSID is empty.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		RedisURL: strings.TrimSpace(getEnv("REDIS_URL", "")),
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("PORT must be numeric, got %q", cfg.Port)
	}

	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", ""))
	if cfg.DatabaseURL == "" {
		if os.Getenv("DB_HOST") == "" || os.Getenv("DB_NAME") == "" {
			return nil, errors.New("DATABASE_URL or DB_HOST/DB_NAME is required")
		}
		cfg.DatabaseURL = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			os.Getenv("DB_HOST"),
			getEnv("DB_PORT", "5432"),
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_NAME"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	var err error
	if cfg.DBMaxIdle, err = getIntEnv("DB_MAX_IDLE_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.DBMaxOpen, err = getIntEnv("DB_MAX_OPEN_CONNS", 100); err != nil {
		return nil, err
	}
	if cfg.DBMaxLife, err = getDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour); err != nil {
		return nil, err
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 characters")
	}
	if cfg.JWTTTL, err = getDurationEnv("JWT_TTL", 72*time.Hour); err != nil {
		return nil, err
	}

	for _, origin := range strings.Split(getEnv("ALLOW_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	for _, email := range strings.Split(getEnv("ADMIN_EMAILS", ""), ",") {
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			cfg.AdminEmails = append(cfg.AdminEmails, email)
		}
	}

	if cfg.StatsCacheTTL, err = getDurationEnv("STATS_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	perSecond, err := strconv.ParseFloat(getEnv("VOTE_RATE_LIMIT", "5"), 64)
	if err != nil || perSecond <= 0 {
		return nil, errors.New("VOTE_RATE_LIMIT must be a positive number")
	}
	burst, err := getIntEnv("VOTE_RATE_BURST", 10)
	if err != nil {
		return nil, err
	}
	cfg.VoteRateLimit = VoteRateLimit{PerSecond: perSecond, Burst: burst}

	cfg.Twilio = TwilioConfig{
		AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		FromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func getIntEnv(key string, def int) (int, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid duration", key)
	}
	return dur, nil
}
