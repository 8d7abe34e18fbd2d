package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// GoogleConfig holds the OAuth client settings for the Google provider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Config contains runtime configuration values.
type Config struct {
	Environment          string
	HTTPPort             string
	FrontendURL          string
	DatabaseURL          string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	EncryptionKey        []byte
	JWTSecret            []byte
	RefreshTokenSecret   []byte
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	OAuthStateTTL        time.Duration
	TokenRefreshBuffer   time.Duration
	Google               GoogleConfig
	SeedEmail            string
	SeedPassword         string
	ServiceName          string
	RateLimitRPM         int
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
// Required values are validated here so the process fails at startup rather
// than on the first request that needs them.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "3000"),
		FrontendURL:          getEnv("FRONTEND_URL", "http://localhost:5173"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisAddr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		AccessTokenTTL:       getDuration("JWT_EXPIRES_IN", 15*time.Minute),
		RefreshTokenTTL:      getDuration("REFRESH_TOKEN_EXPIRES_IN", 7*24*time.Hour),
		OAuthStateTTL:        getDuration("OAUTH_STATE_TTL", 10*time.Minute),
		TokenRefreshBuffer:   getDuration("TOKEN_REFRESH_BUFFER", 5*time.Minute),
		SeedEmail:            strings.TrimSpace(os.Getenv("SEED_EMAIL")),
		SeedPassword:         os.Getenv("SEED_PASSWORD"),
		ServiceName:          getEnv("SERVICE_NAME", "insights-auth"),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	key, err := decodeEncryptionKey(os.Getenv("ENCRYPTION_KEY"))
	if err != nil {
		return Config{}, err
	}
	cfg.EncryptionKey = key

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	cfg.JWTSecret = []byte(jwtSecret)

	refreshSecret := os.Getenv("REFRESH_TOKEN_SECRET")
	if refreshSecret == "" {
		return Config{}, fmt.Errorf("REFRESH_TOKEN_SECRET is required")
	}
	cfg.RefreshTokenSecret = []byte(refreshSecret)

	cfg.Google = GoogleConfig{
		ClientID:     strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		ClientSecret: strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")),
		RedirectURI:  strings.TrimSpace(os.Getenv("GOOGLE_REDIRECT_URI")),
	}
	if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" || cfg.Google.RedirectURI == "" {
		return Config{}, fmt.Errorf("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, and GOOGLE_REDIRECT_URI are required")
	}

	return cfg, nil
}

// decodeEncryptionKey parses the hex encoded AES key and enforces its length.
func decodeEncryptionKey(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	key, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be hexadecimal: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be 64 hexadecimal characters (32 bytes)")
	}
	return key, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
