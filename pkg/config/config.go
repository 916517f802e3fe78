package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config is the full process configuration, sourced from the environment
// with optional .env file support for local development.
type Config struct {
	Environment string
	Port        string
	DataDir     string

	// JWT
	JWTSecret string

	// Tenant routing
	BaseDomain            string // e.g. "gradlink.io"; subdomains resolve against it
	TenantOverrideEnabled bool   // dev-only: X-Tenant-ID header / ?tenant= query

	// Default tenant seed, used when the store is empty
	DefaultTenantID         string
	DefaultTenantName       string
	DefaultTenantDomain     string // institution domain of the default tenant
	DefaultSharetribeID     string
	DefaultSharetribeSecret string

	// Notifications
	EmailEnabled        bool
	SendGridAPIKey      string
	EmailFrom           string
	EmailFromName       string
	EmailRatePerMinute  int
	EmailMaxRetries     int
	EmailRetryBaseDelay time.Duration
	EmailRetryMaxDelay  time.Duration
	EmailLogMaxEntries  int

	// Marketplace platform
	SharetribeBaseURL string

	// CORS
	AllowedOrigins []string

	Debug bool
}

// Load reads configuration from the environment. A .env.local or
// .env.production file is loaded first depending on ENVIRONMENT, without
// overriding variables that are already set.
func Load() *Config {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	switch env {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "3000"),
		DataDir:     getEnv("DATA_DIR", "./data"),
		JWTSecret:   getEnv("JWT_SECRET", "change-me-in-production"),
		Debug:       getEnvBool("DEBUG", false),

		BaseDomain:            getEnv("BASE_DOMAIN", "gradlink.io"),
		TenantOverrideEnabled: getEnvBool("TENANT_OVERRIDE_ENABLED", false),

		DefaultTenantID:         getEnv("DEFAULT_TENANT_ID", "gradlink"),
		DefaultTenantName:       getEnv("DEFAULT_TENANT_NAME", "GradLink"),
		DefaultTenantDomain:     strings.TrimSpace(os.Getenv("DEFAULT_TENANT_DOMAIN")),
		DefaultSharetribeID:     strings.TrimSpace(os.Getenv("DEFAULT_SHARETRIBE_CLIENT_ID")),
		DefaultSharetribeSecret: strings.TrimSpace(os.Getenv("DEFAULT_SHARETRIBE_CLIENT_SECRET")),

		EmailEnabled:        getEnvBool("EMAIL_ENABLED", true),
		SendGridAPIKey:      strings.TrimSpace(os.Getenv("SENDGRID_API_KEY")),
		EmailFrom:           getEnv("EMAIL_FROM", "no-reply@gradlink.io"),
		EmailFromName:       getEnv("EMAIL_FROM_NAME", "GradLink"),
		EmailRatePerMinute:  getEnvInt("EMAIL_RATE_PER_MINUTE", 60),
		EmailMaxRetries:     getEnvInt("EMAIL_MAX_RETRIES", 3),
		EmailRetryBaseDelay: getEnvDuration("EMAIL_RETRY_BASE_DELAY", time.Second),
		EmailRetryMaxDelay:  getEnvDuration("EMAIL_RETRY_MAX_DELAY", 30*time.Second),
		EmailLogMaxEntries:  getEnvInt("EMAIL_LOG_MAX_ENTRIES", 1000),

		SharetribeBaseURL: getEnv("SHARETRIBE_BASE_URL", "https://flex-api.sharetribe.com"),
	}

	allowed := getEnv("ALLOWED_ORIGINS", "*")
	if allowed == "*" {
		cfg.AllowedOrigins = []string{"*"}
	} else {
		cfg.AllowedOrigins = strings.Split(allowed, ",")
	}

	if cfg.IsProduction() {
		// Hostname is the only tenant signal in production.
		cfg.TenantOverrideEnabled = false
		cfg.Debug = false
	}

	return cfg
}

var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config, loading it once.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = Load()
	})
	return cachedConfig
}

// Validate rejects configurations the process cannot safely start with.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.BaseDomain == "" {
		return fmt.Errorf("BASE_DOMAIN is required")
	}
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == "change-me-in-production") {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.EmailRatePerMinute < 1 {
		return fmt.Errorf("EMAIL_RATE_PER_MINUTE must be at least 1")
	}
	if c.EmailMaxRetries < 0 {
		return fmt.Errorf("EMAIL_MAX_RETRIES must not be negative")
	}
	return nil
}

// IsProduction reports whether this process runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment reports whether this process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// loadEnvFile loads KEY=VALUE pairs from a file into the environment.
// Existing variables win; missing files are ignored.
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if len(value) >= 2 {
			if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
				(strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'")) {
				value = value[1 : len(value)-1]
			}
		}

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
