// Package config provides configuration management for the billing portal.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig
	Billing  BillingConfig
	Auth     AuthConfig
	Session  SessionConfig
	Render   RenderConfig
	Emulator EmulatorConfig
	History  HistoryConfig
	Debug    bool
}

// ServerConfig represents the portal HTTP server configuration.
type ServerConfig struct {
	Port string
}

// BillingConfig represents upstream billing API configuration.
type BillingConfig struct {
	APIURL  string
	Timeout time.Duration
}

// AuthConfig represents authentication service configuration.
type AuthConfig struct {
	APIURL string
}

// SessionConfig represents session cookie configuration.
type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

// RenderConfig represents PDF rendering configuration.
type RenderConfig struct {
	IssuerProfile string
}

// EmulatorConfig represents the local billing API emulator configuration.
type EmulatorConfig struct {
	DBPath string
	Port   string
}

// HistoryConfig represents the export history database configuration.
// An empty DBPath disables recording.
type HistoryConfig struct {
	DBPath string
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	// Load .env file
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	billingTimeout, err := parseDurationEnv("BILLING_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	sessionTTL, err := parseDurationEnv("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	billingURL := getEnvOrDefault("BILLING_API_URL", "http://localhost:5000")

	config := &Config{
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "3000"),
		},
		Billing: BillingConfig{
			APIURL:  billingURL,
			Timeout: billingTimeout,
		},
		Auth: AuthConfig{
			APIURL: getEnvOrDefault("AUTH_API_URL", billingURL),
		},
		Session: SessionConfig{
			Secret: os.Getenv("SESSION_SECRET"),
			TTL:    sessionTTL,
		},
		Render: RenderConfig{
			IssuerProfile: os.Getenv("ISSUER_PROFILE"),
		},
		Emulator: EmulatorConfig{
			DBPath: getEnvOrDefault("EMULATOR_DB_PATH", "./billing-emulator.db"),
			Port:   getEnvOrDefault("EMULATOR_PORT", "5000"),
		},
		History: HistoryConfig{
			DBPath: os.Getenv("HISTORY_DB_PATH"),
		},
		Debug: os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate validates the configuration.
// It checks if all required fields are set.
func (c *Config) Validate(required ...[]string) error {
	var missing []string

	for _, path := range required {
		if len(path) < 2 {
			continue
		}

		var value string
		switch path[0] {
		case "billing":
			switch path[1] {
			case "apiUrl":
				value = c.Billing.APIURL
			}
		case "auth":
			switch path[1] {
			case "apiUrl":
				value = c.Auth.APIURL
			}
		case "session":
			switch path[1] {
			case "secret":
				value = c.Session.Secret
			}
		case "emulator":
			switch path[1] {
			case "dbPath":
				value = c.Emulator.DBPath
			case "port":
				value = c.Emulator.Port
			}
		case "history":
			switch path[1] {
			case "dbPath":
				value = c.History.DBPath
			}
		case "server":
			switch path[1] {
			case "port":
				value = c.Server.Port
			}
		}

		if value == "" {
			missing = append(missing, strings.Join(path, "."))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDurationEnv parses a duration such as "30s" from an environment variable.
// Returns defaultValue if the environment variable is not set.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid duration value for %s: %s", key, value)
	}

	return parsed, nil
}
