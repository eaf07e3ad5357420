package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Build information. Populated at build-time.
var (
	Name      = "clawd-gateway"
	Version   = "dev"
	GoVersion = runtime.Version()
)

const (
	// EnvPrefix is an optional prefix to all ENV variables used in this app.
	// Unprefixed names are read as well.
	EnvPrefix = "CLAWD"

	// ##### GENERAL VARIABLES
	DefaultPort              = "3001"
	DefaultAllowedOrigins    = "http://localhost:5173"
	DefaultLogLevel          = "info"
	DefaultHumanReadableLogs = false
	DefaultDebugCORS         = false
	DefaultShutdownTimeout   = "10s"

	// ##### DATABASE VARIABLES
	DefaultDBPath = "clawd.db"

	// ##### COMPLETION VARIABLES
	DefaultProvider    = "anthropic"
	DefaultModel       = "claude-3-5-sonnet-20241022"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
	DefaultAgentID     = "clawd-default"
)

// Config is the resolved runtime configuration.
type Config struct {
	Port              string
	DBPath            string
	AllowedOrigins    []string
	LogLevel          string
	HumanReadableLogs bool
	DebugCORS         bool
	ShutdownTimeout   time.Duration

	GatewayToken     string
	GatewayJWTSecret string

	Provider           string
	AnthropicAPIKey    string
	OpenAIAPIKey       string
	LLMBaseURL         string
	DefaultModel       string
	DefaultTemperature float64
	MaxTokens          int
	AgentID            string
}

// APIKey returns the key of the configured provider.
func (c *Config) APIKey() string {
	if c.Provider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.AnthropicAPIKey
}

func bindEnvVariable(v *viper.Viper, name string, fallback interface{}) {
	if fallback != "" {
		v.SetDefault(name, fallback)
	}
	// Prefixed first, then the bare name used by existing .env files.
	if err := v.BindEnv(name, EnvPrefix+"_"+name, name); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding Env Variable: %v\n", err)
	}
}

// SetupEnv configures v to read ENV variables
func SetupEnv(v *viper.Viper) {
	// General
	bindEnvVariable(v, "PORT", DefaultPort)
	bindEnvVariable(v, "ALLOWED_ORIGINS", DefaultAllowedOrigins)
	bindEnvVariable(v, "LOG_LEVEL", DefaultLogLevel)
	bindEnvVariable(v, "HUMAN_READABLE_LOGS", DefaultHumanReadableLogs)
	bindEnvVariable(v, "DEBUG_CORS", DefaultDebugCORS)
	bindEnvVariable(v, "SHUTDOWN_TIMEOUT", DefaultShutdownTimeout)
	// Database
	bindEnvVariable(v, "DB_PATH", DefaultDBPath)
	// Authentication
	bindEnvVariable(v, "GATEWAY_TOKEN", "")
	bindEnvVariable(v, "GATEWAY_JWT_SECRET", "")
	// Completion
	bindEnvVariable(v, "LLM_PROVIDER", DefaultProvider)
	bindEnvVariable(v, "ANTHROPIC_API_KEY", "")
	bindEnvVariable(v, "OPENAI_API_KEY", "")
	bindEnvVariable(v, "LLM_BASE_URL", "")
	bindEnvVariable(v, "DEFAULT_MODEL", DefaultModel)
	bindEnvVariable(v, "DEFAULT_TEMPERATURE", DefaultTemperature)
	bindEnvVariable(v, "MAX_TOKENS", DefaultMaxTokens)
	bindEnvVariable(v, "AGENT_ID", DefaultAgentID)
}

// LoadDotEnv reads .env files into the process environment. Variables
// already set are not overridden and missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "failed to load %s", f)
		}
	}
	return nil
}

// Load builds a Config from v and validates the required variables.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:              v.GetString("PORT"),
		DBPath:            v.GetString("DB_PATH"),
		AllowedOrigins:    splitList(v.GetString("ALLOWED_ORIGINS")),
		LogLevel:          v.GetString("LOG_LEVEL"),
		HumanReadableLogs: v.GetBool("HUMAN_READABLE_LOGS"),
		DebugCORS:         v.GetBool("DEBUG_CORS"),
		ShutdownTimeout:   v.GetDuration("SHUTDOWN_TIMEOUT"),

		GatewayToken:     v.GetString("GATEWAY_TOKEN"),
		GatewayJWTSecret: v.GetString("GATEWAY_JWT_SECRET"),

		Provider:           strings.ToLower(v.GetString("LLM_PROVIDER")),
		AnthropicAPIKey:    v.GetString("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:       v.GetString("OPENAI_API_KEY"),
		LLMBaseURL:         v.GetString("LLM_BASE_URL"),
		DefaultModel:       v.GetString("DEFAULT_MODEL"),
		DefaultTemperature: v.GetFloat64("DEFAULT_TEMPERATURE"),
		MaxTokens:          v.GetInt("MAX_TOKENS"),
		AgentID:            v.GetString("AGENT_ID"),
	}

	var missing []string
	if cfg.GatewayToken == "" {
		missing = append(missing, "GATEWAY_TOKEN")
	}
	switch cfg.Provider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	default:
		return nil, errors.Errorf("unsupported LLM_PROVIDER %q", cfg.Provider)
	}
	if len(missing) > 0 {
		return nil, errors.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if cfg.DefaultModel == "" {
		return nil, errors.New("DEFAULT_MODEL must not be empty")
	}
	return cfg, nil
}

func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
	return fields
}

// CorsConfig stores default configuration for CORS middleware
func CorsConfig(allowedOrigins []string, debug bool) cors.Options {
	return cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
		Debug:            debug,
	}
}
