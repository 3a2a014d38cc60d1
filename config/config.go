package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"

	// placeholderOpenAIKey is the value shipped in the sample .env file.
	placeholderOpenAIKey = "your_openai_api_key"
)

type Config struct {
	Host          string `json:"host" yaml:"host" validate:"required"`
	Port          int    `json:"port" yaml:"port" validate:"min=1,max=65535"`
	AllowedOrigin string `json:"allowed_origin" yaml:"allowed_origin" validate:"required"`

	// Coinbase Developer Platform key name and private key
	CoinbaseAPIKey    string `json:"coinbase_api_key" yaml:"coinbase_api_key"`
	CoinbaseAPISecret string `json:"coinbase_api_secret" yaml:"coinbase_api_secret"`

	CoinbaseBrokerageURL string        `json:"coinbase_brokerage_url" yaml:"coinbase_brokerage_url" validate:"required,url"`
	CoinbaseExchangeURL  string        `json:"coinbase_exchange_url" yaml:"coinbase_exchange_url" validate:"required,url"`
	QuoteCurrency        string        `json:"quote_currency" yaml:"quote_currency" validate:"required,alpha"`
	UpstreamTimeout      time.Duration `json:"upstream_timeout" yaml:"upstream_timeout" validate:"gt=0"`

	EnableAIRecommendations bool    `json:"enable_ai_recommendations" yaml:"enable_ai_recommendations"`
	LLMProvider             string  `json:"llm_provider" yaml:"llm_provider" validate:"oneof=openai deepseek"`
	LLMModel                string  `json:"llm_model" yaml:"llm_model" validate:"required"`
	LLMBaseURL              string  `json:"llm_base_url" yaml:"llm_base_url" validate:"omitempty,url"`
	LLMTemperature          float32 `json:"llm_temperature" yaml:"llm_temperature" validate:"gte=0,lte=2"`
	LLMMaxTokens            int     `json:"llm_max_tokens" yaml:"llm_max_tokens" validate:"gt=0"`

	// AI Model API Keys
	OpenAIAPIKey   string `json:"openai_api_key" yaml:"openai_api_key"`
	DeepSeekAPIKey string `json:"deepseek_api_key" yaml:"deepseek_api_key"`

	LogLevel string `json:"log_level" yaml:"log_level"`
	Debug    bool   `json:"debug" yaml:"debug"`
}

func defaults() *Config {
	return &Config{
		Host:          "0.0.0.0",
		Port:          3001,
		AllowedOrigin: "http://localhost:5173",

		CoinbaseBrokerageURL: "https://api.coinbase.com",
		CoinbaseExchangeURL:  "https://api.exchange.coinbase.com",
		QuoteCurrency:        "GBP",
		UpstreamTimeout:      10 * time.Second,

		EnableAIRecommendations: true,
		LLMProvider:             ProviderOpenAI,
		LLMModel:                "gpt-4.1",
		LLMTemperature:          0.7,
		LLMMaxTokens:            1000,

		LogLevel: "info",
	}
}

// DefaultConfig returns the configuration with CONFIG_PATH (if set), .env and
// the process environment applied on top of the built-in defaults.
func DefaultConfig() *Config {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		// an unreadable config file falls back to env-only configuration
		cfg = defaults()
		_ = godotenv.Load()
		cfg.loadFromEnv()
	}
	return cfg
}

// Load reads an optional YAML file, then .env, then environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()
	return cfg, nil
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("HOST"); val != "" {
		c.Host = val
	}
	if val := os.Getenv("PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Port = port
		}
	}
	if val := os.Getenv("ALLOWED_ORIGIN"); val != "" {
		c.AllowedOrigin = val
	}

	if val := os.Getenv("COINBASE_API_KEY"); val != "" {
		c.CoinbaseAPIKey = val
	}
	if val := os.Getenv("COINBASE_API_SECRET"); val != "" {
		c.CoinbaseAPISecret = val
	}
	if val := os.Getenv("COINBASE_BROKERAGE_URL"); val != "" {
		c.CoinbaseBrokerageURL = val
	}
	if val := os.Getenv("COINBASE_EXCHANGE_URL"); val != "" {
		c.CoinbaseExchangeURL = val
	}
	if val := os.Getenv("QUOTE_CURRENCY"); val != "" {
		c.QuoteCurrency = strings.ToUpper(val)
	}
	if val := os.Getenv("UPSTREAM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.UpstreamTimeout = d
		}
	}

	if val := os.Getenv("ENABLE_AI_RECOMMENDATIONS"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EnableAIRecommendations = enabled
		}
	}
	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = strings.ToLower(val)
	}
	if val := os.Getenv("LLM_MODEL"); val != "" {
		c.LLMModel = val
	}
	if val := os.Getenv("LLM_BASE_URL"); val != "" {
		c.LLMBaseURL = val
	}
	if val := os.Getenv("LLM_TEMPERATURE"); val != "" {
		if t, err := strconv.ParseFloat(val, 32); err == nil {
			c.LLMTemperature = float32(t)
		}
	}
	if val := os.Getenv("LLM_MAX_TOKENS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.LLMMaxTokens = v
		}
	}

	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("CRYPTOVIEWER_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
}

// Validate checks field ranges and formats.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RequireExchangeCredentials fails when the Coinbase key pair is missing.
func (c *Config) RequireExchangeCredentials() error {
	if strings.TrimSpace(c.CoinbaseAPIKey) == "" || strings.TrimSpace(c.CoinbaseAPISecret) == "" {
		return fmt.Errorf("missing Coinbase API credentials: set COINBASE_API_KEY and COINBASE_API_SECRET")
	}
	return nil
}

// LLMAPIKey returns the API key of the selected provider, or "" when it is
// unset or still the sample placeholder.
func (c *Config) LLMAPIKey() string {
	var key string
	switch c.LLMProvider {
	case ProviderDeepSeek:
		key = c.DeepSeekAPIKey
	default:
		key = c.OpenAIAPIKey
	}
	key = strings.TrimSpace(key)
	if key == placeholderOpenAIKey {
		return ""
	}
	return key
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
