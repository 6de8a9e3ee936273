package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the top-level maya configuration.
type Config struct {
	Bot        BotConfig                 `json:"bot"`
	Providers  map[string]ProviderConfig `json:"providers"`
	Connectors ConnectorConfig           `json:"connectors"`
	Admin      AdminConfig               `json:"admin"`
}

// BotConfig holds relay-level settings.
type BotConfig struct {
	Name             string  `json:"name"`
	Persona          string  `json:"persona,omitempty"` // empty uses the built-in default
	MaxTokens        int     `json:"max_tokens,omitempty"`
	PremiumMaxTokens int     `json:"premium_max_tokens,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
}

// ProviderConfig holds AI provider settings.
type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "gemini" (default) or "openai"
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

// ConnectorConfig holds settings for messaging-platform connectors.
type ConnectorConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Twilio   *TwilioConfig   `json:"twilio,omitempty"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token     string  `json:"token"`
	AllowFrom []int64 `json:"allow_from,omitempty"`
}

// TwilioConfig holds Twilio SMS settings.
type TwilioConfig struct {
	AccountSID  string `json:"account_sid"`
	AuthToken   string `json:"auth_token"`
	PhoneNumber string `json:"phone_number"`
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
}

// AdminConfig holds admin web server settings.
type AdminConfig struct {
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a config from environment variables with MAYA_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Bot: BotConfig{
			Name:    getenv("MAYA_BOT_NAME", "Maya"),
			Persona: os.Getenv("MAYA_PERSONA"),
		},
		Providers: make(map[string]ProviderConfig),
		Admin: AdminConfig{
			Host:     getenv("MAYA_ADMIN_HOST", "0.0.0.0"),
			Port:     getenvInt("MAYA_ADMIN_PORT", 3000),
			Username: getenv("MAYA_ADMIN_USERNAME", "admin"),
			Password: getenv("MAYA_ADMIN_PASSWORD", "admin"),
		},
	}

	// Default provider: Gemini first (the primary backend), then any
	// OpenAI-compatible key.
	if apiKey := os.Getenv("MAYA_GEMINI_API_KEY"); apiKey != "" {
		cfg.Providers["default"] = ProviderConfig{
			Type:   "gemini",
			APIKey: apiKey,
			Model:  os.Getenv("MAYA_MODEL"),
		}
	} else if apiKey := os.Getenv("MAYA_OPENAI_API_KEY"); apiKey != "" {
		cfg.Providers["default"] = ProviderConfig{
			Type:    "openai",
			APIKey:  apiKey,
			BaseURL: os.Getenv("MAYA_OPENAI_BASE_URL"),
			Model:   os.Getenv("MAYA_MODEL"),
		}
	} else if apiKey := os.Getenv("MAYA_DEEPSEEK_API_KEY"); apiKey != "" {
		cfg.Providers["default"] = ProviderConfig{
			Type:    "openai",
			APIKey:  apiKey,
			BaseURL: "https://api.deepseek.com",
			Model:   getenv("MAYA_MODEL", "deepseek-chat"),
		}
	}

	if token := os.Getenv("MAYA_TELEGRAM_TOKEN"); token != "" {
		cfg.Connectors.Telegram = &TelegramConfig{Token: token}
		if ids := os.Getenv("MAYA_TELEGRAM_ALLOW_FROM"); ids != "" {
			parsed, err := parseInt64List(ids)
			if err != nil {
				return nil, fmt.Errorf("config: MAYA_TELEGRAM_ALLOW_FROM: %w", err)
			}
			cfg.Connectors.Telegram.AllowFrom = parsed
		}
	}

	if sid := os.Getenv("MAYA_TWILIO_ACCOUNT_SID"); sid != "" {
		cfg.Connectors.Twilio = &TwilioConfig{
			AccountSID:  sid,
			AuthToken:   os.Getenv("MAYA_TWILIO_AUTH_TOKEN"),
			PhoneNumber: os.Getenv("MAYA_TWILIO_PHONE_NUMBER"),
			Port:        getenvInt("MAYA_TWILIO_PORT", 5000),
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Bot.Name == "" {
		c.Bot.Name = "Maya"
	}
	if c.Bot.MaxTokens <= 0 {
		c.Bot.MaxTokens = 150
	}
	if c.Bot.PremiumMaxTokens <= 0 {
		c.Bot.PremiumMaxTokens = 300
	}
	if c.Bot.Temperature == 0 {
		c.Bot.Temperature = 0.7
	}
	if c.Admin.Host == "" {
		c.Admin.Host = "0.0.0.0"
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = 3000
	}
	if c.Admin.Username == "" {
		c.Admin.Username = "admin"
	}
	if c.Admin.Password == "" {
		c.Admin.Password = "admin"
	}
	if c.Connectors.Twilio != nil {
		if c.Connectors.Twilio.Host == "" {
			c.Connectors.Twilio.Host = "0.0.0.0"
		}
		if c.Connectors.Twilio.Port == 0 {
			c.Connectors.Twilio.Port = 5000
		}
	}
}

// Validate checks for required fields, collecting every problem into a single
// error so the operator sees the full list at startup.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Providers) == 0 {
		errs = append(errs, "at least one provider is required")
	}
	for name, p := range c.Providers {
		if p.APIKey == "" {
			errs = append(errs, fmt.Sprintf("providers.%s.api_key is required", name))
		}
		switch p.Type {
		case "", "gemini", "openai":
		default:
			errs = append(errs, fmt.Sprintf("providers.%s.type %q is unknown (want gemini or openai)", name, p.Type))
		}
	}
	if _, ok := c.Providers["default"]; len(c.Providers) > 0 && !ok {
		errs = append(errs, `a provider named "default" is required`)
	}

	if c.Connectors.Telegram != nil && c.Connectors.Telegram.Token == "" {
		errs = append(errs, "connectors.telegram.token is required")
	}
	if tw := c.Connectors.Twilio; tw != nil {
		if tw.AccountSID == "" {
			errs = append(errs, "connectors.twilio.account_sid is required")
		}
		if tw.AuthToken == "" {
			errs = append(errs, "connectors.twilio.auth_token is required")
		}
		if tw.PhoneNumber == "" {
			errs = append(errs, "connectors.twilio.phone_number is required")
		}
	}
	if c.Connectors.Telegram == nil && c.Connectors.Twilio == nil {
		errs = append(errs, "at least one connector (telegram or twilio) is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseInt64List(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		result = append(result, n)
	}
	return result, nil
}
