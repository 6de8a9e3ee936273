package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validJSON = `{
  "bot": {
    "name": "Maya",
    "max_tokens": 200,
    "premium_max_tokens": 400
  },
  "providers": {
    "default": {
      "type": "gemini",
      "api_key": "test-gemini-key",
      "model": "gemini-1.5-flash"
    }
  },
  "connectors": {
    "telegram": {
      "token": "123456:ABC",
      "allow_from": [100, 200]
    },
    "twilio": {
      "account_sid": "ACxxx",
      "auth_token": "tok",
      "phone_number": "+15550001111"
    }
  },
  "admin": {
    "port": 3000,
    "username": "ops",
    "password": "secret"
  }
}`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(validJSON), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Bot.Name != "Maya" {
		t.Errorf("bot.name = %q", cfg.Bot.Name)
	}
	if cfg.Bot.MaxTokens != 200 || cfg.Bot.PremiumMaxTokens != 400 {
		t.Errorf("token budgets = %d/%d", cfg.Bot.MaxTokens, cfg.Bot.PremiumMaxTokens)
	}
	if cfg.Bot.Temperature != 0.7 {
		t.Errorf("default temperature = %v", cfg.Bot.Temperature)
	}
	if cfg.Providers["default"].APIKey != "test-gemini-key" {
		t.Errorf("provider api_key = %q", cfg.Providers["default"].APIKey)
	}
	if cfg.Connectors.Telegram == nil || cfg.Connectors.Telegram.Token != "123456:ABC" {
		t.Errorf("telegram = %+v", cfg.Connectors.Telegram)
	}
	if len(cfg.Connectors.Telegram.AllowFrom) != 2 {
		t.Errorf("allow_from = %v", cfg.Connectors.Telegram.AllowFrom)
	}
	if cfg.Connectors.Twilio == nil || cfg.Connectors.Twilio.Port != 5000 {
		t.Errorf("twilio = %+v", cfg.Connectors.Twilio)
	}
	if cfg.Admin.Username != "ops" || cfg.Admin.Password != "secret" {
		t.Errorf("admin = %+v", cfg.Admin)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte("not json"), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestValidate_MissingProvider(t *testing.T) {
	cfg := &Config{
		Connectors: ConnectorConfig{Telegram: &TelegramConfig{Token: "t"}},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "at least one provider") {
		t.Errorf("expected provider error, got %v", err)
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := &Config{
		Providers:  map[string]ProviderConfig{"default": {Type: "gemini"}},
		Connectors: ConnectorConfig{Telegram: &TelegramConfig{Token: "t"}},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "providers.default.api_key") {
		t.Errorf("expected api_key error, got %v", err)
	}
}

func TestValidate_UnknownProviderType(t *testing.T) {
	cfg := &Config{
		Providers:  map[string]ProviderConfig{"default": {Type: "cohere", APIKey: "k"}},
		Connectors: ConnectorConfig{Telegram: &TelegramConfig{Token: "t"}},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "unknown") {
		t.Errorf("expected type error, got %v", err)
	}
}

func TestValidate_NoConnectors(t *testing.T) {
	cfg := &Config{
		Providers: map[string]ProviderConfig{"default": {APIKey: "k"}},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "at least one connector") {
		t.Errorf("expected connector error, got %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Providers:  map[string]ProviderConfig{"default": {}},
		Connectors: ConnectorConfig{Twilio: &TwilioConfig{}},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"api_key", "account_sid", "auth_token", "phone_number"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestLoadFromEnv_Gemini(t *testing.T) {
	t.Setenv("MAYA_GEMINI_API_KEY", "gk")
	t.Setenv("MAYA_TELEGRAM_TOKEN", "123:ABC")
	t.Setenv("MAYA_TELEGRAM_ALLOW_FROM", "100, 200")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	p := cfg.Providers["default"]
	if p.Type != "gemini" || p.APIKey != "gk" {
		t.Errorf("provider = %+v", p)
	}
	if cfg.Connectors.Telegram.Token != "123:ABC" {
		t.Errorf("telegram token = %q", cfg.Connectors.Telegram.Token)
	}
	if len(cfg.Connectors.Telegram.AllowFrom) != 2 || cfg.Connectors.Telegram.AllowFrom[1] != 200 {
		t.Errorf("allow_from = %v", cfg.Connectors.Telegram.AllowFrom)
	}
	if cfg.Admin.Port != 3000 || cfg.Admin.Username != "admin" {
		t.Errorf("admin defaults = %+v", cfg.Admin)
	}
}

func TestLoadFromEnv_DeepSeek(t *testing.T) {
	t.Setenv("MAYA_GEMINI_API_KEY", "")
	t.Setenv("MAYA_OPENAI_API_KEY", "")
	t.Setenv("MAYA_DEEPSEEK_API_KEY", "dk")
	t.Setenv("MAYA_TELEGRAM_TOKEN", "123:ABC")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	p := cfg.Providers["default"]
	if p.Type != "openai" {
		t.Errorf("type = %q", p.Type)
	}
	if p.BaseURL != "https://api.deepseek.com" {
		t.Errorf("base_url = %q", p.BaseURL)
	}
	if p.Model != "deepseek-chat" {
		t.Errorf("model = %q", p.Model)
	}
}

func TestLoadFromEnv_MissingEverything(t *testing.T) {
	// No provider keys, no connectors: startup must fail with a clear message.
	for _, key := range []string{"MAYA_GEMINI_API_KEY", "MAYA_OPENAI_API_KEY", "MAYA_DEEPSEEK_API_KEY", "MAYA_TELEGRAM_TOKEN", "MAYA_TWILIO_ACCOUNT_SID"} {
		t.Setenv(key, "")
	}
	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "provider") {
		t.Errorf("error = %v", err)
	}
}
