package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maya-labs/maya/internal/admin"
	"github.com/maya-labs/maya/internal/config"
	"github.com/maya-labs/maya/internal/connector"
	"github.com/maya-labs/maya/internal/connector/telegram"
	"github.com/maya-labs/maya/internal/connector/twilio"
	"github.com/maya-labs/maya/internal/logbuf"
	"github.com/maya-labs/maya/internal/metrics"
	"github.com/maya-labs/maya/internal/provider"
	"github.com/maya-labs/maya/internal/relay"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file (default: environment variables)")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("mayad starting", "bot", cfg.Bot.Name)

	// Providers
	providers := make(map[string]provider.Provider)
	for name, pcfg := range cfg.Providers {
		switch pcfg.Type {
		case "openai":
			var opts []provider.OpenAIOption
			if pcfg.BaseURL != "" {
				opts = append(opts, provider.WithBaseURL(pcfg.BaseURL))
			}
			if pcfg.Model != "" {
				opts = append(opts, provider.WithModel(pcfg.Model))
			}
			opts = append(opts, provider.WithLogger(logger.With("provider", name)))
			providers[name] = provider.NewOpenAI(pcfg.APIKey, opts...)
		default: // "gemini" or empty
			var opts []provider.GeminiOption
			if pcfg.BaseURL != "" {
				opts = append(opts, provider.WithGeminiBaseURL(pcfg.BaseURL))
			}
			if pcfg.Model != "" {
				opts = append(opts, provider.WithGeminiModel(pcfg.Model))
			}
			opts = append(opts, provider.WithGeminiLogger(logger.With("provider", name)))
			providers[name] = provider.NewGemini(pcfg.APIKey, opts...)
		}
		logger.Info("provider initialized", "name", name, "type", pcfg.Type, "model", pcfg.Model)
	}

	prov, ok := providers["default"]
	if !ok {
		logger.Error("no 'default' provider configured")
		os.Exit(1)
	}

	// Relay
	collector := metrics.NewCollector()
	bot := relay.New(prov, relay.Options{
		Persona:          cfg.Bot.Persona,
		MaxTokens:        cfg.Bot.MaxTokens,
		PremiumMaxTokens: cfg.Bot.PremiumMaxTokens,
		Temperature:      cfg.Bot.Temperature,
		Metrics:          collector,
		Logger:           logger.With("component", "relay"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := connector.Handler(bot.HandleMessage)

	// Connectors
	if cfg.Connectors.Telegram != nil {
		tgConn, err := telegram.New(
			telegram.Config{
				Token:         cfg.Connectors.Telegram.Token,
				BotName:       cfg.Bot.Name,
				AllowFrom:     cfg.Connectors.Telegram.AllowFrom,
				TogglePremium: bot.TogglePremium,
			},
			handler,
			logger.With("connector", "telegram"),
		)
		if err != nil {
			logger.Error("failed to init telegram connector", "error", err)
			os.Exit(1)
		}
		go safeGo(logger, "telegram", func() { tgConn.Start(ctx) })
	}

	if cfg.Connectors.Twilio != nil {
		twConn := twilio.New(
			twilio.Config{
				AccountSID:  cfg.Connectors.Twilio.AccountSID,
				AuthToken:   cfg.Connectors.Twilio.AuthToken,
				PhoneNumber: cfg.Connectors.Twilio.PhoneNumber,
				Host:        cfg.Connectors.Twilio.Host,
				Port:        cfg.Connectors.Twilio.Port,
			},
			handler,
			logger.With("connector", "twilio"),
		)
		go safeGo(logger, "twilio", func() { twConn.Start(ctx) })
		logger.Info("twilio connector started")
	}

	// Admin server
	adminSrv := admin.NewServer(bot, admin.Config{
		Host:     cfg.Admin.Host,
		Port:     cfg.Admin.Port,
		Username: cfg.Admin.Username,
		Password: cfg.Admin.Password,
	}, logger.With("component", "admin"), logBuf, collector)

	go safeGo(logger, "admin-server", func() { adminSrv.Start(ctx) })
	logger.Info("admin server started", "port", cfg.Admin.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	logger.Info("mayad stopped")
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
