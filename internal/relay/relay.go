// Package relay implements the message-relay loop: it bridges an inbound chat
// message to an AI-generated reply. One inbound message yields at most one
// reply, and no failure ever escapes to the connector's listening loop.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maya-labs/maya/internal/connector"
	"github.com/maya-labs/maya/internal/metrics"
	"github.com/maya-labs/maya/internal/provider"
)

// Canned replies sent when the AI provider cannot produce a usable completion.
// A broken or empty completion is never relayed to the user.
const (
	fallbackGeneric   = "I'm having trouble processing that right now. Could you try again?"
	fallbackEmpty     = "I apologize, but I couldn't generate a response. Please try again."
	fallbackRateLimit = "I'm receiving too many requests right now. Please try again in a moment."
	fallbackQuota     = "I apologize, but I've reached my usage limit. Please try again later."
	fallbackAuth      = "I'm having trouble accessing my AI capabilities. Please contact support."
)

// Options configures a Relay. All state the relay needs is passed in
// explicitly; nothing is read from ambient globals.
type Options struct {
	Persona          string // Initial persona; empty uses DefaultPersona
	MaxTokens        int    // Token budget for regular chats (default 150)
	PremiumMaxTokens int    // Token budget for premium chats (default 300)
	Temperature      float64
	Metrics          *metrics.Collector
	Logger           *slog.Logger
}

// Relay bridges inbound chat messages to AI completions.
type Relay struct {
	prov        provider.Provider
	persona     *PersonaStore
	maxTokens   int
	premiumMax  int
	temperature float64
	metrics     *metrics.Collector
	logger      *slog.Logger

	mu      sync.Mutex
	premium map[string]bool // chatID → premium flag, process-local
}

// New creates a Relay backed by the given provider.
func New(prov provider.Provider, opts Options) *Relay {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 150
	}
	if opts.PremiumMaxTokens <= 0 {
		opts.PremiumMaxTokens = 300
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}
	return &Relay{
		prov:        prov,
		persona:     NewPersonaStore(opts.Persona),
		maxTokens:   opts.MaxTokens,
		premiumMax:  opts.PremiumMaxTokens,
		temperature: opts.Temperature,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		premium:     make(map[string]bool),
	}
}

// HandleMessage is the relay loop body. For a non-empty inbound message it
// returns exactly one reply for the same chat; for empty input it returns ""
// without contacting the provider. It never returns an error for provider
// failures — those are translated into canned fallback replies so the
// connector's listening loop keeps running.
func (r *Relay) HandleMessage(ctx context.Context, msg connector.InboundMessage) (string, error) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		r.logger.Debug("skipping empty message", "channel", msg.Channel, "chat_id", msg.ChatID)
		return "", nil
	}

	eventID := uuid.NewString()
	logger := r.logger.With("event_id", eventID, "channel", msg.Channel, "chat_id", msg.ChatID)
	logger.Info("handling message", "sender_id", msg.SenderID, "len", len(text))
	r.metrics.Counter("maya_messages_total", "Total inbound messages handled").Inc()

	req := provider.GenerateRequest{
		System:      r.persona.Get(),
		Prompt:      text,
		MaxTokens:   r.tokenBudget(msg.ChatID),
		Temperature: r.temperature,
	}

	start := time.Now()
	resp, err := r.prov.Generate(ctx, req)
	r.metrics.Histogram("maya_provider_latency_seconds", "AI provider call latency in seconds",
		[]float64{0.5, 1, 2, 5, 10, 30, 60, 120}).Observe(time.Since(start).Seconds())

	if err != nil {
		r.metrics.Counter("maya_failures_total", "Total AI provider failures").Inc()
		logger.Error("provider call failed", "provider", r.prov.Name(), "error", err)
		return fallbackFor(err), nil
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		r.metrics.Counter("maya_failures_total", "Total AI provider failures").Inc()
		logger.Error("provider returned empty completion", "provider", r.prov.Name())
		return fallbackEmpty, nil
	}

	r.metrics.Counter("maya_replies_total", "Total replies sent").Inc()
	logger.Info("reply generated", "tokens", resp.Usage.TotalTokens())
	return resp.Text, nil
}

// TogglePremium flips the premium flag for a chat and returns a
// user-facing confirmation. The flag only changes the reply token budget;
// it is not persisted across restarts.
func (r *Relay) TogglePremium(chatID string) string {
	r.mu.Lock()
	r.premium[chatID] = !r.premium[chatID]
	enabled := r.premium[chatID]
	r.mu.Unlock()

	r.logger.Info("premium toggled", "chat_id", chatID, "enabled", enabled)
	if enabled {
		return "Premium features enabled"
	}
	return "Premium features disabled"
}

// Persona returns the current persona text.
func (r *Relay) Persona() string { return r.persona.Get() }

// SetPersona replaces the persona used for subsequent messages.
func (r *Relay) SetPersona(p string) error {
	if strings.TrimSpace(p) == "" {
		return fmt.Errorf("relay: persona cannot be empty")
	}
	r.persona.Set(p)
	r.logger.Info("persona updated", "len", len(p))
	return nil
}

func (r *Relay) tokenBudget(chatID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.premium[chatID] {
		return r.premiumMax
	}
	return r.maxTokens
}

// fallbackFor maps a provider error to the canned reply the user should see.
func fallbackFor(err error) string {
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429 && strings.Contains(strings.ToLower(apiErr.Body), "quota"):
			return fallbackQuota
		case apiErr.StatusCode == 429:
			return fallbackRateLimit
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return fallbackAuth
		}
	}
	return fallbackGeneric
}
