package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/maya-labs/maya/internal/connector"
)

const welcomeMessage = `Hello! I'm %s, your AI companion. I'm here to chat, support, and get to know you better.

You can:
- Just start chatting with me
- Use /premium to toggle premium features
- Use /help to see all available commands

Let me know how I can assist you today!`

const helpMessage = `Available commands:
/start - Start the conversation
/help - Show this help message
/premium - Toggle premium features

Just send me a message to chat!`

// Config holds Telegram connector configuration.
type Config struct {
	Token     string  // Bot token from @BotFather
	BotName   string  // Display name used in the welcome message
	AllowFrom []int64 // Allowed Telegram user IDs (empty = allow all)

	// TogglePremium flips premium mode for a chat and returns the
	// confirmation to send. Nil disables the /premium command.
	TogglePremium func(chatID string) string
}

// Connector implements connector.Connector for Telegram via long polling.
type Connector struct {
	bot     *tgbotapi.BotAPI
	config  Config
	handler connector.Handler
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// New creates a new Telegram connector.
func New(cfg Config, handler connector.Handler, logger *slog.Logger) (*Connector, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BotName == "" {
		cfg.BotName = "Maya"
	}

	logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	return &Connector{
		bot:     bot,
		config:  cfg,
		handler: handler,
		logger:  logger,
	}, nil
}

func (c *Connector) Name() string { return "telegram" }

// Start begins long-polling for updates. Blocks until context is cancelled.
// Every update is handled independently; a failure on one update never stops
// the polling loop.
func (c *Connector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := c.bot.GetUpdatesChan(u)

	c.logger.Info("telegram connector started", "bot", c.bot.Self.UserName)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			c.handleUpdate(ctx, update)

		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			c.logger.Info("telegram connector stopped")
			return ctx.Err()
		}
	}
}

// Stop gracefully shuts down the connector.
func (c *Connector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Send delivers a message to a Telegram chat.
func (c *Connector) Send(_ context.Context, msg connector.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat_id %q: %w", msg.ChatID, err)
	}

	if strings.TrimSpace(msg.Text) == "" {
		c.logger.Warn("skipping empty reply", "chat_id", msg.ChatID)
		return nil
	}

	tgMsg := tgbotapi.NewMessage(chatID, msg.Text)
	_, err = c.bot.Send(tgMsg)
	return err
}

func (c *Connector) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if len(c.config.AllowFrom) > 0 && !contains(c.config.AllowFrom, userID) {
		c.logger.Warn("unauthorized user", "user_id", userID, "username", msg.From.UserName)
		return
	}

	if msg.IsCommand() {
		c.handleCommand(msg)
		return
	}

	text := msg.Text
	if text == "" && msg.Caption != "" {
		text = msg.Caption
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	// Typing indicator while the AI call is in flight
	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	c.bot.Send(typing)

	inbound := connector.InboundMessage{
		Channel:    "telegram",
		SenderID:   strconv.FormatInt(userID, 10),
		ChatID:     strconv.FormatInt(chatID, 10),
		Text:       text,
		ReceivedAt: time.Unix(int64(msg.Date), 0),
	}

	reply, err := c.handler(ctx, inbound)
	if err != nil {
		c.logger.Error("handler error", "chat_id", chatID, "error", err)
		return
	}
	if reply == "" {
		return
	}

	if err := c.Send(ctx, connector.OutboundMessage{ChatID: inbound.ChatID, Text: reply}); err != nil {
		c.logger.Error("send failed", "chat_id", chatID, "error", err)
	}
}

func (c *Connector) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	var reply string
	switch msg.Command() {
	case "start":
		greeting := fmt.Sprintf(welcomeMessage, c.config.BotName)
		if msg.From.FirstName != "" {
			greeting = fmt.Sprintf("Hi %s! %s", msg.From.FirstName, greeting)
		}
		reply = greeting

	case "help":
		reply = helpMessage

	case "premium":
		if c.config.TogglePremium == nil {
			return
		}
		reply = c.config.TogglePremium(strconv.FormatInt(chatID, 10))

	default:
		reply = "Unknown command. Use /help to see what I can do."
	}

	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, reply)); err != nil {
		c.logger.Error("command reply failed", "chat_id", chatID, "command", msg.Command(), "error", err)
	}
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
