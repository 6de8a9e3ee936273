package connector

import (
	"context"
	"time"
)

// Connector is the interface for external messaging platforms (Telegram, SMS, etc.).
type Connector interface {
	// Name returns the connector type (e.g., "telegram", "twilio").
	Name() string
	// Start begins listening for inbound messages. Blocks until context is cancelled.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the connector.
	Stop() error
	// Send delivers an outbound reply to the external platform.
	Send(ctx context.Context, msg OutboundMessage) error
}

// InboundMessage is a user chat message received from an external platform.
// It is scoped to a single request-response cycle and never mutated.
type InboundMessage struct {
	Channel    string    // Connector name (e.g., "telegram")
	SenderID   string    // Platform-specific sender identifier
	ChatID     string    // Platform-specific chat identifier
	Text       string    // Message text
	ReceivedAt time.Time // When the connector received the message
}

// OutboundMessage is the bot's reply sent back to a chat. Sent once, then discarded.
type OutboundMessage struct {
	ChatID string // Platform-specific chat identifier
	Text   string // Reply text
}

// Handler produces the bot's reply for an inbound message. An empty reply
// means the message was skipped and nothing should be sent. Connectors must
// treat handler errors as per-event failures: log and keep listening.
type Handler func(ctx context.Context, msg InboundMessage) (reply string, err error)
