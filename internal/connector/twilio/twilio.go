// Package twilio implements the SMS channel: inbound messages arrive on
// Twilio's message webhook and are answered inline with TwiML; outbound
// pushes go through the Twilio REST API.
package twilio

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	twilioclient "github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/maya-labs/maya/internal/connector"
)

// Config holds Twilio connector configuration.
type Config struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string // The bot's Twilio number, E.164
	Host        string // Webhook listen host
	Port        int    // Webhook listen port
}

// messageCreator is the slice of the Twilio REST client we use;
// narrowed for testing.
type messageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// Connector implements connector.Connector for Twilio SMS.
type Connector struct {
	config  Config
	handler connector.Handler
	logger  *slog.Logger
	api     messageCreator
	srv     *http.Server
}

// New creates a new Twilio connector.
func New(cfg Config, handler connector.Handler, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}

	client := twilioclient.NewRestClientWithParams(twilioclient.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	c := &Connector{
		config:  cfg,
		handler: handler,
		logger:  logger,
		api:     client.Api,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sms", c.handleSMS)

	c.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return c
}

func (c *Connector) Name() string { return "twilio" }

// Start serves the webhook endpoint. Blocks until context is cancelled.
func (c *Connector) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.srv.Shutdown(shutCtx)
	}()

	c.logger.Info("twilio webhook listening", "addr", c.srv.Addr)
	if err := c.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("twilio webhook: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the webhook server.
func (c *Connector) Stop() error {
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.srv.Shutdown(shutCtx)
}

// Send delivers an SMS via the Twilio REST API.
func (c *Connector) Send(_ context.Context, msg connector.OutboundMessage) error {
	if strings.TrimSpace(msg.Text) == "" {
		c.logger.Warn("skipping empty reply", "chat_id", msg.ChatID)
		return nil
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(msg.ChatID)
	params.SetFrom(c.config.PhoneNumber)
	params.SetBody(msg.Text)

	created, err := c.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio: send sms: %w", err)
	}
	if created.Sid != nil {
		c.logger.Info("sms sent", "sid", *created.Sid, "to", msg.ChatID)
	}
	return nil
}

// Handler returns the webhook handler, for mounting in tests.
func (c *Connector) Handler() http.Handler { return c.srv.Handler }

// handleSMS answers Twilio's message webhook. The reply is returned inline as
// TwiML; a handler failure still yields valid TwiML so the sender gets
// something rather than a carrier error.
func (c *Connector) handleSMS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	body := strings.TrimSpace(r.PostFormValue("Body"))
	from := r.PostFormValue("From")

	inbound := connector.InboundMessage{
		Channel:    "twilio",
		SenderID:   from,
		ChatID:     from,
		Text:       body,
		ReceivedAt: time.Now(),
	}

	reply, err := c.handler(r.Context(), inbound)
	if err != nil {
		c.logger.Error("handler error", "from", from, "error", err)
		writeTwiML(w, "Sorry, I'm having trouble processing your message.")
		return
	}
	writeTwiML(w, reply)
}

// twimlResponse is the minimal TwiML messaging response document.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

func writeTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/xml")
	out, err := xml.Marshal(twimlResponse{Message: message})
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Write([]byte(xml.Header))
	w.Write(out)
}
