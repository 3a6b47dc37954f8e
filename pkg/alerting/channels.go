package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/smtp"
	"os"
	"strings"
	"time"
)

// Channel delivers alerts to one destination.
type Channel interface {
	// Name identifies the channel in logs.
	Name() string

	// Deliver sends one alert. Errors are logged, not retried; alerting
	// is best-effort by design.
	Deliver(ctx context.Context, alert *Alert) error
}

// LogChannel writes alerts to the structured log.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates the log channel.
func NewLogChannel() *LogChannel {
	return &LogChannel{logger: slog.Default().With("component", "alerting.log")}
}

// Name implements Channel.
func (c *LogChannel) Name() string { return "log" }

// Deliver implements Channel.
func (c *LogChannel) Deliver(_ context.Context, alert *Alert) error {
	c.logger.Warn("ALERT",
		"rule", alert.Rule,
		"provider", alert.Provider,
		"severity", string(alert.Severity),
		"message", alert.Message,
		"occurrences", alert.Occurrences,
		"escalated", alert.Escalated,
	)
	return nil
}

// ConsoleChannel prints alerts to stderr for operators tailing the process.
type ConsoleChannel struct{}

// NewConsoleChannel creates the console channel.
func NewConsoleChannel() *ConsoleChannel { return &ConsoleChannel{} }

// Name implements Channel.
func (c *ConsoleChannel) Name() string { return "console" }

// Deliver implements Channel.
func (c *ConsoleChannel) Deliver(_ context.Context, alert *Alert) error {
	marker := "ALERT"
	if alert.Escalated {
		marker = "ALERT [ESCALATED]"
	}
	fmt.Fprintf(os.Stderr, "%s %s [%s] %s provider=%s occurrences=%d\n",
		alert.FiredAt.Format(time.RFC3339), marker,
		strings.ToUpper(string(alert.Severity)), alert.Message,
		alert.Provider, alert.Occurrences)
	return nil
}

// WebhookChannel POSTs the alert as JSON to a configured endpoint.
type WebhookChannel struct {
	url    string
	client *http.Client
}

// NewWebhookChannel creates a webhook channel for the given URL.
func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Name implements Channel.
func (c *WebhookChannel) Name() string { return "webhook" }

// Deliver implements Channel.
func (c *WebhookChannel) Deliver(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// EmailConfig configures the SMTP channel.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// EmailChannel sends alerts over SMTP. Intended for escalated and critical
// alerts only; wiring it to every firing is a pager-fatigue machine.
type EmailChannel struct {
	cfg EmailConfig
}

// NewEmailChannel creates the SMTP channel.
func NewEmailChannel(cfg EmailConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg}
}

// Name implements Channel.
func (c *EmailChannel) Name() string { return "email" }

// Deliver implements Channel.
func (c *EmailChannel) Deliver(_ context.Context, alert *Alert) error {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}

	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Rule)
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\n\nprovider: %s\noccurrences: %d\nfired at: %s\n",
		c.cfg.From, strings.Join(c.cfg.To, ", "), subject,
		alert.Message, alert.Provider, alert.Occurrences,
		alert.FiredAt.Format(time.RFC3339))

	return smtp.SendMail(addr, auth, c.cfg.From, c.cfg.To, []byte(body))
}
