package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opsguard/opsguard/internal/alerter"
	"github.com/opsguard/opsguard/internal/types"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// Channel represents a notification channel
type Channel struct {
	Name string
	URL  string
}

// Options configures the Apprise notifier
type Options struct {
	// APIURL is the Apprise API base URL, e.g. http://apprise:8000.
	APIURL string
	// Routes lists the channels notified per severity.
	Routes map[types.Severity][]Channel
	// MinLevel is the lowest escalation level that is notified.
	MinLevel int
	Timeout  time.Duration
}

// Notifier sends escalations to Apprise. It is registered as an escalation
// subscriber.
type Notifier struct {
	logger   zerolog.Logger
	client   *http.Client
	apiURL   string
	routes   map[types.Severity][]Channel
	minLevel int
}

// NewNotifier creates a new Apprise notifier
func NewNotifier(opts Options, logger zerolog.Logger) *Notifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Notifier{
		logger: logger.With().Str("component", "notifier").Logger(),
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		apiURL:   strings.TrimRight(opts.APIURL, "/"),
		routes:   opts.Routes,
		minLevel: opts.MinLevel,
	}
}

// Name identifies the subscriber
func (n *Notifier) Name() string {
	return "apprise"
}

// HandleEscalation sends the escalation to every channel routed for the
// alert's severity. Every channel is attempted; failures are combined.
func (n *Notifier) HandleEscalation(ctx context.Context, evt alerter.Escalation) error {
	if evt.Level < n.minLevel {
		return nil
	}

	channels := n.routes[evt.Alert.Severity]
	if len(channels) == 0 {
		n.logger.Debug().
			Str("alert_id", evt.Alert.ID).
			Str("severity", string(evt.Alert.Severity)).
			Msg("No channels routed for severity")
		return nil
	}

	title, body := formatMessage(evt)

	var errs error
	for _, channel := range channels {
		if err := n.sendToApprise(ctx, channel.URL, title, body, evt.Alert.Severity); err != nil {
			n.logger.Error().
				Err(err).
				Str("channel", channel.Name).
				Str("alert_id", evt.Alert.ID).
				Msg("Failed to send notification")
			errs = multierr.Append(errs, fmt.Errorf("channel %s: %w", channel.Name, err))
			continue
		}
		n.logger.Info().
			Str("channel", channel.Name).
			Str("alert_id", evt.Alert.ID).
			Int("level", evt.Level).
			Msg("Notification sent")
	}
	return errs
}

// formatMessage formats an escalation into a notification title and body
func formatMessage(evt alerter.Escalation) (string, string) {
	var emoji string
	switch evt.Alert.Severity {
	case types.SeverityCritical:
		emoji = "🔴"
	case types.SeverityHigh:
		emoji = "🟠"
	case types.SeverityMedium:
		emoji = "⚠️"
	default:
		emoji = "ℹ️"
	}

	title := fmt.Sprintf("%s OpsGuard escalation L%d: %s", emoji, evt.Level, evt.Alert.Title)
	body := fmt.Sprintf("%s\n\nKind: %s\nSeverity: %s\nSource: %s\nUnacknowledged for: %s\nPriority: %.1f",
		evt.Alert.Message, evt.Alert.Kind, evt.Alert.Severity, evt.Alert.Source,
		evt.Age.Round(time.Second), evt.Score)

	return title, body
}

// sendToApprise posts one message to the Apprise API stateless notify endpoint
func (n *Notifier) sendToApprise(ctx context.Context, serviceURL, title, body string, severity types.Severity) error {
	if n.apiURL == "" {
		n.logger.Info().
			Str("url", serviceURL).
			Str("title", title).
			Msg("Would send notification (Apprise not configured)")
		return nil
	}

	payload := map[string]string{
		"urls":   serviceURL,
		"title":  title,
		"body":   body,
		"type":   notifyType(severity),
		"format": "text",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL+"/notify", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("apprise API error: %d - %s", resp.StatusCode, string(respBody))
	}

	return nil
}

func notifyType(severity types.Severity) string {
	switch severity {
	case types.SeverityCritical, types.SeverityHigh:
		return "failure"
	case types.SeverityMedium:
		return "warning"
	default:
		return "info"
	}
}
