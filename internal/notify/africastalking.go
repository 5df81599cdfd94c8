package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/Proton-105/pricechek-rider/internal/errors"
	"github.com/Proton-105/pricechek-rider/pkg/config"
	"github.com/Proton-105/pricechek-rider/pkg/metrics"
)

const (
	sandboxBaseURL    = "https://api.sandbox.africastalking.com"
	productionBaseURL = "https://api.africastalking.com"
	messagingPath     = "/version1/messaging"

	maxResponseBytes = 64 << 10
)

// AfricasTalking sends SMS through the Africa's Talking messaging API.
type AfricasTalking struct {
	client      *http.Client
	endpoint    string
	username    string
	apiKey      string
	sender      string
	countryCode string
	retry       apperrors.RetryOptions
	breaker     *apperrors.CircuitBreaker
	log         *slog.Logger
}

type sendResponse struct {
	SMSMessageData struct {
		Message    string      `json:"Message"`
		Recipients []recipient `json:"Recipients"`
	} `json:"SMSMessageData"`
}

type recipient struct {
	StatusCode int    `json:"statusCode"`
	Number     string `json:"number"`
	Status     string `json:"status"`
	Cost       string `json:"cost"`
	MessageID  string `json:"messageId"`
}

// NewAfricasTalking builds the gateway client. Missing credentials are a construction error.
func NewAfricasTalking(cfg config.AfricasTalkingConfig, countryCode string, log *slog.Logger) (*AfricasTalking, error) {
	if cfg.Username == "" || cfg.APIKey == "" {
		return nil, errors.New("africastalking: username and api key are required")
	}
	if !cfg.SSLVerify && cfg.Env == "production" {
		return nil, errors.New("africastalking: ssl verification can only be disabled outside production")
	}
	if log == nil {
		log = slog.Default()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sandboxBaseURL
		if cfg.Env == "production" {
			baseURL = productionBaseURL
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.SSLVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // sandbox only, rejected for production above
		log.Warn("africastalking tls verification disabled", slog.String("env", cfg.Env))
	}

	breaker := apperrors.NewCircuitBreaker()
	breaker.OnStateChange(func(from, to apperrors.State) {
		log.Warn("sms gateway circuit changed", slog.String("from", from.String()), slog.String("to", to.String()))
	})

	return &AfricasTalking{
		client:      &http.Client{Timeout: timeout, Transport: transport},
		endpoint:    strings.TrimRight(baseURL, "/") + messagingPath,
		username:    cfg.Username,
		apiKey:      cfg.APIKey,
		sender:      cfg.Sender(),
		countryCode: countryCode,
		retry: apperrors.RetryOptions{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
		},
		breaker: breaker,
		log:     log,
	}, nil
}

// Send delivers msg, retrying transient failures. The configured sender wins over msg.From.
func (c *AfricasTalking) Send(ctx context.Context, msg *Message) error {
	if msg == nil || strings.TrimSpace(msg.Body) == "" {
		metrics.RecordNotification("permanent")
		return apperrors.NewNotificationError(false, errors.New("empty message"))
	}

	to := NormalizePhone(msg.To, c.countryCode)
	from := msg.From
	if c.sender != "" {
		from = c.sender
	}

	err := c.breaker.Call(func() error {
		return apperrors.WithRetryOptions(ctx, c.retry, func() error {
			return c.post(ctx, to, from, msg)
		})
	})
	if errors.Is(err, apperrors.ErrCircuitOpen) {
		err = apperrors.NewNotificationError(true, err)
	}

	if err != nil {
		result := "permanent"
		if apperrors.IsRetryable(err) {
			result = "transient"
		}
		metrics.RecordNotification(result)

		c.log.WarnContext(ctx, "sms send failed",
			slog.String("recipient", to),
			slog.String("result", result),
			slog.Any("error", err),
		)
		return err
	}

	metrics.RecordNotification("sent")
	c.log.InfoContext(ctx, "sms sent",
		slog.String("recipient", to),
		slog.String("message_id", msg.ID),
	)

	return nil
}

func (c *AfricasTalking) post(ctx context.Context, to, from string, msg *Message) error {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("to", to)
	form.Set("message", msg.Body)
	if from != "" {
		form.Set("from", from)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return apperrors.NewNotificationError(false, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("apiKey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return apperrors.NewNotificationError(false, ctx.Err())
		}
		return apperrors.NewNotificationError(true, fmt.Errorf("africastalking request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperrors.NewNotificationError(true, fmt.Errorf("read africastalking response: %w", err))
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return apperrors.NewNotificationError(true, fmt.Errorf("africastalking http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewNotificationError(false, fmt.Errorf("africastalking http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var payload sendResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return apperrors.NewNotificationError(false, fmt.Errorf("decode africastalking response: %w", err))
	}

	if len(payload.SMSMessageData.Recipients) == 0 {
		return apperrors.NewNotificationError(false, fmt.Errorf("africastalking rejected message: %s", payload.SMSMessageData.Message))
	}

	rcpt := payload.SMSMessageData.Recipients[0]
	switch {
	case rcpt.StatusCode >= 100 && rcpt.StatusCode <= 102:
		msg.ID = rcpt.MessageID
		return nil
	case rcpt.StatusCode >= 500:
		return apperrors.NewNotificationError(true, fmt.Errorf("africastalking status %d %s", rcpt.StatusCode, rcpt.Status))
	default:
		return apperrors.NewNotificationError(false, fmt.Errorf("africastalking status %d %s", rcpt.StatusCode, rcpt.Status))
	}
}
