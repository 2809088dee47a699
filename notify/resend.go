package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultResendEndpoint is the Resend send-email API.
const DefaultResendEndpoint = "https://api.resend.com/emails"

// ErrDelivery is returned when the mail API rejects a message.
var ErrDelivery = errors.New("mail delivery failed")

// ResendConfig configures a [ResendNotifier].
type ResendConfig struct {
	APIKey   string        `env:"API_KEY"`
	From     string        `env:"FROM"`
	Endpoint string        `env:"ENDPOINT"`
	LoginURL string        `env:"LOGIN_URL"`
	Timeout  time.Duration `env:"TIMEOUT"`
}

// ResendNotifier sends the flow emails through the Resend API.
type ResendNotifier struct {
	cfg    ResendConfig
	client *http.Client
	logger logrus.FieldLogger
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// NewResendNotifier validates cfg. A nil client gets one with cfg.Timeout
// (10s when unset).
func NewResendNotifier(cfg ResendConfig, client *http.Client, logger logrus.FieldLogger) (*ResendNotifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("resend api key required")
	}
	if cfg.From == "" {
		return nil, errors.New("resend sender address required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultResendEndpoint
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = "http://localhost:5173/login"
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &ResendNotifier{cfg: cfg, client: client, logger: logger}, nil
}

func (n *ResendNotifier) SendTwoFactorCode(ctx context.Context, email, code string) error {
	return n.send(ctx, email, "Two-factor code", twoFactorMail(code))
}

func (n *ResendNotifier) SendPasswordResetLink(ctx context.Context, email, link string) error {
	return n.send(ctx, email, "Password reset instructions", resetMail(link))
}

func (n *ResendNotifier) SendPasswordChanged(ctx context.Context, email string) error {
	return n.send(ctx, email, "Password changed", passwordChangedMail(n.cfg.LoginURL))
}

func (n *ResendNotifier) send(ctx context.Context, to, subject string, content mailContent) error {
	html, err := render(content)
	if err != nil {
		return fmt.Errorf("render mail: %w", err)
	}
	payload, err := json.Marshal(resendRequest{
		From:    n.cfg.From,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		n.logger.WithFields(logrus.Fields{
			"status":  resp.StatusCode,
			"subject": subject,
		}).Warn("resend rejected message")
		return fmt.Errorf("%w: status %d: %s", ErrDelivery, resp.StatusCode, bytes.TrimSpace(body))
	}

	n.logger.WithField("subject", subject).Debug("mail sent")
	return nil
}
