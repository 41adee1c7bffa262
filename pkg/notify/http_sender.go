package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultSendGridURL  = "https://api.sendgrid.com/v3/mail/send"
	defaultTwilioBase   = "https://api.twilio.com/2010-04-01"
	defaultSenderName   = "Creatia"
	maxErrorBodyLogSize = 512
)

// HTTPConfig holds provider credentials for HTTPSender.
type HTTPConfig struct {
	SendGridAPIKey   string
	EmailFrom        string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	Timeout          time.Duration

	SendGridURL   string
	TwilioBaseURL string
}

// HTTPSender posts to SendGrid for email and Twilio for SMS.
type HTTPSender struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPSender builds a sender. Empty provider URLs use the public endpoints.
func NewHTTPSender(cfg HTTPConfig) *HTTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.SendGridURL == "" {
		cfg.SendGridURL = defaultSendGridURL
	}
	if cfg.TwilioBaseURL == "" {
		cfg.TwilioBaseURL = defaultTwilioBase
	}
	return &HTTPSender{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPayload struct {
	From             sendGridAddress           `json:"from"`
	Personalizations []sendGridPersonalization `json:"personalizations"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

// SendEmail sends a plain-text email through SendGrid.
func (s *HTTPSender) SendEmail(ctx context.Context, to, subject, body, senderName string) error {
	if s.cfg.SendGridAPIKey == "" || s.cfg.EmailFrom == "" || to == "" {
		return ErrNotConfigured
	}
	if senderName == "" {
		senderName = defaultSenderName
	}

	payload := sendGridPayload{
		From:             sendGridAddress{Email: s.cfg.EmailFrom, Name: senderName},
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: to}}}},
		Subject:          subject,
		Content:          []sendGridContent{{Type: "text/plain", Value: body}},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode sendgrid payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.SendGridURL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build sendgrid request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.SendGridAPIKey)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, "sendgrid")
}

// SendSMS sends a text message through Twilio.
func (s *HTTPSender) SendSMS(ctx context.Context, to, body string) error {
	if s.cfg.TwilioAccountSID == "" || s.cfg.TwilioAuthToken == "" || s.cfg.TwilioFromNumber == "" || to == "" {
		return ErrNotConfigured
	}
	form := url.Values{}
	form.Set("From", s.cfg.TwilioFromNumber)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", strings.TrimRight(s.cfg.TwilioBaseURL, "/"), s.cfg.TwilioAccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build twilio request: %w", err)
	}
	req.SetBasicAuth(s.cfg.TwilioAccountSID, s.cfg.TwilioAuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, "twilio")
}

func (s *HTTPSender) do(req *http.Request, provider string) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", provider, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLogSize))
		return fmt.Errorf("%s responded %d: %s", provider, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
