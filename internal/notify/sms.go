package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lana/internal/core"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

type SMSConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	// BaseURL overrides the Twilio API root.
	BaseURL string
}

func (c SMSConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

// SMSChannel sends text messages through the Twilio Messages API.
type SMSChannel struct {
	cfg    SMSConfig
	client *http.Client
}

func NewSMSChannel(cfg SMSConfig) *SMSChannel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = twilioBaseURL
	}
	return &SMSChannel{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SMSChannel) Name() string { return "sms" }

// Accepts only users with a phone number on file.
func (s *SMSChannel) Accepts(u core.User) bool {
	return s.cfg.Enabled() && strings.TrimSpace(u.Phone) != ""
}

func (s *SMSChannel) Send(ctx context.Context, u core.User, subject, message string) error {
	form := url.Values{}
	form.Set("To", u.Phone)
	form.Set("From", s.cfg.From)
	form.Set("Body", subject+": "+message)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", strings.TrimRight(s.cfg.BaseURL, "/"), url.PathEscape(s.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send sms: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
