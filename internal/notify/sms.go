package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/config"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/normalize"
)

// SMSSender delivers short text messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// GupshupSMS sends SMS through the Gupshup messaging API.
type GupshupSMS struct {
	apiKey     string
	appName    string
	source     string
	baseURL    string
	httpClient *http.Client
}

// NewGupshupSMS returns a sender for cfg, or nil when no API key is set.
func NewGupshupSMS(cfg config.SMSConfig) *GupshupSMS {
	if cfg.APIKey == "" {
		return nil
	}
	return &GupshupSMS{
		apiKey:  cfg.APIKey,
		appName: cfg.AppName,
		source:  cfg.SourceNumber,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SendSMS posts message to the destination number. Any 2xx response counts
// as accepted.
func (g *GupshupSMS) SendSMS(ctx context.Context, to, message string) error {
	dest := strings.TrimPrefix(normalize.Phone(to), "+")
	if dest == "" {
		return fmt.Errorf("invalid destination number %q", to)
	}

	form := url.Values{}
	form.Set("channel", "sms")
	form.Set("source", g.source)
	form.Set("destination", dest)
	form.Set("message", message)
	form.Set("src.name", g.appName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/msg", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apikey", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gupshup error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}
