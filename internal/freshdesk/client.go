// Package freshdesk: клиент REST API Freshdesk v2: получение тикета с перепиской.
package freshdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/psds-microservice/rma-service/internal/errs"
)

const serviceName = "Freshdesk"

type Config struct {
	// Domain: поддомен: <domain>.freshdesk.com.
	Domain string
	// BaseURL перекрывает адрес, вычисленный из Domain.
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.freshdesk.com/api/v2", cfg.Domain)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// GetTicket загружает тикет вместе с перепиской и заявителем.
// Если тикета нет, возвращает (nil, nil).
func (c *Client) GetTicket(ctx context.Context, id string) (*Ticket, error) {
	u := fmt.Sprintf("%s/tickets/%s?include=conversations,requester", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errs.NewExternalServiceError(serviceName, err.Error())
	}
	req.SetBasicAuth(c.apiKey, "X")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.NewExternalServiceError(serviceName, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errs.NewAuthenticationError(serviceName, "check API key and domain")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, errs.NewExternalServiceError(serviceName, fmt.Sprintf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.NewExternalServiceError(serviceName, fmt.Sprintf("read body: %v", err))
	}
	var t Ticket
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, errs.NewExternalServiceError(serviceName, fmt.Sprintf("decode ticket: %v", err))
	}
	t.Raw = body
	return &t, nil
}
