// Package searchindex отправляет обработанные RMA в search-service (best-effort, не блокирует API).
package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/psds-microservice/rma-service/internal/logger"
)

const indexTimeout = 5 * time.Second

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient возвращает клиент. Если baseURL пустой, Index ничего не делает.
func NewClient(baseURL string, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   indexTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: logger.Or(log).With("component", "searchindex"),
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// Index отправляет документ RMA (POST /search/index/rma).
func (c *Client) Index(ctx context.Context, rmaNumber string, doc map[string]any) error {
	if !c.Enabled() {
		return nil
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("searchindex: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search/index/rma", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("searchindex: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("searchindex: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("searchindex: status %d for rma %s", resp.StatusCode, rmaNumber)
	}
	return nil
}

// IndexAsync вызывает Index в отдельной горутине; ошибки только логируются.
func (c *Client) IndexAsync(rmaNumber string, doc map[string]any) {
	if !c.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		defer cancel()
		if err := c.Index(ctx, rmaNumber, doc); err != nil {
			c.log.Warn("index rma failed", "rma_number", rmaNumber, "error", err)
		}
	}()
}
