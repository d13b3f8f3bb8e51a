// Package quantd provides a small Go client for the quantd operational API.
package quantd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"quantd/internal/domain"
)

// Client talks to a running quantd instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API served at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Status retrieves the data status report for one symbol.
func (c *Client) Status(ctx context.Context, symbol string) (domain.DataStatusReport, error) {
	var report domain.DataStatusReport
	err := c.getJSON(ctx, "/api/status/"+symbol, &report)
	return report, err
}

// Portfolio retrieves the live portfolio document.
func (c *Client) Portfolio(ctx context.Context) (*domain.PortfolioDocument, error) {
	var doc domain.PortfolioDocument
	if err := c.getJSON(ctx, "/api/portfolio", &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Healthy reports whether the instance answers its health check.
func (c *Client) Healthy(ctx context.Context) bool {
	var out map[string]string
	return c.getJSON(ctx, "/healthz", &out) == nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, snippet)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
