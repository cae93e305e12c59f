// Package catalog creates bespoke products in the storefront catalog
// through the quiz backend.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// StatusError is returned when the catalog answers with a non-2xx status.
// Code and Message come from the structured error body when present.
type StatusError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("catalog returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("catalog returned %d", e.Status)
}

// Client talks to the product-creation endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the quiz backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// NewClientWithHTTP creates a Client that sends through hc.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	c := NewClient(baseURL)
	c.httpClient = hc
	return c
}

// Submit creates a product from d. It makes exactly one attempt.
func (c *Client) Submit(ctx context.Context, d Descriptor) (*Product, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshaling descriptor: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/new-product", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeStatusError(resp)
	}

	var p Product
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding product: %w", err)
	}
	if p.ID == 0 {
		return nil, fmt.Errorf("catalog response has no product id")
	}
	return &p, nil
}

func decodeStatusError(resp *http.Response) error {
	se := &StatusError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return se
	}
	if json.Unmarshal(data, se) != nil {
		se.Message = strings.TrimSpace(string(data))
	}
	return se
}
