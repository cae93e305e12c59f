// Package records writes the best-effort side records of a checkout:
// analytics events, the product recommendation, the answered quiz and the
// serum correlation metadata.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/baseplus/skinquiz/internal/catalog"
	"github.com/baseplus/skinquiz/internal/quiz"
)

const defaultTimeout = 30 * time.Second

// StatusError is returned when a record endpoint answers with a non-2xx status.
type StatusError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s returned %d: %s", e.Endpoint, e.Status, e.Body)
	}
	return fmt.Sprintf("%s returned %d", e.Endpoint, e.Status)
}

// Client writes records to the quiz backend's database endpoints.
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

// SaveProduct stores the recommendation record.
func (c *Client) SaveProduct(ctx context.Context, rec DatabaseRecord) error {
	return c.post(ctx, "/save-product", rec)
}

type quizPayload struct {
	QuizID        string          `json:"quizId"`
	QuizQuestions []quiz.Question `json:"quizQuestions"`
}

// SaveQuiz stores the answered quiz under the session's correlation id.
func (c *Client) SaveQuiz(ctx context.Context, correlationID string, questions []quiz.Question) error {
	if questions == nil {
		questions = []quiz.Question{}
	}
	return c.post(ctx, "/save-quiz", quizPayload{QuizID: correlationID, QuizQuestions: questions})
}

type serumMetaPayload struct {
	SelectedSerumID int              `json:"selectedSerumId"`
	QuizIDsMeta     catalog.MetaData `json:"quizIdsMeta"`
}

// UpdateSerumMetadata tags an existing serum product with the correlation id.
func (c *Client) UpdateSerumMetadata(ctx context.Context, serumID int, correlationID string) error {
	return c.post(ctx, "/update-serum-meta-data", serumMetaPayload{
		SelectedSerumID: serumID,
		QuizIDsMeta:     catalog.CorrelationMeta(correlationID),
	})
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	return postJSON(ctx, c.httpClient, c.baseURL+path, path, body, nil)
}

func postJSON(ctx context.Context, hc *http.Client, url, endpoint string, body any, setHeaders func(*http.Request)) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling %s body: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if setHeaders != nil {
		setHeaders(req)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("posting %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Endpoint: endpoint, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
