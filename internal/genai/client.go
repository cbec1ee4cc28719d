// Package genai wraps the external generation service that turns crisis
// reports into templates and summaries.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/crisisbrief/crisisbrief/internal/shared"
)

// Client wraps interactions with the generation service API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client. Generation runs can take a while, so
// the timeout is generous; callers run inside background jobs.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// TemplateResult is the response of a template generation run. Attributes
// are the placeholder tags extracted from the generated template.
type TemplateResult struct {
	Template   string   `json:"template"`
	Attributes []string `json:"attributes"`
}

// SummaryResult is the response of a summary generation run.
type SummaryResult struct {
	Summary string `json:"summary"`
	Title   string `json:"title"`
}

// Ping checks if the generation service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return shared.ErrUpstreamUnavailable
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d", shared.ErrUpstreamUnavailable, resp.StatusCode)
	}
	return nil
}

// GenerateTemplate asks the service for a generalized template for the
// category, built from the free-text notes.
func (c *Client) GenerateTemplate(ctx context.Context, category, text string) (*TemplateResult, error) {
	payload := map[string]any{"category": category, "text": text}
	var result TemplateResult
	if err := c.post(ctx, "/generate-template", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GenerateSummary asks the service to scrape the URLs and produce a titled
// summary, optionally shaped by an existing template.
func (c *Client) GenerateSummary(ctx context.Context, category string, urls []string, template string) (*SummaryResult, error) {
	payload := map[string]any{"category": category, "urls": urls, "template": template}
	var result SummaryResult
	if err := c.post(ctx, "/generate-summary", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUpstreamUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s returned status %d", shared.ErrUpstreamUnavailable, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
