package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/GonzoDMX/perplex/internal/config"
	"github.com/GonzoDMX/perplex/internal/logging"
)

// Client talks to the external scoring service over HTTP.
//
// The http.Client carries no timeout: a hung model call blocks the whole
// pipeline, and that is the documented behavior rather than something we
// paper over with a deadline.
type Client struct {
	url        string
	token      string
	model      string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewClient(cfg config.ScorerConfig, logger *logging.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("scorer URL is required")
	}

	return &Client{
		url:        cfg.URL,
		token:      cfg.Token,
		model:      cfg.Model,
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

type scoreRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type scoreResponse struct {
	Tokens []TokenProb `json:"tokens"`
	Error  string      `json:"error,omitempty"`
}

// APIError reports a non-200 answer from the scoring service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scorer returned HTTP %d: %s", e.StatusCode, e.Body)
}

func (c *Client) Score(ctx context.Context, sentence string) ([]TokenProb, error) {
	jsonBody, err := json.Marshal(scoreRequest{Model: c.model, Text: sentence})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach scorer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var scoreResp scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&scoreResp); err != nil {
		return nil, fmt.Errorf("failed to decode scorer response: %w", err)
	}
	if scoreResp.Error != "" {
		return nil, fmt.Errorf("scorer error: %s", scoreResp.Error)
	}

	c.logger.Debug("scored %d tokens for %q", len(scoreResp.Tokens), truncate(sentence, 50))

	return scoreResp.Tokens, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
