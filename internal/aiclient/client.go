// Package aiclient calls a structured-completion service that returns JSON
// conforming to a caller-supplied schema.
package aiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/httpclient"
)

// ErrInvalidCompletion is returned when the service answers without usable output.
var ErrInvalidCompletion = errors.New("invalid completion")

// Request is one structured completion.
type Request struct {
	SystemPrompt string         `json:"system_prompt"`
	UserPrompt   string         `json:"user_prompt"`
	OutputSchema map[string]any `json:"output_schema"`
	Temperature  float64        `json:"temperature"`
}

type completionResponse struct {
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

// Client posts completion requests to one endpoint.
type Client struct {
	http     *httpclient.Client
	endpoint string
	apiKey   string
}

// New creates a client. An empty apiKey sends no Authorization header.
func New(client *httpclient.Client, endpoint, apiKey string) *Client {
	return &Client{http: client, endpoint: endpoint, apiKey: apiKey}
}

// Complete sends req and decodes the returned output into out.
func (c *Client) Complete(ctx context.Context, req Request, out any) error {
	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.apiKey}
	}

	resp, err := c.http.PostJSON(ctx, c.endpoint, req, headers)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("completion service returned %d", resp.StatusCode)
	}

	var cr completionResponse
	if decodeErr := json.Unmarshal(resp.Body, &cr); decodeErr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCompletion, decodeErr)
	}
	if cr.Error != "" {
		return fmt.Errorf("%w: %s", ErrInvalidCompletion, cr.Error)
	}
	if len(cr.Output) == 0 || string(cr.Output) == "null" {
		return fmt.Errorf("%w: empty output", ErrInvalidCompletion)
	}
	if decodeErr := json.Unmarshal(cr.Output, out); decodeErr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCompletion, decodeErr)
	}
	return nil
}
