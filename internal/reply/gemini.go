package reply

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/celerix-dev/celerix-assist/pkg/schema"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-1.5-flash-latest"
)

// ErrMalformedResponse is returned when a 2xx reply does not carry a
// non-empty candidates[0].content.parts[0].text.
var ErrMalformedResponse = errors.New("malformed generateContent response")

// HTTPError is a non-2xx reply from the endpoint.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gemini api error %d", e.Status)
}

// TransportError wraps a failure to reach the endpoint at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "gemini transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Part is a single text fragment of a turn.
type Part struct {
	Text string `json:"text"`
}

// Content is one turn in a generateContent request. Role is "user" or "model".
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type request struct {
	Contents []Content `json:"contents"`
}

type response struct {
	Candidates []struct {
		Content struct {
			Parts []Part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Client calls the Gemini generateContent endpoint.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewClient(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
}

// GenerateContent sends contents and returns the first candidate's text.
func (c *Client) GenerateContent(ctx context.Context, contents []Content) (string, error) {
	body, err := json.Marshal(request{Contents: contents})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", &TransportError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return "", ErrMalformedResponse
	}
	text := apiResp.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", ErrMalformedResponse
	}
	return text, nil
}

// toContents maps stored messages onto the wire roles.
func toContents(history []schema.Message) []Content {
	out := make([]Content, 0, len(history)+1)
	for _, m := range history {
		role := "model"
		if m.Role == schema.RoleUser {
			role = "user"
		}
		out = append(out, Content{Role: role, Parts: []Part{{Text: m.Content}}})
	}
	return out
}
