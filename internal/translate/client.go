package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"alloc-validator/internal/entity"
)

// Client is an HTTP implementation of RuleTranslator, EditTranslator and
// SuggestionValidator. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var (
	_ RuleTranslator      = (*Client)(nil)
	_ EditTranslator      = (*Client)(nil)
	_ SuggestionValidator = (*Client)(nil)
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout. Default is 30 seconds.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a translation client for the service at baseURL.
//
//	c := translate.NewClient("http://localhost:8090", translate.WithTimeout(10*time.Second))
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type ruleRequest struct {
	Prompt string `json:"prompt"`
}

type editRequest struct {
	Command  string             `json:"command"`
	Snapshot entity.Collections `json:"snapshot"`
}

// editResponse keeps entityType as text so a missing value is detectable.
type editResponse struct {
	EntityType string `json:"entityType"`
	ID         string `json:"id"`
	Field      string `json:"field"`
	Value      any    `json:"value"`
}

type suggestionRequest struct {
	EntityType entity.Kind `json:"entityType"`
	ID         string      `json:"id"`
	Field      string      `json:"field"`
	Suggestion string      `json:"suggestion"`
}

type suggestionResponse struct {
	Value *string `json:"value"`
}

// TranslateRule posts prompt to /v1/rules/translate. A candidate with
// missing fields is returned as is; RuleCandidate acceptance decides.
func (c *Client) TranslateRule(ctx context.Context, prompt string) (RuleCandidate, error) {
	var out RuleCandidate
	if err := c.post(ctx, OpRule, "/v1/rules/translate", ruleRequest{Prompt: prompt}, &out); err != nil {
		return RuleCandidate{}, err
	}

	return out, nil
}

// TranslateEdit posts command and snapshot to /v1/edits/translate.
func (c *Client) TranslateEdit(ctx context.Context, command string, snapshot entity.Collections) (Edit, error) {
	var resp editResponse
	if err := c.post(ctx, OpEdit, "/v1/edits/translate", editRequest{Command: command, Snapshot: snapshot}, &resp); err != nil {
		return Edit{}, err
	}

	if resp.EntityType == "" {
		return Edit{}, &Failure{Op: OpEdit, Reason: "missing entityType"}
	}

	kind, err := entity.ParseKind(resp.EntityType)
	if err != nil {
		return Edit{}, &Failure{Op: OpEdit, Reason: "bad entityType", Err: err}
	}

	out := Edit{EntityType: kind, ID: resp.ID, Field: resp.Field, Value: resp.Value}
	if err := out.Check(); err != nil {
		return Edit{}, err
	}

	return out, nil
}

// ValidateSuggestion posts a raw suggestion to /v1/suggestions/validate.
func (c *Client) ValidateSuggestion(ctx context.Context, kind entity.Kind, id, field, raw string) (string, error) {
	var out suggestionResponse

	req := suggestionRequest{EntityType: kind, ID: id, Field: field, Suggestion: raw}
	if err := c.post(ctx, OpSuggestion, "/v1/suggestions/validate", req, &out); err != nil {
		return "", err
	}

	if out.Value == nil {
		return "", &Failure{Op: OpSuggestion, Reason: "missing value"}
	}

	return *out.Value, nil
}

func (c *Client) post(ctx context.Context, op, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return &Failure{Op: op, Reason: "marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &Failure{Op: op, Reason: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Failure{Op: op, Reason: "send request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Failure{Op: op, Reason: parseError(resp)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Failure{Op: op, Reason: "decode response", Err: err}
	}

	return nil
}

// parseError extracts the service's error message from resp.
func parseError(resp *http.Response) string {
	var errResp struct {
		Error string `json:"error"`
	}

	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != "" {
		return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, errResp.Error)
	}

	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}
