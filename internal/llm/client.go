/*-------------------------------------------------------------------------
 *
 * DB Query Gateway
 *
 * Copyright (c) 2026, the DB Query Gateway authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

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

// Supported providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// Default endpoints used when the configuration leaves baseURL empty.
const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
)

const anthropicVersion = "2023-06-01"

// DefaultRequestTimeout bounds a single generation round-trip.
const DefaultRequestTimeout = 60 * time.Second

// Client generates SQL from natural language prompts using a hosted or
// local LLM API (Anthropic, OpenAI, or an Ollama server speaking the
// OpenAI-compatible protocol).
type Client struct {
	provider   string
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates an LLM client for the given provider. An empty baseURL
// falls back to the provider's public endpoint; Ollama has no public
// endpoint and requires one.
func NewClient(provider, apiKey, baseURL, model string) *Client {
	return &Client{
		provider:   strings.ToLower(strings.TrimSpace(provider)),
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
	}
}

// Provider returns the configured provider name.
func (c *Client) Provider() string {
	return c.provider
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// IsConfigured reports whether the client has everything it needs to issue
// generation requests.
func (c *Client) IsConfigured() bool {
	if c.model == "" {
		return false
	}
	switch c.provider {
	case ProviderAnthropic, ProviderOpenAI:
		return c.apiKey != ""
	case ProviderOllama:
		return c.baseURL != ""
	default:
		return false
	}
}

// GenerateSQL asks the model for a single SQL statement answering the
// prompt against the given schema context. The dialect label selects the
// SQL flavor the model is told to produce. The returned text has code
// fences stripped but is otherwise unvalidated; callers must pass it
// through the query safety gate before use.
func (c *Client) GenerateSQL(ctx context.Context, prompt, connectionName, schemaContext, dialectLabel string) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("LLM client not configured")
	}

	system := buildSystemPrompt(connectionName, schemaContext, dialectLabel)

	var raw string
	var err error
	switch c.provider {
	case ProviderAnthropic:
		raw, err = c.generateWithAnthropic(ctx, system, prompt)
	case ProviderOpenAI, ProviderOllama:
		raw, err = c.generateWithOpenAI(ctx, system, prompt)
	default:
		return "", fmt.Errorf("unsupported LLM provider: %s", c.provider)
	}
	if err != nil {
		return "", err
	}

	sqlText := stripCodeFences(raw)
	if sqlText == "" {
		return "", fmt.Errorf("no SQL found in model response")
	}
	return sqlText, nil
}

// buildSystemPrompt frames the generation task: schema first, then the
// output contract. Keeping the contract strict makes downstream validation
// failures rare instead of routine.
func buildSystemPrompt(connectionName, schemaContext, dialectLabel string) string {
	return fmt.Sprintf(`You are a %s expert writing queries for the database connection %q.

Database schema (JSON, table name to columns):
%s

Requirements:
1. Generate ONLY the SQL query, no explanations or markdown formatting
2. Use proper %s syntax
3. Generate exactly one SELECT statement; never modify data
4. Use appropriate JOINs when needed
5. Include proper WHERE clauses, GROUP BY, ORDER BY as needed
6. Do NOT include a semicolon at the end
7. Return ONLY the SQL query text, nothing else`,
		dialectLabel, connectionName, schemaContext, dialectLabel)
}

func (c *Client) generateWithAnthropic(ctx context.Context, system, prompt string) (string, error) {
	baseURL := c.baseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}

	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: 2048,
		System:    system,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	}

	body, err := c.post(ctx, baseURL+"/messages", reqBody, map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	})
	if err != nil {
		return "", err
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}
	return parsed.Content[0].Text, nil
}

func (c *Client) generateWithOpenAI(ctx context.Context, system, prompt string) (string, error) {
	baseURL := c.baseURL
	if baseURL == "" && c.provider == ProviderOpenAI {
		baseURL = defaultOpenAIBaseURL
	}

	reqBody := openAIRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Stream: false,
	}

	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	body, err := c.post(ctx, baseURL+"/chat/completions", reqBody, headers)
	if err != nil {
		return "", err
	}

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}

// post issues a JSON request and returns the raw body of a 200 response.
func (c *Client) post(ctx context.Context, endpoint string, payload interface{}, headers map[string]string) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// HealthStatus describes the outcome of a provider health probe.
type HealthStatus struct {
	Provider  string  `json:"provider"`
	Model     string  `json:"model"`
	Status    string  `json:"status"`
	Reachable bool    `json:"reachable"`
	LatencyMs float64 `json:"latencyMs"`
	Detail    string  `json:"detail,omitempty"`
}

// HealthProbe checks provider reachability without generating anything.
// A missing API key is reported as its own status since no request can
// distinguish it from an outage.
func (c *Client) HealthProbe(ctx context.Context) HealthStatus {
	status := HealthStatus{Provider: c.provider, Model: c.model}

	if !c.IsConfigured() {
		status.Status = "missing_api_key"
		if c.provider == ProviderOllama {
			status.Status = "not_configured"
		}
		return status
	}

	start := time.Now()
	err := c.probe(ctx)
	status.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		status.Status = "unreachable"
		status.Detail = err.Error()
		return status
	}
	status.Status = "ok"
	status.Reachable = true
	return status
}

func (c *Client) probe(ctx context.Context) error {
	var endpoint string
	headers := map[string]string{}

	switch c.provider {
	case ProviderAnthropic:
		baseURL := c.baseURL
		if baseURL == "" {
			baseURL = defaultAnthropicBaseURL
		}
		endpoint = baseURL + "/models"
		headers["x-api-key"] = c.apiKey
		headers["anthropic-version"] = anthropicVersion
	case ProviderOpenAI:
		baseURL := c.baseURL
		if baseURL == "" {
			baseURL = defaultOpenAIBaseURL
		}
		endpoint = baseURL + "/models"
		headers["Authorization"] = "Bearer " + c.apiKey
	case ProviderOllama:
		endpoint = c.baseURL + "/models"
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError ||
		resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return nil
}

// stripCodeFences removes a surrounding markdown code block, if present,
// and trims whitespace. Anything else is left for the safety gate.
func stripCodeFences(input string) string {
	input = strings.TrimSpace(input)

	if after, found := strings.CutPrefix(input, "```sql"); found {
		input = after
	} else if after, found := strings.CutPrefix(input, "```"); found {
		input = after
	}
	input = strings.TrimSuffix(strings.TrimSpace(input), "```")

	return strings.TrimSpace(input)
}

// Chat wire types shared by the OpenAI-compatible providers.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type openAIRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}
