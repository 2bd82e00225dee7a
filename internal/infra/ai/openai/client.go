// Package openai analyzes prescriptions through any OpenAI-compatible chat
// completions endpoint (OpenAI itself, or Ollama's /v1 surface).
package openai

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/rxguard/internal/domain/ai"
	"github.com/bryanwahyu/rxguard/internal/domain/analysis"
	"github.com/bryanwahyu/rxguard/internal/infra/ai/failure"
	"github.com/bryanwahyu/rxguard/internal/infra/ai/parser"
	"github.com/bryanwahyu/rxguard/internal/infra/ai/prompt"
)

const maxTokens = 2048

// Options for the OpenAI-compatible analyzer.
type Options struct {
	APIKey        string
	BaseURL       string // empty means api.openai.com
	Model         string
	Timeout       time.Duration
	HealthTimeout time.Duration
	Temperature   float32
	TopP          float32
	JSONMode      bool // request response_format=json_object
}

type Client struct {
	*openai.Client
	opts Options
	host string
}

var _ ai.Analyzer = (*Client)(nil)

// NewClient wires go-openai onto the shared pooled http.Client.
func NewClient(httpClient *http.Client, opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 5 * time.Second
	}
	host := cfg.BaseURL
	if u, err := url.Parse(cfg.BaseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), opts: opts, host: host}
}

// Model returns the configured model id.
func (c *Client) Model() string { return c.opts.Model }

func (c *Client) Analyze(ctx context.Context, text string) (analysis.ParsedAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return analysis.ParsedAnalysis{}, ai.ErrInputRequired
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	model := c.opts.Model
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: c.opts.Temperature,
		TopP:        c.opts.TopP,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt.BuildPrompt(text)},
		},
	}
	if c.opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
		req.Temperature = 0
		req.TopP = 0
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return analysis.ParsedAnalysis{}, c.classify(err, c.opts.Timeout)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return analysis.ParsedAnalysis{}, &ai.Error{Kind: ai.KindEmptyResponse, Model: model, Message: "Empty response from model"}
	}
	return parser.Parse(resp.Choices[0].Message.Content), nil
}

func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.models(ctx)
	return err == nil
}

func (c *Client) VerifyModelAvailable(ctx context.Context) bool {
	ids, err := c.models(ctx)
	if err != nil {
		return false
	}
	for _, id := range ids {
		if id == c.opts.Model {
			return true
		}
	}
	return false
}

func (c *Client) models(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.HealthTimeout)
	defer cancel()
	list, err := c.ListModels(ctx)
	if err != nil {
		return nil, c.classify(err, c.opts.HealthTimeout)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// classify maps go-openai errors onto the shared taxonomy.
func (c *Client) classify(err error, timeout time.Duration) error {
	t := failure.Target{Service: "OpenAI-compatible API", Host: c.host, Model: c.opts.Model, Timeout: timeout}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return failure.StatusMessage(apiErr.HTTPStatusCode, apiErr.Message, t)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return failure.Status(reqErr.HTTPStatusCode, nil, t)
	}
	return failure.Transport(err, t)
}
