// Package ollama talks to a local Ollama server over its HTTP API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bryanwahyu/rxguard/internal/domain/ai"
	"github.com/bryanwahyu/rxguard/internal/domain/analysis"
	"github.com/bryanwahyu/rxguard/internal/infra/ai/failure"
	"github.com/bryanwahyu/rxguard/internal/infra/ai/parser"
	"github.com/bryanwahyu/rxguard/internal/infra/ai/prompt"
)

const (
	DefaultBaseURL     = "http://localhost:11434"
	DefaultModel       = "qwen2.5:1.5b"
	DefaultVisionModel = "llava:latest"

	// responses larger than this are treated as broken
	maxResponseBytes = 16 << 20
)

// Options configures the client. Generation parameters are fixed per
// process; they are not derived from the input.
type Options struct {
	BaseURL       string
	Model         string
	VisionModel   string
	Timeout       time.Duration
	VisionTimeout time.Duration
	HealthTimeout time.Duration
	Temperature   float64
	TopP          float64
	NumPredict    int
}

// DefaultOptions returns settings tuned for small local models.
func DefaultOptions() Options {
	return Options{
		BaseURL:       DefaultBaseURL,
		Model:         DefaultModel,
		VisionModel:   DefaultVisionModel,
		Timeout:       60 * time.Second,
		VisionTimeout: 120 * time.Second,
		HealthTimeout: 5 * time.Second,
		Temperature:   0.1,
		TopP:          0.9,
		NumPredict:    2048,
	}
}

// NewHTTPClient builds the keep-alive client shared by every outbound model
// call. Deadlines come from the per-call context, so Timeout stays zero.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// Client implements ai.Analyzer against /api/generate.
type Client struct {
	http *http.Client
	opts Options
	host string
}

var _ ai.Analyzer = (*Client)(nil)

// NewClient creates a client; zero-valued options fall back to DefaultOptions.
func NewClient(httpClient *http.Client, opts Options) *Client {
	def := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = def.BaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Model == "" {
		opts.Model = def.Model
	}
	if opts.VisionModel == "" {
		opts.VisionModel = def.VisionModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.VisionTimeout <= 0 {
		opts.VisionTimeout = def.VisionTimeout
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = def.HealthTimeout
	}
	if opts.NumPredict <= 0 {
		opts.NumPredict = def.NumPredict
	}
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	host := opts.BaseURL
	if u, err := url.Parse(opts.BaseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return &Client{http: httpClient, opts: opts, host: host}
}

// Model returns the text model id.
func (c *Client) Model() string { return c.opts.Model }

// VisionModel returns the vision model id.
func (c *Client) VisionModel() string { return c.opts.VisionModel }

type modelOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type generateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Images  []string      `json:"images,omitempty"`
	Stream  bool          `json:"stream"`
	Options *modelOptions `json:"options,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Analyze sends the prescription to the text model and parses the reply.
func (c *Client) Analyze(ctx context.Context, text string) (analysis.ParsedAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return analysis.ParsedAnalysis{}, ai.ErrInputRequired
	}
	req := generateRequest{
		Model:  c.opts.Model,
		Prompt: prompt.BuildPrompt(text),
		Stream: false,
		Options: &modelOptions{
			Temperature: c.opts.Temperature,
			TopP:        c.opts.TopP,
			NumPredict:  c.opts.NumPredict,
		},
	}
	var resp generateResponse
	start := time.Now()
	if err := c.post(ctx, "/api/generate", req, &resp, c.target(c.opts.Model, c.opts.Timeout)); err != nil {
		return analysis.ParsedAnalysis{}, err
	}
	if resp.Response == "" {
		return analysis.ParsedAnalysis{}, &ai.Error{
			Kind:    ai.KindEmptyResponse,
			Model:   c.opts.Model,
			Message: "Empty response from Ollama",
		}
	}
	log.Printf("ollama: generate model=%s duration=%s bytes=%d", c.opts.Model, time.Since(start).Round(time.Millisecond), len(resp.Response))
	return parser.Parse(resp.Response), nil
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// ListModels returns the model names installed on the server.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var tags tagsResponse
	if err := c.get(ctx, "/api/tags", &tags, c.target("", c.opts.HealthTimeout)); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		names = append(names, name)
	}
	return names, nil
}

// HealthCheck reports whether the server answers /api/tags.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.ListModels(ctx)
	return err == nil
}

// VerifyModelAvailable reports whether the text model is installed.
func (c *Client) VerifyModelAvailable(ctx context.Context) bool {
	return c.hasModel(ctx, c.opts.Model)
}

// VerifyVisionModelAvailable reports whether the vision model is installed.
func (c *Client) VerifyVisionModelAvailable(ctx context.Context) bool {
	return c.hasModel(ctx, c.opts.VisionModel)
}

func (c *Client) hasModel(ctx context.Context, model string) bool {
	names, err := c.ListModels(ctx)
	if err != nil {
		return false
	}
	for _, n := range names {
		if SameModel(n, model) {
			return true
		}
	}
	return false
}

// SameModel compares model ids, treating a missing tag as ":latest".
func SameModel(a, b string) bool {
	return withTag(a) == withTag(b)
}

func withTag(name string) string {
	if name == "" || strings.Contains(name, ":") {
		return name
	}
	return name + ":latest"
}

func (c *Client) target(model string, timeout time.Duration) failure.Target {
	return failure.Target{
		Service:     "Ollama",
		Host:        c.host,
		Model:       model,
		Timeout:     timeout,
		PullCommand: "ollama pull",
	}
}

func (c *Client) post(ctx context.Context, path string, body, out any, t failure.Target) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, payload, out, t)
}

func (c *Client) get(ctx context.Context, path string, out any, t failure.Target) error {
	return c.do(ctx, http.MethodGet, path, nil, out, t)
}

// do runs one request bounded by t.Timeout and decodes a 200 body into out.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any, t failure.Target) error {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return failure.Transport(err, t)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return failure.Transport(err, t)
	}
	if resp.StatusCode != http.StatusOK {
		return failure.Status(resp.StatusCode, raw, t)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ai.Error{
			Kind:    ai.KindAPI,
			Model:   t.Model,
			Message: fmt.Sprintf("invalid response from Ollama %s: %v", path, err),
			Err:     err,
		}
	}
	return nil
}
