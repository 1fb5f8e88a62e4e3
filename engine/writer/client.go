package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dnastudio/trendscout/engine/domain"
	"github.com/dnastudio/trendscout/engine/keys"
	"github.com/dnastudio/trendscout/pkg/fn"
	"github.com/dnastudio/trendscout/pkg/resilience"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultBaseURL is the Gemini REST root.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultModel is the model used for every generation.
	DefaultModel = "gemini-2.5-flash"
)

// Schema is the subset of the OpenAPI schema Gemini accepts as responseSchema.
type Schema struct {
	Type       string             `json:"type"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

// Client calls generateContent with JSON-constrained output.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	keys       keys.Accessor
	breaker    *resilience.Breaker
	retry      fn.RetryOpts
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithModel selects the model. Blank keeps the default.
func WithModel(m string) Option {
	return func(c *Client) {
		if m != "" {
			c.model = m
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBreaker replaces the circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithRetry replaces the retry policy. Only temporary upstream failures are
// retried whatever the policy says.
func WithRetry(opts fn.RetryOpts) Option {
	return func(c *Client) { c.retry = opts }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client that reads its key from k on every call.
func NewClient(k keys.Accessor, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		httpClient: &http.Client{
			Timeout:   2 * time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		keys:    k,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		retry:   fn.DefaultRetry,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.retry.Retryable = temporary
	return c
}

func temporary(err error) bool {
	var ue *domain.UpstreamError
	return errors.As(err, &ue) && ue.Temporary()
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   *Schema `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (r generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// GenerateJSON sends prompt and decodes the JSON answer, shaped by schema,
// into out.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema *Schema, out any) error {
	key, err := c.keys.Key()
	if err != nil {
		return err
	}
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	})
	if err != nil {
		return fmt.Errorf("writer: encode request: %w", err)
	}

	start := time.Now()
	res := resilience.CallResult(c.breaker, ctx, func(ctx context.Context) fn.Result[[]byte] {
		return fn.Retry(ctx, c.retry, func(ctx context.Context) fn.Result[[]byte] {
			return fn.FromPair(c.do(ctx, http.MethodPost, ":generateContent", key, body))
		})
	})
	raw, err := res.Unwrap()
	if err != nil {
		c.logger.Warn("gemini call failed", "model", c.model, "err", err)
		return err
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return fmt.Errorf("writer: decode response: %w", err)
	}
	text := gr.text()
	if text == "" {
		if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
			return fmt.Errorf("writer: prompt blocked (%s): %w", gr.PromptFeedback.BlockReason, domain.ErrNoOutput)
		}
		return domain.ErrNoOutput
	}
	c.logger.Debug("gemini call", "model", c.model, "prompt_len", len(prompt), "duration", time.Since(start))

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("writer: decode model output: %w", errors.Join(domain.ErrNoOutput, err))
	}
	return nil
}

// ValidateKey checks that key can read the configured model.
func (c *Client) ValidateKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.NewConfigError("gemini")
	}
	_, err := c.do(ctx, http.MethodGet, "", key, nil)
	return err
}

// do sends one request to the model resource; suffix selects the method
// (":generateContent") or the resource itself ("").
func (c *Client) do(ctx context.Context, method, suffix, key string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/models/"+c.model+suffix, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-goog-api-key", key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.NewUpstreamError("gemini", resp.StatusCode, data)
	}
	return data, nil
}
