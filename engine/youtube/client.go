// Package youtube is a read-only client for the YouTube Data API v3.
// Responses are decoded into explicit schemas and converted to domain types
// at the boundary, so callers only ever see validated data.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dnastudio/trendscout/engine/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Data API v3 root.
	DefaultBaseURL = "https://www.googleapis.com/youtube/v3"
	// MaxResultsPerPage is the largest page the search endpoint serves.
	MaxResultsPerPage = 50
	// MaxIDsPerCall is the provider limit of ids per videos call.
	MaxIDsPerCall = 50
	// DefaultVideoParts are the parts requested for trend scoring.
	DefaultVideoParts = "statistics,contentDetails,snippet"
)

// Search orderings understood by the provider.
const (
	OrderViewCount = "viewCount"
	OrderRelevance = "relevance"
)

// Client talks to the Data API. It is safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimiter replaces the request limiter. A nil limiter disables pacing.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.rateLimiter = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client with tracing transport and a conservative limiter.
// Requests carry no timeout of their own; callers bound them through ctx.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		rateLimiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SearchParams are the options of one search call. Zero fields are omitted
// from the request.
type SearchParams struct {
	Query             string
	PublishedAfter    time.Time
	Order             string
	RelevanceLanguage string
	RegionCode        string
	ChannelID         string
	VideoDuration     string
	MaxResults        int
	PageToken         string
}

func (p SearchParams) values(key string) url.Values {
	v := url.Values{
		"part": {"snippet"},
		"type": {"video"},
		"key":  {key},
	}
	if p.MaxResults > 0 {
		v.Set("maxResults", strconv.Itoa(p.MaxResults))
	}
	if p.Query != "" {
		v.Set("q", p.Query)
	}
	if !p.PublishedAfter.IsZero() {
		v.Set("publishedAfter", p.PublishedAfter.UTC().Format(time.RFC3339))
	}
	if p.Order != "" {
		v.Set("order", p.Order)
	}
	if p.VideoDuration != "" {
		v.Set("videoDuration", p.VideoDuration)
	}
	if p.RelevanceLanguage != "" {
		v.Set("relevanceLanguage", p.RelevanceLanguage)
	}
	if p.RegionCode != "" {
		v.Set("regionCode", p.RegionCode)
	}
	if p.ChannelID != "" {
		v.Set("channelId", p.ChannelID)
	}
	if p.PageToken != "" {
		v.Set("pageToken", p.PageToken)
	}
	return v
}

// Search fetches one page of video search results.
func (c *Client) Search(ctx context.Context, key string, p SearchParams) (domain.SearchPage, error) {
	var sr searchResponse
	if err := c.get(ctx, "search", p.values(key), &sr); err != nil {
		return domain.SearchPage{}, err
	}
	return sr.page(), nil
}

// SearchTitles runs a search and returns the snippet titles of the hits.
func (c *Client) SearchTitles(ctx context.Context, key string, p SearchParams) ([]string, error) {
	var sr searchResponse
	if err := c.get(ctx, "search", p.values(key), &sr); err != nil {
		return nil, err
	}
	return sr.titles(), nil
}

// Videos fetches detail records for at most MaxIDsPerCall ids. parts
// defaults to DefaultVideoParts.
func (c *Client) Videos(ctx context.Context, key string, ids []string, parts ...string) ([]domain.VideoDetail, error) {
	if len(ids) > MaxIDsPerCall {
		return nil, fmt.Errorf("youtube: %d ids exceeds the %d per call limit", len(ids), MaxIDsPerCall)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	part := DefaultVideoParts
	if len(parts) > 0 {
		part = strings.Join(parts, ",")
	}
	params := url.Values{
		"part": {part},
		"id":   {strings.Join(ids, ",")},
		"key":  {key},
	}
	var vr videosResponse
	if err := c.get(ctx, "videos", params, &vr); err != nil {
		return nil, err
	}
	return vr.details(), nil
}

// ValidateKey issues a minimal search to check that key is accepted.
func (c *Client) ValidateKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.NewConfigError("youtube")
	}
	_, err := c.Search(ctx, key, SearchParams{Query: "teste", MaxResults: 1})
	return err
}

// get performs a GET on endpoint and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("youtube %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("youtube %s: read body: %w", endpoint, err)
	}
	c.logger.Debug("youtube call",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.NewUpstreamError(endpoint, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("youtube %s: decode: %w", endpoint, err)
	}
	return nil
}
