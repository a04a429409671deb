package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/leetstat/internal/domain/model"
	"github.com/okian/leetstat/internal/domain/parser"
	"github.com/okian/leetstat/pkg/logger"
	"github.com/okian/leetstat/pkg/metrics"
	"golang.org/x/time/rate"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 8 << 20

// Request outcomes recorded in metrics.
const (
	outcomeOK        = "ok"
	outcomeNetwork   = "network_error"
	outcomeStatus    = "bad_status"
	outcomeMalformed = "malformed"
)

// Client executes the fixed queries against the upstream endpoint.
// It never retries; one call is one request.
type Client struct {
	endpoint  string
	referer   string
	userAgent string
	timeout   time.Duration
	http      *http.Client
	limiter   *rate.Limiter
	logger    logger.Logger
}

type requestBody struct {
	Query         string            `json:"query"`
	Variables     map[string]string `json:"variables"`
	OperationName string            `json:"operationName,omitempty"`
}

// New builds a Client. The Referer header is derived from the endpoint origin.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		endpoint: DefaultEndpoint,
		timeout:  DefaultTimeout,
		limiter:  rate.NewLimiter(rate.Limit(DefaultRPS), DefaultBurst),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	u, err := url.Parse(c.endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q", c.endpoint)
	}
	c.referer = u.Scheme + "://" + u.Host
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Execute posts the query for kind and returns the raw 2xx body. The body
// is not inspected; see the typed Fetch helpers for decoding.
func (c *Client) Execute(ctx context.Context, kind model.Kind, username string) ([]byte, error) {
	q, err := QueryFor(kind)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(requestBody{
		Query:         q.Document,
		Variables:     map[string]string{"username": username},
		OperationName: q.OperationName,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", kind, err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.fail(kind, username, 0, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", kind, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", c.referer)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RecordUpstreamLatency(string(kind), float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordUpstreamRequest(string(kind), outcomeNetwork)
		return nil, c.fail(kind, username, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.RecordUpstreamRequest(string(kind), outcomeNetwork)
		return nil, c.fail(kind, username, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordUpstreamRequest(string(kind), outcomeStatus)
		return nil, c.fail(kind, username, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}
	metrics.RecordUpstreamRequest(string(kind), outcomeOK)
	return raw, nil
}

func (c *Client) fail(kind model.Kind, username string, status int, cause error) error {
	return &Error{
		Op:       "execute",
		Kind:     kind,
		Username: username,
		Status:   status,
		Err:      fmt.Errorf("%w: %w", ErrNetwork, cause),
	}
}

func (c *Client) malformed(ctx context.Context, kind model.Kind, username string, raw []byte) error {
	metrics.RecordUpstreamRequest(string(kind), outcomeMalformed)
	msgs := parser.ErrorMessages(raw)
	c.logger.Debug(ctx, "upstream response has no usable data",
		logger.String("kind", string(kind)),
		logger.String("username", username),
		logger.Any("graphql_errors", msgs))
	return &Error{
		Op:       "parse",
		Kind:     kind,
		Username: username,
		Messages: msgs,
		Err:      ErrMalformedResponse,
	}
}

// FetchStats executes the stats query and decodes it.
func (c *Client) FetchStats(ctx context.Context, username string) (*model.UserStats, []byte, error) {
	raw, err := c.Execute(ctx, model.KindStats, username)
	if err != nil {
		return nil, nil, err
	}
	stats, ok := parser.ParseStats(raw)
	if !ok {
		return nil, nil, c.malformed(ctx, model.KindStats, username, raw)
	}
	return stats, raw, nil
}

// FetchCalendar executes the calendar query and decodes it.
func (c *Client) FetchCalendar(ctx context.Context, username string) (*model.UserCalendar, []byte, error) {
	raw, err := c.Execute(ctx, model.KindCalendar, username)
	if err != nil {
		return nil, nil, err
	}
	cal, ok := parser.ParseCalendar(raw)
	if !ok {
		return nil, nil, c.malformed(ctx, model.KindCalendar, username, raw)
	}
	return cal, raw, nil
}

// FetchProfile executes the profile query and decodes it.
func (c *Client) FetchProfile(ctx context.Context, username string) (*model.UserProfile, []byte, error) {
	raw, err := c.Execute(ctx, model.KindProfile, username)
	if err != nil {
		return nil, nil, err
	}
	profile, ok := parser.ParseProfile(raw)
	if !ok {
		return nil, nil, c.malformed(ctx, model.KindProfile, username, raw)
	}
	return profile, raw, nil
}
