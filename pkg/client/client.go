package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jdziat/bulk-mapper/pkg/core"
	"github.com/jdziat/bulk-mapper/pkg/endpoint"
	"github.com/jdziat/bulk-mapper/pkg/security"
)

const (
	// DefaultBaseURL is the production API gateway.
	DefaultBaseURL = "https://api-2445582026130.production.gw.apicast.io/"

	// DefaultUserAgent identifies the tool to the remote service.
	DefaultUserAgent = "https://github.com/jdziat/bulk-mapper"

	maxResponseBytes = 8 << 20
	maxDetailBytes   = 256
)

// Config holds everything needed to talk to one endpoint.
type Config struct {
	BaseURL   string
	Key       string
	Endpoint  endpoint.Endpoint
	UserAgent string
	// Cleanup asks the service to normalize inputs before mapping.
	Cleanup bool
	Shaping endpoint.Shaping
}

// Client is the Remote Query Client.
type Client struct {
	config Config
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option interface {
	apply(*Client)
}

type optionFunc func(*Client)

func (f optionFunc) apply(c *Client) { f(c) }

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	})
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *Client) {
		if l != nil {
			c.logger = l
		}
	})
}

// New creates a client for a single endpoint.
func New(cfg Config, opts ...Option) (*Client, error) {
	if !cfg.Endpoint.Valid() {
		return nil, fmt.Errorf("%w: %v", core.ErrUnknownEndpoint, cfg.Endpoint)
	}
	if strings.TrimSpace(cfg.Key) == "" {
		return nil, core.ErrMissingKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("mapper: bad base URL %q: %w", cfg.BaseURL, err)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	c := &Client{
		config: cfg,
		http:   &http.Client{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c, nil
}

// Endpoint returns the endpoint this client talks to.
func (c *Client) Endpoint() endpoint.Endpoint {
	return c.config.Endpoint
}

// Send resolves a batch in one request and returns one outcome per item, in
// batch order. Every item of the batch shares the hint of the first item.
// The request never outlives timeout; when it does, every item fails with
// core.KindTimeout.
func (c *Client) Send(ctx context.Context, batch []core.WorkItem, timeout time.Duration) []core.Outcome {
	if len(batch) == 0 {
		return nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	records, qerr := c.do(reqCtx, batch)
	if qerr != nil {
		return failAll(batch, qerr)
	}
	return records
}

func (c *Client) do(ctx context.Context, batch []core.WorkItem) ([]core.Outcome, *core.QueryError) {
	inputs := make([]string, len(batch))
	for i, item := range batch {
		inputs[i] = item.Input
	}
	payload, err := json.Marshal(inputs)
	if err != nil {
		return nil, core.NewQueryError(core.KindTransport, "encode payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, core.NewQueryError(core.KindTransport, "build request: %v", err)
	}
	c.setHeaders(req.Header, batch[0].Hint)

	c.logger.Debug("sending request", "endpoint", c.config.Endpoint.Path(), "items", len(batch))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(resp, body)
	}

	return decodeBatch(batch, body)
}

func (c *Client) requestURL() string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	q := url.Values{}
	q.Set("X_User_Key", c.config.Key)
	return base + "/" + c.config.Endpoint.Path() + "?" + q.Encode()
}

func (c *Client) setHeaders(h http.Header, hint string) {
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", c.config.UserAgent)
	h.Set("X-Clean-Input", strconv.FormatBool(c.config.Cleanup))
	if hint != "" {
		h.Set("X-Type-Hint", hint)
	}
	c.config.Endpoint.Shape(h, c.config.Shaping)
}

// itemResponse is decoded alongside the record to detect per-item errors.
type itemResponse struct {
	Error string `json:"error"`
}

func decodeBatch(batch []core.WorkItem, body []byte) ([]core.Outcome, *core.QueryError) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, core.NewQueryError(core.KindTransport, "malformed response: %v", err)
	}
	if len(raw) != len(batch) {
		return nil, core.NewQueryError(core.KindTransport, "expected %d results, got %d", len(batch), len(raw))
	}

	outcomes := make([]core.Outcome, len(batch))
	for i, item := range batch {
		var ir itemResponse
		if err := json.Unmarshal(raw[i], &ir); err != nil {
			return nil, core.NewQueryError(core.KindTransport, "malformed result %d: %v", i, err)
		}
		if ir.Error != "" {
			outcomes[i] = core.Failure(item, core.NewQueryError(core.KindRemoteValidation, "%s", security.SanitizeErrorMessage(ir.Error)))
			continue
		}

		var rec core.Record
		if err := json.Unmarshal(raw[i], &rec); err != nil {
			return nil, core.NewQueryError(core.KindTransport, "malformed result %d: %v", i, err)
		}
		if rec.OriginalInput == "" {
			rec.OriginalInput = item.Input
		}
		outcomes[i] = core.Success(item, &rec)
	}
	return outcomes, nil
}

func classifyTransportError(err error) *core.QueryError {
	detail := security.SanitizeErrorMessage(err.Error())
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.QueryError{Kind: core.KindTimeout, Detail: detail}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &core.QueryError{Kind: core.KindTimeout, Detail: detail}
	}
	return &core.QueryError{Kind: core.KindTransport, Detail: detail}
}

func classifyStatus(resp *http.Response, body []byte) *core.QueryError {
	detail := fmt.Sprintf("API response error: %s", resp.Status)
	if snippet := bodySnippet(body); snippet != "" {
		detail += ": " + snippet
	}
	qe := &core.QueryError{Status: resp.StatusCode, Detail: security.SanitizeErrorMessage(detail)}

	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		qe.Kind = core.KindUnauthorized
	case code == http.StatusTooManyRequests:
		qe.Kind = core.KindRateLimited
		qe.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		qe.Kind = core.KindTimeout
	case code >= 400 && code < 500:
		qe.Kind = core.KindRemoteValidation
	default:
		qe.Kind = core.KindTransport
	}
	return qe
}

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxDetailBytes {
		s = s[:maxDetailBytes] + "..."
	}
	return s
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func failAll(batch []core.WorkItem, qe *core.QueryError) []core.Outcome {
	out := make([]core.Outcome, len(batch))
	for i, item := range batch {
		// outcomes never share an error value
		errCopy := *qe
		out[i] = core.Failure(item, &errCopy)
	}
	return out
}
