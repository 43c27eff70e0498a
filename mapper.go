// Package mapper maps company names, domains, merchant strings and product
// strings to structured company records using a remote mapping service.
//
// This is the main package users should import. It re-exports the public
// types from the internal pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	cfg := mapper.DefaultConfig()
//	cfg.Endpoint = mapper.Domain
//	cfg.Key = os.Getenv("ADG_API_KEY")
//	m, _ := mapper.New(cfg)
//
//	// One item
//	out, err := m.Query(ctx, "google.com", "")
//
//	// A bulk run that resumes from results.csv
//	summary, err := m.Process(ctx, items, mapper.Options{SinkPath: "results.csv"})
package mapper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jdziat/bulk-mapper/pkg/client"
	"github.com/jdziat/bulk-mapper/pkg/core"
	"github.com/jdziat/bulk-mapper/pkg/endpoint"
	"github.com/jdziat/bulk-mapper/pkg/retry"
	"github.com/jdziat/bulk-mapper/pkg/security"
)

// Type aliases so callers need a single import.
type (
	// WorkItem is one input to map together with its optional hint.
	WorkItem = core.WorkItem

	// Record is a structured mapping result.
	Record = core.Record

	// Outcome is the final result of one WorkItem.
	Outcome = core.Outcome

	// Summary counts what happened during a bulk run.
	Summary = core.Summary

	// QueryError describes why an item could not be mapped.
	QueryError = core.QueryError

	// ErrorKind classifies a QueryError.
	ErrorKind = core.ErrorKind

	// Endpoint selects the remote mapper.
	Endpoint = endpoint.Endpoint

	// Event is the interface for all run events.
	Event = core.Event

	// ItemStarted is emitted when an item is handed to a worker.
	ItemStarted = core.ItemStarted

	// ItemRetrying is emitted before another attempt.
	ItemRetrying = core.ItemRetrying

	// ItemCompleted is emitted when an item was mapped and persisted.
	ItemCompleted = core.ItemCompleted

	// ItemFailed is emitted when a failure was persisted.
	ItemFailed = core.ItemFailed

	// RunFinished is emitted once per bulk run.
	RunFinished = core.RunFinished
)

// Endpoints.
const (
	Domain   = endpoint.Domain
	Merchant = endpoint.Merchant
	Product  = endpoint.Product
)

// ParseEndpoint parses an endpoint name such as "domain" or "merchant-mapper".
func ParseEndpoint(name string) (Endpoint, error) {
	return endpoint.Parse(name)
}

// Config is the immutable configuration of a Mapper.
type Config struct {
	Endpoint Endpoint
	// Key is the application key sent with every request.
	Key string
	// BaseURL defaults to the production gateway.
	BaseURL   string
	UserAgent string

	// NumThreads bounds the units in flight. Clamped to [1, 8].
	NumThreads int
	// NumRetries is the number of retries after the first attempt. Clamped to [0, 10].
	NumRetries int
	// Timeout bounds every attempt. Clamped to (0, 35s].
	Timeout time.Duration
	// BatchSize is the number of inputs per request. Zero means the endpoint default.
	BatchSize int

	// Cleanup asks the service to normalize noisy inputs.
	Cleanup bool
	// CompaniesOnly tells the merchant mapper that inputs are clean company names.
	CompaniesOnly bool

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns a domain mapper configuration with default limits.
func DefaultConfig() Config {
	rc := retry.DefaultConfig()
	return Config{
		Endpoint:       endpoint.Domain,
		NumThreads:     security.DefaultNumThreads,
		NumRetries:     rc.MaxRetries,
		Timeout:        rc.Timeout,
		Cleanup:        true,
		InitialBackoff: rc.InitialBackoff,
		MaxBackoff:     rc.MaxBackoff,
	}
}

// Mapper runs single and bulk queries against one endpoint.
type Mapper struct {
	config Config
	client *client.Client
	retry  retry.Config

	journal    Journal
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	mu        sync.RWMutex
	eventSubs []chan core.Event
}

// New validates cfg and creates a Mapper.
func New(cfg Config, opts ...Option) (*Mapper, error) {
	m := &Mapper{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt.apply(m)
	}

	threads := security.ClampThreads(cfg.NumThreads)
	if threads != cfg.NumThreads {
		m.logger.Warn("number of threads out of range, using clamped value",
			"requested", cfg.NumThreads, "using", threads, "max", security.MaxNumThreads)
		cfg.NumThreads = threads
	}
	cfg.NumRetries = security.ClampRetries(cfg.NumRetries)
	cfg.Timeout = security.ClampTimeout(cfg.Timeout)
	cfg.BatchSize = cfg.Endpoint.BatchSize(cfg.BatchSize)

	clientOpts := []client.Option{client.WithLogger(m.logger)}
	if m.httpClient != nil {
		clientOpts = append(clientOpts, client.WithHTTPClient(m.httpClient))
	}
	c, err := client.New(client.Config{
		BaseURL:   cfg.BaseURL,
		Key:       cfg.Key,
		Endpoint:  cfg.Endpoint,
		UserAgent: cfg.UserAgent,
		Cleanup:   cfg.Cleanup,
		Shaping:   endpoint.Shaping{CompaniesOnly: cfg.CompaniesOnly},
	}, clientOpts...)
	if err != nil {
		return nil, err
	}

	rc := retry.DefaultConfig()
	rc.MaxRetries = cfg.NumRetries
	rc.Timeout = cfg.Timeout
	if cfg.InitialBackoff > 0 {
		rc.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		rc.MaxBackoff = cfg.MaxBackoff
	}

	m.config = cfg
	m.client = c
	m.retry = rc
	return m, nil
}

// Config returns the effective configuration after clamping.
func (m *Mapper) Config() Config {
	return m.config
}

// Query maps a single input. Failed outcomes are returned together with
// their *QueryError.
func (m *Mapper) Query(ctx context.Context, input, hint string) (Outcome, error) {
	raw := WorkItem{Input: input, Hint: hint}
	item, err := prepareItem(raw, "", m.logger)
	if err != nil {
		return Outcome{Item: raw}, err
	}

	out := m.policy("").Execute(ctx, []WorkItem{item})[0]
	if !out.OK() {
		return out, out.Err
	}
	return out, nil
}

func (m *Mapper) policy(runID string) *retry.Policy {
	return retry.New(m.retry, m.client.Send,
		retry.WithLogger(m.logger),
		retry.WithHook(func(item WorkItem, attempt int, qe *QueryError, backoff time.Duration) {
			m.Emit(&core.ItemRetrying{
				RunID:     runID,
				Item:      item,
				Attempt:   attempt,
				Error:     qe,
				Backoff:   backoff,
				Timestamp: m.now(),
			})
		}),
	)
}

// Events returns a channel that receives run events.
// Events are dropped when the channel buffer is full.
func (m *Mapper) Events() <-chan Event {
	ch := make(chan core.Event, 100)
	m.mu.Lock()
	m.eventSubs = append(m.eventSubs, ch)
	m.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel created by Events. The channel is not closed.
func (m *Mapper) Unsubscribe(ch <-chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, sub := range m.eventSubs {
		if sub == ch {
			m.eventSubs = append(m.eventSubs[:i], m.eventSubs[i+1:]...)
			return
		}
	}
}

// Emit sends an event to all subscribers without blocking.
func (m *Mapper) Emit(e Event) {
	m.mu.RLock()
	subs := make([]chan core.Event, len(m.eventSubs))
	copy(subs, m.eventSubs)
	m.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (m *Mapper) String() string {
	return fmt.Sprintf("mapper(%s, threads=%d, retries=%d)", m.config.Endpoint, m.config.NumThreads, m.config.NumRetries)
}
