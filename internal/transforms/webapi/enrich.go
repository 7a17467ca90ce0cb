// Package webapi provides a DoFn that enriches elements by calling a JSON
// HTTP API, with client-side rate limiting, response caching and retries.
// The typical shape is a pipeline of keys fanned out against a lookup
// service.
package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/logging"
	"github.com/joistio/joist/internal/transforms"
)

// EnrichFnName is the registered DoFn name for the HTTP-enrichment
// transform.
const EnrichFnName = "webapi.enrich"

func init() {
	transforms.RegisterDoFn(EnrichFnName, func() transforms.DoFn {
		return &EnrichFn{}
	})
}

const (
	defaultRequestsPerSecond = 10
	defaultBurst             = 5
	defaultCacheTTL          = 5 * time.Minute
	defaultMaxRetries        = 3
	defaultTimeout           = 10 * time.Second
)

// Config configures an EnrichFn.
type Config struct {
	// Endpoint is the request URL template. It must contain exactly one
	// %s verb which receives the query-escaped element.
	Endpoint string `json:"endpoint"`

	// RequestsPerSecond caps the steady-state request rate.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`

	// Burst is the rate limiter's burst size.
	Burst int `json:"burst,omitempty"`

	// CacheTTLSeconds controls how long responses are reused per key.
	CacheTTLSeconds int `json:"cache_ttl_seconds,omitempty"`

	// MaxRetries bounds retry attempts on transient failures.
	MaxRetries int `json:"max_retries,omitempty"`

	// TimeoutSeconds is the per-request timeout.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// EnrichFn looks up each string element against an HTTP JSON endpoint and
// emits a KV of the element and the decoded response body. Responses are
// cached by element so repeated keys within the TTL cost one request.
type EnrichFn struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	cache   *gocache.Cache
	logger  *logging.Logger
}

// NewEnrichFn builds an EnrichFn directly from a config, bypassing the
// payload path.
func NewEnrichFn(cfg Config) *EnrichFn {
	return &EnrichFn{cfg: cfg}
}

// Configure implements transforms.Configurable.
func (e *EnrichFn) Configure(config json.RawMessage) error {
	if err := json.Unmarshal(config, &e.cfg); err != nil {
		return fmt.Errorf("webapi.enrich: decode config: %w", err)
	}
	if e.cfg.Endpoint == "" {
		return fmt.Errorf("webapi.enrich: endpoint is required")
	}
	return nil
}

func (e *EnrichFn) StartBundle(context.Context) error {
	if e.logger == nil {
		e.logger = logging.GetLogger("transforms.webapi")
	}
	if e.client == nil {
		timeout := defaultTimeout
		if e.cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(e.cfg.TimeoutSeconds) * time.Second
		}
		e.client = &http.Client{Timeout: timeout}
	}
	if e.limiter == nil {
		rps := e.cfg.RequestsPerSecond
		if rps <= 0 {
			rps = defaultRequestsPerSecond
		}
		burst := e.cfg.Burst
		if burst <= 0 {
			burst = defaultBurst
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if e.cache == nil {
		ttl := defaultCacheTTL
		if e.cfg.CacheTTLSeconds > 0 {
			ttl = time.Duration(e.cfg.CacheTTLSeconds) * time.Second
		}
		e.cache = gocache.New(ttl, 2*ttl)
	}
	return nil
}

func (e *EnrichFn) ProcessElement(ctx context.Context, element interface{}, emit transforms.Emitter) error {
	key, ok := element.(string)
	if !ok {
		return fmt.Errorf("webapi.enrich: element is %T, want string", element)
	}

	if cached, found := e.cache.Get(key); found {
		emit(coders.KV{Key: key, Value: cached})
		return nil
	}

	value, err := e.fetch(ctx, key)
	if err != nil {
		return err
	}
	e.cache.SetDefault(key, value)
	emit(coders.KV{Key: key, Value: value})
	return nil
}

func (e *EnrichFn) FinishBundle(context.Context, transforms.Emitter) error {
	return nil
}

func (e *EnrichFn) fetch(ctx context.Context, key string) (interface{}, error) {
	target := fmt.Sprintf(e.cfg.Endpoint, url.QueryEscape(key))

	maxRetries := e.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	backoff := 100 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			e.logger.Debug("retrying %s (attempt %d): %v", target, attempt, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		value, retryable, err := e.doRequest(ctx, target)
		if err == nil {
			return value, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("webapi.enrich: %s failed after %d retries: %w", target, maxRetries, lastErr)
}

func (e *EnrichFn) doRequest(ctx context.Context, target string) (value interface{}, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("webapi.enrich: %s returned %d", target, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, false, fmt.Errorf("webapi.enrich: %s returned %d", target, resp.StatusCode)
	}

	var decoded interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, false, fmt.Errorf("webapi.enrich: decode response from %s: %w", target, err)
	}
	return decoded, false, nil
}
