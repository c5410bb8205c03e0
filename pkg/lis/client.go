// Package lis talks to the upstream Laboratory Information System. The
// client rate-limits outbound calls, trips a circuit breaker when the
// LIS degrades, and keeps a small LRU of panel definitions so panel
// lookups survive short outages.
package lis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// panelCacheTTL bounds how long a cached panel counts as fresh. Stale
// entries are still served while the circuit breaker is open.
const panelCacheTTL = 15 * time.Minute

// Client implements domain.LISGateway over the LIS HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	retryCount int
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	panelCache *lru.Cache
	log        *logrus.Logger
}

// NewClient creates an LIS client from the gateway configuration.
func NewClient(config domain.LISConfig, log *logrus.Logger) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:9090/lis/v2/"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10
	}
	if config.PanelCacheSize == 0 {
		config.PanelCacheSize = 128
	}
	if config.BreakerMaxFail == 0 {
		config.BreakerMaxFail = 5
	}
	if config.BreakerTimeout == 0 {
		config.BreakerTimeout = 60 * time.Second
	}

	panelCache, err := lru.New(config.PanelCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create panel cache: %w", err)
	}

	maxFailures := config.BreakerMaxFail
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "LIS",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// A missing sample is an answer, not an outage
			return err == nil || errors.Is(err, domain.ErrNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		retryCount: config.RetryCount,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		breaker:    breaker,
		panelCache: panelCache,
		log:        log,
	}, nil
}

// FetchSampleRun retrieves a sequencing run by accession.
func (c *Client) FetchSampleRun(ctx context.Context, accession string) (*domain.SampleRun, error) {
	accession = strings.TrimSpace(accession)
	if accession == "" {
		return nil, fmt.Errorf("accession cannot be empty")
	}

	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var run domain.SampleRun
		if err := c.getJSON(ctx, c.endpoint("samples", accession), &run); err != nil {
			return nil, err
		}
		return &run, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("%w: circuit breaker open", domain.ErrLISUnavailable)
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("sample %s not found in LIS: %w", accession, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch sample run %s: %w", accession, err)
	}

	return result.(*domain.SampleRun), nil
}

// FetchPanel retrieves a panel definition, preferring the local cache.
// While the circuit breaker is open an expired cache entry is served
// rather than failing the lookup.
func (c *Client) FetchPanel(ctx context.Context, name string) (*domain.Panel, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("panel name cannot be empty")
	}

	if panel := c.cachedPanel(name, false); panel != nil {
		return panel, nil
	}

	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var panel domain.Panel
		if err := c.getJSON(ctx, c.endpoint("panels", name), &panel); err != nil {
			return nil, err
		}
		return &panel, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			if panel := c.cachedPanel(name, true); panel != nil {
				c.log.WithField("panel", name).Warn("Serving stale panel definition, LIS unavailable")
				return panel, nil
			}
			return nil, fmt.Errorf("%w: circuit breaker open", domain.ErrLISUnavailable)
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("panel %q not found in LIS: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch panel %q: %w", name, err)
	}

	panel := result.(*domain.Panel)
	c.panelCache.Add(name, &panelEntry{
		panel:  panel,
		expiry: time.Now().Add(panelCacheTTL),
	})
	return panel, nil
}

// State exposes the circuit breaker state for health reporting.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// panelEntry wraps a cached panel with its freshness deadline.
type panelEntry struct {
	panel  *domain.Panel
	expiry time.Time
}

func (e *panelEntry) expired() bool {
	return time.Now().After(e.expiry)
}

func (c *Client) cachedPanel(name string, allowStale bool) *domain.Panel {
	if value, ok := c.panelCache.Get(name); ok {
		if entry, ok := value.(*panelEntry); ok {
			if allowStale || !entry.expired() {
				return entry.panel
			}
		}
	}
	return nil
}

// endpoint joins path segments onto the configured base URL.
func (c *Client) endpoint(parts ...string) string {
	base := strings.TrimSuffix(c.baseURL, "/")
	for _, part := range parts {
		base += "/" + url.PathEscape(part)
	}
	return base
}

// statusError carries a non-200 LIS response through the retry loop.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("LIS API returned status %d: %s", e.code, e.body)
}

// getJSON executes a GET against the LIS, retrying transient failures.
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		err := c.getJSONOnce(ctx, endpoint, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
	}
	return lastErr
}

func (c *Client) getJSONOnce(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "NRIS-Server/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &statusError{code: resp.StatusCode, body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

// retryable reports whether a request error is worth another attempt.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	if errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
