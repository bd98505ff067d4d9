package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/mohamedkhairy/strikeview/internal/symbols"
	"github.com/mohamedkhairy/strikeview/pkg/logger"
)

const (
	defaultProxyTimeout       = 15 * time.Second
	defaultProxyRetryDelay    = 500 * time.Millisecond
	defaultProxyMaxRetryDelay = 8 * time.Second
	maxPayloadBytes           = 16 << 20
)

// ProxySource reads option chains from the serverless proxy. The proxy owns
// the exchange session handling; this side only issues GETs and decodes JSON.
type ProxySource struct {
	name          string
	baseURL       string
	table         *symbols.Table
	client        *http.Client
	maxRetries    int
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewProxySource creates a proxy source. BaseURL is required.
func NewProxySource(config SourceConfig) (Source, error) {
	base := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if base == "" {
		return nil, models.NewConfigError("SOURCE_BASE_URL", config.BaseURL, "required for proxy source")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, models.NewConfigError("SOURCE_BASE_URL", config.BaseURL, err.Error())
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultProxyTimeout
	}
	delay := config.RetryDelay
	if delay <= 0 {
		delay = defaultProxyRetryDelay
	}
	maxDelay := config.MaxRetryDelay
	if maxDelay < delay {
		maxDelay = defaultProxyMaxRetryDelay
		if maxDelay < delay {
			maxDelay = delay
		}
	}
	retries := config.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &ProxySource{
		name:          "proxy",
		baseURL:       base,
		table:         config.Symbols,
		client:        &http.Client{Timeout: timeout},
		maxRetries:    retries,
		retryDelay:    delay,
		maxRetryDelay: maxDelay,
		sleep:         sleepContext,
	}, nil
}

// GetName returns the source name
func (p *ProxySource) GetName() string {
	return p.name
}

// Fetch calls the exchange endpoint, retrying transport errors, 429 and 5xx
// with capped exponential backoff
func (p *ProxySource) Fetch(ctx context.Context, req FetchRequest) (*RawPayload, error) {
	if err := req.Validate(p.table); err != nil {
		return nil, err
	}
	endpoint := p.endpoint(req)

	backoff := p.retryDelay
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn("Retrying proxy fetch",
				logger.String("symbol", req.Symbol),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", backoff),
				logger.ErrorField(lastErr),
			)
			if err := p.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			if backoff < p.maxRetryDelay {
				backoff *= 2
				if backoff > p.maxRetryDelay {
					backoff = p.maxRetryDelay
				}
			}
		}

		body, retryable, err := p.do(ctx, endpoint)
		if err == nil {
			return &RawPayload{
				Exchange:  req.Exchange,
				Body:      body,
				Source:    p.name,
				FetchedAt: time.Now(),
			}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, lastErr
}

func (p *ProxySource) endpoint(req FetchRequest) string {
	path := "/fetchNSEData"
	if req.Exchange == models.ExchangeBSE {
		path = "/fetchBSEData"
	}
	q := url.Values{}
	q.Set("symbol", req.Symbol)
	if req.Expiry != "" {
		q.Set("expiry", req.Expiry)
	}
	return p.baseURL + path + "?" + q.Encode()
}

// do performs one GET. retryable reports whether a later attempt may succeed.
func (p *ProxySource) do(ctx context.Context, endpoint string) ([]byte, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, true, fmt.Errorf("%w: reading body: %v", ErrUpstream, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("%w: %s", ErrPayloadNotFound, snippet(body))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, snippet(body))
	default:
		return nil, false, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, snippet(body))
	}
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsUpstreamError reports whether err came from the proxy transport
func IsUpstreamError(err error) bool {
	return errors.Is(err, ErrUpstream) || errors.Is(err, ErrPayloadNotFound)
}
