// Package scrape fetches the game site pages and extracts typed records
// from their HTML tables.
package scrape

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/bryan-buckman/mudwatch/internal/metrics"
)

// ErrEmptyPage is returned when the server answered with an empty body.
var ErrEmptyPage = errors.New("empty page")

// Breaker settings for a source host.
const (
	BreakerMaxFailures = 5
	BreakerTimeout     = 2 * time.Minute
)

// Options configures a Fetcher.
type Options struct {
	UserAgent             string
	Timeout               time.Duration
	MaxConcurrencyPerHost int
	DelayBetweenRequests  time.Duration
}

// Fetcher downloads pages. Requests to the same host are paced and guarded
// by a circuit breaker so an unreachable site is not polled every cycle.
type Fetcher struct {
	client  *resty.Client
	limiter *hostLimiter
	log     zerolog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

// NewFetcher creates a fetcher.
func NewFetcher(opts Options, log zerolog.Logger) *Fetcher {
	client := resty.New()
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	return &Fetcher{
		client:   client,
		limiter:  newHostLimiter(opts.MaxConcurrencyPerHost, opts.DelayBetweenRequests),
		log:      log,
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}
}

func (f *Fetcher) breaker(host string) *gobreaker.CircuitBreaker[[]byte] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[host]; ok {
		return cb
	}

	name := "fetch:" + host
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= BreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(metrics.BreakerState(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		IsSuccessful: func(err error) bool {
			// A cancelled cycle says nothing about the host.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	f.breakers[host] = cb
	return cb
}

// Fetch returns the body of url. Non-2xx answers are errors.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	host := hostOf(url)
	if err := f.limiter.acquire(ctx, host); err != nil {
		return nil, fmt.Errorf("rate limit cancelled for %s: %w", url, err)
	}
	defer f.limiter.release(host)

	body, err := f.breaker(host).Execute(func() ([]byte, error) {
		res, err := f.client.R().SetContext(ctx).Get(url)
		if err != nil {
			return nil, err
		}
		if !res.IsSuccess() {
			return nil, fmt.Errorf("unexpected status %d", res.StatusCode())
		}
		return res.Body(), nil
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			metrics.FetchFailures.WithLabelValues(host).Inc()
		}
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("fetch %s: %w", url, ErrEmptyPage)
	}
	return body, nil
}

// FetchDocument fetches url and parses it as HTML.
func (f *Fetcher) FetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}
