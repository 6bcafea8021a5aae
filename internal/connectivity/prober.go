package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Default probe timings.
const (
	DefaultProbeInterval = 5 * time.Second
	DefaultProbeTimeout  = 2 * time.Second
	DefaultMaxBackoff    = time.Minute
)

// Prober is a Source backed by periodic HTTP health checks.
//
// While the endpoint answers 2xx the prober checks every Interval. After a
// failed check it waits on an exponential backoff, capped at MaxBackoff,
// until the endpoint recovers.
type Prober struct {
	url       string
	client    *http.Client
	interval  time.Duration
	maxDelay  time.Duration
	connected atomic.Bool
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithHTTPClient sets the client used for probes.
func WithHTTPClient(c *http.Client) ProberOption {
	return func(p *Prober) {
		p.client = c
	}
}

// WithProbeInterval sets the interval between healthy checks.
func WithProbeInterval(d time.Duration) ProberOption {
	return func(p *Prober) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxBackoff caps the delay between failed checks.
func WithMaxBackoff(d time.Duration) ProberOption {
	return func(p *Prober) {
		if d > 0 {
			p.maxDelay = d
		}
	}
}

// NewProber creates a prober for the given health URL.
// The prober reports offline until the first successful check.
func NewProber(url string, opts ...ProberOption) *Prober {
	p := &Prober{
		url:      url,
		client:   &http.Client{Timeout: DefaultProbeTimeout},
		interval: DefaultProbeInterval,
		maxDelay: DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connected implements Source.
func (p *Prober) Connected() bool {
	return p.connected.Load()
}

// Check performs a single probe and records the result.
func (p *Prober) Check(ctx context.Context) error {
	err := p.probe(ctx)
	p.set(err == nil)
	return err
}

// Run probes until ctx is cancelled. Always returns ctx.Err().
func (p *Prober) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.interval
	bo.MaxInterval = p.maxDelay
	bo.MaxElapsedTime = 0 // never give up

	for {
		delay := p.interval
		if err := p.Check(ctx); err != nil {
			delay = bo.NextBackOff()
			slog.Debug("connectivity probe failed",
				"url", p.url,
				"retry_in", delay,
				"error", err,
			)
		} else {
			bo.Reset()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *Prober) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.url, err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe %s: status %d", p.url, resp.StatusCode)
	}
	return nil
}

func (p *Prober) set(connected bool) {
	if prev := p.connected.Swap(connected); prev != connected {
		slog.Info("connectivity changed", "url", p.url, "connected", connected)
	}
}
