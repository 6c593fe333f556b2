// Package discovery resolves the reachable game-server base URL. The result
// is cached for the process lifetime; concurrent callers share a single
// in-flight resolution so the candidates are never probed twice.
package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	defaultProbeTimeout = 3 * time.Second
	defaultRetryMin     = 500 * time.Millisecond
	defaultRetryMax     = 2 * time.Second

	// How many times the fallback URL is probed before we give up and hand
	// it out unverified. Discovery never fails terminally; the liveness
	// check downstream surfaces "backend not ready" if the fallback is dead.
	fallbackAttempts = 5
)

// Config controls the resolution order: explicit override, candidate hosts
// in priority order, then the fallback URL.
type Config struct {
	// Override is used verbatim when set. No probing happens.
	Override string
	// Candidates are probed in order with a bounded per-probe timeout; the
	// first that answers 2xx on GET / wins.
	Candidates []string
	// Fallback is returned when nothing else answers.
	Fallback string

	ProbeTimeout time.Duration
	RetryMin     time.Duration
	RetryMax     time.Duration
}

type Resolver struct {
	cfg   Config
	http  *http.Client
	clock clockwork.Clock

	mu      sync.Mutex
	base    string
	flavor  string
	pending chan struct{}
}

func NewResolver(cfg Config, httpClient *http.Client, clock clockwork.Clock) *Resolver {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.RetryMin <= 0 {
		cfg.RetryMin = defaultRetryMin
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = defaultRetryMax
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Resolver{cfg: cfg, http: httpClient, clock: clock}
}

// Base returns the resolved base URL, running discovery on first use. All
// concurrent callers await the same resolution. Only context cancellation
// can surface an error.
func (r *Resolver) Base(ctx context.Context) (string, error) {
	for {
		r.mu.Lock()
		if r.base != "" {
			base := r.base
			r.mu.Unlock()
			return base, nil
		}
		if r.pending != nil {
			pending := r.pending
			r.mu.Unlock()
			select {
			case <-pending:
				continue
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		pending := make(chan struct{})
		r.pending = pending
		r.mu.Unlock()

		base, flavor, err := r.discover(ctx)
		r.mu.Lock()
		if err == nil {
			r.base = base
			r.flavor = flavor
		}
		r.pending = nil
		close(pending)
		r.mu.Unlock()
		if err != nil {
			return "", err
		}
		return base, nil
	}
}

// Cached returns the resolved base without triggering discovery, or "" when
// discovery has not completed yet.
func (r *Resolver) Cached() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.base
}

// Flavor reports the backend flavor announced by the liveness probe of the
// endpoint that won discovery, if any.
func (r *Resolver) Flavor() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flavor
}

// Reset clears the cache; the next Base call re-runs discovery. Used for
// reconnection flows and tests.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.base = ""
	r.flavor = ""
}

func (r *Resolver) discover(ctx context.Context) (string, string, error) {
	if r.cfg.Override != "" {
		log.Info().Str("base", r.cfg.Override).Msg("using configured api base")
		return r.cfg.Override, "", nil
	}

	for _, candidate := range r.cfg.Candidates {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		flavor, ok := r.probe(ctx, candidate)
		if ok {
			log.Info().Str("base", candidate).Str("flavor", flavor).Msg("discovered backend")
			return candidate, flavor, nil
		}
		log.Debug().Str("base", candidate).Msg("candidate not reachable")
	}

	// No candidate answered; retry the fallback with doubling backoff before
	// handing it out unverified.
	delay := r.cfg.RetryMin
	for attempt := 0; attempt < fallbackAttempts; attempt++ {
		flavor, ok := r.probe(ctx, r.cfg.Fallback)
		if ok {
			log.Info().Str("base", r.cfg.Fallback).Str("flavor", flavor).Msg("using fallback backend")
			return r.cfg.Fallback, flavor, nil
		}
		select {
		case <-r.clock.After(delay):
		case <-ctx.Done():
			return "", "", ctx.Err()
		}
		delay *= 2
		if delay > r.cfg.RetryMax {
			delay = r.cfg.RetryMax
		}
	}

	log.Warn().Str("base", r.cfg.Fallback).Msg("no backend reachable, using fallback unverified")
	return r.cfg.Fallback, "", nil
}

// probe issues the lightweight liveness check against GET /. Any 2xx counts
// as alive; the body may carry a flavor string.
func (r *Resolver) probe(ctx context.Context, base string) (string, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, base+"/", nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false
	}
	var body struct {
		Flavor string `json:"flavor"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", true
	}
	return body.Flavor, true
}
