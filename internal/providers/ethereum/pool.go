package ethereum

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/feral-file/ff-grid-indexer/internal/adapter"
	"github.com/feral-file/ff-grid-indexer/internal/domain"
	"github.com/feral-file/ff-grid-indexer/internal/logger"
	"github.com/feral-file/ff-grid-indexer/internal/metrics"
)

// Endpoint is one configured RPC provider
type Endpoint struct {
	Index int
	URL   string
	// Name is the host of the URL, safe to log and to use as a metric label
	Name string
}

// Pool holds an ordered list of RPC endpoints and the cursor of the one in use.
// It is safe for concurrent use.
type Pool struct {
	endpoints []Endpoint
	dialer    adapter.EthClientDialer
	clock     adapter.Clock
	cfg       PoolConfig
	rand      func() float64
	limiters  []*rate.Limiter

	mu         sync.Mutex
	clients    []adapter.EthClient
	active     int
	lastSwitch time.Time
}

// NewPool creates a pool over the given endpoint URLs. Endpoints are dialed lazily.
func NewPool(urls []string, dialer adapter.EthClientDialer, cfg PoolConfig, clock adapter.Clock) (*Pool, error) {
	if len(urls) == 0 {
		return nil, domain.ErrNoEndpoints
	}

	endpoints := make([]Endpoint, 0, len(urls))
	for i, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil, fmt.Errorf("endpoint %d is empty", i)
		}
		endpoints = append(endpoints, Endpoint{Index: i, URL: raw, Name: endpointName(i, raw)})
	}

	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}

	// One local limiter per endpoint so a rotation does not inherit the old provider's budget
	limiters := make([]*rate.Limiter, len(endpoints))
	if cfg.RequestsPerSecond > 0 {
		burst := max(cfg.Burst, 1)
		for i := range limiters {
			limiters[i] = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
		}
	}

	metrics.ActiveEndpoint.Set(0)

	return &Pool{
		endpoints: endpoints,
		dialer:    dialer,
		clock:     clock,
		cfg:       cfg,
		rand:      rand.Float64,
		limiters:  limiters,
		clients:   make([]adapter.EthClient, len(endpoints)),
	}, nil
}

func endpointName(index int, raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Sprintf("endpoint-%d", index)
	}
	return u.Host
}

// Size returns the number of configured endpoints
func (p *Pool) Size() int {
	return len(p.endpoints)
}

// CurrentIndex returns the index of the endpoint in use
func (p *Pool) CurrentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// CurrentEndpoint returns the endpoint in use
func (p *Pool) CurrentEndpoint() Endpoint {
	return p.endpoints[p.CurrentIndex()]
}

// ForceRotate moves to the next endpoint regardless of the cooldown and returns its index
func (p *Pool) ForceRotate() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.switchLocked("forced")
	return p.active
}

// Close closes every dialed client
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, c := range p.clients {
		if c != nil {
			c.Close()
			p.clients[i] = nil
		}
	}
}

// ExecuteWithFailover runs op against the active endpoint, retrying provider-class
// failures with backoff and rotating to the next endpoint once the retries on the
// active one are used up. Other errors are returned as is, without retrying.
// At most MaxRetries*Size attempts are made; when they are all used up, or a
// rotation is refused by the cooldown, the returned error wraps domain.ErrFailoverExhausted.
func ExecuteWithFailover[T any](ctx context.Context, p *Pool, label string, op func(context.Context, adapter.EthClient) (T, error)) (T, error) {
	var zero T
	total := p.cfg.MaxRetries * len(p.endpoints)
	attempt := 0
	var lastErr error

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		ep, result, err := runAttempt(ctx, p, label, op)
		if err == nil {
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if !IsProviderError(err) {
			return zero, err
		}
		lastErr = err

		action := Decide(attempt, p.sinceLastSwitch(), p.cfg, p.rand())
		if action.Kind == ActionRetry && i == total-1 {
			break
		}

		switch action.Kind {
		case ActionRetry:
			logger.WarnCtx(ctx, "RPC call failed, retrying on same endpoint",
				zap.String("operation", label),
				zap.String("endpoint", ep.Name),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", action.Delay),
				zap.Error(err))
			if err := p.wait(ctx, action.Delay); err != nil {
				return zero, err
			}
			attempt++
		case ActionRotate:
			if !p.rotateFrom(ep.Index) {
				logger.WarnCtx(ctx, "Endpoint rotation refused",
					zap.String("operation", label),
					zap.String("endpoint", ep.Name),
					zap.Error(err))
				return zero, p.exhausted(label, i+1, lastErr)
			}
			logger.WarnCtx(ctx, "Rotated RPC endpoint",
				zap.String("operation", label),
				zap.String("from", ep.Name),
				zap.String("to", p.CurrentEndpoint().Name),
				zap.Error(err))
			attempt = 0
		default:
			logger.WarnCtx(ctx, "Endpoint switch cooldown active, giving up",
				zap.String("operation", label),
				zap.String("endpoint", ep.Name),
				zap.Duration("min_switch_interval", p.cfg.MinSwitchInterval),
				zap.Error(err))
			return zero, p.exhausted(label, i+1, lastErr)
		}
	}

	return zero, p.exhausted(label, total, lastErr)
}

func runAttempt[T any](ctx context.Context, p *Pool, label string, op func(context.Context, adapter.EthClient) (T, error)) (Endpoint, T, error) {
	var zero T

	ep, client, err := p.acquire(ctx)
	metrics.RPCCallsTotal.WithLabelValues(ep.Name, label).Inc()
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(ep.Name, label, "dial").Inc()
		return ep, zero, err
	}

	if limiter := p.limiters[ep.Index]; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return ep, zero, fmt.Errorf("throttle %s: %w", ep.Name, err)
		}
	}

	callCtx := ctx
	if p.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.cfg.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := op(callCtx, client)
	metrics.RPCLatency.WithLabelValues(ep.Name, label).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(ep.Name, label, ErrorClass(err)).Inc()
		return ep, zero, err
	}
	return ep, result, nil
}

// acquire returns the active endpoint and its client, dialing it on first use
func (p *Pool) acquire(ctx context.Context) (Endpoint, adapter.EthClient, error) {
	p.mu.Lock()
	ep := p.endpoints[p.active]
	client := p.clients[ep.Index]
	p.mu.Unlock()

	if client != nil {
		return ep, client, nil
	}

	dialed, err := p.dialer.Dial(ctx, ep.URL)
	if err != nil {
		return ep, nil, fmt.Errorf("%w %s: %w", errDial, ep.Name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing := p.clients[ep.Index]; existing != nil {
		dialed.Close()
		return ep, existing, nil
	}
	p.clients[ep.Index] = dialed
	return ep, dialed, nil
}

func (p *Pool) sinceLastSwitch() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock.Now().Sub(p.lastSwitch)
}

// rotateFrom advances the cursor if it still points at from and the cooldown has elapsed.
// When another caller already moved the cursor away from from, nothing changes and the
// caller continues on the new endpoint.
func (p *Pool) rotateFrom(from int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != from {
		return true
	}
	if len(p.endpoints) < 2 {
		return false
	}
	if p.clock.Now().Sub(p.lastSwitch) < p.cfg.MinSwitchInterval {
		return false
	}
	p.switchLocked("retries_exhausted")
	return true
}

func (p *Pool) switchLocked(reason string) {
	p.active = (p.active + 1) % len(p.endpoints)
	p.lastSwitch = p.clock.Now()
	metrics.EndpointRotationsTotal.WithLabelValues(reason).Inc()
	metrics.ActiveEndpoint.Set(float64(p.active))
}

func (p *Pool) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.clock.After(d):
		return nil
	}
}

func (p *Pool) exhausted(label string, attempts int, lastErr error) error {
	return fmt.Errorf("%w: %s after %d attempts across %d endpoints: %w",
		domain.ErrFailoverExhausted, label, attempts, len(p.endpoints), lastErr)
}
