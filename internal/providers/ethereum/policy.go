package ethereum

import (
	"math"
	"time"
)

// DefaultJitterFraction spreads retry delays by ±25%
const DefaultJitterFraction = 0.25

// PoolConfig controls retry and rotation behaviour of the provider pool
type PoolConfig struct {
	// MaxRetries is the number of attempts made on one endpoint before rotating
	MaxRetries int
	// InitialRetryDelay is the delay after the first failed attempt
	InitialRetryDelay time.Duration
	// MaxRetryDelay caps the exponential delay before jitter is applied
	MaxRetryDelay time.Duration
	// MinSwitchInterval is the cooldown between two rotations
	MinSwitchInterval time.Duration
	// JitterFraction is the relative spread applied to each delay; 0 disables jitter
	JitterFraction float64
	// CallTimeout bounds a single attempt; 0 means only the caller's context applies
	CallTimeout time.Duration
	// RequestsPerSecond throttles calls to each endpoint; 0 disables throttling
	RequestsPerSecond float64
	// Burst is the number of calls allowed above the steady rate
	Burst int
}

// ActionKind is what the pool should do after a provider-class failure
type ActionKind int

const (
	// ActionRetry sleeps for Action.Delay and retries on the same endpoint
	ActionRetry ActionKind = iota
	// ActionRotate moves to the next endpoint and retries immediately
	ActionRotate
	// ActionFail gives up on the operation
	ActionFail
)

func (k ActionKind) String() string {
	switch k {
	case ActionRetry:
		return "retry"
	case ActionRotate:
		return "rotate"
	default:
		return "fail"
	}
}

// Action is the outcome of Decide
type Action struct {
	Kind  ActionKind
	Delay time.Duration
}

// Decide returns the next step after the attempt with zero-based index attempt
// failed on the active endpoint. rnd in [0,1) feeds the jitter of a retry delay.
func Decide(attempt int, sinceLastSwitch time.Duration, cfg PoolConfig, rnd float64) Action {
	if attempt+1 < cfg.MaxRetries {
		return Action{Kind: ActionRetry, Delay: BackoffDelay(attempt, cfg, rnd)}
	}
	if sinceLastSwitch >= cfg.MinSwitchInterval {
		return Action{Kind: ActionRotate}
	}
	return Action{Kind: ActionFail}
}

// BackoffDelay returns min(initial*2^attempt, max) scaled by 1 + jitter*(2*rnd-1)
func BackoffDelay(attempt int, cfg PoolConfig, rnd float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := cfg.MaxRetryDelay
	// 2^attempt overflows a Duration long before 62 doublings matter
	if attempt < 62 {
		scaled := float64(cfg.InitialRetryDelay) * math.Pow(2, float64(attempt))
		if scaled < float64(cfg.MaxRetryDelay) {
			delay = time.Duration(scaled)
		}
	}

	if cfg.JitterFraction <= 0 {
		return delay
	}
	if rnd < 0 {
		rnd = 0
	} else if rnd > 1 {
		rnd = 1
	}
	factor := 1 + cfg.JitterFraction*(2*rnd-1)
	return time.Duration(float64(delay) * factor)
}
