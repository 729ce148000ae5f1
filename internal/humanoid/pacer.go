package humanoid

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/formweaver/formweaver/internal/config"
)

// Pacer produces human-like timing for form interactions: per-keystroke hold
// times, click holds, and cognitive pauses between actions. All durations are
// drawn from the configured distributions so repeated runs never share an
// exact rhythm. A disabled pacer returns zero durations everywhere, which
// keeps tests and bulk runs fast.
type Pacer struct {
	cfg config.HumanoidConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Pacer.
type Option func(*Pacer)

// WithSeed fixes the random source, making timing deterministic for tests.
func WithSeed(seed int64) Option {
	return func(p *Pacer) {
		p.rng = rand.New(rand.NewSource(seed))
	}
}

// NewPacer builds a pacer from the humanoid configuration.
func NewPacer(cfg config.HumanoidConfig, opts ...Option) *Pacer {
	p := &Pacer{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enabled reports whether pacing is active.
func (p *Pacer) Enabled() bool { return p.cfg.Enabled }

// KeyHold returns how long the next simulated keypress should be held,
// normally distributed around the configured mean.
func (p *Pacer) KeyHold() time.Duration {
	if !p.cfg.Enabled {
		return 0
	}
	p.mu.Lock()
	ms := p.cfg.KeyHoldMeanMs + p.rng.NormFloat64()*p.cfg.KeyHoldJitterMs
	p.mu.Unlock()
	return clampMs(ms)
}

// ClickHold returns how long a simulated mouse button should stay down,
// uniform across the configured range.
func (p *Pacer) ClickHold() time.Duration {
	if !p.cfg.Enabled {
		return 0
	}
	lo, hi := p.cfg.ClickHoldMinMs, p.cfg.ClickHoldMaxMs
	if hi <= lo {
		return clampMs(float64(lo))
	}
	p.mu.Lock()
	ms := lo + p.rng.Intn(hi-lo)
	p.mu.Unlock()
	return clampMs(float64(ms))
}

// CognitivePause blocks for a think-time interval between field interactions,
// normally distributed around the configured base. It returns early when the
// context is cancelled.
func (p *Pacer) CognitivePause(ctx context.Context) error {
	if !p.cfg.Enabled {
		return ctx.Err()
	}
	p.mu.Lock()
	ms := float64(p.cfg.PauseBaseMs) + p.rng.NormFloat64()*float64(p.cfg.PauseJitterMs)
	p.mu.Unlock()

	d := clampMs(ms)
	if d == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// clampMs converts a millisecond value to a non-negative duration.
func clampMs(ms float64) time.Duration {
	if ms <= 0 || math.IsNaN(ms) {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}
