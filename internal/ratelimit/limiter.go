// AngelaMos | 2026
// limiter.go

// Package ratelimit implements the fixed-window request counter that guards
// the credential endpoints: a per-client quota that resets a whole window
// after the first request of that window.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultWindow      = 15 * time.Minute
	DefaultMaxRequests = 5

	UnknownClient = "unknown"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Entry is the state kept per client. An entry whose ResetAt is in the past
// is expired and behaves exactly like a missing one.
type Entry struct {
	Count   int
	ResetAt time.Time
}

func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ResetAt)
}

// Store performs the check-and-increment for one key atomically.
type Store interface {
	Hit(
		ctx context.Context,
		key string,
		now time.Time,
		window time.Duration,
		maxRequests int,
	) (Entry, bool, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
	Len(ctx context.Context) (int, error)
}

type Config struct {
	Window      time.Duration
	MaxRequests int
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type Limiter struct {
	store  Store
	clock  Clock
	config Config
	logger *slog.Logger
}

type Option func(*Limiter)

func WithClock(clock Clock) Option {
	return func(l *Limiter) {
		l.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func New(store Store, cfg Config, opts ...Option) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultMaxRequests
	}

	l := &Limiter{
		store:  store,
		clock:  systemClock{},
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Config() Config {
	return l.config
}

// Check counts one request from clientID and reports whether it may proceed.
func (l *Limiter) Check(ctx context.Context, clientID string) (Decision, error) {
	if clientID == "" {
		clientID = UnknownClient
	}

	now := l.clock.Now()

	entry, allowed, err := l.store.Hit(
		ctx,
		clientID,
		now,
		l.config.Window,
		l.config.MaxRequests,
	)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit hit: %w", err)
	}

	decision := Decision{
		Allowed:   allowed,
		Limit:     l.config.MaxRequests,
		Remaining: max(l.config.MaxRequests-entry.Count, 0),
		ResetAt:   entry.ResetAt,
	}

	if !allowed {
		decision.RetryAfter = retryAfter(now, entry.ResetAt)
	}

	return decision, nil
}

// Sweep deletes entries whose window has elapsed.
func (l *Limiter) Sweep(ctx context.Context) (int, error) {
	removed, err := l.store.Sweep(ctx, l.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("rate limit sweep: %w", err)
	}
	return removed, nil
}

func (l *Limiter) Size(ctx context.Context) (int, error) {
	return l.store.Len(ctx)
}

// Run sweeps once per window until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.config.Window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := l.Sweep(ctx)
			if err != nil {
				l.logger.Warn("rate limit sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				l.logger.Debug("rate limit sweep", "removed", removed)
			}
		}
	}
}

// retryAfter rounds the remaining window up to whole seconds, never below one.
func retryAfter(now, resetAt time.Time) time.Duration {
	remaining := resetAt.Sub(now)
	seconds := (remaining + time.Second - 1) / time.Second
	if seconds < 1 {
		seconds = 1
	}
	return seconds * time.Second
}
