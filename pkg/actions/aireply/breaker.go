package aireply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/engageflow/pkg/protocol"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultMaxFailures uint32 = 5
	defaultOpenTimeout        = 30 * time.Second
	defaultInterval           = 60 * time.Second
)

var ErrGeneratorUnavailable = errors.New("ai generator unavailable")

type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before a probe is allowed.
	OpenTimeout time.Duration
	// Interval clears failure counts while the circuit is closed.
	Interval time.Duration
}

// BreakerGenerator guards a Generator with a circuit breaker so a failing AI
// provider fails steps fast instead of holding workers for the full timeout.
type BreakerGenerator struct {
	inner   protocol.Generator
	breaker *gobreaker.CircuitBreaker[string]
}

func NewBreakerGenerator(inner protocol.Generator, cfg BreakerConfig, logger *slog.Logger) *BreakerGenerator {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultMaxFailures
	}

	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}

	if cfg.Interval == 0 {
		cfg.Interval = defaultInterval
	}

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "ai_reply",
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &BreakerGenerator{inner: inner, breaker: breaker}
}

func (g *BreakerGenerator) Generate(ctx context.Context, req protocol.GenerateRequest) (string, error) {
	text, err := g.breaker.Execute(func() (string, error) {
		return g.inner.Generate(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %w", ErrGeneratorUnavailable, err)
	}

	return text, err
}

func (g *BreakerGenerator) State() gobreaker.State {
	return g.breaker.State()
}
