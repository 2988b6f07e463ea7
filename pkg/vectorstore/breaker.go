package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures BreakerStore.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ReadyToTripRatio float64
}

// DefaultBreakerConfig trips after at least three requests of which 60%
// failed, and probes again after 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		ReadyToTripRatio: 0.6,
	}
}

// BreakerStore wraps a Store with circuit breaking. While the circuit is
// open, calls fail fast with gobreaker.ErrOpenState. ErrNotFound and
// context cancellation do not count as failures.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps inner. name identifies the breaker in logs.
func NewBreakerStore(inner Store, cfg BreakerConfig, name string, logger *slog.Logger) *BreakerStore {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadyToTripRatio <= 0 {
		cfg.ReadyToTripRatio = DefaultBreakerConfig().ReadyToTripRatio
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Error("Vector store circuit breaker tripped", "breaker", name, "from", from.String(), "to", to.String())
				return
			}
			logger.Info("Vector store circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &BreakerStore{inner: inner, cb: gobreaker.NewCircuitBreaker(st)}
}

// State reports the current breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

// GetEmbedding implements Store.
func (b *BreakerStore) GetEmbedding(ctx context.Context, documentID string) ([]float32, error) {
	vec, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.GetEmbedding(ctx, documentID)
	})
	if err != nil {
		return nil, err
	}
	return vec.([]float32), nil
}

// ScanEmbeddings implements Store.
func (b *BreakerStore) ScanEmbeddings(ctx context.Context, filter Filter) ([]Embedding, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.ScanEmbeddings(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	return out.([]Embedding), nil
}

// PutEmbedding writes through to the inner store when it accepts writes.
func (b *BreakerStore) PutEmbedding(ctx context.Context, e Embedding) error {
	w, ok := b.inner.(Writer)
	if !ok {
		return fmt.Errorf("%T does not accept writes", b.inner)
	}
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, w.PutEmbedding(ctx, e)
	})
	return err
}

// Close implements Store.
func (b *BreakerStore) Close() error {
	return b.inner.Close()
}
