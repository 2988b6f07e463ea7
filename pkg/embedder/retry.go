package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// RetryConfig holds configuration for retry behavior
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3)
	MaxRetries int
	// InitialDelay is the initial delay before the first retry (default: 500ms)
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries (default: 10 seconds)
	MaxDelay time.Duration
	// BackoffMultiplier is the multiplier for exponential backoff (default: 2.0)
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryClient wraps an embedding client and retries transient failures with
// exponential backoff.
type RetryClient struct {
	client Client
	config *RetryConfig
	logger *slog.Logger
}

// NewRetryClient creates a new retry client wrapper
func NewRetryClient(client Client, config *RetryConfig, logger *slog.Logger) *RetryClient {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 500 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Second
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RetryClient{
		client: client,
		config: config,
		logger: logger,
	}
}

// Embed implements Client with retry logic.
func (r *RetryClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
			}
		}

		embeddings, err := r.client.Embed(ctx, texts)
		if err == nil {
			return embeddings, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return nil, err
		}
		r.logger.Debug("Retrying embedding request", "attempt", attempt+1, "error", err)
	}

	return nil, fmt.Errorf("failed after %d retries: %w", r.config.MaxRetries, lastErr)
}

// EmbedSingle implements Client with retry logic.
func (r *RetryClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return embedSingle(ctx, r, text)
}

// Dimensions implements Client.
func (r *RetryClient) Dimensions() int {
	return r.client.Dimensions()
}

// Close implements Client.
func (r *RetryClient) Close() error {
	return r.client.Close()
}

// calculateDelay returns InitialDelay * BackoffMultiplier^(attempt-1), capped at MaxDelay.
func (r *RetryClient) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}
	return time.Duration(delay)
}

func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, ErrEmptyInput) || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500 || apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= 500 || reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}

	errMsg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"internal server error",
		"bad gateway",
		"service unavailable",
		"gateway timeout",
		"timeout",
		"connection reset",
		"connection refused",
		"temporary failure",
		"rate limit",
		"too many requests",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
