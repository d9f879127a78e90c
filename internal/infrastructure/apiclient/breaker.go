package apiclient

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/janhq/jan-chat-sync/internal/infrastructure/metrics"
)

const (
	defaultMaxFailures    uint32 = 5
	defaultBreakerTimeout        = 30 * time.Second
)

// newBreaker trips after maxFailures consecutive transient failures and lets a
// single probe through once timeout has elapsed.
func newBreaker(name string, maxFailures uint32, timeout time.Duration, log zerolog.Logger) *gobreaker.CircuitBreaker {
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	if timeout <= 0 {
		timeout = defaultBreakerTimeout
	}
	metrics.RecordBreakerState(int(gobreaker.StateClosed))
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return !transient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerState(int(to))
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
}
