package embedding

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures the circuit breaker around an embedding
// service. Interval and Timeout are in seconds.
type BreakerConfig struct {
	Enabled          bool
	MaxRequests      uint32
	Interval         int
	Timeout          int
	ReadyToTripRatio float64
}

// DefaultBreakerConfig returns conservative breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         60,
		Timeout:          30,
		ReadyToTripRatio: 0.6,
	}
}

// BreakerService wraps a Service with circuit breaking so a failing
// provider stops receiving traffic until it recovers.
type BreakerService struct {
	service Service
	cb      *gobreaker.CircuitBreaker
}

// NewBreakerService wraps service with a circuit breaker. When cfg is
// disabled the service is returned unchanged.
func NewBreakerService(service Service, cfg BreakerConfig) Service {
	if !cfg.Enabled {
		return service
	}

	st := gobreaker.Settings{
		Name:        "embedding",
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Embedding circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &BreakerService{
		service: service,
		cb:      gobreaker.NewCircuitBreaker(st),
	}
}

// GenerateEmbedding implements Service.
func (s *BreakerService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		return s.service.GenerateEmbedding(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return result.([]float32), nil
}

// ModelInfo implements Service.
func (s *BreakerService) ModelInfo() ModelInfo {
	return s.service.ModelInfo()
}

// Close implements Service.
func (s *BreakerService) Close() error {
	return s.service.Close()
}
