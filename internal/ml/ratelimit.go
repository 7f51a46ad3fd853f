package ml

import (
	"context"
	"fmt"
	"time"

	"github.com/agridoc/agridoc/internal/models"
	"golang.org/x/time/rate"
)

// RateLimitedDiagnoser keeps calls under the backend quota
type RateLimitedDiagnoser struct {
	next    Diagnoser
	limiter *rate.Limiter
	backend string
}

func NewRateLimitedDiagnoser(next Diagnoser, requestsPerMinute int, backend string) *RateLimitedDiagnoser {
	return &RateLimitedDiagnoser{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
		backend: backend,
	}
}

func (r *RateLimitedDiagnoser) Diagnose(ctx context.Context, imageData []byte) (*models.DiagnosisResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, &BackendError{Backend: r.backend, Err: fmt.Errorf("rate limit wait: %w", err)}
	}
	return r.next.Diagnose(ctx, imageData)
}
