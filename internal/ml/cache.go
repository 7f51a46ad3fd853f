package ml

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/agridoc/agridoc/internal/models"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// CachedDiagnoser remembers successful diagnoses by image digest, so resubmitting the same
// photo does not cost another backend call. Failures are never cached.
type CachedDiagnoser struct {
	next   Diagnoser
	cache  *lru.Cache[string, *models.DiagnosisResult]
	logger *zap.Logger
}

func NewCachedDiagnoser(next Diagnoser, size int, logger *zap.Logger) (*CachedDiagnoser, error) {
	cache, err := lru.New[string, *models.DiagnosisResult](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create diagnosis cache: %w", err)
	}
	return &CachedDiagnoser{next: next, cache: cache, logger: logger}, nil
}

func (c *CachedDiagnoser) Diagnose(ctx context.Context, imageData []byte) (*models.DiagnosisResult, error) {
	sum := sha256.Sum256(imageData)
	key := hex.EncodeToString(sum[:])

	if hit, ok := c.cache.Get(key); ok {
		c.logger.Debug("Diagnosis cache hit", zap.String("digest", key[:12]))
		return hit.Clone(), nil
	}

	result, err := c.next.Diagnose(ctx, imageData)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, result.Clone())
	return result, nil
}
