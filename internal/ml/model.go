package ml

import (
	"context"
	"fmt"

	"github.com/agridoc/agridoc/internal/config"
	"github.com/agridoc/agridoc/internal/models"
	"go.uber.org/zap"
)

// Model is a multimodal backend that answers the diagnosis prompt for one image
type Model interface {
	// Load initializes the model with its configuration
	Load(ctx context.Context) error
	// Generate sends the image with the fixed instruction and returns the raw response text
	Generate(ctx context.Context, imageData []byte) (string, error)
	// Name identifies the backend in logs and errors
	Name() string
	Close() error
}

// Diagnoser turns an image into a validated diagnosis
type Diagnoser interface {
	Diagnose(ctx context.Context, imageData []byte) (*models.DiagnosisResult, error)
}

// NewModel creates the backend selected by cfg.Type. The model still needs Load.
func NewModel(cfg config.MLConfig, logger *zap.Logger) (Model, error) {
	switch cfg.Type {
	case "vertex":
		return NewVertexModel(cfg), nil
	case "gemini":
		return NewGeminiModel(cfg), nil
	case "anthropic":
		return NewAnthropicModel(cfg), nil
	case "fixture":
		logger.Warn("Using fixture model; diagnoses are replayed from disk", zap.String("path", cfg.Fixture.Path))
		return NewFixtureModel(cfg.Fixture.Path), nil
	default:
		return nil, fmt.Errorf("unsupported model type: %s", cfg.Type)
	}
}

// NewDiagnoser loads the configured backend and wraps it with the timeout, rate limit and cache
// settings from cfg
func NewDiagnoser(ctx context.Context, cfg config.MLConfig, logger *zap.Logger) (Diagnoser, Model, error) {
	model, err := NewModel(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := model.Load(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to load %s model: %w", model.Name(), err)
	}

	var d Diagnoser = NewClient(model, cfg.Timeout, logger)
	if cfg.RequestsPerMinute > 0 {
		d = NewRateLimitedDiagnoser(d, cfg.RequestsPerMinute, model.Name())
	}
	if cfg.CacheSize > 0 {
		cached, err := NewCachedDiagnoser(d, cfg.CacheSize, logger)
		if err != nil {
			model.Close()
			return nil, nil, err
		}
		d = cached
	}

	logger.Info("Diagnosis backend ready",
		zap.String("model", model.Name()),
		zap.Duration("timeout", cfg.Timeout),
		zap.Int("cache_size", cfg.CacheSize),
		zap.Int("requests_per_minute", cfg.RequestsPerMinute))
	return d, model, nil
}
