package ml

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agridoc/agridoc/internal/models"
	"go.uber.org/zap"
)

// Client is the diagnosis boundary: one backend call, strict parsing, typed failures.
// It holds no per-call state; callers keep at most one call in flight.
type Client struct {
	model   Model
	timeout time.Duration
	logger  *zap.Logger
}

func NewClient(model Model, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		model:   model,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "diagnosis"), zap.String("model", model.Name())),
	}
}

// Diagnose sends imageData to the backend and returns the parsed result.
// Failures are *BackendError or *SchemaError; nothing is retried.
func (c *Client) Diagnose(ctx context.Context, imageData []byte) (*models.DiagnosisResult, error) {
	if len(imageData) == 0 {
		return nil, &models.AcquisitionError{Reason: "empty image"}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.model.Generate(ctx, imageData)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		c.logger.Error("Diagnosis backend call failed",
			zap.Error(err),
			zap.Int("image_bytes", len(imageData)),
			zap.Duration("elapsed", time.Since(start)))
		return nil, &BackendError{Backend: c.model.Name(), Err: err}
	}

	result, err := ParseDiagnosis(text)
	if err != nil {
		c.logger.Error("Diagnosis response violated schema",
			zap.Error(err),
			zap.String("response", truncate(text, 500)))
		return nil, err
	}

	c.logger.Info("Diagnosis completed",
		zap.String("crop", result.DetectedCrop),
		zap.String("disease", result.DiseaseName),
		zap.String("severity", string(result.Severity)),
		zap.Bool("healthy", result.IsHealthy),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// truncate cuts s to at most n bytes without splitting a multi-byte rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
