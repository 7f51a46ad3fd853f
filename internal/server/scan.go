package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/agridoc/agridoc/internal/history"
	"github.com/agridoc/agridoc/internal/ml"
	"github.com/agridoc/agridoc/internal/models"
	"go.uber.org/zap"
)

// errAbandoned marks a scan whose caller went away before the diagnosis arrived
var errAbandoned = errors.New("scan abandoned by client")

// User-facing failure messages
const (
	msgInvalidImage   = "invalid image data"
	msgBackend        = "could not reach diagnosis service"
	msgSchema         = "diagnosis service returned an unexpected response"
	msgSave           = "could not save scan"
	msgScanInProgress = "scan already in progress"
	msgUnknownType    = "unknown message type"
	msgInvalidMessage = "invalid message format"
	msgHistory        = "could not load history"
	msgScanFailed     = "scan failed"
)

// scanResult is sent back for every successful diagnosis, whether or not it was saved
type scanResult struct {
	Diagnosis *models.DiagnosisResult `json:"diagnosis"`
	Item      *models.HistoryItem     `json:"item,omitempty"`
	Saved     bool                    `json:"saved"`
	Error     string                  `json:"error,omitempty"`
}

// runScan decodes the image, diagnoses it and records the result. A diagnosis that
// arrives after ctx is done is discarded and nothing is recorded.
func (s *Server) runScan(ctx context.Context, image string) (*scanResult, error) {
	imageData, err := models.DecodeImage(image)
	if err != nil {
		return nil, err
	}

	diagnosis, err := s.diagnoser.Diagnose(ctx, imageData)
	if ctx.Err() != nil {
		s.logger.Info("Discarding diagnosis for abandoned scan", zap.Error(ctx.Err()))
		return nil, errAbandoned
	}
	if err != nil {
		return nil, err
	}

	result := &scanResult{Diagnosis: diagnosis}
	item, err := s.history.Record(context.WithoutCancel(ctx), imageData, *diagnosis)
	switch {
	case err == nil:
		result.Item = &item
		result.Saved = true
	case item.ID != "":
		// Kept in memory for this session but not durable
		result.Item = &item
		result.Error = msgSave
	default:
		s.logger.Error("Failed to record scan", zap.Error(err))
		result.Error = msgSave
	}
	return result, nil
}

// userMessage maps an error to the text shown to the farmer
func userMessage(err error) string {
	var (
		acqErr     *models.AcquisitionError
		schemaErr  *ml.SchemaError
		backendErr *ml.BackendError
		persistErr *history.PersistenceError
	)
	switch {
	case errors.As(err, &acqErr):
		return msgInvalidImage
	case errors.As(err, &schemaErr):
		return msgSchema
	case errors.As(err, &backendErr):
		return msgBackend
	case errors.As(err, &persistErr):
		return msgSave
	default:
		return msgScanFailed
	}
}

func statusFor(err error) int {
	var (
		acqErr     *models.AcquisitionError
		schemaErr  *ml.SchemaError
		backendErr *ml.BackendError
	)
	switch {
	case errors.As(err, &acqErr):
		return http.StatusBadRequest
	case errors.As(err, &schemaErr), errors.As(err, &backendErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
