package ml

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/agridoc/agridoc/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeModel answers Generate with a fixed response or error
type fakeModel struct {
	response string
	err      error
	delay    time.Duration
	calls    atomic.Int32
}

func (f *fakeModel) Load(ctx context.Context) error { return nil }
func (f *fakeModel) Name() string { return "fake" }
func (f *fakeModel) Close() error { return nil }

func (f *fakeModel) Generate(ctx context.Context, imageData []byte) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

func TestClient_Diagnose(t *testing.T) {
	// Leaf with early blight
	model := &fakeModel{response: encodePayload(t, validPayload())}
	c := NewClient(model, 0, zap.NewNop())

	result, err := c.Diagnose(context.Background(), []byte("tomato leaf"))
	require.NoError(t, err)
	assert.Equal(t, "Tomato", result.DetectedCrop)
	assert.Equal(t, models.SeverityMedium, result.Severity)
	assert.False(t, result.IsHealthy)
	assert.Equal(t, int32(1), model.calls.Load())
}

func TestClient_NonPlant(t *testing.T) {
	p := validPayload()
	p["detectedCrop"] = "Unknown"
	p["diseaseName"] = "Not a plant"
	p["isHealthy"] = true
	c := NewClient(&fakeModel{response: encodePayload(t, p)}, 0, zap.NewNop())

	result, err := c.Diagnose(context.Background(), []byte("wall"))
	require.NoError(t, err)
	assert.Equal(t, models.UnknownCrop, result.DetectedCrop)
	assert.False(t, result.IsHealthy)
}

func TestClient_BackendError(t *testing.T) {
	cause := errors.New("connection refused")
	c := NewClient(&fakeModel{err: cause}, 0, zap.NewNop())

	_, err := c.Diagnose(context.Background(), []byte("leaf"))
	require.Error(t, err)
	assert.True(t, IsBackendError(err))
	assert.False(t, IsSchemaError(err))
	assert.ErrorIs(t, err, cause)
}

func TestClient_EmptyResponse(t *testing.T) {
	c := NewClient(&fakeModel{response: "  \n"}, 0, zap.NewNop())

	_, err := c.Diagnose(context.Background(), []byte("leaf"))
	require.Error(t, err)
	assert.True(t, IsBackendError(err))
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClient_SchemaError(t *testing.T) {
	p := validPayload()
	delete(p, "diseaseName")
	c := NewClient(&fakeModel{response: encodePayload(t, p)}, 0, zap.NewNop())

	_, err := c.Diagnose(context.Background(), []byte("leaf"))
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
	assert.False(t, IsBackendError(err))
}

func TestClient_Timeout(t *testing.T) {
	model := &fakeModel{response: encodePayload(t, validPayload()), delay: time.Second}
	c := NewClient(model, 20*time.Millisecond, zap.NewNop())

	_, err := c.Diagnose(context.Background(), []byte("leaf"))
	require.Error(t, err)
	assert.True(t, IsBackendError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_EmptyImage(t *testing.T) {
	model := &fakeModel{}
	c := NewClient(model, 0, zap.NewNop())

	_, err := c.Diagnose(context.Background(), nil)
	var acqErr *models.AcquisitionError
	assert.ErrorAs(t, err, &acqErr)
	assert.Zero(t, model.calls.Load())
}

func TestCachedDiagnoser(t *testing.T) {
	model := &fakeModel{response: encodePayload(t, validPayload())}
	d, err := NewCachedDiagnoser(NewClient(model, 0, zap.NewNop()), 2, zap.NewNop())
	require.NoError(t, err)

	first, err := d.Diagnose(context.Background(), []byte("leaf"))
	require.NoError(t, err)
	first.Treatment[0] = "mutated by caller"

	second, err := d.Diagnose(context.Background(), []byte("leaf"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), model.calls.Load())
	assert.Equal(t, "Remove infected leaves", second.Treatment[0])

	_, err = d.Diagnose(context.Background(), []byte("another leaf"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), model.calls.Load())
}

func TestCachedDiagnoser_DoesNotCacheFailures(t *testing.T) {
	model := &fakeModel{err: errors.New("quota exceeded")}
	d, err := NewCachedDiagnoser(NewClient(model, 0, zap.NewNop()), 2, zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := d.Diagnose(context.Background(), []byte("leaf"))
		assert.True(t, IsBackendError(err))
	}
	assert.Equal(t, int32(2), model.calls.Load())
}

func TestRateLimitedDiagnoser(t *testing.T) {
	model := &fakeModel{response: encodePayload(t, validPayload())}
	d := NewRateLimitedDiagnoser(NewClient(model, 0, zap.NewNop()), 1, "fake")

	_, err := d.Diagnose(context.Background(), []byte("leaf"))
	require.NoError(t, err)

	// The next token is a minute away
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = d.Diagnose(ctx, []byte("leaf"))
	require.Error(t, err)
	assert.True(t, IsBackendError(err))
	assert.Equal(t, int32(1), model.calls.Load())
}

func healthyWheatPayload() map[string]any {
	p := validPayload()
	p["detectedCrop"] = "Wheat"
	p["detectedCropTamil"] = "கோதுமை"
	p["diseaseName"] = "Healthy"
	p["severity"] = "Low"
	p["isHealthy"] = true
	p["treatment"] = []string{}
	p["treatmentTamil"] = []string{}
	return p
}

func TestCachedDiagnoser_HealthyHitKeepsEmptyLists(t *testing.T) {
	model := &fakeModel{response: encodePayload(t, healthyWheatPayload())}
	d, err := NewCachedDiagnoser(NewClient(model, 0, zap.NewNop()), 2, zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		result, err := d.Diagnose(context.Background(), []byte("wheat"))
		require.NoError(t, err)
		assert.True(t, result.IsHealthy)

		data, err := json.Marshal(result)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"treatment":[]`)
		assert.Contains(t, string(data), `"treatmentTamil":[]`)
	}
	assert.Equal(t, int32(1), model.calls.Load())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))

	// "தக்காளி" is 3-byte runes; cutting at 4 bytes must back off to 3
	got := truncate("தக்காளி", 4)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "த...", got)
}
