package ml

import (
	"encoding/json"
	"testing"

	"github.com/agridoc/agridoc/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPayload() map[string]any {
	return map[string]any{
		"detectedCrop":      "Tomato",
		"detectedCropTamil": "தக்காளி",
		"diseaseName":       "Early Blight",
		"diseaseNameTamil":  "முன்கூட்டிய இலைக் கருகல்",
		"confidence":        0.86,
		"severity":          "Medium",
		"description":       "Dark concentric spots on older leaves.",
		"descriptionTamil":  "பழைய இலைகளில் கருமையான புள்ளிகள்.",
		"treatment":         []string{"Remove infected leaves", "Spray mancozeb"},
		"treatmentTamil":    []string{"பாதிக்கப்பட்ட இலைகளை அகற்றவும்", "மான்கோசெப் தெளிக்கவும்"},
		"cause":             "Fungus",
		"isHealthy":         false,
	}
}

func encodePayload(t *testing.T, p map[string]any) string {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	return string(data)
}

func requireSchemaError(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, field, schemaErr.Field)
}

func TestParseDiagnosis_Valid(t *testing.T) {
	result, err := ParseDiagnosis(encodePayload(t, validPayload()))
	require.NoError(t, err)

	assert.Equal(t, "Tomato", result.DetectedCrop)
	assert.Equal(t, "Early Blight", result.DiseaseName)
	assert.Equal(t, models.SeverityMedium, result.Severity)
	assert.InDelta(t, 0.86, result.Confidence, 1e-9)
	assert.False(t, result.IsHealthy)
	assert.Len(t, result.TreatmentTamil, len(result.Treatment))
}

func TestParseDiagnosis_HealthyWheat(t *testing.T) {
	p := validPayload()
	p["detectedCrop"] = "Wheat"
	p["diseaseName"] = "Healthy"
	p["severity"] = "Low"
	p["isHealthy"] = true
	p["treatment"] = []string{}
	p["treatmentTamil"] = []string{}

	result, err := ParseDiagnosis(encodePayload(t, p))
	require.NoError(t, err)
	assert.True(t, result.IsHealthy)
	assert.Equal(t, models.SeverityLow, result.Severity)
	assert.Empty(t, result.Treatment)
	assert.Empty(t, result.TreatmentTamil)
}

func TestParseDiagnosis_NonPlantForcesUnhealthy(t *testing.T) {
	for _, crop := range []string{"Unknown", "unknown", "  ", ""} {
		p := validPayload()
		p["detectedCrop"] = crop
		p["isHealthy"] = true

		result, err := ParseDiagnosis(encodePayload(t, p))
		require.NoError(t, err, "crop %q", crop)
		assert.Equal(t, models.UnknownCrop, result.DetectedCrop)
		assert.Equal(t, models.UnknownCropTamil, result.DetectedCropTamil)
		assert.False(t, result.IsHealthy, "crop %q", crop)
	}
}

func TestParseDiagnosis_MissingRequiredField(t *testing.T) {
	for _, field := range requiredFieldNames() {
		t.Run(field, func(t *testing.T) {
			p := validPayload()
			delete(p, field)
			_, err := ParseDiagnosis(encodePayload(t, p))
			requireSchemaError(t, err, field)
		})
	}
}

func TestParseDiagnosis_NullField(t *testing.T) {
	p := validPayload()
	p["diseaseName"] = nil
	_, err := ParseDiagnosis(encodePayload(t, p))
	requireSchemaError(t, err, "diseaseName")
}

func TestParseDiagnosis_ConfidenceOptional(t *testing.T) {
	p := validPayload()
	delete(p, "confidence")
	result, err := ParseDiagnosis(encodePayload(t, p))
	require.NoError(t, err)
	assert.Zero(t, result.Confidence)
}

func TestParseDiagnosis_WrongType(t *testing.T) {
	tests := map[string]any{
		"isHealthy":  "yes",
		"treatment":  "spray neem oil",
		"confidence": "high",
		"severity":   3,
	}
	for field, value := range tests {
		t.Run(field, func(t *testing.T) {
			p := validPayload()
			p[field] = value
			_, err := ParseDiagnosis(encodePayload(t, p))
			requireSchemaError(t, err, field)
		})
	}
}

func TestParseDiagnosis_Severity(t *testing.T) {
	p := validPayload()
	p["severity"] = "high"
	result, err := ParseDiagnosis(encodePayload(t, p))
	require.NoError(t, err)
	assert.Equal(t, models.SeverityHigh, result.Severity)

	p["severity"] = "Critical"
	_, err = ParseDiagnosis(encodePayload(t, p))
	requireSchemaError(t, err, "severity")
}

func TestParseDiagnosis_TreatmentPairing(t *testing.T) {
	p := validPayload()
	p["treatment"] = []string{"one", "two", "three"}
	p["treatmentTamil"] = []string{"ஒன்று"}

	result, err := ParseDiagnosis(encodePayload(t, p))
	require.NoError(t, err)
	assert.Equal(t, []string{"ஒன்று", "two", "three"}, result.TreatmentTamil)

	p["treatment"] = []string{"one"}
	p["treatmentTamil"] = []string{"ஒன்று", "இரண்டு"}
	result, err = ParseDiagnosis(encodePayload(t, p))
	require.NoError(t, err)
	assert.Equal(t, []string{"ஒன்று"}, result.TreatmentTamil)
}

func TestParseDiagnosis_CodeFence(t *testing.T) {
	text := "```json\n" + encodePayload(t, validPayload()) + "\n```"
	result, err := ParseDiagnosis(text)
	require.NoError(t, err)
	assert.Equal(t, "Tomato", result.DetectedCrop)
}

func TestParseDiagnosis_NotJSON(t *testing.T) {
	for _, text := range []string{"", "   ", "I think this is a tomato.", "[1,2,3]"} {
		_, err := ParseDiagnosis(text)
		requireSchemaError(t, err, "")
	}
}

func TestSchemaInstructionsNameEveryField(t *testing.T) {
	text := schemaInstructions()
	for _, f := range responseFields {
		assert.Contains(t, text, f.Name)
	}
}

func TestParseDiagnosis_EmptyTamilCrop(t *testing.T) {
	p := validPayload()
	p["detectedCropTamil"] = "  "
	_, err := ParseDiagnosis(encodePayload(t, p))
	requireSchemaError(t, err, "detectedCropTamil")

	// Filled in when no crop was identified
	p["detectedCrop"] = "Unknown"
	result, err := ParseDiagnosis(encodePayload(t, p))
	require.NoError(t, err)
	assert.Equal(t, models.UnknownCropTamil, result.DetectedCropTamil)
}
