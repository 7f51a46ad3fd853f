package models

// UnknownCrop is reported when the model could not identify a plant in the image.
const UnknownCrop = "Unknown"

// UnknownCropTamil pairs with UnknownCrop in DetectedCropTamil
const UnknownCropTamil = "தெரியவில்லை"

// Severity grades how far a detected disease or pest has progressed
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Severities lists the accepted severity values in ascending order
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh}

// DiagnosisResult represents the structured diagnosis returned for one scan
type DiagnosisResult struct {
	DetectedCrop      string `json:"detectedCrop" validate:"required"`
	DetectedCropTamil string `json:"detectedCropTamil" validate:"required"`

	DiseaseName      string `json:"diseaseName"`
	DiseaseNameTamil string `json:"diseaseNameTamil"`

	Confidence float64  `json:"confidence"` // 0..1, as reported by the model
	Severity   Severity `json:"severity" validate:"oneof=Low Medium High"`

	Description      string `json:"description"`
	DescriptionTamil string `json:"descriptionTamil"`

	// Treatment and TreatmentTamil are paired by index
	Treatment      []string `json:"treatment"`
	TreatmentTamil []string `json:"treatmentTamil"`

	Cause     string `json:"cause"` // Fungal, Bacterial, Viral, Pest, Nutrient Deficiency
	IsHealthy bool   `json:"isHealthy"`
}

// Clone returns a deep copy so callers can hand results out without sharing slices.
// Treatment lists in the copy are never nil, so they always encode as JSON arrays.
func (d *DiagnosisResult) Clone() *DiagnosisResult {
	if d == nil {
		return nil
	}
	out := *d
	out.Treatment = copyList(d.Treatment)
	out.TreatmentTamil = copyList(d.TreatmentTamil)
	return &out
}

func copyList(in []string) []string {
	return append(make([]string, 0, len(in)), in...)
}

// CropName returns the detected crop, falling back to UnknownCrop
func (d *DiagnosisResult) CropName() string {
	if d == nil || d.DetectedCrop == "" {
		return UnknownCrop
	}
	return d.DetectedCrop
}

// HistoryItem represents one recorded scan
type HistoryItem struct {
	ID           string          `json:"id"`
	Date         string          `json:"date"` // display string captured at creation
	Crop         string          `json:"crop"`
	ImagePreview string          `json:"imagePreview"` // base64, no data URL prefix
	Diagnosis    DiagnosisResult `json:"diagnosis"`
}
