package ml

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/agridoc/agridoc/internal/models"
	"github.com/go-playground/validator/v10"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindBool
	kindStringList
	kindSeverity
)

type responseField struct {
	Name        string
	Kind        fieldKind
	Required    bool
	Description string
}

// responseFields is the response contract shared by every backend, in the order the
// backends are asked to emit them
var responseFields = []responseField{
	{Name: "detectedCrop", Kind: kindString, Required: true, Description: "Identified plant, or 'Unknown'"},
	{Name: "detectedCropTamil", Kind: kindString, Required: true},
	{Name: "diseaseName", Kind: kindString, Required: true},
	{Name: "diseaseNameTamil", Kind: kindString, Required: true},
	{Name: "confidence", Kind: kindNumber, Description: "Confidence score between 0 and 1"},
	{Name: "severity", Kind: kindSeverity, Required: true},
	{Name: "description", Kind: kindString, Required: true},
	{Name: "descriptionTamil", Kind: kindString, Required: true},
	{Name: "treatment", Kind: kindStringList, Required: true},
	{Name: "treatmentTamil", Kind: kindStringList, Required: true},
	{Name: "cause", Kind: kindString, Required: true},
	{Name: "isHealthy", Kind: kindBool, Required: true},
}

func requiredFieldNames() []string {
	var names []string
	for _, f := range responseFields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

func severityNames() []string {
	out := make([]string, len(models.Severities))
	for i, s := range models.Severities {
		out[i] = string(s)
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseDiagnosis decodes a model response into a DiagnosisResult. Every mandatory field must be
// present, non-null and correctly typed; anything else is a SchemaError.
func ParseDiagnosis(text string) (*models.DiagnosisResult, error) {
	payload := stripCodeFence(text)
	if payload == "" {
		return nil, &SchemaError{Reason: "empty payload"}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, &SchemaError{Reason: "payload is not a JSON object", Err: err}
	}

	for _, f := range responseFields {
		value, ok := raw[f.Name]
		if !ok || isNull(value) {
			if f.Required {
				return nil, &SchemaError{Field: f.Name, Reason: "missing required field"}
			}
			continue
		}
		if err := checkKind(f.Kind, value); err != nil {
			return nil, &SchemaError{Field: f.Name, Reason: "wrong type", Err: err}
		}
	}

	var result models.DiagnosisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, &SchemaError{Reason: "payload does not decode", Err: err}
	}

	normalize(&result)

	if err := validate.Struct(&result); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &SchemaError{
				Field:  verrs[0].Field(),
				Reason: fmt.Sprintf("failed %q check", verrs[0].Tag()),
			}
		}
		return nil, &SchemaError{Reason: "validation failed", Err: err}
	}
	return &result, nil
}

func checkKind(kind fieldKind, value json.RawMessage) error {
	switch kind {
	case kindString, kindSeverity:
		var s string
		return json.Unmarshal(value, &s)
	case kindNumber:
		var n float64
		return json.Unmarshal(value, &n)
	case kindBool:
		var b bool
		return json.Unmarshal(value, &b)
	case kindStringList:
		var list []string
		return json.Unmarshal(value, &list)
	}
	return fmt.Errorf("unknown field kind %d", kind)
}

func isNull(value json.RawMessage) bool {
	return len(bytes.TrimSpace(value)) == 0 || bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// normalize enforces the invariants the rest of the system relies on
func normalize(r *models.DiagnosisResult) {
	r.DetectedCrop = strings.TrimSpace(r.DetectedCrop)
	r.DetectedCropTamil = strings.TrimSpace(r.DetectedCropTamil)
	if r.DetectedCrop == "" || strings.EqualFold(r.DetectedCrop, models.UnknownCrop) {
		r.DetectedCrop = models.UnknownCrop
		r.DetectedCropTamil = models.UnknownCropTamil
		r.IsHealthy = false
	}

	for _, s := range models.Severities {
		if strings.EqualFold(strings.TrimSpace(string(r.Severity)), string(s)) {
			r.Severity = s
			break
		}
	}

	if r.Treatment == nil {
		r.Treatment = []string{}
	}
	r.TreatmentTamil = pairTreatments(r.Treatment, r.TreatmentTamil)
}

// pairTreatments trims or pads the Tamil list to the length of the English list.
// Missing translations fall back to the English text.
func pairTreatments(treatment, tamil []string) []string {
	out := make([]string, len(treatment))
	for i := range treatment {
		if i < len(tamil) {
			out[i] = tamil[i]
		} else {
			out[i] = treatment[i]
		}
	}
	return out
}

func stripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
