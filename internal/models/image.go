package models

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// DefaultImageMIME is declared to the backends when the bytes cannot be sniffed
const DefaultImageMIME = "image/jpeg"

// AcquisitionError reports an image that could not be read from the client
type AcquisitionError struct {
	Reason string
	Err    error
}

func (e *AcquisitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image acquisition failed: %s: %v", e.Reason, e.Err)
	}
	return "image acquisition failed: " + e.Reason
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// StripDataURL removes a "data:<mime>;base64," prefix if present
func StripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.Index(s, ","); i >= 0 {
		return s[i+1:]
	}
	return s
}

// DecodeImage strips data URL framing and decodes base64 image text
func DecodeImage(s string) ([]byte, error) {
	payload := StripDataURL(s)
	if payload == "" {
		return nil, &AcquisitionError{Reason: "empty image"}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some capture libraries emit unpadded base64
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if rawErr != nil {
			return nil, &AcquisitionError{Reason: "invalid base64", Err: err}
		}
	}
	if len(data) == 0 {
		return nil, &AcquisitionError{Reason: "empty image"}
	}
	return data, nil
}

// EncodeImage encodes image bytes for storage and transport
func EncodeImage(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// ImageMIME sniffs the image type, defaulting to JPEG for anything that is not a known image
func ImageMIME(data []byte) string {
	switch ct := http.DetectContentType(data); ct {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return ct
	default:
		return DefaultImageMIME
	}
}
