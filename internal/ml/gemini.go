package ml

import (
	"context"
	"fmt"
	"strings"

	"github.com/agridoc/agridoc/internal/config"
	"github.com/agridoc/agridoc/internal/models"
	genai "google.golang.org/genai"
)

// GeminiModel calls the Gemini API directly with an API key
type GeminiModel struct {
	apiKey    string
	modelName string

	cli    *genai.Client
	config *genai.GenerateContentConfig
}

func NewGeminiModel(cfg config.MLConfig) *GeminiModel {
	return &GeminiModel{apiKey: cfg.Gemini.APIKey, modelName: cfg.Model}
}

func (g *GeminiModel) Name() string { return "gemini:" + g.modelName }

func (g *GeminiModel) Load(ctx context.Context) error {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to create gemini client: %w", err)
	}
	g.cli = cli
	g.config = &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    geminiResponseSchema(),
		Temperature:       genai.Ptr[float32](0.2),
	}
	return nil
}

func (g *GeminiModel) Generate(ctx context.Context, imageData []byte) (string, error) {
	if g.cli == nil {
		return "", fmt.Errorf("model not loaded")
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(imageData, models.ImageMIME(imageData)),
			genai.NewPartFromText(Prompt),
		}, genai.RoleUser),
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.modelName, contents, g.config)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

func (g *GeminiModel) Close() error { return nil }

func geminiResponseSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(responseFields))
	order := make([]string, 0, len(responseFields))
	for _, f := range responseFields {
		s := &genai.Schema{Description: f.Description}
		switch f.Kind {
		case kindString:
			s.Type = genai.TypeString
		case kindSeverity:
			s.Type = genai.TypeString
			s.Enum = severityNames()
		case kindNumber:
			s.Type = genai.TypeNumber
			s.Minimum = genai.Ptr(0.0)
			s.Maximum = genai.Ptr(1.0)
		case kindBool:
			s.Type = genai.TypeBoolean
		case kindStringList:
			s.Type = genai.TypeArray
			s.Items = &genai.Schema{Type: genai.TypeString}
		}
		props[f.Name] = s
		order = append(order, f.Name)
	}
	return &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       props,
		PropertyOrdering: order,
		Required:         requiredFieldNames(),
	}
}
