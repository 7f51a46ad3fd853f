package ml

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/agridoc/agridoc/internal/config"
	"github.com/agridoc/agridoc/internal/models"
	"google.golang.org/api/option"
)

// VertexModel implements the Model interface for Gemini on Google's Vertex AI
type VertexModel struct {
	projectID       string
	location        string
	credentialsFile string
	modelName       string

	client *genai.Client
	model  *genai.GenerativeModel
}

// NewVertexModel creates a Vertex AI model from configuration
func NewVertexModel(cfg config.MLConfig) *VertexModel {
	return &VertexModel{
		projectID:       cfg.Vertex.ProjectID,
		location:        cfg.Vertex.Location,
		credentialsFile: cfg.Vertex.CredentialsFile,
		modelName:       cfg.Model,
	}
}

func (m *VertexModel) Name() string { return "vertex:" + m.modelName }

// Load creates the client and pins the system instruction and response schema on the model
func (m *VertexModel) Load(ctx context.Context) error {
	opts := []option.ClientOption{}

	if m.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(m.credentialsFile))
	}

	client, err := genai.NewClient(ctx, m.projectID, m.location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	m.client = client
	m.model = client.GenerativeModel(m.modelName)
	m.model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemInstruction)},
	}
	m.model.ResponseMIMEType = "application/json"
	m.model.ResponseSchema = vertexResponseSchema()
	m.model.SetTemperature(0.2)
	return nil
}

// Generate asks Vertex AI for a diagnosis of imageData
func (m *VertexModel) Generate(ctx context.Context, imageData []byte) (string, error) {
	if m.model == nil {
		return "", fmt.Errorf("model not loaded")
	}

	img := genai.Blob{MIMEType: models.ImageMIME(imageData), Data: imageData}

	resp, err := m.model.GenerateContent(ctx, img, genai.Text(Prompt))
	if err != nil {
		return "", fmt.Errorf("failed to call ai: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

func (m *VertexModel) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

func vertexResponseSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(responseFields))
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
		case kindBool:
			s.Type = genai.TypeBoolean
		case kindStringList:
			s.Type = genai.TypeArray
			s.Items = &genai.Schema{Type: genai.TypeString}
		}
		props[f.Name] = s
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   requiredFieldNames(),
	}
}
