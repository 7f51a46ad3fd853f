package ml

import (
	"context"
	"fmt"
	"strings"

	"github.com/agridoc/agridoc/internal/config"
	"github.com/agridoc/agridoc/internal/models"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicModel asks Claude for the diagnosis. The Messages API has no response schema,
// so the contract is spelled out in the prompt and enforced by ParseDiagnosis.
type AnthropicModel struct {
	apiKey    string
	baseURL   string
	modelName string
	maxTokens int64

	client *anthropic.Client
}

func NewAnthropicModel(cfg config.MLConfig) *AnthropicModel {
	return &AnthropicModel{
		apiKey:    cfg.Anthropic.APIKey,
		baseURL:   cfg.Anthropic.BaseURL,
		modelName: cfg.Model,
		maxTokens: cfg.Anthropic.MaxTokens,
	}
}

func (a *AnthropicModel) Name() string { return "anthropic:" + a.modelName }

func (a *AnthropicModel) Load(_ context.Context) error {
	opts := []option.RequestOption{option.WithAPIKey(a.apiKey)}
	if a.baseURL != "" {
		opts = append(opts, option.WithBaseURL(a.baseURL))
	}
	client := anthropic.NewClient(opts...)
	a.client = &client
	return nil
}

func (a *AnthropicModel) Generate(ctx context.Context, imageData []byte) (string, error) {
	if a.client == nil {
		return "", fmt.Errorf("model not loaded")
	}

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.modelName),
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(0.2),
		System: []anthropic.TextBlockParam{
			{Text: SystemInstruction},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(models.ImageMIME(imageData), models.EncodeImage(imageData)),
				anthropic.NewTextBlock(Prompt+"\n\n"+schemaInstructions()),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func (a *AnthropicModel) Close() error { return nil }

// schemaInstructions renders the response contract as prompt text
func schemaInstructions() string {
	var sb strings.Builder
	sb.WriteString("Respond with a single JSON object and nothing else. Fields:\n")
	for _, f := range responseFields {
		var typ string
		switch f.Kind {
		case kindString:
			typ = "string"
		case kindSeverity:
			typ = "one of " + strings.Join(severityNames(), "|")
		case kindNumber:
			typ = "number between 0 and 1"
		case kindBool:
			typ = "boolean"
		case kindStringList:
			typ = "array of strings"
		}
		req := "required"
		if !f.Required {
			req = "optional"
		}
		fmt.Fprintf(&sb, "- %s (%s, %s)", f.Name, typ, req)
		if f.Description != "" {
			sb.WriteString(": " + f.Description)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
